// Package hub fans discussion updates out to websocket clients, one room per event.
package hub

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the REST surface
	},
}

type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	conn   *websocket.Conn
	send   chan WSMessage
	userID string
}

type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func New() *Hub {
	return &Hub{rooms: make(map[string]map[*client]struct{})}
}

func (h *Hub) join(eventID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[eventID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[eventID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) leave(eventID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[eventID]
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, eventID)
	}
}

// Count reports how many clients are connected to an event's room.
func (h *Hub) Count(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

// Broadcast queues msg for every client in the room. Slow clients miss updates
// instead of stalling the sender.
func (h *Hub) Broadcast(eventID, kind string, data any) {
	msg := WSMessage{Type: kind, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			log.Printf("websocket: dropping %s for user %s in event %s", kind, c.userID, eventID)
		}
	}
}

// Serve upgrades the request and blocks until the client disconnects.
// Callers must have checked forum access already.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, eventID, userID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, send: make(chan WSMessage, sendBuffer), userID: userID}
	h.join(eventID, c)
	log.Printf("User %s joined discussion %s", userID, eventID)

	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()
	c.send <- WSMessage{Type: "connected", Data: map[string]string{"eventid": eventID}}

	c.readPump()

	h.leave(eventID, c)
	close(c.send)
	<-done
	log.Printf("User %s left discussion %s", userID, eventID)
	return nil
}

// readPump only services control frames and client pings; all writes go through REST.
func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error for user %s: %v", c.userID, err)
			}
			return
		}
		if msg.Type == "ping" {
			select {
			case c.send <- WSMessage{Type: "pong", Data: "ok"}:
			default:
			}
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				// unblock readPump so Serve can clean up
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
