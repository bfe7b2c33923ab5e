package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, h *Hub, eventID string) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, eventID, "u1")
	}))
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var hello WSMessage
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "connected" {
		t.Fatalf("expected connected frame, got %+v (%v)", hello, err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestBroadcastReachesRoom(t *testing.T) {
	h := New()
	conn, closeFn := dial(t, h, "ev1")
	defer closeFn()

	if n := h.Count("ev1"); n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}

	h.Broadcast("other", "message:new", "ignored")
	h.Broadcast("ev1", "message:new", map[string]string{"messageid": "m1"})

	var got WSMessage
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != "message:new" {
		t.Fatalf("type = %q", got.Type)
	}
	data, _ := got.Data.(map[string]any)
	if data["messageid"] != "m1" {
		t.Fatalf("data = %v", got.Data)
	}
}

func TestPingPong(t *testing.T) {
	h := New()
	conn, closeFn := dial(t, h, "ev1")
	defer closeFn()

	if err := conn.WriteJSON(WSMessage{Type: "ping"}); err != nil {
		t.Fatal(err)
	}
	var got WSMessage
	if err := conn.ReadJSON(&got); err != nil || got.Type != "pong" {
		t.Fatalf("expected pong, got %+v (%v)", got, err)
	}
}

func TestLeaveOnDisconnect(t *testing.T) {
	h := New()
	conn, closeFn := dial(t, h, "ev1")
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	closeFn()

	deadline := time.Now().Add(2 * time.Second)
	for h.Count("ev1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
