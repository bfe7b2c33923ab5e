package mq

import (
	"context"
	"log"
	"sync"
	"time"
)

const AllTopics = "*"

type Message struct {
	Topic   string
	Payload any
	Emitted time.Time
}

type Handler func(ctx context.Context, msg Message) error

type subscription struct {
	name    string
	handler Handler
}

// Bus is an in-process notification queue drained by a fixed worker pool.
// Emit never blocks the caller; a full or closed queue drops the message.
type Bus struct {
	mu       sync.RWMutex
	subs     map[string][]subscription
	queue    chan Message
	closed   bool
	wg       sync.WaitGroup
	attempts int
	backoff  time.Duration
}

func NewBus(queueSize int) *Bus {
	return &Bus{
		subs:     make(map[string][]subscription),
		queue:    make(chan Message, queueSize),
		attempts: 3,
		backoff:  time.Second,
	}
}

// SetRetry changes how often a failing handler is retried and the initial backoff.
func (b *Bus) SetRetry(attempts int, backoff time.Duration) {
	b.attempts = attempts
	b.backoff = backoff
}

// Subscribe registers h for topic, or for every topic when topic is AllTopics.
func (b *Bus) Subscribe(topic, name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], subscription{name: name, handler: h})
}

func (b *Bus) Emit(topic string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		log.Printf("mq: bus closed, dropping %s", topic)
		return
	}
	select {
	case b.queue <- Message{Topic: topic, Payload: payload, Emitted: time.Now().UTC()}:
	default:
		log.Printf("mq: queue full, dropping %s", topic)
	}
}

// Start launches the workers. They exit once Close drains the queue.
func (b *Bus) Start(ctx context.Context, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	b.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func(workerID int) {
			defer b.wg.Done()
			for msg := range b.queue {
				b.dispatch(ctx, workerID, msg)
			}
		}(i)
	}
}

// Close stops accepting messages and waits for queued ones to be handled.
func (b *Bus) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bus) handlers(topic string) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]subscription, 0, len(b.subs[topic])+len(b.subs[AllTopics]))
	out = append(out, b.subs[topic]...)
	return append(out, b.subs[AllTopics]...)
}

func (b *Bus) dispatch(ctx context.Context, workerID int, msg Message) {
	for _, s := range b.handlers(msg.Topic) {
		err := Retry(ctx, b.attempts, b.backoff, func() error {
			return s.handler(ctx, msg)
		})
		if err != nil {
			log.Printf("mq: worker %d: %s handler for %s failed: %v", workerID, s.name, msg.Topic, err)
		}
	}
}
