package mq

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBusDeliversToTopicAndWildcard(t *testing.T) {
	bus := NewBus(16)
	bus.SetRetry(1, time.Millisecond)

	var mu sync.Mutex
	got := map[string][]string{}
	record := func(name string) Handler {
		return func(_ context.Context, msg Message) error {
			mu.Lock()
			defer mu.Unlock()
			got[name] = append(got[name], msg.Topic)
			return nil
		}
	}
	bus.Subscribe(TopicEventPublished, "publish", record("publish"))
	bus.Subscribe(AllTopics, "all", record("all"))

	bus.Start(context.Background(), 2)
	bus.Emit(TopicEventPublished, EventPublished{EventID: "e1"})
	bus.Emit(TopicTicketIssued, TicketIssued{TicketID: "t1"})
	bus.Close()

	if len(got["publish"]) != 1 || got["publish"][0] != TopicEventPublished {
		t.Fatalf("publish handler saw %v", got["publish"])
	}
	if len(got["all"]) != 2 {
		t.Fatalf("wildcard handler saw %v", got["all"])
	}
}

func TestBusRetriesThenGivesUp(t *testing.T) {
	bus := NewBus(4)
	bus.SetRetry(3, time.Millisecond)

	var calls int32
	bus.Subscribe(TopicTicketIssued, "flaky", func(context.Context, Message) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("smtp down")
	})
	bus.Start(context.Background(), 1)
	bus.Emit(TopicTicketIssued, TicketIssued{})
	bus.Close()

	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("handler called %d times, want 3", n)
	}
}

func TestEmitAfterCloseDoesNotPanic(t *testing.T) {
	bus := NewBus(1)
	bus.Start(context.Background(), 1)
	bus.Close()
	bus.Emit(TopicEventPublished, nil)
}

func TestEmitDropsWhenFull(t *testing.T) {
	bus := NewBus(1)
	bus.Emit("a", nil)
	bus.Emit("b", nil)
	if len(bus.queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(bus.queue))
	}
}

func TestRetrySucceedsEventually(t *testing.T) {
	n := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		n++
		if n < 2 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || n != 2 {
		t.Fatalf("Retry = %v after %d calls", err, n)
	}
}

func TestIndexSinkPostsIndexPayloads(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("X-Event-Name") != TopicRegistrationCreated {
			t.Errorf("unexpected event header %q", r.Header.Get("X-Event-Name"))
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := &IndexSink{URL: srv.URL, Client: srv.Client()}
	ctx := context.Background()

	if err := sink.Handle(ctx, Message{Topic: TopicTicketIssued, Payload: TicketIssued{}}); err != nil {
		t.Fatalf("non-index payload: %v", err)
	}
	msg := Message{Topic: TopicRegistrationCreated, Payload: Index{EntityType: "registration", Action: "POST", EntityId: "r1"}}
	if err := sink.Handle(ctx, msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("indexer hit %d times, want 1", hits)
	}
}
