package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"campusevents/mq"
)

func TestWebhookPostsSummary(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ev := mq.EventPublished{
		EventID:       "e1",
		Title:         "Felicity Hackathon",
		Description:   strings.Repeat("x", 400),
		StartDate:     time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC),
		Deadline:      time.Date(2026, 10, 30, 9, 0, 0, 0, time.UTC),
		EventType:     "normal",
		Tags:          []string{"coding"},
		OrganizerName: "Programming Club",
		WebhookURL:    srv.URL,
	}
	h := &Webhook{Client: srv.Client()}
	if err := h.Handle(context.Background(), mq.Message{Topic: mq.TopicEventPublished, Payload: ev}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(got.Content, "Programming Club") {
		t.Fatalf("content = %q", got.Content)
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Title != ev.Title || len(got.Embeds[0].Description) != 300 {
		t.Fatalf("unexpected embed %+v", got.Embeds)
	}
}

func TestSummaryTruncatesByRune(t *testing.T) {
	ev := mq.EventPublished{Title: "Musik Abend", Description: strings.Repeat("\u00fc", 400)}
	desc := summary(ev, "Music Club").Embeds[0].Description
	if !utf8.ValidString(desc) {
		t.Fatal("description split a multi-byte character")
	}
	if n := utf8.RuneCountInString(desc); n != 300 || !strings.HasSuffix(desc, "...") {
		t.Fatalf("description has %d runes: %q", n, desc[len(desc)-12:])
	}
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	h := &Webhook{Client: srv.Client()}
	if err := h.Post(context.Background(), srv.URL, mq.EventPublished{Title: "x"}, "org"); err == nil {
		t.Fatal("expected error on 400")
	}
}

func TestWebhookIgnoresMissingURL(t *testing.T) {
	h := NewWebhook()
	if err := h.Handle(context.Background(), mq.Message{Payload: mq.EventPublished{}}); err != nil {
		t.Fatalf("Handle without url: %v", err)
	}
}

func TestMailerNotConfigured(t *testing.T) {
	m := &Mailer{}
	if err := m.SendTicket(mq.TicketIssued{To: "a@b.c"}); err != ErrMailNotConfigured {
		t.Fatalf("SendTicket = %v", err)
	}
	if err := m.Handle(context.Background(), mq.Message{Payload: mq.TicketIssued{To: "a@b.c"}}); err != nil {
		t.Fatalf("Handle should swallow missing config, got %v", err)
	}
}

func TestMailerRender(t *testing.T) {
	m := &Mailer{}
	body, err := m.render(mq.TicketIssued{
		ParticipantName: "<Asha>",
		EventTitle:      "Orientation",
		TicketID:        "TKT-1",
		EventDate:       time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC),
		QRCode:          []byte{1},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(body, "&lt;Asha&gt;") || !strings.Contains(body, "cid:ticket-qr.png") {
		t.Fatalf("body = %s", body)
	}
}
