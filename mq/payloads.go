package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TopicEventPublished      = "event-published"
	TopicEventUnpublished    = "event-unpublished"
	TopicEventCancelled      = "event-cancelled"
	TopicEventEnded          = "event-ended"
	TopicEventUpdated        = "event-updated"
	TopicEventDeleted        = "event-deleted"
	TopicTicketIssued        = "ticket-issued"
	TopicRegistrationCreated = "registration-created"
	TopicRegistrationDeleted = "registration-deleted"
	TopicDiscussionPosted    = "discussion-posted"
	TopicFeedbackSubmitted   = "feedback-submitted"
)

type EventPublished struct {
	EventID       string    `json:"eventid"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	StartDate     time.Time `json:"start_date"`
	Deadline      time.Time `json:"registration_deadline"`
	EventType     string    `json:"event_type"`
	Fee           float64   `json:"registration_fee"`
	Tags          []string  `json:"tags"`
	OrganizerName string    `json:"organizer_name"`
	WebhookURL    string    `json:"-"`
}

// EventWithdrawn is emitted when an event stops being discoverable:
// unpublished, ended, cancelled or deleted.
type EventWithdrawn struct {
	EventID string `json:"eventid"`
	Title   string `json:"title"`
	Reason  string `json:"reason"`
}

type TicketIssued struct {
	To              string    `json:"-"`
	ParticipantName string    `json:"participant_name"`
	EventID         string    `json:"eventid"`
	EventTitle      string    `json:"event_title"`
	TicketID        string    `json:"ticketid"`
	EventDate       time.Time `json:"event_date"`
	Location        string    `json:"location"`
	QRCode          []byte    `json:"-"`
}

// RedisSink republishes every bus message on a Redis channel named prefix+topic.
type RedisSink struct {
	Client *redis.Client
	Prefix string
}

func (s *RedisSink) Handle(ctx context.Context, msg Message) error {
	data, err := json.Marshal(map[string]any{
		"topic":   msg.Topic,
		"payload": msg.Payload,
		"emitted": msg.Emitted,
	})
	if err != nil {
		return err
	}
	return s.Client.Publish(ctx, s.Prefix+msg.Topic, data).Err()
}
