// Package service holds the domain operations behind the HTTP handlers.
// Services depend on the narrow store interfaces below; the Mongo
// repositories satisfy them in production.
package service

import (
	"context"
	"time"

	"campusevents/repository"
	"campusevents/structs"

	"go.mongodb.org/mongo-driver/bson"
)

type EventStore interface {
	FindEventByID(ctx context.Context, eventID string) (*structs.Event, error)
	InsertEvent(ctx context.Context, event *structs.Event) error
	UpdateEvent(ctx context.Context, eventID string, updateFields bson.M) (int64, error)
	SetStatus(ctx context.Context, eventID string, from, to structs.EventStatus) (bool, error)
	SetRegisteredCount(ctx context.Context, eventID string, count int) error
	DecrementStock(ctx context.Context, eventID string) error
	DeleteEvent(ctx context.Context, eventID string) error
	FindEvents(ctx context.Context, f repository.EventFilter, skip, limit int64) ([]structs.Event, error)
}

type RegistrationStore interface {
	FindRegistration(ctx context.Context, eventID, userID string) (*structs.Registration, error)
	FindByID(ctx context.Context, registrationID string) (*structs.Registration, error)
	FindByTicketID(ctx context.Context, ticketID string) (*structs.Registration, error)
	InsertRegistration(ctx context.Context, reg *structs.Registration) error
	CountByEvent(ctx context.Context, eventID string) (int64, error)
	CountByEventAndUser(ctx context.Context, eventID, userID string) (int64, error)
	DeleteRegistration(ctx context.Context, registrationID string) (int64, error)
	DeleteByEvent(ctx context.Context, eventID string) (int64, error)
	RecordAttendance(ctx context.Context, registrationID string, attended bool, method string, entry structs.AttendanceAudit) error
	SetPaymentStatus(ctx context.Context, registrationID, from, to, reason string, at time.Time) (bool, error)
	ListByEvent(ctx context.Context, eventID string) ([]structs.Registration, error)
	ListByUser(ctx context.Context, userID string) ([]structs.Registration, error)
}

type UserStore interface {
	FindUserByID(ctx context.Context, userID string) (*structs.User, error)
	FindUserByEmail(ctx context.Context, email string) (*structs.User, error)
	InsertUser(ctx context.Context, user *structs.User) error
	FindSummaries(ctx context.Context, userIDs []string) (map[string]structs.UserSummary, error)
}

type MessageStore interface {
	InsertMessage(ctx context.Context, msg *structs.DiscussionMessage) error
	FindMessageByID(ctx context.Context, messageID string) (*structs.DiscussionMessage, error)
	ListByEvent(ctx context.Context, eventID string) ([]structs.DiscussionMessage, error)
	UpdateMessage(ctx context.Context, messageID string, fields bson.M) error
	ToggleReaction(ctx context.Context, messageID, userID, emoji string, at time.Time) (bool, error)
	CountSince(ctx context.Context, eventID string, since time.Time) (int64, error)
}

type FeedbackStore interface {
	FindFeedback(ctx context.Context, eventID, userID string) (*structs.Feedback, error)
	InsertFeedback(ctx context.Context, fb *structs.Feedback) error
	UpdateFeedback(ctx context.Context, feedbackID string, rating int, comment string, at time.Time) error
	ListFeedback(ctx context.Context, eventID string, rating int) ([]structs.Feedback, error)
}

// Emitter is satisfied by *mq.Bus.
type Emitter interface {
	Emit(topic string, payload any)
}

// Broadcaster is satisfied by *hub.Hub.
type Broadcaster interface {
	Broadcast(eventID, kind string, data any)
}

type nopEmitter struct{}

func (nopEmitter) Emit(string, any) {}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, string, any) {}

func orNop(e Emitter) Emitter {
	if e == nil {
		return nopEmitter{}
	}
	return e
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func paging(page, limit int) (skip, size int64) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return int64((page - 1) * limit), int64(limit)
}
