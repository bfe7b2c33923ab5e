package service

import (
	"context"
	"log"
	"strings"
	"time"

	"campusevents/apperr"
	"campusevents/events"
	"campusevents/mq"
	"campusevents/repository"
	"campusevents/structs"
	"campusevents/utils"
)

type EventService struct {
	Events        EventStore
	Registrations RegistrationStore
	Users         UserStore
	Bus           Emitter
	Now           func() time.Time
}

func NewEventService(events EventStore, regs RegistrationStore, users UserStore, bus Emitter) *EventService {
	return &EventService{Events: events, Registrations: regs, Users: users, Bus: orNop(bus), Now: time.Now}
}

type EventInput struct {
	Title                string                      `json:"title" validate:"required,max=200"`
	Description          string                      `json:"description" validate:"max=5000"`
	StartDate            time.Time                   `json:"start_date" validate:"required"`
	EndDate              time.Time                   `json:"end_date" validate:"required"`
	Location             string                      `json:"location" validate:"max=300"`
	Capacity             int                         `json:"capacity" validate:"required,gt=0"`
	RegistrationDeadline time.Time                   `json:"registration_deadline" validate:"required"`
	EventType            string                      `json:"event_type" validate:"required,oneof=normal merchandise"`
	Eligibility          string                      `json:"eligibility" validate:"max=100"`
	RegistrationFee      float64                     `json:"registration_fee" validate:"gte=0"`
	Tags                 []string                    `json:"tags" validate:"max=20,dive,max=40"`
	CustomForm           []structs.FormField         `json:"custom_form" validate:"dive"`
	MerchandiseDetails   *structs.MerchandiseDetails `json:"merchandise_details"`
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// CreateEvent stores a new draft owned by the calling organizer.
func (s *EventService) CreateEvent(ctx context.Context, actor structs.Actor, in EventInput) (*structs.Event, error) {
	now := s.Now().UTC()
	ev := &structs.Event{
		EventID:              utils.GenerateID(14),
		OrganizerID:          actor.UserID,
		Title:                strings.TrimSpace(in.Title),
		Description:          in.Description,
		StartDate:            in.StartDate,
		EndDate:              in.EndDate,
		Location:             in.Location,
		Capacity:             in.Capacity,
		RegistrationDeadline: in.RegistrationDeadline,
		Status:               structs.StatusDraft,
		EventType:            in.EventType,
		Eligibility:          in.Eligibility,
		RegistrationFee:      in.RegistrationFee,
		Tags:                 normalizeTags(in.Tags),
		CustomForm:           in.CustomForm,
		MerchandiseDetails:   in.MerchandiseDetails,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if ev.CustomForm == nil {
		ev.CustomForm = []structs.FormField{}
	}
	if err := events.Validate(ev); err != nil {
		return nil, err
	}

	if err := s.Events.InsertEvent(ctx, ev); err != nil {
		return nil, apperr.Wrap(err, "insert event")
	}
	log.Printf("Event %s created by %s", ev.EventID, actor.UserID)
	return ev, nil
}

// GetEvent returns an event. Drafts are visible to their organizer only.
func (s *EventService) GetEvent(ctx context.Context, actor structs.Actor, eventID string) (*structs.Event, error) {
	ev, err := s.find(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Status == structs.StatusDraft && ev.OrganizerID != actor.UserID {
		return nil, apperr.NotFoundf("Event not found")
	}
	return ev, nil
}

// ListEvents returns published and ongoing events, soonest first.
func (s *EventService) ListEvents(ctx context.Context, tag string, page, limit int) ([]structs.Event, error) {
	skip, size := paging(page, limit)
	list, err := s.Events.FindEvents(ctx, repository.EventFilter{
		Statuses: []structs.EventStatus{structs.StatusPublished, structs.StatusOngoing},
		Tag:      strings.ToLower(strings.TrimSpace(tag)),
	}, skip, size)
	if err != nil {
		return nil, apperr.Wrap(err, "list events")
	}
	if list == nil {
		list = []structs.Event{}
	}
	return list, nil
}

func (s *EventService) OrganizerEvents(ctx context.Context, actor structs.Actor, page, limit int) ([]structs.Event, error) {
	skip, size := paging(page, limit)
	list, err := s.Events.FindEvents(ctx, repository.EventFilter{OrganizerID: actor.UserID}, skip, size)
	if err != nil {
		return nil, apperr.Wrap(err, "list organizer events")
	}
	if list == nil {
		list = []structs.Event{}
	}
	return list, nil
}

func (s *EventService) find(ctx context.Context, eventID string) (*structs.Event, error) {
	ev, err := s.Events.FindEventByID(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(err, "find event")
	}
	if ev == nil {
		return nil, apperr.NotFoundf("Event not found")
	}
	return ev, nil
}

// owned loads an event and checks that actor organizes it.
func (s *EventService) owned(ctx context.Context, actor structs.Actor, eventID string) (*structs.Event, error) {
	return ownedEvent(ctx, s.Events, actor, eventID)
}

func ownedEvent(ctx context.Context, store EventStore, actor structs.Actor, eventID string) (*structs.Event, error) {
	ev, err := store.FindEventByID(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(err, "find event")
	}
	if ev == nil {
		return nil, apperr.NotFoundf("Event not found")
	}
	if ev.OrganizerID != actor.UserID {
		log.Printf("User %s attempted to manage event %s they do not organize", actor.UserID, eventID)
		return nil, apperr.Forbidden("You do not organize this event")
	}
	return ev, nil
}

// UpdateEvent applies an edit under the status-dependent field lock.
func (s *EventService) UpdateEvent(ctx context.Context, actor structs.Actor, eventID string, patch events.Patch) (*structs.Event, error) {
	ev, err := s.owned(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}

	regs, err := s.Registrations.CountByEvent(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(err, "count registrations")
	}

	set, err := events.UpdateFields(ev, patch, regs)
	if err != nil {
		return nil, err
	}
	if tags, ok := set["tags"].([]string); ok {
		set["tags"] = normalizeTags(tags)
	}
	set["updated_at"] = s.Now().UTC()

	matched, err := s.Events.UpdateEvent(ctx, eventID, set)
	if err != nil {
		return nil, apperr.Wrap(err, "update event")
	}
	if matched == 0 {
		return nil, apperr.NotFoundf("Event not found")
	}

	updated, err := s.find(ctx, eventID)
	if err != nil {
		return nil, err
	}
	s.Bus.Emit(mq.TopicEventUpdated, mq.Index{EntityType: "event", Action: "PUT", EntityId: eventID})
	return updated, nil
}

// ChangeStatus moves an event along the lifecycle. An empty newStatus
// toggles between draft and published.
func (s *EventService) ChangeStatus(ctx context.Context, actor structs.Actor, eventID, newStatus string) (*structs.Event, error) {
	ev, err := s.owned(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}

	next, err := events.NextStatus(ev.Status, newStatus)
	if err != nil {
		return nil, err
	}

	ok, err := s.Events.SetStatus(ctx, eventID, ev.Status, next)
	if err != nil {
		return nil, apperr.Wrap(err, "set event status")
	}
	if !ok {
		return nil, apperr.Conflictf("Event status changed concurrently, reload and try again")
	}

	prev := ev.Status
	ev.Status = next
	ev.UpdatedAt = s.Now().UTC()

	switch {
	case next == structs.StatusPublished:
		s.announce(ctx, ev)
	case prev == structs.StatusPublished && next == structs.StatusDraft:
		s.Bus.Emit(mq.TopicEventUnpublished, mq.EventWithdrawn{EventID: ev.EventID, Title: ev.Title, Reason: "unpublished"})
	case next == structs.StatusCompleted || next == structs.StatusClosed:
		s.Bus.Emit(mq.TopicEventEnded, mq.EventWithdrawn{EventID: ev.EventID, Title: ev.Title, Reason: string(next)})
	}
	log.Printf("Event %s status %s -> %s", eventID, prev, next)
	return ev, nil
}

// announce fans a freshly published event out to the organizer's webhook
// and the discovery indexes.
func (s *EventService) announce(ctx context.Context, ev *structs.Event) {
	msg := mq.EventPublished{
		EventID:     ev.EventID,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		StartDate:   ev.StartDate,
		Deadline:    ev.RegistrationDeadline,
		EventType:   ev.EventType,
		Fee:         ev.RegistrationFee,
		Tags:        ev.Tags,
	}
	organizer, err := s.Users.FindUserByID(ctx, ev.OrganizerID)
	if err != nil {
		log.Printf("Failed to load organizer %s for event %s: %v", ev.OrganizerID, ev.EventID, err)
	} else if organizer != nil {
		msg.OrganizerName = organizer.DisplayName()
		msg.WebhookURL = organizer.DiscordWebhook
	}
	s.Bus.Emit(mq.TopicEventPublished, msg)
	s.Bus.Emit(mq.TopicEventUpdated, mq.Index{EntityType: "event", Action: "POST", EntityId: ev.EventID})
}

func (s *EventService) CancelEvent(ctx context.Context, actor structs.Actor, eventID string) (*structs.Event, error) {
	ev, err := s.owned(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	if err := events.CheckCancel(ev.Status); err != nil {
		return nil, err
	}

	ok, err := s.Events.SetStatus(ctx, eventID, ev.Status, structs.StatusCancelled)
	if err != nil {
		return nil, apperr.Wrap(err, "cancel event")
	}
	if !ok {
		return nil, apperr.Conflictf("Event status changed concurrently, reload and try again")
	}

	ev.Status = structs.StatusCancelled
	ev.UpdatedAt = s.Now().UTC()
	s.Bus.Emit(mq.TopicEventCancelled, mq.EventWithdrawn{EventID: ev.EventID, Title: ev.Title, Reason: "cancelled"})
	return ev, nil
}

// DeleteEvent removes an event together with its registrations.
func (s *EventService) DeleteEvent(ctx context.Context, actor structs.Actor, eventID string) error {
	ev, err := s.owned(ctx, actor, eventID)
	if err != nil {
		return err
	}
	// registrations go first so a failure never leaves them without an event
	n, err := s.Registrations.DeleteByEvent(ctx, eventID)
	if err != nil {
		return apperr.Wrap(err, "delete registrations")
	}
	if err := s.Events.DeleteEvent(ctx, eventID); err != nil {
		return apperr.Wrap(err, "delete event")
	}
	log.Printf("Event %s deleted with %d registrations", eventID, n)

	s.Bus.Emit(mq.TopicEventDeleted, mq.EventWithdrawn{EventID: ev.EventID, Title: ev.Title, Reason: "deleted"})
	s.Bus.Emit(mq.TopicEventDeleted, mq.Index{EntityType: "event", Action: "DELETE", EntityId: eventID})
	return nil
}
