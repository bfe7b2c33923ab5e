package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"campusevents/apperr"
	"campusevents/events"
	"campusevents/mq"
	"campusevents/structs"
	"campusevents/tickets"
	"campusevents/utils"
)

var (
	ErrEventNotOpen         = apperr.Validationf("Event is not open for registration")
	ErrNotEligible          = apperr.Forbidden("You are not eligible for this event")
	ErrDeadlinePassed       = apperr.Validationf("Registration deadline has passed")
	ErrEventFull            = apperr.Validationf("Event is full")
	ErrPaymentProofRequired = apperr.Validationf("Payment proof is required for merchandise orders")
	ErrPurchaseLimit        = apperr.Validationf("Purchase limit reached for this item")
	ErrOutOfStock           = apperr.Validationf("Item is out of stock")
	ErrAlreadyRegistered    = apperr.Conflictf("You are already registered for this event")
	ErrInvalidTicket        = apperr.NotFoundf("Invalid ticket")
)

type RegistrationService struct {
	Events        EventStore
	Registrations RegistrationStore
	Users         UserStore
	Bus           Emitter
	Now           func() time.Time
	NewTicketID   func() string
	Artifact      func(ticketID string) ([]byte, error)
}

func NewRegistrationService(events EventStore, regs RegistrationStore, users UserStore, bus Emitter) *RegistrationService {
	return &RegistrationService{
		Events:        events,
		Registrations: regs,
		Users:         users,
		Bus:           orNop(bus),
		Now:           time.Now,
		NewTicketID:   tickets.NewTicketID,
		Artifact:      tickets.GenerateArtifact,
	}
}

// RegisterInput carries the answers of a registration. PaymentProof is the
// stored path of an uploaded proof image.
type RegisterInput struct {
	FormResponses map[string]any
	Merchandise   *structs.MerchandiseSelection
	PaymentProof  string
}

type RegisterResult struct {
	RegistrationID string `json:"registrationId"`
	TicketID       string `json:"ticketId"`
	PaymentStatus  string `json:"paymentStatus"`
	QRCode         string `json:"qrCode,omitempty"`
}

func (s *RegistrationService) findEvent(ctx context.Context, eventID string) (*structs.Event, error) {
	ev, err := s.Events.FindEventByID(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(err, "find event")
	}
	if ev == nil {
		return nil, apperr.NotFoundf("Event not found")
	}
	return ev, nil
}

// Register admits a participant after checking, in order: the event is
// published, the participant is eligible, the deadline has not passed, the
// event has room, required form fields are answered (normal events) and the
// merchandise proof, limit and stock rules hold.
func (s *RegistrationService) Register(ctx context.Context, actor structs.Actor, eventID string, in RegisterInput) (*RegisterResult, error) {
	ev, err := s.findEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Status != structs.StatusPublished {
		return nil, ErrEventNotOpen
	}

	user, err := s.Users.FindUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Wrap(err, "find user")
	}
	if user == nil {
		return nil, apperr.NotFoundf("User not found")
	}
	if !events.Eligible(ev.Eligibility, user.ParticipantType) {
		return nil, ErrNotEligible
	}

	now := s.Now().UTC()
	if !now.Before(ev.RegistrationDeadline) {
		return nil, ErrDeadlinePassed
	}

	if err := s.checkCapacity(ctx, ev); err != nil {
		return nil, err
	}

	merch := ev.EventType == structs.EventTypeMerchandise
	if !merch {
		if missing := events.MissingRequired(ev.CustomForm, in.FormResponses); len(missing) > 0 {
			return nil, apperr.Validationf("Missing required fields: %s", strings.Join(missing, ", "))
		}
	} else {
		if strings.TrimSpace(in.PaymentProof) == "" {
			return nil, ErrPaymentProofRequired
		}
		if err := s.checkMerchandise(ctx, ev, actor.UserID); err != nil {
			return nil, err
		}
	}

	reg := &structs.Registration{
		RegistrationID:      utils.GenerateID(16),
		EventID:             ev.EventID,
		UserID:              actor.UserID,
		TicketID:            s.NewTicketID(),
		CustomFormResponses: in.FormResponses,
		PaymentStatus:       structs.PaymentNone,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	var qr []byte
	if merch {
		reg.PaymentStatus = structs.PaymentPending
		reg.PaymentProof = in.PaymentProof
		reg.MerchandiseSelections = in.Merchandise
	} else {
		// A normal registration is only stored once its ticket can be shown.
		qr, err = s.Artifact(reg.TicketID)
		if err != nil {
			return nil, apperr.Wrap(err, "generate ticket QR code")
		}
	}

	if err := s.Registrations.InsertRegistration(ctx, reg); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return nil, ErrAlreadyRegistered
		}
		return nil, apperr.Wrap(err, "insert registration")
	}

	if merch {
		if err := s.Events.DecrementStock(ctx, ev.EventID); err != nil {
			log.Printf("Failed to decrement stock for event %s: %v", ev.EventID, err)
		}
	}
	s.resync(ctx, ev.EventID)

	res := &RegisterResult{
		RegistrationID: reg.RegistrationID,
		TicketID:       reg.TicketID,
		PaymentStatus:  reg.PaymentStatus,
	}
	if !merch {
		res.QRCode = tickets.DataURL(qr)
		s.issueTicket(ev, user, reg.TicketID, qr)
	}
	s.Bus.Emit(mq.TopicRegistrationCreated, mq.Index{EntityType: "registration", Action: "POST", EntityId: ev.EventID, ItemId: reg.RegistrationID, ItemType: "registration"})
	return res, nil
}

// checkCapacity and checkMerchandise read counts and stock before the
// registration is written. Concurrent requests near a boundary can all pass
// before any insert lands, so capacity and stock may be overshot by the
// number of racing requests. registered_count is recomputed afterwards.
func (s *RegistrationService) checkCapacity(ctx context.Context, ev *structs.Event) error {
	count, err := s.Registrations.CountByEvent(ctx, ev.EventID)
	if err != nil {
		return apperr.Wrap(err, "count registrations")
	}
	if count >= int64(ev.Capacity) {
		return ErrEventFull
	}
	return nil
}

func (s *RegistrationService) checkMerchandise(ctx context.Context, ev *structs.Event, userID string) error {
	bought, err := s.Registrations.CountByEventAndUser(ctx, ev.EventID, userID)
	if err != nil {
		return apperr.Wrap(err, "count purchases")
	}
	if bought >= int64(events.PurchaseLimit(ev)) {
		return ErrPurchaseLimit
	}
	if ev.MerchandiseDetails == nil || ev.MerchandiseDetails.StockQuantity <= 0 {
		return ErrOutOfStock
	}
	return nil
}

// resync stores the live registration count on the event. Failures are
// logged; the next mutation corrects the value.
func (s *RegistrationService) resync(ctx context.Context, eventID string) {
	n, err := s.Registrations.CountByEvent(ctx, eventID)
	if err != nil {
		log.Printf("Failed to count registrations for %s: %v", eventID, err)
		return
	}
	if err := s.Events.SetRegisteredCount(ctx, eventID, int(n)); err != nil {
		log.Printf("Failed to store registered count for %s: %v", eventID, err)
	}
}

func (s *RegistrationService) issueTicket(ev *structs.Event, user *structs.User, ticketID string, qr []byte) {
	s.Bus.Emit(mq.TopicTicketIssued, mq.TicketIssued{
		To:              user.Email,
		ParticipantName: user.DisplayName(),
		EventID:         ev.EventID,
		EventTitle:      ev.Title,
		TicketID:        ticketID,
		EventDate:       ev.StartDate,
		Location:        ev.Location,
		QRCode:          qr,
	})
}

// Unregister removes the caller's registration. Only allowed while the event
// is published.
func (s *RegistrationService) Unregister(ctx context.Context, actor structs.Actor, eventID string) error {
	ev, err := s.findEvent(ctx, eventID)
	if err != nil {
		return err
	}
	reg, err := s.Registrations.FindRegistration(ctx, eventID, actor.UserID)
	if err != nil {
		return apperr.Wrap(err, "find registration")
	}
	if reg == nil {
		return apperr.NotFoundf("Registration not found")
	}
	if ev.Status != structs.StatusPublished {
		return apperr.Validationf("Registrations can only be cancelled while the event is published")
	}

	n, err := s.Registrations.DeleteRegistration(ctx, reg.RegistrationID)
	if err != nil {
		return apperr.Wrap(err, "delete registration")
	}
	if n == 0 {
		return apperr.NotFoundf("Registration not found")
	}
	s.resync(ctx, eventID)
	s.Bus.Emit(mq.TopicRegistrationDeleted, mq.Index{EntityType: "registration", Action: "DELETE", EntityId: eventID, ItemId: reg.RegistrationID, ItemType: "registration"})
	return nil
}

// ticketForOrganizer resolves a ticket and checks that actor organizes its event.
func (s *RegistrationService) ticketForOrganizer(ctx context.Context, actor structs.Actor, ticketID string) (*structs.Registration, *structs.Event, error) {
	reg, err := s.Registrations.FindByTicketID(ctx, ticketID)
	if err != nil {
		return nil, nil, apperr.Wrap(err, "find ticket")
	}
	if reg == nil {
		return nil, nil, ErrInvalidTicket
	}
	ev, err := ownedEvent(ctx, s.Events, actor, reg.EventID)
	if err != nil {
		return nil, nil, err
	}
	return reg, ev, nil
}

type AttendanceResult struct {
	TicketID   string     `json:"ticketId"`
	Attended   bool       `json:"attended"`
	AttendedAt *time.Time `json:"attendedAt,omitempty"`
	Already    bool       `json:"alreadyMarked"`
}

// MarkAttendance records a ticket scan. Scanning twice is a no-op.
func (s *RegistrationService) MarkAttendance(ctx context.Context, actor structs.Actor, ticketID string) (*AttendanceResult, error) {
	reg, ev, err := s.ticketForOrganizer(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ev.Status == structs.StatusCancelled {
		return nil, apperr.Validationf("Event is cancelled")
	}
	if reg.Attended {
		return &AttendanceResult{TicketID: reg.TicketID, Attended: true, AttendedAt: reg.AttendedAt, Already: true}, nil
	}
	if reg.PaymentStatus == structs.PaymentPending || reg.PaymentStatus == structs.PaymentRejected {
		return nil, apperr.Validationf("Payment for this ticket is %s", reg.PaymentStatus)
	}

	now := s.Now().UTC()
	entry := structs.AttendanceAudit{Action: "scan", PerformedBy: actor.UserID, Timestamp: now}
	if err := s.Registrations.RecordAttendance(ctx, reg.RegistrationID, true, structs.AttendanceQRScan, entry); err != nil {
		return nil, apperr.Wrap(err, "record attendance")
	}
	return &AttendanceResult{TicketID: reg.TicketID, Attended: true, AttendedAt: &now}, nil
}

type TicketStatus struct {
	TicketID        string     `json:"ticketId"`
	EventID         string     `json:"eventId"`
	ParticipantName string     `json:"participantName"`
	Valid           bool       `json:"valid"`
	Attended        bool       `json:"attended"`
	AttendedAt      *time.Time `json:"attendedAt,omitempty"`
	PaymentStatus   string     `json:"paymentStatus"`
}

// ValidateTicket looks a ticket up without marking it.
func (s *RegistrationService) ValidateTicket(ctx context.Context, actor structs.Actor, ticketID string) (*TicketStatus, error) {
	reg, _, err := s.ticketForOrganizer(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	st := &TicketStatus{
		TicketID:      reg.TicketID,
		EventID:       reg.EventID,
		Valid:         reg.PaymentStatus == structs.PaymentNone || reg.PaymentStatus == structs.PaymentApproved,
		Attended:      reg.Attended,
		AttendedAt:    reg.AttendedAt,
		PaymentStatus: reg.PaymentStatus,
	}
	if user, err := s.Users.FindUserByID(ctx, reg.UserID); err == nil && user != nil {
		st.ParticipantName = user.DisplayName()
	}
	return st, nil
}

func (s *RegistrationService) registrationInEvent(ctx context.Context, eventID, registrationID string) (*structs.Registration, error) {
	reg, err := s.Registrations.FindByID(ctx, registrationID)
	if err != nil {
		return nil, apperr.Wrap(err, "find registration")
	}
	if reg == nil || reg.EventID != eventID {
		return nil, apperr.NotFoundf("Registration not found")
	}
	return reg, nil
}

// OverrideAttendance lets the organizer mark or unmark attendance by hand.
// A reason is mandatory and lands in the audit log.
func (s *RegistrationService) OverrideAttendance(ctx context.Context, actor structs.Actor, eventID, registrationID string, attended bool, reason string) (*structs.Registration, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validationf("A reason is required for manual attendance changes")
	}
	if _, err := ownedEvent(ctx, s.Events, actor, eventID); err != nil {
		return nil, err
	}
	reg, err := s.registrationInEvent(ctx, eventID, registrationID)
	if err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	action := "manual_mark"
	if !attended {
		action = "manual_unmark"
	}
	entry := structs.AttendanceAudit{Action: action, PerformedBy: actor.UserID, Timestamp: now, Reason: reason}
	if err := s.Registrations.RecordAttendance(ctx, reg.RegistrationID, attended, structs.AttendanceManualOverride, entry); err != nil {
		return nil, apperr.Wrap(err, "record attendance")
	}

	reg.Attended = attended
	reg.AttendanceMethod = structs.AttendanceManualOverride
	reg.AttendanceAuditLog = append(reg.AttendanceAuditLog, entry)
	if attended {
		reg.AttendedAt = &now
	} else {
		reg.AttendedAt = nil
	}
	return reg, nil
}

const (
	PaymentActionApprove = "approve"
	PaymentActionReject  = "reject"
)

// ReviewPayment approves or rejects a pending merchandise order. Stock taken
// at order time is never returned.
func (s *RegistrationService) ReviewPayment(ctx context.Context, actor structs.Actor, eventID, registrationID, action, reason string) (*structs.Registration, error) {
	ev, err := ownedEvent(ctx, s.Events, actor, eventID)
	if err != nil {
		return nil, err
	}
	if ev.EventType != structs.EventTypeMerchandise {
		return nil, apperr.Validationf("Only merchandise orders have payments to review")
	}

	var to string
	reason = strings.TrimSpace(reason)
	switch action {
	case PaymentActionApprove:
		to = structs.PaymentApproved
		reason = ""
	case PaymentActionReject:
		to = structs.PaymentRejected
		if reason == "" {
			return nil, apperr.Validationf("A reason is required to reject a payment")
		}
	default:
		return nil, apperr.Validationf("Invalid action %q", action)
	}

	reg, err := s.registrationInEvent(ctx, eventID, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.PaymentStatus != structs.PaymentPending {
		return nil, apperr.Validationf("Payment is already %s", reg.PaymentStatus)
	}

	now := s.Now().UTC()
	ok, err := s.Registrations.SetPaymentStatus(ctx, reg.RegistrationID, structs.PaymentPending, to, reason, now)
	if err != nil {
		return nil, apperr.Wrap(err, "set payment status")
	}
	if !ok {
		return nil, apperr.Conflictf("Payment was reviewed concurrently")
	}
	reg.PaymentStatus = to
	reg.RejectionReason = reason
	reg.UpdatedAt = now

	if to == structs.PaymentApproved {
		s.sendApprovedTicket(ctx, ev, reg)
	}
	return reg, nil
}

func (s *RegistrationService) sendApprovedTicket(ctx context.Context, ev *structs.Event, reg *structs.Registration) {
	user, err := s.Users.FindUserByID(ctx, reg.UserID)
	if err != nil || user == nil {
		log.Printf("No ticket email for registration %s: buyer not found (%v)", reg.RegistrationID, err)
		return
	}
	qr, err := s.Artifact(reg.TicketID)
	if err != nil {
		log.Printf("Failed to render QR for ticket %s: %v", reg.TicketID, err)
	}
	s.issueTicket(ev, user, reg.TicketID, qr)
}

type EventRegistrations struct {
	EventID         string                 `json:"eventId"`
	Capacity        int                    `json:"capacity"`
	RegisteredCount int                    `json:"registeredCount"`
	AttendedCount   int                    `json:"attendedCount"`
	Registrations   []structs.Registration `json:"registrations"`
}

// ListForEvent is the organizer's view of an event's registrations.
func (s *RegistrationService) ListForEvent(ctx context.Context, actor structs.Actor, eventID string) (*EventRegistrations, error) {
	ev, err := ownedEvent(ctx, s.Events, actor, eventID)
	if err != nil {
		return nil, err
	}
	regs, err := s.Registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(err, "list registrations")
	}
	if regs == nil {
		regs = []structs.Registration{}
	}
	out := &EventRegistrations{
		EventID:         eventID,
		Capacity:        ev.Capacity,
		RegisteredCount: len(regs),
		Registrations:   regs,
	}
	for _, r := range regs {
		if r.Attended {
			out.AttendedCount++
		}
	}
	return out, nil
}

type MyRegistration struct {
	structs.Registration
	EventTitle  string              `json:"event_title"`
	EventStart  time.Time           `json:"event_start"`
	EventStatus structs.EventStatus `json:"event_status"`
}

// MyRegistrations lists the caller's registrations with event summaries.
// Registrations of deleted events are skipped.
func (s *RegistrationService) MyRegistrations(ctx context.Context, actor structs.Actor) ([]MyRegistration, error) {
	regs, err := s.Registrations.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Wrap(err, "list registrations")
	}
	out := make([]MyRegistration, 0, len(regs))
	for _, r := range regs {
		ev, err := s.Events.FindEventByID(ctx, r.EventID)
		if err != nil {
			return nil, apperr.Wrap(err, fmt.Sprintf("find event %s", r.EventID))
		}
		if ev == nil {
			continue
		}
		out = append(out, MyRegistration{Registration: r, EventTitle: ev.Title, EventStart: ev.StartDate, EventStatus: ev.Status})
	}
	return out, nil
}

// Registration returns the caller's registration for an event, or nil.
func (s *RegistrationService) Registration(ctx context.Context, actor structs.Actor, eventID string) (*structs.Registration, error) {
	reg, err := s.Registrations.FindRegistration(ctx, eventID, actor.UserID)
	if err != nil {
		return nil, apperr.Wrap(err, "find registration")
	}
	return reg, nil
}
