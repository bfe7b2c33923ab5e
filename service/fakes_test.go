package service

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"campusevents/apperr"
	"campusevents/repository"
	"campusevents/structs"

	"go.mongodb.org/mongo-driver/bson"
)

// applySet mimics a Mongo $set by round-tripping doc through bson.
func applySet[T any](doc *T, set bson.M) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return err
	}
	for k, v := range set {
		m[k] = v
	}
	raw, err = bson.Marshal(m)
	if err != nil {
		return err
	}
	var out T
	if err := bson.Unmarshal(raw, &out); err != nil {
		return err
	}
	*doc = out
	return nil
}

type memEvents struct {
	mu         sync.Mutex
	events     map[string]*structs.Event
	stockCalls int
}

func newMemEvents() *memEvents {
	return &memEvents{events: make(map[string]*structs.Event)}
}

func cloneEvent(ev *structs.Event) *structs.Event {
	c := *ev
	if ev.MerchandiseDetails != nil {
		md := *ev.MerchandiseDetails
		c.MerchandiseDetails = &md
	}
	return &c
}

func (m *memEvents) put(ev *structs.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.EventID] = cloneEvent(ev)
}

func (m *memEvents) get(id string) *structs.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.events[id]; ok {
		return cloneEvent(ev)
	}
	return nil
}

func (m *memEvents) FindEventByID(_ context.Context, eventID string) (*structs.Event, error) {
	return m.get(eventID), nil
}

func (m *memEvents) InsertEvent(_ context.Context, ev *structs.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[ev.EventID]; ok {
		return apperr.ErrDuplicate
	}
	m.events[ev.EventID] = cloneEvent(ev)
	return nil
}

func (m *memEvents) UpdateEvent(_ context.Context, eventID string, set bson.M) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return 0, nil
	}
	if err := applySet(ev, set); err != nil {
		return 0, err
	}
	return 1, nil
}

func (m *memEvents) SetStatus(_ context.Context, eventID string, from, to structs.EventStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok || ev.Status != from {
		return false, nil
	}
	ev.Status = to
	return true, nil
}

func (m *memEvents) SetRegisteredCount(_ context.Context, eventID string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.events[eventID]; ok {
		ev.RegisteredCount = count
	}
	return nil
}

func (m *memEvents) DecrementStock(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stockCalls++
	if ev, ok := m.events[eventID]; ok && ev.MerchandiseDetails != nil {
		ev.MerchandiseDetails.StockQuantity--
	}
	return nil
}

func (m *memEvents) DeleteEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, eventID)
	return nil
}

func (m *memEvents) FindEvents(_ context.Context, f repository.EventFilter, skip, limit int64) ([]structs.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []structs.Event
	for _, ev := range m.events {
		if f.OrganizerID != "" && ev.OrganizerID != f.OrganizerID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, ev.Status) {
			continue
		}
		if f.Tag != "" && !slices.Contains(ev.Tags, f.Tag) {
			continue
		}
		out = append(out, *cloneEvent(ev))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	if skip >= int64(len(out)) {
		return nil, nil
	}
	out = out[skip:]
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memRegs struct {
	mu   sync.Mutex
	regs map[string]*structs.Registration
}

func newMemRegs() *memRegs {
	return &memRegs{regs: make(map[string]*structs.Registration)}
}

func cloneReg(r *structs.Registration) *structs.Registration {
	c := *r
	c.AttendanceAuditLog = slices.Clone(r.AttendanceAuditLog)
	return &c
}

func (m *memRegs) first(match func(*structs.Registration) bool) *structs.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if match(r) {
			return cloneReg(r)
		}
	}
	return nil
}

func (m *memRegs) FindRegistration(_ context.Context, eventID, userID string) (*structs.Registration, error) {
	return m.first(func(r *structs.Registration) bool { return r.EventID == eventID && r.UserID == userID }), nil
}

func (m *memRegs) FindByID(_ context.Context, id string) (*structs.Registration, error) {
	return m.first(func(r *structs.Registration) bool { return r.RegistrationID == id }), nil
}

func (m *memRegs) FindByTicketID(_ context.Context, ticketID string) (*structs.Registration, error) {
	return m.first(func(r *structs.Registration) bool { return r.TicketID == ticketID }), nil
}

func (m *memRegs) InsertRegistration(_ context.Context, reg *structs.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if (r.EventID == reg.EventID && r.UserID == reg.UserID) || r.TicketID == reg.TicketID {
			return apperr.ErrDuplicate
		}
	}
	m.regs[reg.RegistrationID] = cloneReg(reg)
	return nil
}

func (m *memRegs) count(match func(*structs.Registration) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.regs {
		if match(r) {
			n++
		}
	}
	return n
}

func (m *memRegs) CountByEvent(_ context.Context, eventID string) (int64, error) {
	return m.count(func(r *structs.Registration) bool { return r.EventID == eventID }), nil
}

func (m *memRegs) CountByEventAndUser(_ context.Context, eventID, userID string) (int64, error) {
	return m.count(func(r *structs.Registration) bool { return r.EventID == eventID && r.UserID == userID }), nil
}

func (m *memRegs) DeleteRegistration(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regs[id]; !ok {
		return 0, nil
	}
	delete(m.regs, id)
	return 1, nil
}

func (m *memRegs) DeleteByEvent(_ context.Context, eventID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.regs {
		if r.EventID == eventID {
			delete(m.regs, id)
			n++
		}
	}
	return n, nil
}

func (m *memRegs) RecordAttendance(_ context.Context, id string, attended bool, method string, entry structs.AttendanceAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok {
		return nil
	}
	r.Attended = attended
	r.AttendanceMethod = method
	r.AttendanceAuditLog = append(r.AttendanceAuditLog, entry)
	if attended {
		at := entry.Timestamp
		r.AttendedAt = &at
	} else {
		r.AttendedAt = nil
	}
	return nil
}

func (m *memRegs) SetPaymentStatus(_ context.Context, id, from, to, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok || r.PaymentStatus != from {
		return false, nil
	}
	r.PaymentStatus = to
	r.RejectionReason = reason
	r.UpdatedAt = at
	return true, nil
}

func (m *memRegs) list(match func(*structs.Registration) bool) []structs.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []structs.Registration
	for _, r := range m.regs {
		if match(r) {
			out = append(out, *cloneReg(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memRegs) ListByEvent(_ context.Context, eventID string) ([]structs.Registration, error) {
	return m.list(func(r *structs.Registration) bool { return r.EventID == eventID }), nil
}

func (m *memRegs) ListByUser(_ context.Context, userID string) ([]structs.Registration, error) {
	return m.list(func(r *structs.Registration) bool { return r.UserID == userID }), nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*structs.User
}

func newMemUsers(users ...*structs.User) *memUsers {
	m := &memUsers{users: make(map[string]*structs.User)}
	for _, u := range users {
		m.users[u.UserID] = u
	}
	return m
}

func (m *memUsers) FindUserByID(_ context.Context, id string) (*structs.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (m *memUsers) FindUserByEmail(_ context.Context, email string) (*structs.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memUsers) InsertUser(_ context.Context, user *structs.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return apperr.ErrDuplicate
		}
	}
	c := *user
	m.users[user.UserID] = &c
	return nil
}

func (m *memUsers) FindSummaries(_ context.Context, ids []string) (map[string]structs.UserSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]structs.UserSummary)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = structs.UserSummary{UserID: u.UserID, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role}
		}
	}
	return out, nil
}

type memMessages struct {
	mu   sync.Mutex
	msgs map[string]*structs.DiscussionMessage
}

func newMemMessages() *memMessages {
	return &memMessages{msgs: make(map[string]*structs.DiscussionMessage)}
}

func (m *memMessages) InsertMessage(_ context.Context, msg *structs.DiscussionMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *msg
	c.Author = nil
	m.msgs[msg.MessageID] = &c
	return nil
}

func (m *memMessages) FindMessageByID(_ context.Context, id string) (*structs.DiscussionMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.msgs[id]; ok {
		c := *msg
		c.Reactions = slices.Clone(msg.Reactions)
		return &c, nil
	}
	return nil, nil
}

func (m *memMessages) ListByEvent(_ context.Context, eventID string) ([]structs.DiscussionMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []structs.DiscussionMessage
	for _, msg := range m.msgs {
		if msg.EventID == eventID {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memMessages) UpdateMessage(_ context.Context, id string, set bson.M) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok {
		return nil
	}
	return applySet(msg, set)
}

func (m *memMessages) ToggleReaction(_ context.Context, id, userID, emoji string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok {
		return false, nil
	}
	var added bool
	msg.Reactions, added = ToggleReaction(msg.Reactions, userID, emoji)
	msg.UpdatedAt = at
	return added, nil
}

func (m *memMessages) CountSince(_ context.Context, eventID string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.msgs {
		if msg.EventID == eventID && !msg.IsDeleted && msg.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

type memFeedback struct {
	mu  sync.Mutex
	fbs map[string]*structs.Feedback
}

func newMemFeedback() *memFeedback {
	return &memFeedback{fbs: make(map[string]*structs.Feedback)}
}

func (m *memFeedback) FindFeedback(_ context.Context, eventID, userID string) (*structs.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fb := range m.fbs {
		if fb.EventID == eventID && fb.UserID == userID {
			c := *fb
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memFeedback) InsertFeedback(_ context.Context, fb *structs.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.fbs {
		if f.EventID == fb.EventID && f.UserID == fb.UserID {
			return apperr.ErrDuplicate
		}
	}
	c := *fb
	m.fbs[fb.FeedbackID] = &c
	return nil
}

func (m *memFeedback) UpdateFeedback(_ context.Context, id string, rating int, comment string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fb, ok := m.fbs[id]; ok {
		fb.Rating = rating
		fb.Comment = comment
		fb.UpdatedAt = at
	}
	return nil
}

func (m *memFeedback) ListFeedback(_ context.Context, eventID string, rating int) ([]structs.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []structs.Feedback
	for _, fb := range m.fbs {
		if fb.EventID == eventID && (rating == 0 || fb.Rating == rating) {
			out = append(out, *fb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type emitted struct {
	Topic   string
	Payload any
}

type recordingBus struct {
	mu   sync.Mutex
	msgs []emitted
}

func (b *recordingBus) Emit(topic string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, emitted{topic, payload})
}

func (b *recordingBus) topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.msgs))
	for _, m := range b.msgs {
		out = append(out, m.Topic)
	}
	return out
}

func (b *recordingBus) find(topic string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.msgs {
		if m.Topic == topic {
			return m.Payload, true
		}
	}
	return nil, false
}

type recordingHub struct {
	mu    sync.Mutex
	kinds []string
}

func (h *recordingHub) Broadcast(_ string, kind string, _ any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kinds = append(h.kinds, kind)
}

// fixture wires every service to one set of in-memory stores.
type fixture struct {
	now   time.Time
	evs   *memEvents
	regs  *memRegs
	users *memUsers
	msgs  *memMessages
	fbs   *memFeedback
	bus   *recordingBus
	live  *recordingHub

	events      *EventService
	registrants *RegistrationService
	discussions *DiscussionService
	feedback    *FeedbackService
	auth        *AuthService
}

var (
	organizer  = structs.Actor{UserID: "org1", Role: structs.RoleOrganizer}
	organizer2 = structs.Actor{UserID: "org2", Role: structs.RoleOrganizer}
	alice      = structs.Actor{UserID: "alice", Role: structs.RoleParticipant}
	bob        = structs.Actor{UserID: "bob", Role: structs.RoleParticipant}
	carol      = structs.Actor{UserID: "carol", Role: structs.RoleParticipant}
)

func newFixture() *fixture {
	f := &fixture{
		now:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		evs:  newMemEvents(),
		regs: newMemRegs(),
		users: newMemUsers(
			&structs.User{UserID: "org1", FirstName: "Chess", Role: structs.RoleOrganizer, OrganizerName: "Chess Club", DiscordWebhook: "https://discord.example/hook"},
			&structs.User{UserID: "org2", FirstName: "Music", Role: structs.RoleOrganizer, OrganizerName: "Music Club"},
			&structs.User{UserID: "alice", FirstName: "Alice", Email: "alice@students.iiit.ac.in", Role: structs.RoleParticipant, ParticipantType: structs.ParticipantIIIT},
			&structs.User{UserID: "bob", FirstName: "Bob", Email: "bob@example.com", Role: structs.RoleParticipant, ParticipantType: structs.ParticipantNonIIIT},
			&structs.User{UserID: "carol", FirstName: "Carol", Email: "carol@example.com", Role: structs.RoleParticipant, ParticipantType: structs.ParticipantNonIIIT},
		),
		msgs: newMemMessages(),
		fbs:  newMemFeedback(),
		bus:  &recordingBus{},
		live: &recordingHub{},
	}
	clock := func() time.Time { return f.now }

	f.events = NewEventService(f.evs, f.regs, f.users, f.bus)
	f.events.Now = clock
	f.registrants = NewRegistrationService(f.evs, f.regs, f.users, f.bus)
	f.registrants.Now = clock
	f.discussions = NewDiscussionService(f.evs, f.regs, f.msgs, f.users, f.bus, f.live)
	f.discussions.Now = clock
	f.feedback = NewFeedbackService(f.evs, f.regs, f.fbs, f.bus)
	f.feedback.Now = clock
	f.auth = NewAuthService(f.users)
	f.auth.Now = clock
	return f
}

// seed stores a published normal event owned by org1.
func (f *fixture) seed(id string, mutate ...func(*structs.Event)) *structs.Event {
	ev := &structs.Event{
		EventID:              id,
		OrganizerID:          organizer.UserID,
		Title:                "Chess Night",
		Description:          "Blitz tournament",
		StartDate:            f.now.Add(72 * time.Hour),
		EndDate:              f.now.Add(75 * time.Hour),
		Location:             "Library",
		Capacity:             10,
		RegistrationDeadline: f.now.Add(48 * time.Hour),
		Status:               structs.StatusPublished,
		EventType:            structs.EventTypeNormal,
		CustomForm:           []structs.FormField{},
		CreatedAt:            f.now,
		UpdatedAt:            f.now,
	}
	for _, m := range mutate {
		m(ev)
	}
	f.evs.put(ev)
	return ev
}

func merchandise(stock, limit int) func(*structs.Event) {
	return func(ev *structs.Event) {
		ev.EventType = structs.EventTypeMerchandise
		ev.MerchandiseDetails = &structs.MerchandiseDetails{Sizes: []string{"M", "L"}, StockQuantity: stock, PurchaseLimitPerParticipant: limit}
	}
}

func (f *fixture) register(t testingT, actor structs.Actor, eventID string) *RegisterResult {
	t.Helper()
	res, err := f.registrants.Register(context.Background(), actor, eventID, RegisterInput{})
	if err != nil {
		t.Fatalf("register %s: %v", actor.UserID, err)
	}
	return res
}

type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

func wantKind(t testingT, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("error kind = %s, want %s (%v)", got, kind, err)
	}
}
