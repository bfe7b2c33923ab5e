package service

import (
	"context"
	"errors"
	"testing"

	"campusevents/apperr"
	"campusevents/structs"
)

func attended(t *testing.T, f *fixture, actor structs.Actor, eventID string) {
	t.Helper()
	res := f.register(t, actor, eventID)
	if _, err := f.registrants.MarkAttendance(context.Background(), organizer, res.TicketID); err != nil {
		t.Fatalf("mark %s: %v", actor.UserID, err)
	}
}

func TestSubmitFeedbackRules(t *testing.T) {
	f := newFixture()
	f.seed("ev1")
	ctx := context.Background()
	f.register(t, bob, "ev1")
	attended(t, f, alice, "ev1")

	for _, r := range []float64{0, 6, 4.5, -1} {
		_, _, err := f.feedback.Submit(ctx, alice, "ev1", FeedbackInput{Rating: r})
		if !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("rating %v: err = %v", r, err)
		}
	}

	_, _, err := f.feedback.Submit(ctx, bob, "ev1", FeedbackInput{Rating: 4})
	if !errors.Is(err, ErrNotAttended) {
		t.Fatalf("registered but absent: %v", err)
	}
	_, _, err = f.feedback.Submit(ctx, carol, "ev1", FeedbackInput{Rating: 4})
	wantKind(t, err, apperr.Authorization)

	_, _, err = f.feedback.Submit(ctx, alice, "missing", FeedbackInput{Rating: 4})
	wantKind(t, err, apperr.NotFound)
}

func TestSubmitFeedbackUpserts(t *testing.T) {
	f := newFixture()
	f.seed("ev1")
	ctx := context.Background()
	attended(t, f, alice, "ev1")

	first, created, err := f.feedback.Submit(ctx, alice, "ev1", FeedbackInput{Rating: 3, Comment: " ok "})
	if err != nil || !created {
		t.Fatalf("first submit: created=%v err=%v", created, err)
	}
	if first.Comment != "ok" {
		t.Fatalf("comment = %q", first.Comment)
	}

	second, created, err := f.feedback.Submit(ctx, alice, "ev1", FeedbackInput{Rating: 5, Comment: "great after all"})
	if err != nil || created {
		t.Fatalf("second submit: created=%v err=%v", created, err)
	}
	if second.FeedbackID != first.FeedbackID || second.Rating != 5 {
		t.Fatalf("second = %+v", second)
	}

	mine, err := f.feedback.Mine(ctx, alice, "ev1")
	if err != nil || mine == nil || mine.Rating != 5 {
		t.Fatalf("mine = %+v, %v", mine, err)
	}
	none, err := f.feedback.Mine(ctx, bob, "ev1")
	if err != nil || none != nil {
		t.Fatalf("bob's feedback = %+v, %v", none, err)
	}
}

// staleFeedback never sees existing rows, like a request racing another insert.
type staleFeedback struct{ *memFeedback }

func (staleFeedback) FindFeedback(context.Context, string, string) (*structs.Feedback, error) {
	return nil, nil
}

func TestSubmitFeedbackInsertRace(t *testing.T) {
	f := newFixture()
	f.seed("ev1")
	ctx := context.Background()
	attended(t, f, alice, "ev1")
	f.feedback.Feedback = staleFeedback{f.fbs}

	if _, _, err := f.feedback.Submit(ctx, alice, "ev1", FeedbackInput{Rating: 4}); err != nil {
		t.Fatal(err)
	}
	_, _, err := f.feedback.Submit(ctx, alice, "ev1", FeedbackInput{Rating: 2})
	if !errors.Is(err, ErrFeedbackExists) {
		t.Fatalf("err = %v", err)
	}
	wantKind(t, err, apperr.Conflict)
}

func TestStats(t *testing.T) {
	empty := Stats(nil)
	if empty.TotalCount != 0 || empty.AverageRating != 0 || len(empty.Distribution) != 5 {
		t.Fatalf("empty = %+v", empty)
	}

	st := Stats([]structs.Feedback{{Rating: 5}, {Rating: 4}, {Rating: 4}})
	if st.TotalCount != 3 || st.AverageRating != 4.3 {
		t.Fatalf("stats = %+v", st)
	}
	want := map[int]int{1: 0, 2: 0, 3: 0, 4: 2, 5: 1}
	for k, v := range want {
		if st.Distribution[k] != v {
			t.Fatalf("distribution = %v", st.Distribution)
		}
	}
}

func TestListFeedbackForOrganizer(t *testing.T) {
	f := newFixture()
	f.seed("ev1")
	ctx := context.Background()
	attended(t, f, alice, "ev1")
	attended(t, f, bob, "ev1")
	f.feedback.Submit(ctx, alice, "ev1", FeedbackInput{Rating: 5})
	f.feedback.Submit(ctx, bob, "ev1", FeedbackInput{Rating: 2})

	_, err := f.feedback.ListForEvent(ctx, organizer2, "ev1", 0)
	wantKind(t, err, apperr.Authorization)
	_, err = f.feedback.ListForEvent(ctx, alice, "ev1", 0)
	wantKind(t, err, apperr.Authorization)
	_, err = f.feedback.ListForEvent(ctx, organizer, "ev1", 7)
	wantKind(t, err, apperr.Validation)

	list, err := f.feedback.ListForEvent(ctx, organizer, "ev1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Feedbacks) != 1 || list.Feedbacks[0].UserID != alice.UserID {
		t.Fatalf("filtered = %+v", list.Feedbacks)
	}
	if list.Stats.TotalCount != 2 || list.Stats.AverageRating != 3.5 {
		t.Fatalf("stats = %+v", list.Stats)
	}
}
