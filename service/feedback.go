package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"campusevents/apperr"
	"campusevents/mq"
	"campusevents/structs"
	"campusevents/utils"
)

const maxCommentLength = 1000

var (
	ErrInvalidRating  = apperr.Validationf("Rating must be a whole number between 1 and 5")
	ErrNotAttended    = apperr.Forbidden("Only attendees can submit feedback")
	ErrFeedbackExists = apperr.Conflictf("You have already submitted feedback for this event")
)

type FeedbackService struct {
	Events        EventStore
	Registrations RegistrationStore
	Feedback      FeedbackStore
	Bus           Emitter
	Now           func() time.Time
}

func NewFeedbackService(events EventStore, regs RegistrationStore, fb FeedbackStore, bus Emitter) *FeedbackService {
	return &FeedbackService{Events: events, Registrations: regs, Feedback: fb, Bus: orNop(bus), Now: time.Now}
}

type FeedbackInput struct {
	Rating  float64 `json:"rating"`
	Comment string  `json:"comment"`
}

// Submit stores or replaces the caller's feedback. Only participants
// marked as attended may rate an event.
func (s *FeedbackService) Submit(ctx context.Context, actor structs.Actor, eventID string, in FeedbackInput) (*structs.Feedback, bool, error) {
	if in.Rating != math.Trunc(in.Rating) || in.Rating < 1 || in.Rating > 5 {
		return nil, false, ErrInvalidRating
	}
	rating := int(in.Rating)
	comment := strings.TrimSpace(in.Comment)
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return nil, false, apperr.Validationf("Comment cannot exceed %d characters", maxCommentLength)
	}

	ev, err := s.Events.FindEventByID(ctx, eventID)
	if err != nil {
		return nil, false, apperr.Wrap(err, "find event")
	}
	if ev == nil {
		return nil, false, apperr.NotFoundf("Event not found")
	}

	reg, err := s.Registrations.FindRegistration(ctx, eventID, actor.UserID)
	if err != nil {
		return nil, false, apperr.Wrap(err, "find registration")
	}
	if reg == nil || !reg.Attended {
		return nil, false, ErrNotAttended
	}

	now := s.Now().UTC()
	existing, err := s.Feedback.FindFeedback(ctx, eventID, actor.UserID)
	if err != nil {
		return nil, false, apperr.Wrap(err, "find feedback")
	}
	if existing != nil {
		if err := s.Feedback.UpdateFeedback(ctx, existing.FeedbackID, rating, comment, now); err != nil {
			return nil, false, apperr.Wrap(err, "update feedback")
		}
		existing.Rating = rating
		existing.Comment = comment
		existing.UpdatedAt = now
		return existing, false, nil
	}

	fb := &structs.Feedback{
		FeedbackID: utils.GenerateID(16),
		EventID:    eventID,
		UserID:     actor.UserID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Feedback.InsertFeedback(ctx, fb); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return nil, false, ErrFeedbackExists
		}
		return nil, false, apperr.Wrap(err, "insert feedback")
	}
	s.Bus.Emit(mq.TopicFeedbackSubmitted, mq.Index{EntityType: "feedback", Action: "POST", EntityId: eventID, ItemId: fb.FeedbackID, ItemType: "feedback"})
	return fb, true, nil
}

// Stats summarizes ratings. The average is rounded to one decimal and every
// rating from 1 to 5 appears in the distribution.
func Stats(list []structs.Feedback) structs.FeedbackStats {
	st := structs.FeedbackStats{Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	sum := 0
	for _, fb := range list {
		st.Distribution[fb.Rating]++
		sum += fb.Rating
	}
	st.TotalCount = len(list)
	if st.TotalCount > 0 {
		st.AverageRating = math.Round(float64(sum)/float64(st.TotalCount)*10) / 10
	}
	return st
}

type FeedbackList struct {
	Feedbacks []structs.Feedback    `json:"feedbacks"`
	Stats     structs.FeedbackStats `json:"stats"`
}

// ListForEvent returns feedback for the organizer, optionally filtered to one
// rating. Stats always cover all feedback.
func (s *FeedbackService) ListForEvent(ctx context.Context, actor structs.Actor, eventID string, rating int) (*FeedbackList, error) {
	if rating < 0 || rating > 5 {
		return nil, ErrInvalidRating
	}
	if _, err := ownedEvent(ctx, s.Events, actor, eventID); err != nil {
		return nil, err
	}

	all, err := s.Feedback.ListFeedback(ctx, eventID, 0)
	if err != nil {
		return nil, apperr.Wrap(err, "list feedback")
	}
	out := &FeedbackList{Feedbacks: all, Stats: Stats(all)}
	if rating != 0 {
		out.Feedbacks, err = s.Feedback.ListFeedback(ctx, eventID, rating)
		if err != nil {
			return nil, apperr.Wrap(err, "list feedback")
		}
	}
	if out.Feedbacks == nil {
		out.Feedbacks = []structs.Feedback{}
	}
	return out, nil
}

// Mine returns the caller's feedback for an event, or nil.
func (s *FeedbackService) Mine(ctx context.Context, actor structs.Actor, eventID string) (*structs.Feedback, error) {
	fb, err := s.Feedback.FindFeedback(ctx, eventID, actor.UserID)
	if err != nil {
		return nil, apperr.Wrap(err, "find feedback")
	}
	return fb, nil
}
