package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"campusevents/apperr"
	"campusevents/mq"
	"campusevents/structs"
	"campusevents/threads"
	"campusevents/utils"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	maxMessageLength = 2000
	maxEmojiLength   = 16
	deletedContent   = "[This message has been deleted]"
)

type DiscussionService struct {
	Events        EventStore
	Registrations RegistrationStore
	Messages      MessageStore
	Users         UserStore
	Bus           Emitter
	Live          Broadcaster
	Now           func() time.Time
}

func NewDiscussionService(events EventStore, regs RegistrationStore, msgs MessageStore, users UserStore, bus Emitter, live Broadcaster) *DiscussionService {
	if live == nil {
		live = nopBroadcaster{}
	}
	return &DiscussionService{
		Events:        events,
		Registrations: regs,
		Messages:      msgs,
		Users:         users,
		Bus:           orNop(bus),
		Live:          live,
		Now:           time.Now,
	}
}

// Access checks that actor may read and post in an event's forum: its
// organizer, or a registered participant.
func (s *DiscussionService) Access(ctx context.Context, actor structs.Actor, eventID string) (*structs.Event, bool, error) {
	ev, err := s.Events.FindEventByID(ctx, eventID)
	if err != nil {
		return nil, false, apperr.Wrap(err, "find event")
	}
	if ev == nil {
		return nil, false, apperr.NotFoundf("Event not found")
	}

	switch actor.Role {
	case structs.RoleOrganizer:
		if ev.OrganizerID != actor.UserID {
			return nil, false, apperr.Forbidden("You do not organize this event")
		}
		return ev, true, nil
	case structs.RoleParticipant:
		reg, err := s.Registrations.FindRegistration(ctx, eventID, actor.UserID)
		if err != nil {
			return nil, false, apperr.Wrap(err, "find registration")
		}
		if reg == nil {
			return nil, false, apperr.Forbidden("Register for this event to join the discussion")
		}
		return ev, false, nil
	}
	return nil, false, apperr.Forbidden("You do not have access to this discussion")
}

type Thread struct {
	Messages    []*structs.DiscussionMessage `json:"messages"`
	IsOrganizer bool                         `json:"isOrganizer"`
}

// Thread returns the event's messages as a reply tree.
func (s *DiscussionService) Thread(ctx context.Context, actor structs.Actor, eventID string) (*Thread, error) {
	_, isOrganizer, err := s.Access(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.Messages.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(err, "list messages")
	}
	if err := s.attachAuthors(ctx, msgs); err != nil {
		return nil, err
	}
	roots := threads.Build(msgs)
	if roots == nil {
		roots = []*structs.DiscussionMessage{}
	}
	return &Thread{Messages: roots, IsOrganizer: isOrganizer}, nil
}

func (s *DiscussionService) attachAuthors(ctx context.Context, msgs []structs.DiscussionMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, m := range msgs {
		if !seen[m.AuthorID] {
			seen[m.AuthorID] = true
			ids = append(ids, m.AuthorID)
		}
	}
	authors, err := s.Users.FindSummaries(ctx, ids)
	if err != nil {
		return apperr.Wrap(err, "load authors")
	}
	for i := range msgs {
		if a, ok := authors[msgs[i].AuthorID]; ok {
			msgs[i].Author = &a
		}
	}
	return nil
}

type PostInput struct {
	Content        string `json:"content" validate:"required"`
	ParentMessage  string `json:"parentMessage"`
	IsAnnouncement bool   `json:"isAnnouncement"`
}

func (s *DiscussionService) Post(ctx context.Context, actor structs.Actor, eventID string, in PostInput) (*structs.DiscussionMessage, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperr.Validationf("Message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, apperr.Validationf("Message cannot exceed %d characters", maxMessageLength)
	}

	_, isOrganizer, err := s.Access(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	if in.ParentMessage != "" {
		parent, err := s.Messages.FindMessageByID(ctx, in.ParentMessage)
		if err != nil {
			return nil, apperr.Wrap(err, "find parent message")
		}
		if parent == nil || parent.EventID != eventID {
			return nil, apperr.Validationf("Parent message not found in this event")
		}
	}

	now := s.Now().UTC()
	msg := &structs.DiscussionMessage{
		MessageID:      utils.GenerateID(16),
		EventID:        eventID,
		AuthorID:       actor.UserID,
		Content:        content,
		ParentMessage:  in.ParentMessage,
		IsAnnouncement: in.IsAnnouncement && isOrganizer,
		Reactions:      []structs.Reaction{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Messages.InsertMessage(ctx, msg); err != nil {
		return nil, apperr.Wrap(err, "insert message")
	}

	if summaries, err := s.Users.FindSummaries(ctx, []string{actor.UserID}); err == nil {
		if a, ok := summaries[actor.UserID]; ok {
			msg.Author = &a
		}
	}

	s.Live.Broadcast(eventID, "message:new", msg)
	s.Bus.Emit(mq.TopicDiscussionPosted, mq.Index{EntityType: "discussion", Action: "POST", EntityId: eventID, ItemId: msg.MessageID, ItemType: "message"})
	return msg, nil
}

func (s *DiscussionService) findMessage(ctx context.Context, messageID string) (*structs.DiscussionMessage, error) {
	msg, err := s.Messages.FindMessageByID(ctx, messageID)
	if err != nil {
		return nil, apperr.Wrap(err, "find message")
	}
	if msg == nil {
		return nil, apperr.NotFoundf("Message not found")
	}
	return msg, nil
}

// Delete soft-deletes a message, keeping its place in the thread. The author
// or the event organizer may delete.
func (s *DiscussionService) Delete(ctx context.Context, actor structs.Actor, messageID string) (*structs.DiscussionMessage, error) {
	msg, err := s.findMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	ev, err := s.Events.FindEventByID(ctx, msg.EventID)
	if err != nil {
		return nil, apperr.Wrap(err, "find event")
	}
	isOrganizer := ev != nil && ev.OrganizerID == actor.UserID
	if msg.AuthorID != actor.UserID && !isOrganizer {
		return nil, apperr.Forbidden("You can only delete your own messages")
	}
	if msg.IsDeleted {
		return msg, nil
	}

	now := s.Now().UTC()
	err = s.Messages.UpdateMessage(ctx, messageID, bson.M{
		"content":    deletedContent,
		"is_deleted": true,
		"deleted_by": actor.UserID,
		"updated_at": now,
	})
	if err != nil {
		return nil, apperr.Wrap(err, "delete message")
	}
	msg.Content = deletedContent
	msg.IsDeleted = true
	msg.DeletedBy = actor.UserID
	msg.UpdatedAt = now

	s.Live.Broadcast(msg.EventID, "message:deleted", msg)
	return msg, nil
}

// TogglePin pins or unpins a message. Organizer only.
func (s *DiscussionService) TogglePin(ctx context.Context, actor structs.Actor, messageID string) (*structs.DiscussionMessage, error) {
	msg, err := s.findMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := ownedEvent(ctx, s.Events, actor, msg.EventID); err != nil {
		return nil, err
	}

	msg.IsPinned = !msg.IsPinned
	msg.UpdatedAt = s.Now().UTC()
	if err := s.Messages.UpdateMessage(ctx, messageID, bson.M{"is_pinned": msg.IsPinned, "updated_at": msg.UpdatedAt}); err != nil {
		return nil, apperr.Wrap(err, "pin message")
	}
	s.Live.Broadcast(msg.EventID, "message:pinned", msg)
	return msg, nil
}

// ToggleReaction adds userID's emoji reaction if absent and removes it if present.
func ToggleReaction(reactions []structs.Reaction, userID, emoji string) ([]structs.Reaction, bool) {
	out := make([]structs.Reaction, 0, len(reactions)+1)
	removed := false
	for _, r := range reactions {
		if r.UserID == userID && r.Emoji == emoji {
			removed = true
			continue
		}
		out = append(out, r)
	}
	if removed {
		return out, false
	}
	return append(out, structs.Reaction{Emoji: emoji, UserID: userID}), true
}

func (s *DiscussionService) React(ctx context.Context, actor structs.Actor, messageID, emoji string) (*structs.DiscussionMessage, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiLength {
		return nil, apperr.Validationf("Invalid emoji")
	}
	msg, err := s.findMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.Access(ctx, actor, msg.EventID); err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, apperr.Validationf("Cannot react to a deleted message")
	}

	if _, err := s.Messages.ToggleReaction(ctx, messageID, actor.UserID, emoji, s.Now().UTC()); err != nil {
		return nil, apperr.Wrap(err, "react to message")
	}
	msg, err = s.findMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	s.Live.Broadcast(msg.EventID, "message:reacted", msg)
	return msg, nil
}

// UnreadCount counts live messages posted after since.
func (s *DiscussionService) UnreadCount(ctx context.Context, actor structs.Actor, eventID string, since time.Time) (int64, error) {
	if _, _, err := s.Access(ctx, actor, eventID); err != nil {
		return 0, err
	}
	n, err := s.Messages.CountSince(ctx, eventID, since)
	if err != nil {
		return 0, apperr.Wrap(err, "count messages")
	}
	return n, nil
}
