package autocom

import (
	"context"
	"fmt"
	"log"
	"strings"

	"campusevents/mq"

	"github.com/redis/go-redis/v9"
)

const (
	eventsKey = "autocomplete:events"
	titlesKey = "autocomplete:events:titles"
)

// InitRedis builds a client for addr. It does not dial until first use.
func InitRedis(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password, // Empty if no password
		DB:       0,
	})
}

type Suggestion struct {
	EventID string `json:"eventid"`
	Title   string `json:"title"`
}

type Index struct {
	Client *redis.Client
}

func member(eventID, title string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + eventID
}

// AddEvent makes a published event discoverable by title prefix.
func (ix *Index) AddEvent(ctx context.Context, eventID, title string) error {
	pipe := ix.Client.TxPipeline()
	pipe.ZAdd(ctx, eventsKey, redis.Z{Score: 0, Member: member(eventID, title)})
	pipe.HSet(ctx, titlesKey, eventID, title)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add event to autocomplete: %w", err)
	}
	return nil
}

func (ix *Index) RemoveEvent(ctx context.Context, eventID, title string) error {
	pipe := ix.Client.TxPipeline()
	pipe.ZRem(ctx, eventsKey, member(eventID, title))
	pipe.HDel(ctx, titlesKey, eventID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove event from autocomplete: %w", err)
	}
	return nil
}

// Search returns up to limit events whose title starts with query.
func (ix *Index) Search(ctx context.Context, query string, limit int64) ([]Suggestion, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Suggestion{}, nil
	}

	members, err := ix.Client.ZRangeByLex(ctx, eventsKey, &redis.ZRangeBy{
		Min:   "[" + q,
		Max:   "[" + q + "\xff",
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to search autocomplete: %w", err)
	}

	suggestions := make([]Suggestion, 0, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		i := strings.LastIndexByte(m, '|')
		if i < 0 {
			continue
		}
		ids = append(ids, m[i+1:])
	}
	if len(ids) == 0 {
		return suggestions, nil
	}

	titles, err := ix.Client.HMGet(ctx, titlesKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load titles: %w", err)
	}
	for i, id := range ids {
		title, _ := titles[i].(string)
		suggestions = append(suggestions, Suggestion{EventID: id, Title: title})
	}
	return suggestions, nil
}

// Handle keeps the index in step with the event lifecycle.
func (ix *Index) Handle(ctx context.Context, msg mq.Message) error {
	switch p := msg.Payload.(type) {
	case mq.EventPublished:
		if err := ix.AddEvent(ctx, p.EventID, p.Title); err != nil {
			return err
		}
		log.Printf("Event added for autocomplete: %s", p.Title)
	case mq.EventWithdrawn:
		return ix.RemoveEvent(ctx, p.EventID, p.Title)
	}
	return nil
}
