package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"campusevents/mq"
)

// Webhook posts newly published events to the organizer's Discord channel.
type Webhook struct {
	Client *http.Client
}

func NewWebhook() *Webhook {
	return &Webhook{Client: &http.Client{Timeout: 10 * time.Second}}
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordPayload struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds"`
}

func summary(ev mq.EventPublished, organizerName string) discordPayload {
	desc := ev.Description
	if r := []rune(desc); len(r) > 300 {
		desc = string(r[:297]) + "..."
	}
	fields := []discordField{
		{Name: "Starts", Value: ev.StartDate.Format("02 Jan 2006 15:04 MST"), Inline: true},
		{Name: "Register by", Value: ev.Deadline.Format("02 Jan 2006 15:04 MST"), Inline: true},
		{Name: "Type", Value: ev.EventType, Inline: true},
	}
	if ev.Location != "" {
		fields = append(fields, discordField{Name: "Location", Value: ev.Location, Inline: true})
	}
	if ev.Fee > 0 {
		fields = append(fields, discordField{Name: "Fee", Value: fmt.Sprintf("₹%.2f", ev.Fee), Inline: true})
	}
	if len(ev.Tags) > 0 {
		fields = append(fields, discordField{Name: "Tags", Value: strings.Join(ev.Tags, ", ")})
	}
	return discordPayload{
		Content: fmt.Sprintf("📢 **%s** just published a new event!", organizerName),
		Embeds: []discordEmbed{{
			Title:       ev.Title,
			Description: desc,
			Color:       0x5865F2,
			Fields:      fields,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	}
}

// Post sends the summary of ev to url.
func (h *Webhook) Post(ctx context.Context, url string, ev mq.EventPublished, organizerName string) error {
	body, err := json.Marshal(summary(ev, organizerName))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %s", resp.Status)
	}
	return nil
}

// Handle is the bus subscriber for event-published messages.
func (h *Webhook) Handle(ctx context.Context, msg mq.Message) error {
	ev, ok := msg.Payload.(mq.EventPublished)
	if !ok || ev.WebhookURL == "" {
		return nil
	}
	return h.Post(ctx, ev.WebhookURL, ev, ev.OrganizerName)
}
