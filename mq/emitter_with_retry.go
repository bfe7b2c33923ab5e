package mq

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/quic-go/quic-go/http3"
)

// Index describes a change to an entity for the search indexer.
type Index struct {
	EntityType string `json:"entity_type"`
	Action     string `json:"action"`
	EntityId   string `json:"entity_id"`
	ItemId     string `json:"item_id"`
	ItemType   string `json:"item_type"`
}

// Retry runs fn up to attempts times with exponential backoff starting at baseDelay.
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		waitTime := baseDelay * (1 << (attempt - 1))
		log.Printf("Attempt %d failed: %v, retrying in %v", attempt, err, waitTime)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

// IndexSink forwards Index payloads to the search indexer over HTTP/3.
type IndexSink struct {
	URL    string
	Client *http.Client
}

func NewIndexSink(url string) *IndexSink {
	return &IndexSink{
		URL: url,
		Client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http3.RoundTripper{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // indexer runs with a self-signed cert
			},
		},
	}
}

func (s *IndexSink) Handle(ctx context.Context, msg Message) error {
	idx, ok := msg.Payload.(Index)
	if !ok {
		return nil
	}

	jsonData, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Name", msg.Topic)

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("indexer responded %s", resp.Status)
	}
	return nil
}
