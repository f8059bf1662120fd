// Package events delivers domain events to an external sink. Delivery is
// strictly best-effort: publishing failures are logged and swallowed, never
// surfaced to the operation that produced the event.
package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Event is a domain event with actor/patient correlation and a property bag.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	ActorID   string            `json:"actor_id,omitempty"`
	PatientID string            `json:"patient_id,omitempty"`
	At        time.Time         `json:"at"`
	Props     map[string]string `json:"props,omitempty"`
}

// Sink accepts domain events for delivery.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// PublishSafe publishes through sink and swallows every failure after
// logging it. It is the only way domain code should emit events.
func PublishSafe(ctx context.Context, sink Sink, logger zerolog.Logger, e Event) {
	if sink == nil {
		return
	}
	if err := sink.Publish(ctx, e); err != nil {
		logger.Warn().Err(err).
			Str("event_id", e.ID).
			Str("event_type", e.Type).
			Msg("event publish failed")
	}
}

// SignPayload computes an HMAC-SHA256 signature of the payload using the
// given secret, returning the hex-encoded result.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPSink posts JSON-encoded events to a single endpoint, signing each
// payload with a shared secret.
type HTTPSink struct {
	url    string
	secret string
	client *http.Client
}

// SinkOption configures an HTTPSink.
type SinkOption func(*HTTPSink)

// WithHTTPClient overrides the default HTTP client used for deliveries.
func WithHTTPClient(c *http.Client) SinkOption {
	return func(s *HTTPSink) { s.client = c }
}

func NewHTTPSink(url, secret string, opts ...SinkOption) *HTTPSink {
	s := &HTTPSink{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 3 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSink) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		req.Header.Set("X-Signature", SignPayload(payload, s.secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("event sink returned status %d", resp.StatusCode)
	}
	return nil
}

// NopSink discards all events. Used when no sink is configured.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }
