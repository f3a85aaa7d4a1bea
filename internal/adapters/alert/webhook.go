package alert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/okian/fightlens/pkg/logger"
)

const maxErrorBody = 500

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WebhookSink posts events to {base}/api/events with a bearer key. It stays
// disabled until Init passes the health check.
type WebhookSink struct {
	base    string
	key     string
	timeout time.Duration
	retries int
	client  *http.Client
	backoff func(attempt int) time.Duration
	log     logger.Logger

	healthy atomic.Bool
}

var _ Sink = (*WebhookSink)(nil)

// NewWebhookSink creates a sink. Both base and key must be set for it to ever send.
func NewWebhookSink(base, key string, opts ...Option) *WebhookSink {
	s := &WebhookSink{
		base:    strings.TrimRight(base, "/"),
		key:     key,
		timeout: defaultTimeout,
		retries: defaultRetries,
		backoff: jitterBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: s.timeout}
	}
	if s.log == nil {
		s.log = logger.Get().Named("alert")
	}
	return s
}

// Enabled reports whether base and key are configured.
func (s *WebhookSink) Enabled() bool {
	return s.base != "" && s.key != ""
}

// Healthy implements Sink.
func (s *WebhookSink) Healthy() bool {
	return s.Enabled() && s.healthy.Load()
}

// Init runs the health check. A failed check leaves the sink disabled and is
// returned for logging only.
func (s *WebhookSink) Init(ctx context.Context) error {
	if !s.Enabled() {
		s.log.Warn(ctx, "alert api base or key not set, alerts disabled")
		return ErrDisabled
	}
	if err := s.healthCheck(ctx); err != nil {
		s.healthy.Store(false)
		s.log.Warn(ctx, "alert health check failed", logger.Error(err))
		return err
	}
	s.healthy.Store(true)
	s.log.Info(ctx, "alert health check passed", logger.String("base", s.base))
	return nil
}

func (s *WebhookSink) healthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "health request")
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "health check")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// nonRetryableError marks responses that retrying cannot fix (4xx).
type nonRetryableError struct{ err error }

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// Send implements Sink. It retries transport errors and 5xx responses with
// exponential backoff.
func (s *WebhookSink) Send(ctx context.Context, eventType string, data any) error {
	if !s.Healthy() {
		return ErrDisabled
	}
	payload, err := json.Marshal(Event{Source: Source, EventType: eventType, Data: data})
	if err != nil {
		return errors.Wrap(err, "encode event")
	}

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "send event")
			case <-time.After(s.backoff(attempt)):
			}
		}
		lastErr = s.post(ctx, payload)
		if lastErr == nil {
			return nil
		}
		var nre *nonRetryableError
		if errors.As(lastErr, &nre) {
			return lastErr
		}
		s.log.Debug(ctx, "alert delivery failed, retrying",
			logger.String("eventType", eventType),
			logger.Int("attempt", attempt+1),
			logger.Error(lastErr))
	}
	return errors.Wrapf(lastErr, "event delivery failed after %d attempts", s.retries)
}

func (s *WebhookSink) post(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/api/events", bytes.NewReader(payload))
	if err != nil {
		return &nonRetryableError{err: errors.Wrap(err, "create request")}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.key)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "http post")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("server error %d: %s", resp.StatusCode, body)
	case resp.StatusCode >= 300:
		return &nonRetryableError{err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)}
	}
	return nil
}

// jitterBackoff waits 2^attempt seconds plus up to one second, capped at 30s.
func jitterBackoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	d := base + time.Duration(rand.Int64N(int64(time.Second)))
	if d > defaultMaxDelay {
		return defaultMaxDelay
	}
	return d
}
