package alert

import (
	"net/http"
	"time"

	"github.com/okian/fightlens/pkg/logger"
)

// Defaults for the webhook sink.
const (
	defaultTimeout  = 3 * time.Second
	defaultRetries  = 3
	defaultMaxDelay = 30 * time.Second
)

// Option applies a configuration option to the WebhookSink.
type Option func(*WebhookSink)

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(s *WebhookSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetries sets the total number of delivery attempts.
func WithRetries(n int) Option {
	return func(s *WebhookSink) {
		if n > 0 {
			s.retries = n
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *WebhookSink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithBackoff replaces the delay before retry number attempt (1-based).
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(s *WebhookSink) {
		if fn != nil {
			s.backoff = fn
		}
	}
}

// WithLogger sets the sink logger.
func WithLogger(l logger.Logger) Option {
	return func(s *WebhookSink) {
		if l != nil {
			s.log = l
		}
	}
}
