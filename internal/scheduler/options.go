package scheduler

import (
	"time"

	"github.com/okian/fightlens/pkg/logger"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLocation evaluates schedules in loc instead of the local zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithSeconds accepts six-field schedules with a leading seconds field.
func WithSeconds() Option {
	return func(s *Scheduler) {
		s.seconds = true
	}
}

// WithFailureHook replaces the failure reporter. The default sends the error to Sentry.
func WithFailureHook(fn func(task string, err error)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.onFailure = fn
		}
	}
}
