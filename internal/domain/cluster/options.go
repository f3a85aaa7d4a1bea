package cluster

import (
	"time"

	"github.com/okian/fightlens/pkg/logger"
)

// Default clustering parameters.
const (
	DefaultGap         = 7 * time.Minute
	DefaultMinMembers  = 4
	DefaultRecentLimit = 5
	DefaultMaxAttempts = 2
)

// Option applies a configuration option to the Clusterer.
type Option func(*Clusterer)

// WithGap sets the max gap between adjacent encounters of one run, which is
// also the tolerance used when matching runs to existing clusters.
func WithGap(gap time.Duration) Option {
	return func(c *Clusterer) {
		if gap > 0 {
			c.gap = gap
		}
	}
}

// WithMinMembers sets the distinct account count a run needs to qualify.
func WithMinMembers(n int) Option {
	return func(c *Clusterer) {
		if n > 0 {
			c.minMembers = n
		}
	}
}

// WithRecentLimit sets how many recent clusters per faction are considered for merges.
func WithRecentLimit(n int) Option {
	return func(c *Clusterer) {
		if n > 0 {
			c.recentLimit = n
		}
	}
}

// WithMaxAttempts sets the assignment attempt cap.
func WithMaxAttempts(n int) Option {
	return func(c *Clusterer) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithClock overrides the clock used for cluster creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Clusterer) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Clusterer) {
		if l != nil {
			c.logger = l
		}
	}
}
