package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/fightlens/pkg/logger"
)

// Default mongo client settings.
const (
	defaultMinPool          = 1
	defaultMaxPool          = 20
	defaultMaxIdle          = 30 * time.Second
	defaultServerSelection  = 5 * time.Second
	defaultConnectTimeout   = 10 * time.Second
	defaultOpTimeout        = 30 * time.Second
	defaultConnectAttempts  = 3
	defaultConnectRetryWait = 5 * time.Second
	defaultZlibLevel        = 6
)

// MongoOption applies a configuration option to the MongoStore.
type MongoOption func(*MongoStore)

// WithOpTimeout bounds each store operation.
func WithOpTimeout(d time.Duration) MongoOption {
	return func(s *MongoStore) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithConnectAttempts sets how many times Connect tries before failing.
func WithConnectAttempts(n int) MongoOption {
	return func(s *MongoStore) {
		if n > 0 {
			s.connectAttempts = n
		}
	}
}

// WithConnectRetryWait sets the pause between connection attempts.
func WithConnectRetryWait(d time.Duration) MongoOption {
	return func(s *MongoStore) {
		if d > 0 {
			s.retryWait = d
		}
	}
}

// WithMongoLogger sets the logger used for connection events.
func WithMongoLogger(l logger.Logger) MongoOption {
	return func(s *MongoStore) {
		if l != nil {
			s.log = l
		}
	}
}

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithIDGenerator replaces the cluster id generator.
func WithIDGenerator(gen func() string) MemoryOption {
	return func(s *MemoryStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func newUUID() string { return uuid.NewString() }
