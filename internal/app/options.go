package service

import (
	"time"

	"github.com/okian/fightlens/internal/adapters/alert"
	"github.com/okian/fightlens/internal/adapters/repository"
	"github.com/okian/fightlens/internal/domain/aggregate"
	"github.com/okian/fightlens/internal/domain/cluster"
	"github.com/okian/fightlens/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore uses one backend for encounters and clusters.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.encounters = st
			s.clusters = st
		}
	}
}

// WithEncounterStore sets the encounter source.
func WithEncounterStore(st repository.EncounterStore) Option {
	return func(s *Service) {
		if st != nil {
			s.encounters = st
		}
	}
}

// WithClusterStore sets the faction fight store.
func WithClusterStore(st repository.ClusterStore) Option {
	return func(s *Service) {
		if st != nil {
			s.clusters = st
		}
	}
}

// WithResolver sets the account to faction resolver.
func WithResolver(r cluster.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithSink sets the alert sink.
func WithSink(sink alert.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithAggregator replaces the encounter aggregator.
func WithAggregator(a *aggregate.Aggregator) Option {
	return func(s *Service) {
		if a != nil {
			s.aggregator = a
		}
	}
}

// WithClusterOptions passes options to the faction clusterer.
func WithClusterOptions(opts ...cluster.Option) Option {
	return func(s *Service) {
		s.clusterOpts = append(s.clusterOpts, opts...)
	}
}

// WithAlertRules sets when an analyzed encounter raises a flag event.
func WithAlertRules(r AlertRules) Option {
	return func(s *Service) {
		s.rules = r
	}
}

// WithSchedules sets the cron expressions of both tasks and the faction task delay.
func WithSchedules(anticheat, faction string, factionDelay time.Duration) Option {
	return func(s *Service) {
		if anticheat != "" {
			s.anticheatSchedule = anticheat
		}
		if faction != "" {
			s.factionSchedule = faction
		}
		if factionDelay >= 0 {
			s.factionDelay = factionDelay
		}
	}
}

// WithRunIDs replaces the pass id generator.
func WithRunIDs(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newRunID = gen
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
