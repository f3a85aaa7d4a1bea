// Package service wires the stores, resolver and alert sink to the two
// scheduled passes: encounter analysis and faction fight clustering.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fightlens/internal/adapters/alert"
	"github.com/okian/fightlens/internal/adapters/repository"
	"github.com/okian/fightlens/internal/domain/aggregate"
	"github.com/okian/fightlens/internal/domain/cluster"
	"github.com/okian/fightlens/pkg/logger"
)

// Task names.
const (
	AnticheatTaskName    = "anticheat-task"
	FactionFightTaskName = "faction-fight-task"
)

// Default schedules.
const (
	DefaultSchedule     = "*/1 * * * *"
	DefaultFactionDelay = 30 * time.Second
)

// Service owns the analysis and clustering passes.
type Service struct {
	encounters repository.EncounterStore
	clusters   repository.ClusterStore
	resolver   cluster.Resolver
	sink       alert.Sink

	aggregator  *aggregate.Aggregator
	clusterer   *cluster.Clusterer
	clusterOpts []cluster.Option
	rules       AlertRules

	anticheatSchedule string
	factionSchedule   string
	factionDelay      time.Duration

	newRunID func() string
	logger   logger.Logger

	// anticheatRun and factionRun serialize passes of the same kind.
	anticheatRun sync.Mutex
	factionRun   sync.Mutex

	mu    sync.RWMutex
	stats stats
}

// New constructs a Service. Stores and a resolver are required.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		sink:              alert.Nop{},
		rules:             DefaultAlertRules(),
		anticheatSchedule: DefaultSchedule,
		factionSchedule:   DefaultSchedule,
		factionDelay:      DefaultFactionDelay,
		newRunID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.encounters == nil || s.clusters == nil {
		return nil, ErrMissingStore
	}
	if s.resolver == nil {
		return nil, ErrMissingResolver
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.aggregator == nil {
		s.aggregator = aggregate.New()
	}
	s.clusterer = cluster.New(s.clusters, s.resolver, s.clusterOpts...)
	return s, nil
}

// AnticheatTask returns the scheduled analysis pass.
func (s *Service) AnticheatTask() *AnticheatTask { return &AnticheatTask{s: s} }

// FactionFightTask returns the scheduled clustering pass.
func (s *Service) FactionFightTask() *FactionFightTask { return &FactionFightTask{s: s} }

// AnticheatTask analyzes encounters that have no summary yet.
type AnticheatTask struct{ s *Service }

func (t *AnticheatTask) Name() string         { return AnticheatTaskName }
func (t *AnticheatTask) Schedule() string     { return t.s.anticheatSchedule }
func (t *AnticheatTask) Delay() time.Duration { return 0 }

func (t *AnticheatTask) Execute(ctx context.Context) error {
	_, err := t.s.RunAnticheat(ctx)
	return err
}

// FactionFightTask clusters analyzed encounters into faction fights.
type FactionFightTask struct{ s *Service }

func (t *FactionFightTask) Name() string         { return FactionFightTaskName }
func (t *FactionFightTask) Schedule() string     { return t.s.factionSchedule }
func (t *FactionFightTask) Delay() time.Duration { return t.s.factionDelay }

func (t *FactionFightTask) Execute(ctx context.Context) error {
	_, err := t.s.RunFactionFights(ctx)
	return err
}
