package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/fightlens/internal/domain/cluster"
	"github.com/okian/fightlens/pkg/logger"
	"github.com/okian/fightlens/pkg/metrics"
)

// patchTimeout bounds the write of partial results after cancellation.
const patchTimeout = 10 * time.Second

// FactionReport summarizes one clustering pass.
type FactionReport struct {
	RunID   string         `json:"runId"`
	Pending int            `json:"pending"`
	Result  cluster.Result `json:"-"`
	Took    time.Duration  `json:"took"`
}

// RunFactionFights clusters analyzed, unassigned encounters and writes the
// resulting references and attempt counters. When the pass is interrupted the
// patches produced so far are still written, since their clusters already exist.
// Concurrent calls run one after another so they never both insert a cluster
// for the same fight.
func (s *Service) RunFactionFights(ctx context.Context) (FactionReport, error) {
	s.factionRun.Lock()
	defer s.factionRun.Unlock()

	start := time.Now()
	rep := FactionReport{RunID: s.newRunID()}
	log := s.logger.With(logger.String("runID", rep.RunID), logger.String("task", FactionFightTaskName))

	pending, err := s.encounters.PendingClustering(ctx, s.clusterer.MaxAttempts())
	if err != nil {
		metrics.RecordStoreError("pending_clustering")
		s.recordFaction(rep, err)
		return rep, fmt.Errorf("load unassigned encounters: %w", err)
	}
	rep.Pending = len(pending)
	metrics.UpdatePending(FactionFightTaskName, rep.Pending)
	if rep.Pending == 0 {
		log.Info(ctx, "no player fights waiting for a faction fight")
		rep.Took = time.Since(start)
		s.recordFaction(rep, nil)
		return rep, nil
	}

	res, runErr := s.clusterer.Run(ctx, pending)
	rep.Result = res

	writeCtx := ctx
	if runErr != nil {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), patchTimeout)
		defer cancel()
	}
	if err := s.encounters.ApplyPatches(writeCtx, res.Patches); err != nil {
		metrics.RecordStoreError("apply_patches")
		s.recordFaction(rep, err)
		return rep, fmt.Errorf("save %d encounter patches: %w", len(res.Patches), err)
	}
	metrics.RecordClusterPass(metrics.ClusterPass{
		Created:   res.Created,
		Merged:    res.Merged,
		Clustered: res.Clustered,
		Deferred:  res.Deferred,
		Exhausted: res.Exhausted,
	})

	rep.Took = time.Since(start)
	if runErr != nil {
		s.recordFaction(rep, runErr)
		return rep, fmt.Errorf("cluster encounters: %w", runErr)
	}
	log.Info(ctx, "faction fight assignment completed",
		logger.Int("pending", rep.Pending),
		logger.Int("created", res.Created),
		logger.Int("merged", res.Merged),
		logger.Int("clustered", res.Clustered),
		logger.Int("deferred", res.Deferred),
		logger.Int("exhausted", res.Exhausted),
		logger.Int("skipped", res.Skipped),
		logger.Duration("took", rep.Took))
	s.recordFaction(rep, nil)
	return rep, nil
}
