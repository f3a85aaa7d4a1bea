package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/fightlens/internal/adapters/alert"
	"github.com/okian/fightlens/internal/domain/model"
	"github.com/okian/fightlens/pkg/logger"
	"github.com/okian/fightlens/pkg/metrics"
)

// AnticheatReport summarizes one analysis pass.
type AnticheatReport struct {
	RunID    string        `json:"runId"`
	Pending  int           `json:"pending"`
	Analyzed int           `json:"analyzed"`
	Skipped  int           `json:"skipped"`
	Flagged  int           `json:"flagged"`
	Alerts   int           `json:"alertsSent"`
	Took     time.Duration `json:"took"`
}

// RunAnticheat analyzes every encounter without a summary, writes the
// summaries in one batch and then emits alerts. Encounters below the minimum
// event count get an empty summary so they are not picked up again. Concurrent
// calls run one after another.
func (s *Service) RunAnticheat(ctx context.Context) (AnticheatReport, error) {
	s.anticheatRun.Lock()
	defer s.anticheatRun.Unlock()

	start := time.Now()
	rep := AnticheatReport{RunID: s.newRunID()}
	log := s.logger.With(logger.String("runID", rep.RunID), logger.String("task", AnticheatTaskName))

	pending, err := s.encounters.PendingAnalysis(ctx)
	if err != nil {
		metrics.RecordStoreError("pending_analysis")
		s.recordAnticheat(rep, err)
		return rep, fmt.Errorf("load pending encounters: %w", err)
	}
	rep.Pending = len(pending)
	metrics.UpdatePending(AnticheatTaskName, rep.Pending)
	if rep.Pending == 0 {
		log.Info(ctx, "no new player fights to analyze")
		rep.Took = time.Since(start)
		s.recordAnticheat(rep, nil)
		return rep, nil
	}

	patches := make([]model.EncounterPatch, 0, len(pending))
	var flags []FlagAlert
	for i := range pending {
		e := &pending[i]
		sum := s.aggregator.Analyze(e)
		patches = append(patches, model.EncounterPatch{ID: e.ID, Analysis: sum})
		if sum.ShotCount == 0 {
			rep.Skipped++
			continue
		}
		rep.Analyzed++
		if reasons := s.rules.Reasons(sum); len(reasons) > 0 {
			flags = append(flags, newFlagAlert(rep.RunID, e, sum, reasons))
		}
	}

	if err := s.encounters.ApplyPatches(ctx, patches); err != nil {
		metrics.RecordStoreError("apply_patches")
		s.recordAnticheat(rep, err)
		return rep, fmt.Errorf("save %d summaries: %w", len(patches), err)
	}
	metrics.RecordEncountersAnalyzed(rep.Analyzed)
	metrics.RecordEncountersSkipped(rep.Skipped)

	for i := range flags {
		rep.Flagged++
		metrics.RecordEncounterFlagged()
		log.Warn(ctx, "suspicious encounter",
			logger.String("fightID", flags[i].FightID),
			logger.String("accountID", flags[i].AccountID),
			logger.Strings("reasons", flags[i].Reasons))
		if s.notify(ctx, log, alert.EventFlag, flags[i]) {
			rep.Alerts++
		}
	}

	rep.Took = time.Since(start)
	if s.notify(ctx, log, alert.EventPass, PassAlert{
		RunID:      rep.RunID,
		Analyzed:   rep.Analyzed,
		Skipped:    rep.Skipped,
		Flagged:    rep.Flagged,
		DurationMS: rep.Took.Milliseconds(),
	}) {
		rep.Alerts++
	}

	log.Info(ctx, "anticheat analysis completed",
		logger.Int("analyzed", rep.Analyzed),
		logger.Int("skipped", rep.Skipped),
		logger.Int("flagged", rep.Flagged),
		logger.Duration("took", rep.Took))
	s.recordAnticheat(rep, nil)
	return rep, nil
}
