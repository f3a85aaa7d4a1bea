package service

import (
	"context"
	"errors"

	"github.com/okian/fightlens/internal/adapters/alert"
	"github.com/okian/fightlens/internal/domain/model"
	"github.com/okian/fightlens/pkg/logger"
	"github.com/okian/fightlens/pkg/metrics"
)

// AlertRules decide when one analyzed encounter raises a flag event.
type AlertRules struct {
	HitRate       float64
	ServerHitRate float64
	FlagCount     int
}

// DefaultAlertRules returns the production alert thresholds.
func DefaultAlertRules() AlertRules {
	return AlertRules{HitRate: 0.35, ServerHitRate: 0.4, FlagCount: 60}
}

// Reasons lists the rules the summary breaks. Empty means no alert.
func (r AlertRules) Reasons(sum *model.AnalysisSummary) []string {
	if sum == nil || sum.ShotCount == 0 {
		return nil
	}
	var reasons []string
	if sum.HitRate > r.HitRate {
		reasons = append(reasons, "hitRate")
	}
	if sum.ServerHitRate > r.ServerHitRate {
		reasons = append(reasons, "serverHitRate")
	}
	if sum.DistFlag > r.FlagCount {
		reasons = append(reasons, "distFlag")
	}
	if sum.AngleFlag > r.FlagCount {
		reasons = append(reasons, "angleFlag")
	}
	if sum.BoneCenterDistanceFlag > r.FlagCount {
		reasons = append(reasons, "boneCenterDistanceFlag")
	}
	return reasons
}

// FlagAlert is the payload of an anticheat-flag event.
type FlagAlert struct {
	RunID                  string   `json:"runId"`
	FightID                string   `json:"fightId"`
	AccountID              string   `json:"accountId"`
	Reasons                []string `json:"reasons"`
	ShotCount              int      `json:"shotCount"`
	HitRate                float64  `json:"hitRate"`
	ServerHitRate          float64  `json:"serverHitRate"`
	DistFlag               int      `json:"distFlag"`
	AngleFlag              int      `json:"angleFlag"`
	BoneCenterDistanceFlag int      `json:"boneCenterDistanceFlag"`
	AimAlignmentFlag       int      `json:"aimAlignmentFlag"`
	MagicDamageFlag        int      `json:"magicDamageFlag"`
	InvalidDamageFlag      int      `json:"invalidDamageFlag"`
}

func newFlagAlert(runID string, e *model.Encounter, sum *model.AnalysisSummary, reasons []string) FlagAlert {
	return FlagAlert{
		RunID:                  runID,
		FightID:                e.ID,
		AccountID:              e.AccountID,
		Reasons:                reasons,
		ShotCount:              sum.ShotCount,
		HitRate:                sum.HitRate,
		ServerHitRate:          sum.ServerHitRate,
		DistFlag:               sum.DistFlag,
		AngleFlag:              sum.AngleFlag,
		BoneCenterDistanceFlag: sum.BoneCenterDistanceFlag,
		AimAlignmentFlag:       sum.AimAlignmentFlag,
		MagicDamageFlag:        sum.MagicDamageFlag,
		InvalidDamageFlag:      sum.InvalidDamageFlag,
	}
}

// PassAlert is the payload of an anticheat-pass event.
type PassAlert struct {
	RunID      string `json:"runId"`
	Analyzed   int    `json:"analyzed"`
	Skipped    int    `json:"skipped"`
	Flagged    int    `json:"flagged"`
	DurationMS int64  `json:"durationMs"`
}

// notify sends one event. Failures are logged and never returned.
func (s *Service) notify(ctx context.Context, log logger.Logger, eventType string, data any) bool {
	err := s.sink.Send(ctx, eventType, data)
	switch {
	case err == nil:
		metrics.RecordAlert(eventType, "sent")
		return true
	case errors.Is(err, alert.ErrDisabled):
		metrics.RecordAlert(eventType, "disabled")
	default:
		metrics.RecordAlert(eventType, "failed")
		log.Warn(ctx, "alert delivery failed", logger.String("eventType", eventType), logger.Error(err))
	}
	return false
}
