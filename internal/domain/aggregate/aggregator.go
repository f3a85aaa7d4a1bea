// Package aggregate folds an encounter's shot and damage events into an
// analysis summary with anomaly flags.
package aggregate

import (
	"math"

	"github.com/okian/fightlens/internal/domain/magic"
	"github.com/okian/fightlens/internal/domain/model"
	"github.com/okian/fightlens/internal/domain/shot"
	"github.com/okian/fightlens/internal/domain/weapons"
)

// Aggregator computes AnalysisSummary values. It is stateless between calls.
type Aggregator struct {
	thresholds Thresholds
	weapons    *weapons.Registry
	magic      *magic.Detector
}

// New creates an Aggregator with default thresholds, the default weapon table
// and a default magic damage detector.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		thresholds: DefaultThresholds(),
		weapons:    weapons.NewRegistry(nil),
		magic:      magic.New(magic.DefaultParams()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Thresholds returns the active thresholds.
func (a *Aggregator) Thresholds() Thresholds { return a.thresholds }

// running accumulates one shot score.
type running struct {
	sum   float64
	count int
	flags int
}

func (r *running) add(v float64, flagged bool) {
	if v == shot.NotApplicable {
		return
	}
	r.sum += v
	r.count++
	if flagged {
		r.flags++
	}
}

func (r *running) mean() float64 { return ratio(r.sum, r.count) }

type bucket struct {
	shots int
	hits  int
}

func (b *bucket) add(hit bool) {
	b.shots++
	if hit {
		b.hits++
	}
}

func (b *bucket) rate() float64 { return ratio(float64(b.hits), b.shots) }

type tally struct {
	dist, angle, bone, align running

	hits, shouldHits, aiming int
	moving, stationary       bucket

	low, mid, high bucket
	noRange        int
	distance       float64

	weapons   []model.WeaponShots
	weaponIdx map[int64]int
	bones     []model.BoneHits
	boneIdx   map[string]int

	confirmed   []float64
	damage      float64
	otherDamage float64
	otherCount  int
	invalid     int
	detailed    []model.WeaponDamage
	detailedIdx map[int64]int
}

// Analyze folds an encounter into a summary. Encounters below the minimum
// event count, or without any shot, produce an empty summary.
func (a *Aggregator) Analyze(e *model.Encounter) *model.AnalysisSummary {
	minEvents := a.thresholds.MinEvents
	if len(e.Shots) == 0 || (len(e.Shots) < minEvents && len(e.Damages) < minEvents) {
		return model.Empty()
	}

	t := &tally{
		weaponIdx:   make(map[int64]int),
		boneIdx:     make(map[string]int),
		detailedIdx: make(map[int64]int),
	}
	for i := range e.Shots {
		a.foldShot(t, &e.Shots[i])
	}
	for _, d := range e.Damages {
		a.foldDamage(t, d)
	}

	return a.summarize(t, e)
}

func (a *Aggregator) foldShot(t *tally, s *model.ShotEvent) {
	th := a.thresholds
	sc := shot.Analyze(s)
	t.dist.add(sc.DistThreshold, sc.DistThreshold > th.DistThreshold)
	t.angle.add(sc.AngleThreshold, sc.AngleThreshold > th.AngleThreshold)
	t.bone.add(sc.BoneCenterDistance, sc.BoneCenterDistance < th.BoneCenterThreshold)
	t.align.add(sc.AimAlignment, sc.AimAlignment < th.AlignmentThreshold)

	if s.Hit {
		t.hits++
	}
	if s.ShouldHit {
		t.shouldHits++
	}
	if s.AimingOnTarget {
		t.aiming++
	}
	if s.TargetMoving {
		t.moving.add(s.Hit)
	} else {
		t.stationary.add(s.Hit)
	}

	if s.WeaponHash != 0 {
		if i, ok := t.weaponIdx[s.WeaponHash]; ok {
			t.weapons[i].Shots++
		} else {
			t.weaponIdx[s.WeaponHash] = len(t.weapons)
			t.weapons = append(t.weapons, model.WeaponShots{WeaponHash: s.WeaponHash, Shots: 1})
		}
	}
	if s.BoneName != nil {
		if i, ok := t.boneIdx[*s.BoneName]; ok {
			t.bones[i].Count++
		} else {
			t.boneIdx[*s.BoneName] = len(t.bones)
			t.bones = append(t.bones, model.BoneHits{Bone: *s.BoneName, Count: 1})
		}
	}

	dist, ok := s.Range()
	if !ok {
		t.noRange++
		return
	}
	t.distance += dist
	switch {
	case dist < th.LowRange:
		t.low.add(s.Hit)
	case dist < th.MidRange:
		t.mid.add(s.Hit)
	default:
		t.high.add(s.Hit)
	}
}

func (a *Aggregator) foldDamage(t *tally, d model.DamageEvent) {
	if !d.Confirmed() {
		t.otherCount++
		t.otherDamage += d.WeaponDamage
		return
	}
	if !a.weapons.IsValidDamage(d.WeaponType, d.WeaponDamage) {
		t.invalid++
	}
	t.confirmed = append(t.confirmed, d.WeaponDamage)
	t.damage += d.WeaponDamage
	if i, ok := t.detailedIdx[d.WeaponType]; ok {
		t.detailed[i].Amount += d.WeaponDamage
		t.detailed[i].Count++
	} else {
		t.detailedIdx[d.WeaponType] = len(t.detailed)
		t.detailed = append(t.detailed, model.WeaponDamage{WeaponHash: d.WeaponType, Amount: d.WeaponDamage, Count: 1})
	}
}

func (a *Aggregator) summarize(t *tally, e *model.Encounter) *model.AnalysisSummary {
	th := a.thresholds
	shots := len(e.Shots)

	for i := range t.detailed {
		t.detailed[i].Average = ratio(t.detailed[i].Amount, t.detailed[i].Count)
	}

	out := model.Empty()
	out.DistThreshold = t.dist.mean()
	out.AngleThreshold = t.angle.mean()
	out.BoneCenterDistance = t.bone.mean()
	out.AimAlignment = t.align.mean()
	out.DistFlag = t.dist.flags
	out.AngleFlag = t.angle.flags
	out.BoneCenterDistanceFlag = t.bone.flags
	out.AimAlignmentFlag = t.align.flags

	m := a.magic.Detect(e.Shots, e.Damages)
	out.MagicDamageFlag = m.FlagCount
	out.MagicDamageSequences = m.SequenceCount
	out.InvalidDamageFlag = t.invalid

	out.ShotCount = shots
	out.HitCount = t.hits
	out.HitRate = ratio(float64(t.hits), shots)
	out.ServerHitRate = ratio(float64(len(t.confirmed)), shots)

	out.ShouldHitCount = t.shouldHits
	out.ShouldHitButDidNot = t.hits - t.shouldHits
	out.ShouldHitRate = ratio(float64(t.shouldHits), shots)

	out.AimingOnTargetCount = t.aiming
	out.AimingOnTargetRate = ratio(float64(t.aiming), shots)
	out.AimingOnTargetHitCount = t.hits - t.aiming

	out.TargetMovingCount = t.moving.shots
	out.TargetMovingRate = ratio(float64(t.moving.shots), shots)
	out.TargetMovingHitCount = t.moving.hits
	out.TargetMovingHitRate = t.moving.rate()

	out.OtherTotalDamage = t.otherDamage
	out.AverageOtherTotalDamage = ratio(t.otherDamage, t.otherCount)
	out.TotalDamage = t.damage
	out.AverageTotalDamage = ratio(t.damage, len(t.confirmed))
	if t.detailed != nil {
		out.DetailedDamage = t.detailed
	}

	out.AverageDistance = ratio(t.distance, shots)
	out.LowRange, out.MidRange, out.HighRange = t.low.shots, t.mid.shots, t.high.shots
	out.NoRange = t.noRange
	out.LowRangeHits, out.MidRangeHits, out.HighRangeHits = t.low.hits, t.mid.hits, t.high.hits
	out.LowRangeHitRate = t.low.rate()
	out.MidRangeHitRate = t.mid.rate()
	out.HighRangeHitRate = t.high.rate()

	out.StationaryHitCount = t.stationary.hits
	out.StationaryHitRate = t.stationary.rate()
	out.MovementHitRateDrop = out.StationaryHitRate - out.TargetMovingHitRate
	out.SuspiciousMovementTracking = out.TargetMovingHitRate > th.MovingHitRateLimit ||
		out.MovementHitRateDrop < th.MovementDropLimit

	out.DamageVariance = stdDev(t.confirmed)
	if len(t.confirmed) >= th.ConsistencySamples && out.DamageVariance < th.DamageStdDevLimit {
		out.DamageConsistencyFlag = 1
	}

	if t.weapons != nil {
		out.Weapons = t.weapons
	}
	if t.bones != nil {
		out.BoneHits = t.bones
	}
	return out
}

func ratio(num float64, den int) float64 {
	if den == 0 {
		return 0
	}
	return num / float64(den)
}

// stdDev returns the population standard deviation.
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)))
}
