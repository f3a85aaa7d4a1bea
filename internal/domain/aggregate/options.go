package aggregate

import (
	"github.com/okian/fightlens/internal/domain/magic"
	"github.com/okian/fightlens/internal/domain/weapons"
)

// Default thresholds.
const (
	DefaultMinEvents           = 5
	DefaultDistThreshold       = 0.4
	DefaultAngleThreshold      = 1.1
	DefaultBoneCenterThreshold = 0.12
	DefaultAlignmentThreshold  = 0.99
	DefaultMovingHitRateLimit  = 0.4
	DefaultMovementDropLimit   = 0.15
	DefaultDamageStdDevLimit   = 2.0
	DefaultConsistencySamples  = 5
	DefaultLowRange            = 10.0
	DefaultMidRange            = 35.0
)

// Thresholds are the named tuning values of the aggregator.
type Thresholds struct {
	// MinEvents is the shot or damage count an encounter needs to be analyzed.
	MinEvents int
	// DistThreshold flags shots whose ray error exceeds it.
	DistThreshold float64
	// AngleThreshold flags shots whose angle error in degrees exceeds it.
	AngleThreshold float64
	// BoneCenterThreshold flags hits closer than this to the bone center.
	BoneCenterThreshold float64
	// AlignmentThreshold flags hits whose camera alignment is below it.
	AlignmentThreshold float64

	MovingHitRateLimit float64
	MovementDropLimit  float64

	DamageStdDevLimit  float64
	ConsistencySamples int

	LowRange float64
	MidRange float64
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinEvents:           DefaultMinEvents,
		DistThreshold:       DefaultDistThreshold,
		AngleThreshold:      DefaultAngleThreshold,
		BoneCenterThreshold: DefaultBoneCenterThreshold,
		AlignmentThreshold:  DefaultAlignmentThreshold,
		MovingHitRateLimit:  DefaultMovingHitRateLimit,
		MovementDropLimit:   DefaultMovementDropLimit,
		DamageStdDevLimit:   DefaultDamageStdDevLimit,
		ConsistencySamples:  DefaultConsistencySamples,
		LowRange:            DefaultLowRange,
		MidRange:            DefaultMidRange,
	}
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithThresholds replaces the thresholds.
func WithThresholds(t Thresholds) Option {
	return func(a *Aggregator) {
		a.thresholds = t
	}
}

// WithWeaponRegistry sets the weapon damage table used for validation.
func WithWeaponRegistry(r *weapons.Registry) Option {
	return func(a *Aggregator) {
		if r != nil {
			a.weapons = r
		}
	}
}

// WithMagicDetector sets the magic damage detector.
func WithMagicDetector(d *magic.Detector) Option {
	return func(a *Aggregator) {
		if d != nil {
			a.magic = d
		}
	}
}
