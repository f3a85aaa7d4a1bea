// Package magic detects damage that stays constant while the engagement
// distance changes, the signature of a damage modifier.
package magic

import (
	"math"
	"sort"

	"github.com/okian/fightlens/internal/domain/model"
)

// Default detection parameters.
const (
	DefaultPairWindowMS    = 100
	DefaultMinRun          = 4
	DefaultDamageTolerance = 0.1
	DefaultMinDistanceSpan = 7.0
)

// Params tunes the detector.
type Params struct {
	// PairWindowMS is the max distance in ms between a shot and its damage entry.
	PairWindowMS int64
	// MinRun is the run length at which a constant-damage run is evaluated.
	MinRun int
	// DamageTolerance is the max difference for two damage values to count as equal.
	DamageTolerance float64
	// MinDistanceSpan is the distance spread a run must cover to be suspicious.
	MinDistanceSpan float64
}

// DefaultParams returns the production parameters.
func DefaultParams() Params {
	return Params{
		PairWindowMS:    DefaultPairWindowMS,
		MinRun:          DefaultMinRun,
		DamageTolerance: DefaultDamageTolerance,
		MinDistanceSpan: DefaultMinDistanceSpan,
	}
}

// Result holds the detector counters.
type Result struct {
	// FlagCount grows once per qualifying run extension.
	FlagCount int
	// SequenceCount grows once per qualifying run.
	SequenceCount int
}

type pair struct {
	at       int64
	damage   float64
	distance float64
}

// Detector pairs hit shots with confirmed damage and scans for suspicious runs.
type Detector struct {
	params Params
}

// New creates a detector. Zero fields in p fall back to the defaults.
func New(p Params) *Detector {
	d := DefaultParams()
	if p.PairWindowMS > 0 {
		d.PairWindowMS = p.PairWindowMS
	}
	if p.MinRun > 1 {
		d.MinRun = p.MinRun
	}
	if p.DamageTolerance > 0 {
		d.DamageTolerance = p.DamageTolerance
	}
	if p.MinDistanceSpan > 0 {
		d.MinDistanceSpan = p.MinDistanceSpan
	}
	return &Detector{params: d}
}

// Detect scans an encounter's shots and damage entries.
func (d *Detector) Detect(shots []model.ShotEvent, damages []model.DamageEvent) Result {
	var res Result
	groups, order := d.pairByWeapon(shots, damages)
	for _, weapon := range order {
		pairs := groups[weapon]
		if len(pairs) < d.params.MinRun {
			continue
		}
		sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].at < pairs[j].at })
		flags, seqs := d.scan(pairs)
		res.FlagCount += flags
		res.SequenceCount += seqs
	}
	return res
}

// pairByWeapon matches each ranged hit shot with the closest unused confirmed
// damage entry of the same weapon inside the pairing window.
func (d *Detector) pairByWeapon(shots []model.ShotEvent, damages []model.DamageEvent) (map[int64][]pair, []int64) {
	used := make([]bool, len(damages))
	groups := make(map[int64][]pair)
	var order []int64

	for i := range shots {
		s := &shots[i]
		if !s.Hit {
			continue
		}
		dist, ok := s.Range()
		if !ok {
			continue
		}

		best := -1
		var bestGap int64
		for j := range damages {
			dmg := &damages[j]
			if used[j] || !dmg.Confirmed() || dmg.WeaponType != s.WeaponHash {
				continue
			}
			gap := dmg.Timestamp - s.ShotSend
			if gap < 0 {
				gap = -gap
			}
			if gap > d.params.PairWindowMS {
				continue
			}
			if best < 0 || gap < bestGap {
				best, bestGap = j, gap
			}
		}
		if best < 0 {
			continue
		}
		used[best] = true

		if _, seen := groups[s.WeaponHash]; !seen {
			order = append(order, s.WeaponHash)
		}
		groups[s.WeaponHash] = append(groups[s.WeaponHash], pair{
			at:       s.ShotSend,
			damage:   damages[best].WeaponDamage,
			distance: dist,
		})
	}
	return groups, order
}

// scan flags every position where the current equal-damage run is at least
// MinRun long and spans MinDistanceSpan. A run adds one sequence the first
// time it qualifies, whatever its length at that point.
func (d *Detector) scan(pairs []pair) (flags, sequences int) {
	start := 0
	counted := false
	for i := 1; i < len(pairs); i++ {
		if math.Abs(pairs[i].damage-pairs[i-1].damage) > d.params.DamageTolerance {
			start, counted = i, false
			continue
		}
		if i-start+1 < d.params.MinRun {
			continue
		}
		if span(pairs[start:i+1]) < d.params.MinDistanceSpan {
			continue
		}
		flags++
		if !counted {
			sequences++
			counted = true
		}
	}
	return flags, sequences
}

func span(run []pair) float64 {
	lo, hi := run[0].distance, run[0].distance
	for _, p := range run[1:] {
		lo = math.Min(lo, p.distance)
		hi = math.Max(hi, p.distance)
	}
	return hi - lo
}
