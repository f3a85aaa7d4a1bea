// Package weapons validates reported damage against known per-hit maxima.
package weapons

// Known weapon hashes.
const (
	AdvancedRifle  int64 = -1357824103
	SpecialCarbine int64 = -1063057011
)

// DefaultMaxDamage lists the high-risk weapons with a known per-hit ceiling.
func DefaultMaxDamage() map[int64]float64 {
	return map[int64]float64{
		AdvancedRifle:  26,
		SpecialCarbine: 27,
	}
}

// Registry is an immutable weapon hash to max damage table.
type Registry struct {
	maxDamage map[int64]float64
}

// NewRegistry copies table into a new Registry. A nil table yields the defaults.
func NewRegistry(table map[int64]float64) *Registry {
	if table == nil {
		table = DefaultMaxDamage()
	}
	r := &Registry{maxDamage: make(map[int64]float64, len(table))}
	for hash, limit := range table {
		r.maxDamage[hash] = limit
	}
	return r
}

// MaxDamage returns the per-hit ceiling for a weapon, if one is known.
func (r *Registry) MaxDamage(weaponHash int64) (float64, bool) {
	limit, ok := r.maxDamage[weaponHash]
	return limit, ok
}

// IsValidDamage reports whether amount is plausible for the weapon. Unknown
// weapons are always valid.
func (r *Registry) IsValidDamage(weaponHash int64, amount float64) bool {
	limit, ok := r.maxDamage[weaponHash]
	if !ok {
		return true
	}
	return amount <= limit
}

// Len returns the number of weapons with a known ceiling.
func (r *Registry) Len() int { return len(r.maxDamage) }
