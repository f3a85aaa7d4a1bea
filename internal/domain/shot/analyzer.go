// Package shot scores individual shots for ballistic and aim consistency.
package shot

import (
	"github.com/okian/fightlens/internal/domain/geom"
	"github.com/okian/fightlens/internal/domain/model"
)

// NotApplicable is returned for a score that cannot be computed for a shot.
const NotApplicable = -1.0

// Scores holds the four per-shot measurements. Each is NotApplicable when the
// shot missed or the hit position was not recorded.
type Scores struct {
	// DistThreshold is the distance between the real hit and the point the
	// claimed ray reaches at the same range.
	DistThreshold float64
	// AngleThreshold is the angle in degrees between the claimed direction
	// and the direction towards the real hit.
	AngleThreshold float64
	// BoneCenterDistance is the distance from the real hit to the bone center.
	BoneCenterDistance float64
	// AimAlignment is the dot product of the camera forward vector and the
	// unit vector from the camera to the real hit.
	AimAlignment float64
}

// Analyze scores one shot.
func Analyze(s *model.ShotEvent) Scores {
	out := Scores{
		DistThreshold:      NotApplicable,
		AngleThreshold:     NotApplicable,
		BoneCenterDistance: NotApplicable,
		AimAlignment:       NotApplicable,
	}
	if !s.Hit || s.RealHitPosition == nil {
		return out
	}
	hit := *s.RealHitPosition

	out.DistThreshold = distThreshold(s.ShotStart, s.ShotDirection, hit)
	out.AngleThreshold = geom.AngleDeg(hit.Sub(s.ShotStart), s.ShotDirection)
	if s.BoneCenter != nil {
		out.BoneCenterDistance = geom.Distance(hit, *s.BoneCenter)
	}
	aim := geom.DirectionFromRotation(s.CameraRotation)
	out.AimAlignment = aim.Dot(hit.Sub(s.CameraPosition).Normalize())
	return out
}

func distThreshold(origin, dir, hit geom.Vec3) float64 {
	expected := origin.Add(dir.Normalize().Scale(geom.Distance(origin, hit)))
	return geom.Distance(hit, expected)
}
