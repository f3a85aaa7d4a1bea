// Package geom contains the small amount of 3D vector math used by the shot analysis.
package geom

import "math"

// Vec3 is a point or direction in world space.
type Vec3 struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
	Z float64 `json:"z" bson:"z"`
}

// V is a shorthand constructor.
func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }
func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Len returns the Euclidean norm.
func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns the unit vector of v. The zero vector stays zero.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Distance returns |a-b|.
func Distance(a, b Vec3) float64 { return a.Sub(b).Len() }

// DirectionFromRotation converts a camera rotation in degrees (X = pitch, Z = yaw)
// into a unit forward vector.
func DirectionFromRotation(rot Vec3) Vec3 {
	pitch := rot.X * math.Pi / 180
	yaw := rot.Z * math.Pi / 180
	return Vec3{
		X: -math.Sin(yaw) * math.Cos(pitch),
		Y: math.Cos(yaw) * math.Cos(pitch),
		Z: math.Sin(pitch),
	}
}

// AngleDeg returns the angle between a and b in degrees. The cosine is clamped
// to [-1, 1] so rounding noise never yields NaN.
func AngleDeg(a, b Vec3) float64 {
	dot := a.Normalize().Dot(b.Normalize())
	dot = math.Max(-1, math.Min(1, dot))
	return math.Acos(dot) * 180 / math.Pi
}
