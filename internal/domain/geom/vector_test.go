package geom_test

import (
	"math"
	"testing"

	"github.com/okian/fightlens/internal/domain/geom"
	. "github.com/smartystreets/goconvey/convey"
)

func TestVec3(t *testing.T) {
	Convey("Given two vectors", t, func() {
		a := geom.V(1, 2, 2)
		b := geom.V(4, 6, 2)

		Convey("Then length and distance are Euclidean", func() {
			So(a.Len(), ShouldAlmostEqual, 3.0)
			So(geom.Distance(a, b), ShouldAlmostEqual, 5.0)
		})

		Convey("Then normalizing yields a unit vector", func() {
			So(a.Normalize().Len(), ShouldAlmostEqual, 1.0)
		})

		Convey("Then arithmetic is component-wise", func() {
			So(a.Add(b), ShouldResemble, geom.V(5, 8, 4))
			So(b.Sub(a), ShouldResemble, geom.V(3, 4, 0))
			So(a.Scale(2), ShouldResemble, geom.V(2, 4, 4))
			So(a.Dot(b), ShouldAlmostEqual, 20.0)
		})
	})

	Convey("Given the zero vector", t, func() {
		Convey("Then normalizing returns zero without NaN", func() {
			n := geom.Vec3{}.Normalize()
			So(n, ShouldResemble, geom.Vec3{})
			So(math.IsNaN(n.X), ShouldBeFalse)
		})
	})
}

func TestDirectionFromRotation(t *testing.T) {
	Convey("Given a camera with zero rotation", t, func() {
		Convey("Then it faces +Y", func() {
			d := geom.DirectionFromRotation(geom.Vec3{})
			So(d.X, ShouldAlmostEqual, 0.0)
			So(d.Y, ShouldAlmostEqual, 1.0)
			So(d.Z, ShouldAlmostEqual, 0.0)
		})
	})

	Convey("Given a yaw of 90 degrees", t, func() {
		Convey("Then it faces -X", func() {
			d := geom.DirectionFromRotation(geom.V(0, 0, 90))
			So(d.X, ShouldAlmostEqual, -1.0)
			So(d.Y, ShouldAlmostEqual, 0.0, 1e-9)
		})
	})

	Convey("Given a pitch of 90 degrees", t, func() {
		Convey("Then it faces straight up", func() {
			d := geom.DirectionFromRotation(geom.V(90, 0, 0))
			So(d.Z, ShouldAlmostEqual, 1.0)
			So(d.Len(), ShouldAlmostEqual, 1.0)
		})
	})
}

func TestAngleDeg(t *testing.T) {
	Convey("Given parallel and opposite vectors", t, func() {
		So(geom.AngleDeg(geom.V(1, 0, 0), geom.V(3, 0, 0)), ShouldAlmostEqual, 0.0)
		So(geom.AngleDeg(geom.V(1, 0, 0), geom.V(-2, 0, 0)), ShouldAlmostEqual, 180.0)
		So(geom.AngleDeg(geom.V(1, 0, 0), geom.V(0, 5, 0)), ShouldAlmostEqual, 90.0)
	})
}
