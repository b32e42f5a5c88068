package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/starcat/model"
)

func TestVec3Distance(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: 4, Y: 6, Z: 3}

	if got := a.DistanceTo(b); got != 5 {
		t.Errorf("DistanceTo = %v, want 5", got)
	}
	if got := a.SquaredDistanceTo(b); got != 25 {
		t.Errorf("SquaredDistanceTo = %v, want 25", got)
	}
	if got := b.Sub(a).Norm(); got != 5 {
		t.Errorf("|b-a| = %v, want 5", got)
	}
}

func TestMat3TransposeInvertsRotation(t *testing.T) {
	v := Vec3{X: 0.3, Y: -0.4, Z: 0.8}
	back := equatorialToGalactic.Transpose().MulVec(equatorialToGalactic.MulVec(v))

	if back.Sub(v).Norm() > 1e-12 {
		t.Errorf("round trip through rotation drifted: %+v -> %+v", v, back)
	}
	if n := equatorialToGalactic.MulVec(v).Norm(); math.Abs(n-v.Norm()) > 1e-12 {
		t.Errorf("rotation changed length: %v vs %v", n, v.Norm())
	}
}

func TestTangentBasisIsOrthonormal(t *testing.T) {
	for _, p := range []model.SkyPosition{{Lon: 0, Lat: 0}, {Lon: 123.4, Lat: -56.7}, {Lon: 359, Lat: 89}} {
		u := unitVector(p)
		east, north := tangentBasis(p)
		for name, d := range map[string]float64{
			"u.east":     u.Dot(east),
			"u.north":    u.Dot(north),
			"east.north": east.Dot(north),
		} {
			if math.Abs(d) > 1e-12 {
				t.Errorf("%+v: %s = %v, want 0", p, name, d)
			}
		}
		if math.Abs(east.Norm()-1) > 1e-12 || math.Abs(north.Norm()-1) > 1e-12 {
			t.Errorf("%+v: basis vectors not unit length", p)
		}
	}
}

func TestSkyPositionOfWrapsLongitude(t *testing.T) {
	p := skyPositionOf(unitVector(model.SkyPosition{Lon: -30, Lat: 10}))
	if math.Abs(p.Lon-330) > 1e-9 || math.Abs(p.Lat-10) > 1e-9 {
		t.Errorf("skyPositionOf = %+v, want lon 330 lat 10", p)
	}
}

func TestCartesianStateSpeed(t *testing.T) {
	if _, ok := (CartesianState{}).Speed(); ok {
		t.Errorf("state without velocity must not report a speed")
	}
	s := CartesianState{Velocity: Vec3{X: 3, Y: 4}, HasVelocity: true}
	if v, ok := s.Speed(); !ok || v != 5 {
		t.Errorf("Speed = %v, %v; want 5, true", v, ok)
	}
}
