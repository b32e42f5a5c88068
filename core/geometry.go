package core

import (
	"math"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/starcat/model"
)

// Vec3 is a heliocentric Galactic Cartesian vector: X towards the Galactic
// centre, Y towards Galactic rotation, Z towards the north Galactic pole.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return math.Sqrt(v.SquaredDistanceTo(other))
}

// SquaredDistanceTo returns |v - other|². Neighbor counting compares this
// against R² so every strategy uses identical arithmetic.
func (v Vec3) SquaredDistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Scale returns s * v.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: s * v.X, Y: s * v.Y, Z: s * v.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Mat3 is a row-major 3x3 matrix.
type Mat3 [3][3]float64

// MulVec returns m·v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Transpose returns mᵀ, the inverse of a rotation.
func (m Mat3) Transpose() Mat3 {
	var t Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = m[j][i]
		}
	}
	return t
}

// CartesianState is a record's position and, when kinematics were known,
// its velocity. Velocity is meaningless unless HasVelocity is set.
type CartesianState struct {
	Position    Vec3
	Velocity    Vec3 // km/s
	HasVelocity bool
}

// Speed returns |velocity| when a velocity exists.
func (s CartesianState) Speed() (float64, bool) {
	if !s.HasVelocity {
		return 0, false
	}
	return s.Velocity.Norm(), true
}

// unitVector returns the direction of a sky position.
func unitVector(p model.SkyPosition) Vec3 {
	lon := p.Lon * satellite.DEG2RAD
	lat := p.Lat * satellite.DEG2RAD
	cosLat := math.Cos(lat)
	return Vec3{
		X: cosLat * math.Cos(lon),
		Y: cosLat * math.Sin(lon),
		Z: math.Sin(lat),
	}
}

// tangentBasis returns the unit vectors of increasing longitude and
// increasing latitude at p.
func tangentBasis(p model.SkyPosition) (east, north Vec3) {
	lon := p.Lon * satellite.DEG2RAD
	lat := p.Lat * satellite.DEG2RAD
	sinLon, cosLon := math.Sin(lon), math.Cos(lon)
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	east = Vec3{X: -sinLon, Y: cosLon, Z: 0}
	north = Vec3{X: -sinLat * cosLon, Y: -sinLat * sinLon, Z: cosLat}
	return east, north
}

// skyPositionOf returns the longitude in [0, 360) and latitude of v.
func skyPositionOf(v Vec3) model.SkyPosition {
	lon := math.Atan2(v.Y, v.X) * satellite.RAD2DEG
	if lon < 0 {
		lon += 360
	}
	lat := math.Atan2(v.Z, math.Hypot(v.X, v.Y)) * satellite.RAD2DEG
	return model.SkyPosition{Lon: lon, Lat: lat}
}
