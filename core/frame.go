package core

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/starcat/model"
)

// KmPerSecPerMasYrKpc converts proper motion × distance into a transverse
// velocity: 1 mas/yr at 1 kpc is 4.74047 km/s (one AU per year).
const KmPerSecPerMasYrKpc = 4.740470463533348

// equatorialToGalactic is the ICRS to Galactic rotation (Hipparcos A_G
// transposed). Its rows are the Galactic axes expressed in ICRS.
var equatorialToGalactic = Mat3{
	{-0.0548755604162154, -0.8734370902348850, -0.4838350155487132},
	{+0.4941094278755837, -0.4448296299600112, +0.7469822444972189},
	{-0.8676661490190047, -0.1980763734312015, +0.4559837761750669},
}

// ParseFrame maps a frame token onto model.Frame.
func ParseFrame(token string) (model.Frame, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "icrs", "equatorial", "radec":
		return model.FrameEquatorial, nil
	case "galactic", "gal":
		return model.FrameGalactic, nil
	default:
		return model.FrameUnknown, fmt.Errorf("%w: %q, frame must be 'icrs' or 'galactic'", ErrInvalidFrame, token)
	}
}

// EquatorialToGalactic rotates an ICRS position, and its proper motion when
// known, into the Galactic frame. Radial velocity is frame independent.
func EquatorialToGalactic(pos model.SkyPosition, kin model.KinematicInput) (model.SkyPosition, model.KinematicInput) {
	return rotate(equatorialToGalactic, pos, kin)
}

// GalacticToEquatorial is the inverse of EquatorialToGalactic.
func GalacticToEquatorial(pos model.SkyPosition, kin model.KinematicInput) (model.SkyPosition, model.KinematicInput) {
	return rotate(equatorialToGalactic.Transpose(), pos, kin)
}

func rotate(m Mat3, pos model.SkyPosition, kin model.KinematicInput) (model.SkyPosition, model.KinematicInput) {
	out := skyPositionOf(m.MulVec(unitVector(pos)))

	pm1, pm2, rv, ok := kin.Known()
	if !ok {
		return out, model.UnknownKinematics()
	}
	east, north := tangentBasis(pos)
	motion := m.MulVec(east.Scale(pm1).Add(north.Scale(pm2)))
	outEast, outNorth := tangentBasis(out)
	return out, model.KnownKinematics(motion.Dot(outEast), motion.Dot(outNorth), rv)
}

// GalacticToCartesian converts a Galactic position at distance dist into
// Cartesian coordinates in the same length unit as dist. parsecsPerUnit
// scales dist to parsecs for the transverse velocity; it is only used when
// kin is known.
func GalacticToCartesian(pos model.SkyPosition, dist, parsecsPerUnit float64, kin model.KinematicInput) CartesianState {
	dir := unitVector(pos)
	state := CartesianState{Position: dir.Scale(dist)}

	pmL, pmB, rv, ok := kin.Known()
	if !ok {
		return state
	}
	kpc := dist * parsecsPerUnit / 1000
	east, north := tangentBasis(pos)
	state.Velocity = dir.Scale(rv).
		Add(east.Scale(KmPerSecPerMasYrKpc * pmL * kpc)).
		Add(north.Scale(KmPerSecPerMasYrKpc * pmB * kpc))
	state.HasVelocity = true
	return state
}
