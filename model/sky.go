package model

// Frame is the celestial frame a catalog's angular positions are given in.
// It is a dataset-level property chosen once per run.
type Frame int

const (
	FrameUnknown Frame = iota
	// FrameEquatorial is ICRS right ascension / declination.
	FrameEquatorial
	// FrameGalactic is Galactic longitude / latitude.
	FrameGalactic
)

func (f Frame) String() string {
	switch f {
	case FrameEquatorial:
		return "icrs"
	case FrameGalactic:
		return "galactic"
	default:
		return "unknown"
	}
}

// SkyPosition is a point on the sky in degrees. For FrameEquatorial Lon/Lat
// are RA/Dec, for FrameGalactic they are l/b.
type SkyPosition struct {
	Lon float64
	Lat float64
}

// KinematicInput carries proper motion and radial velocity for one record.
// The zero value is Unknown. A Known value can only be built when all three
// components are present, so position-only records never acquire a velocity.
type KinematicInput struct {
	known bool
	pm1   float64 // mas/yr, pm along longitude times cos(latitude)
	pm2   float64 // mas/yr, pm along latitude
	rv    float64 // km/s
}

// UnknownKinematics returns the position-only variant.
func UnknownKinematics() KinematicInput { return KinematicInput{} }

// KnownKinematics builds the full kinematic variant.
func KnownKinematics(pm1, pm2, rv float64) KinematicInput {
	return KinematicInput{known: true, pm1: pm1, pm2: pm2, rv: rv}
}

// KinematicsFrom applies the all-or-nothing rule to optional components.
func KinematicsFrom(pm1 float64, ok1 bool, pm2 float64, ok2 bool, rv float64, ok3 bool) KinematicInput {
	if ok1 && ok2 && ok3 {
		return KnownKinematics(pm1, pm2, rv)
	}
	return UnknownKinematics()
}

// Known returns the components and whether they are available.
func (k KinematicInput) Known() (pm1, pm2, rv float64, ok bool) {
	return k.pm1, k.pm2, k.rv, k.known
}

// IsKnown reports whether full kinematics are available.
func (k KinematicInput) IsKnown() bool { return k.known }
