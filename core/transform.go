package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/model"
	"github.com/signalsfoundry/starcat/units"
)

// FrameOptions names the input columns of the Frame Transformer.
type FrameOptions struct {
	Frame          model.Frame
	Distance       string
	RA             string
	Dec            string
	GLon           string
	GLat           string
	PMRA           string
	PMDec          string
	PMGLon         string
	PMGLat         string
	RadialVelocity string
}

// DefaultFrameOptions returns the column names used by the catalogs this
// tool was built around.
func DefaultFrameOptions() FrameOptions {
	return FrameOptions{
		Frame:          model.FrameEquatorial,
		Distance:       ColDistPc,
		RA:             "RAdeg",
		Dec:            "DEdeg",
		GLon:           "GLON",
		GLat:           "GLAT",
		PMRA:           "pmra",
		PMDec:          "pmde",
		PMGLon:         "pmglon",
		PMGLat:         "pmglat",
		RadialVelocity: "radial_velocity",
	}
}

// FrameTransformer derives Galactic Cartesian positions, and velocities when
// full kinematics are available, from angular positions and a distance.
type FrameTransformer struct {
	Options FrameOptions
}

// Name identifies the stage in logs and metrics.
func (t FrameTransformer) Name() string { return "frame" }

// frameInputs is the per-run resolution of which columns feed the transform.
type frameInputs struct {
	lon, lat      catalog.Floats
	pm1, pm2, rv  catalog.Floats
	withVelocity  bool
	dist          catalog.Floats
	distUnit      units.Unit
	parsecPerUnit float64
}

// Apply implements the pipeline stage contract.
func (t FrameTransformer) Apply(_ context.Context, view catalog.View) (catalog.ColumnSet, error) {
	in, err := t.resolveInputs(view)
	if err != nil {
		return nil, err
	}

	n := view.Len()
	x, y, z := catalog.MakeFloats(n), catalog.MakeFloats(n), catalog.MakeFloats(n)
	var u, v, w, speed catalog.Floats
	if in.withVelocity {
		u, v, w, speed = catalog.MakeFloats(n), catalog.MakeFloats(n), catalog.MakeFloats(n), catalog.MakeFloats(n)
	}

	for i := 0; i < n; i++ {
		lon, okLon := in.lon.At(i)
		lat, okLat := in.lat.At(i)
		d, okD := in.dist.At(i)
		if !okLon || !okLat || !okD {
			continue
		}

		kin := model.UnknownKinematics()
		if in.withVelocity {
			pm1, ok1 := in.pm1.At(i)
			pm2, ok2 := in.pm2.At(i)
			rv, ok3 := in.rv.At(i)
			kin = model.KinematicsFrom(pm1, ok1, pm2, ok2, rv, ok3)
		}

		pos := model.SkyPosition{Lon: lon, Lat: lat}
		if t.Options.Frame == model.FrameEquatorial {
			pos, kin = EquatorialToGalactic(pos, kin)
		}

		state := GalacticToCartesian(pos, d, in.parsecPerUnit, kin)
		x.Set(i, state.Position.X)
		y.Set(i, state.Position.Y)
		z.Set(i, state.Position.Z)
		if s, ok := state.Speed(); ok {
			u.Set(i, state.Velocity.X)
			v.Set(i, state.Velocity.Y)
			w.Set(i, state.Velocity.Z)
			speed.Set(i, s)
		}
	}

	word := unitWord(in.distUnit)
	set := catalog.ColumnSet{
		catalog.NewFloatColumn(ColX, positionMeta(in.distUnit, "pos.cartesian.x", "x", word), x),
		catalog.NewFloatColumn(ColY, positionMeta(in.distUnit, "pos.cartesian.y", "y", word), y),
		catalog.NewFloatColumn(ColZ, positionMeta(in.distUnit, "pos.cartesian.z", "z", word), z),
	}
	if in.withVelocity {
		set = append(set,
			catalog.NewFloatColumn(ColU, velocityMeta("vel.cartesian.u", "Heliocentric velocity towards Galactic Center"), u),
			catalog.NewFloatColumn(ColV, velocityMeta("vel.cartesian.v", "Heliocentric velocity towards Galactic Rotation"), v),
			catalog.NewFloatColumn(ColW, velocityMeta("vel.cartesian.w", "Heliocentric velocity towards Galactic North Pole"), w),
			catalog.NewFloatColumn(ColSpeed, velocityMeta("vel.speed", "Total heliocentric velocity"), speed),
		)
	}
	return set, nil
}

func (t FrameTransformer) resolveInputs(view catalog.View) (*frameInputs, error) {
	o := t.Options
	in := &frameInputs{}

	dist, distMeta, err := requireFloats(view, o.Distance, "distance")
	if err != nil {
		return nil, err
	}
	in.dist = dist
	in.distUnit = distMeta.Unit
	switch distMeta.Unit.Dim {
	case units.Length:
		if in.parsecPerUnit, err = distMeta.Unit.Factor(units.Parsec); err != nil {
			return nil, err
		}
	case units.Dimensionless:
		in.parsecPerUnit = 1
	default:
		return nil, fmt.Errorf("%w: distance column %q is in %s, not a length", ErrInvalidSelection, o.Distance, distMeta.Unit)
	}

	var lonCol, latCol, pm1Col, pm2Col string
	switch o.Frame {
	case model.FrameEquatorial:
		if !view.Has(o.RA) || !view.Has(o.Dec) {
			return nil, fmt.Errorf("%w: RA (%q) and Dec (%q) must be provided to calculate ICRS position", ErrMissingInput, o.RA, o.Dec)
		}
		lonCol, latCol, pm1Col, pm2Col = o.RA, o.Dec, o.PMRA, o.PMDec
	case model.FrameGalactic:
		if !view.Has(o.GLon) || !view.Has(o.GLat) {
			return nil, fmt.Errorf("%w: GLON (%q) and GLAT (%q) must be provided to calculate Galactic position", ErrMissingInput, o.GLon, o.GLat)
		}
		lonCol, latCol, pm1Col, pm2Col = o.GLon, o.GLat, o.PMGLon, o.PMGLat
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidFrame, o.Frame)
	}

	if in.lon, err = floatsIn(view, lonCol, units.Degree); err != nil {
		return nil, err
	}
	if in.lat, err = floatsIn(view, latCol, units.Degree); err != nil {
		return nil, err
	}

	in.withVelocity = pm1Col != "" && pm2Col != "" && o.RadialVelocity != "" &&
		view.Has(pm1Col) && view.Has(pm2Col) && view.Has(o.RadialVelocity)
	if !in.withVelocity {
		return in, nil
	}
	if in.pm1, err = floatsIn(view, pm1Col, units.MasPerYear); err != nil {
		return nil, err
	}
	if in.pm2, err = floatsIn(view, pm2Col, units.MasPerYear); err != nil {
		return nil, err
	}
	if in.rv, err = floatsIn(view, o.RadialVelocity, units.KilometrePerSecond); err != nil {
		return nil, err
	}
	return in, nil
}

// floatsIn reads an existing column in the given unit, assuming it for
// unitless columns.
func floatsIn(view catalog.View, name string, want units.Unit) (catalog.Floats, error) {
	f, meta, err := view.Floats(name)
	if err != nil {
		return catalog.Floats{}, err
	}
	return inUnit(f, meta, want, true, name)
}

func positionMeta(u units.Unit, ucd, axis, word string) catalog.Meta {
	return catalog.Meta{
		Unit:        u,
		UCD:         ucd,
		Description: fmt.Sprintf("Position (%s coordinate) in %s", axis, word),
		Format:      "{:.6f}",
	}
}

func velocityMeta(ucd, description string) catalog.Meta {
	return catalog.Meta{
		Unit:        units.KilometrePerSecond,
		UCD:         ucd,
		Description: description,
		Format:      "{:.6f}",
	}
}
