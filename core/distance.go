package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/model"
	"github.com/signalsfoundry/starcat/units"
)

// DistanceStrategy derives dist_pc, dist_ly and dist_method from one kind
// of distance measurement.
type DistanceStrategy interface {
	Name() string
	Resolve(view catalog.View) (catalog.ColumnSet, error)
}

// DistanceStage runs a DistanceStrategy as a pipeline stage.
type DistanceStage struct {
	Strategy DistanceStrategy
}

// Name identifies the stage in logs and metrics.
func (s DistanceStage) Name() string { return "distance/" + s.Strategy.Name() }

// Apply implements the pipeline stage contract.
func (s DistanceStage) Apply(_ context.Context, view catalog.View) (catalog.ColumnSet, error) {
	return s.Strategy.Resolve(view)
}

// ParallaxDistance inverts a parallax column. Non-positive or missing
// parallaxes give a masked distance.
type ParallaxDistance struct {
	Column string
}

func (p ParallaxDistance) Name() string                 { return "parallax" }
func (p ParallaxDistance) Method() model.DistanceMethod { return model.DistanceParallax }

func (p ParallaxDistance) Resolve(view catalog.View) (catalog.ColumnSet, error) {
	raw, meta, err := requireFloats(view, p.Column, "parallax")
	if err != nil {
		return nil, err
	}
	if meta.Unit.Dim != units.Angle {
		return nil, fmt.Errorf("%w: parallax column %q must carry an angular unit, has %q", ErrInvalidSelection, p.Column, meta.Unit)
	}
	mas, err := inUnit(raw, meta, units.Milliarcsecond, false, p.Column)
	if err != nil {
		return nil, err
	}

	pc := catalog.MakeFloats(mas.Len())
	for i := range mas.Values {
		v, ok := mas.At(i)
		if !ok {
			continue
		}
		d, ok, err := units.ParallaxToDistance(units.Q(v, units.Milliarcsecond))
		if err != nil {
			return nil, err
		}
		if ok {
			pc.Set(i, d.Value)
		}
	}
	return distanceColumns(pc, p.Method())
}

// DirectDistance converts a measured distance column to parsecs.
type DirectDistance struct {
	Column string
}

func (d DirectDistance) Name() string                 { return "distance" }
func (d DirectDistance) Method() model.DistanceMethod { return model.DistanceDirect }

func (d DirectDistance) Resolve(view catalog.View) (catalog.ColumnSet, error) {
	raw, meta, err := requireFloats(view, d.Column, "distance")
	if err != nil {
		return nil, err
	}
	pc, err := inUnit(raw, meta, units.Parsec, false, d.Column)
	if err != nil {
		return nil, err
	}
	return distanceColumns(pc, d.Method())
}

// DistanceOptions selects between a parallax and a direct distance column.
type DistanceOptions struct {
	ParallaxColumn string
	DistanceColumn string
	// Use is DistanceParallax or DistanceDirect.
	Use model.DistanceMethod
}

// DefaultDistanceOptions prefers parallax, as most input catalogs carry it.
func DefaultDistanceOptions() DistanceOptions {
	return DistanceOptions{
		ParallaxColumn: "Plx",
		DistanceColumn: "Dist",
		Use:            model.DistanceParallax,
	}
}

// Strategy picks the strategy matching opts for the given catalog.
func (o DistanceOptions) Strategy(view catalog.View) (DistanceStrategy, error) {
	hasPlx := o.ParallaxColumn != "" && view.Has(o.ParallaxColumn)
	hasDist := o.DistanceColumn != "" && view.Has(o.DistanceColumn)
	if !hasPlx && !hasDist {
		return nil, fmt.Errorf("%w: parallax (%q) or distance (%q) must be in the catalog, neither was found",
			ErrMissingInput, o.ParallaxColumn, o.DistanceColumn)
	}
	switch {
	case o.Use == model.DistanceParallax && hasPlx:
		return ParallaxDistance{Column: o.ParallaxColumn}, nil
	case o.Use == model.DistanceDirect && hasDist:
		return DirectDistance{Column: o.DistanceColumn}, nil
	default:
		return nil, fmt.Errorf("%w: cannot use %s, its column is not in the catalog", ErrInvalidSelection, o.Use)
	}
}

// Name identifies the stage in logs and metrics.
func (o DistanceOptions) Name() string { return "distance/" + o.Use.String() }

// Apply resolves distances with the strategy opts selects for view.
func (o DistanceOptions) Apply(_ context.Context, view catalog.View) (catalog.ColumnSet, error) {
	return ResolveDistance(view, o)
}

// ResolveDistance derives distance columns from whichever of parallax or
// direct distance opts selects.
func ResolveDistance(view catalog.View, opts DistanceOptions) (catalog.ColumnSet, error) {
	s, err := opts.Strategy(view)
	if err != nil {
		return nil, err
	}
	return s.Resolve(view)
}

func distanceColumns(pc catalog.Floats, method model.DistanceMethod) (catalog.ColumnSet, error) {
	return distanceColumnsBy(pc, func(int) model.DistanceMethod { return method })
}

// distanceColumnsBy builds dist_pc, dist_ly and dist_method from distances
// in parsecs. The light-year column is always a conversion of dist_pc.
func distanceColumnsBy(pc catalog.Floats, method func(i int) model.DistanceMethod) (catalog.ColumnSet, error) {
	factor, err := units.Parsec.Factor(units.LightYear)
	if err != nil {
		return nil, err
	}
	n := pc.Len()
	ly := catalog.MakeFloats(n)
	codes := catalog.MakeInts(n)
	for i := 0; i < n; i++ {
		if d, ok := pc.At(i); ok {
			ly.Set(i, d*factor)
			codes.Set(i, int64(method(i)))
		}
	}
	return catalog.ColumnSet{
		catalog.NewFloatColumn(ColDistPc, catalog.Meta{
			Unit:        units.Parsec,
			UCD:         "pos.distance",
			Description: "Distance from Sun (pc)",
			Format:      "{:.6f}",
		}, pc),
		catalog.NewFloatColumn(ColDistLy, catalog.Meta{
			Unit:        units.LightYear,
			UCD:         "pos.distance",
			Description: "Distance from Sun (lyr)",
			Format:      "{:.1f}",
		}, ly),
		catalog.NewIntColumn(ColDistMethod, catalog.Meta{
			Unit:        units.None,
			UCD:         "meta.code",
			Description: "Distance method: 1 BJ photogeometric, 2 BJ geometric, 3 parallax, 4 distance, 5 photometric, 6 redshift",
		}, codes),
	}, nil
}
