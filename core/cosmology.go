package core

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/model"
	"github.com/signalsfoundry/starcat/units"
)

const (
	// SpeedOfLightKmS is c in km/s.
	SpeedOfLightKmS = 299792.458
	// hubbleTimeGyr is 1/H0 in Gyr for H0 = 1 km/s/Mpc.
	hubbleTimeGyr = 977.7922216807891
	// quadratureNodes is the Gauss-Legendre order used for the redshift
	// integrals; the integrands are smooth over any physical range.
	quadratureNodes = 64
)

// Cosmology is a flat ΛCDM model without radiation.
type Cosmology struct {
	H0  float64 // km/s/Mpc
	Om0 float64 // matter density today; ΩΛ = 1 - Om0
}

// Planck18 returns the Planck 2018 parameters.
func Planck18() Cosmology {
	return Cosmology{H0: 67.66, Om0: 0.30966}
}

// E is the dimensionless Hubble parameter H(z)/H0.
func (c Cosmology) E(z float64) float64 {
	zp := 1 + z
	return math.Sqrt(c.Om0*zp*zp*zp + (1 - c.Om0))
}

// HubbleDistance is c/H0 in Mpc.
func (c Cosmology) HubbleDistance() float64 { return SpeedOfLightKmS / c.H0 }

// ComovingDistance returns the line-of-sight comoving distance to redshift z
// in Mpc.
func (c Cosmology) ComovingDistance(z float64) float64 {
	if z == 0 {
		return 0
	}
	integral := quad.Fixed(func(x float64) float64 { return 1 / c.E(x) }, 0, z, quadratureNodes, nil, 0)
	return c.HubbleDistance() * integral
}

// LookbackTime returns the light travel time from redshift z in Gyr.
func (c Cosmology) LookbackTime(z float64) float64 {
	if z == 0 {
		return 0
	}
	integral := quad.Fixed(func(x float64) float64 { return 1 / ((1 + x) * c.E(x)) }, 0, z, quadratureNodes, nil, 0)
	return hubbleTimeGyr / c.H0 * integral
}

// Validate rejects models with no physical meaning.
func (c Cosmology) Validate() error {
	if !(c.H0 > 0) {
		return fmt.Errorf("%w: H0 must be positive, got %v", ErrInvalidSelection, c.H0)
	}
	if c.Om0 < 0 || c.Om0 > 1 {
		return fmt.Errorf("%w: Om0 must be in [0, 1], got %v", ErrInvalidSelection, c.Om0)
	}
	return nil
}

// RedshiftDistance derives lookback time, comoving distance and dist_pc
// from a redshift column. Negative or missing redshifts are masked.
type RedshiftDistance struct {
	Column    string
	Cosmology Cosmology
}

func (r RedshiftDistance) Name() string                 { return "redshift" }
func (r RedshiftDistance) Method() model.DistanceMethod { return model.DistanceRedshiftComoving }

func (r RedshiftDistance) Resolve(view catalog.View) (catalog.ColumnSet, error) {
	if err := r.Cosmology.Validate(); err != nil {
		return nil, err
	}
	z, meta, err := requireFloats(view, r.Column, "redshift")
	if err != nil {
		return nil, err
	}
	if meta.Unit.Dim != units.Dimensionless {
		return nil, fmt.Errorf("%w: redshift column %q must be dimensionless, has %q", ErrInvalidSelection, r.Column, meta.Unit)
	}
	pcPerMpc, err := units.Megaparsec.Factor(units.Parsec)
	if err != nil {
		return nil, err
	}

	n := view.Len()
	lookback := catalog.MakeFloats(n)
	comoving := catalog.MakeFloats(n)
	pc := catalog.MakeFloats(n)
	for i := 0; i < n; i++ {
		v, ok := z.At(i)
		if !ok || v < 0 {
			continue
		}
		lookback.Set(i, r.Cosmology.LookbackTime(v))
		d := r.Cosmology.ComovingDistance(v)
		comoving.Set(i, d)
		pc.Set(i, d*pcPerMpc)
	}

	set := catalog.ColumnSet{
		catalog.NewFloatColumn(ColLookbackTime, catalog.Meta{
			Unit:        units.Gigayear,
			UCD:         "time.age",
			Description: "Lookback time (Gyr)",
			Format:      "{:.6f}",
		}, lookback),
		catalog.NewFloatColumn(ColComovingDist, catalog.Meta{
			Unit:        units.Megaparsec,
			UCD:         "pos.distance",
			Description: "Comoving distance (Mpc)",
			Format:      "{:.6f}",
		}, comoving),
	}
	distSet, err := distanceColumns(pc, r.Method())
	if err != nil {
		return nil, err
	}
	return append(set, distSet...), nil
}
