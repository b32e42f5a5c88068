package core

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/units"
)

// MinLuminosity is the floor applied to small positive luminosities, in
// solar luminosities.
const MinLuminosity = 0.001

// LuminosityPolicy decides what happens to luminosities that are not
// positive. Positive values below MinLuminosity are always floored.
type LuminosityPolicy int

const (
	// KeepNonPositive leaves zero and negative luminosities as computed.
	KeepNonPositive LuminosityPolicy = iota
	// MaskNonPositive treats zero and negative luminosities as missing.
	MaskNonPositive
)

func (p LuminosityPolicy) String() string {
	if p == MaskNonPositive {
		return "mask"
	}
	return "keep"
}

// ParseLuminosityPolicy accepts "keep" or "mask".
func ParseLuminosityPolicy(s string) (LuminosityPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep":
		return KeepNonPositive, nil
	case "mask":
		return MaskNonPositive, nil
	default:
		return 0, fmt.Errorf("%w: unknown luminosity policy %q", ErrInvalidSelection, s)
	}
}

// AbsoluteMagnitude applies the distance modulus M = m + 5 - 5 log10(d).
func AbsoluteMagnitude(appmag, distPc float64) (float64, bool) {
	if !(distPc > 0) {
		return 0, false
	}
	return appmag + 5 - 5*math.Log10(distPc), true
}

// Luminosity converts a G-band absolute magnitude to solar luminosities.
func Luminosity(absmag float64) float64 {
	return math.Pow(10, 1.89-0.4*absmag)
}

// FloorLuminosity raises values in (0, MinLuminosity) to MinLuminosity and
// applies policy to values that are not positive.
func FloorLuminosity(lum float64, policy LuminosityPolicy) (float64, bool) {
	switch {
	case lum > 0 && lum < MinLuminosity:
		return MinLuminosity, true
	case lum <= 0 && policy == MaskNonPositive:
		return 0, false
	default:
		return lum, true
	}
}

// Photometry derives appmag, absmag, lum and color. The color column is
// optional; when it is absent no color is produced.
type Photometry struct {
	AppMagColumn   string
	ColorColumn    string
	DistanceColumn string
	Policy         LuminosityPolicy
}

// DefaultPhotometry uses Gaia G magnitudes and BP-G colors.
func DefaultPhotometry() Photometry {
	return Photometry{
		AppMagColumn:   "phot_g_mean_mag",
		ColorColumn:    "bp_g",
		DistanceColumn: ColDistPc,
	}
}

// Name identifies the stage in logs and metrics.
func (p Photometry) Name() string { return "photometry" }

// Apply implements the pipeline stage contract.
func (p Photometry) Apply(_ context.Context, view catalog.View) (catalog.ColumnSet, error) {
	m, err := requiredIn(view, p.AppMagColumn, "apparent magnitude", units.Mag)
	if err != nil {
		return nil, err
	}
	pc, err := requiredIn(view, p.DistanceColumn, "distance", units.Parsec)
	if err != nil {
		return nil, err
	}

	n := view.Len()
	absmag := catalog.MakeFloats(n)
	lum := catalog.MakeFloats(n)
	for i := 0; i < n; i++ {
		mi, okM := m.At(i)
		di, okD := pc.At(i)
		if !okM || !okD {
			continue
		}
		abs, ok := AbsoluteMagnitude(mi, di)
		if !ok {
			continue
		}
		absmag.Set(i, abs)
		if l, ok := FloorLuminosity(Luminosity(abs), p.Policy); ok {
			lum.Set(i, l)
		}
	}

	set := catalog.ColumnSet{
		catalog.NewFloatColumn(ColAppMag, catalog.Meta{
			Unit:        units.Mag,
			UCD:         "phot.mag;em.opt.G",
			Description: "Apparent magnitude in Gaia G-band",
			Format:      "{:.6f}",
		}, m),
		catalog.NewFloatColumn(ColAbsMag, catalog.Meta{
			Unit:        units.Mag,
			UCD:         "phot.magAbs;em.opt.G",
			Description: "Absolute magnitude in Gaia G-band",
			Format:      "{:.6f}",
		}, absmag),
		catalog.NewFloatColumn(ColLum, catalog.Meta{
			Unit:        units.SolarLuminosity,
			UCD:         "phys.luminosity",
			Description: "Stellar Luminosity",
			Format:      "{:.6f}",
		}, lum),
	}

	if p.ColorColumn != "" && view.Has(p.ColorColumn) {
		color, _, err := view.Floats(p.ColorColumn)
		if err != nil {
			return nil, err
		}
		set = append(set, catalog.NewFloatColumn(ColColor, catalog.Meta{
			Unit:        units.None,
			UCD:         "phys.color",
			Description: "Gaia BP-G color",
			Format:      "{:.2f}",
		}, color))
	}
	return set, nil
}
