// Package units tags scalar values with physical units and converts between
// them. Every dimension has its own reference unit; conversions only happen
// within a dimension, except for the explicit parallax equivalence.
package units

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Dimension is the physical quantity a Unit measures.
type Dimension int

const (
	Dimensionless Dimension = iota
	Length
	Angle
	Time
	Velocity
	AngularRate
	Magnitude
	Temperature
	Power
)

func (d Dimension) String() string {
	switch d {
	case Dimensionless:
		return "dimensionless"
	case Length:
		return "length"
	case Angle:
		return "angle"
	case Time:
		return "time"
	case Velocity:
		return "velocity"
	case AngularRate:
		return "angular rate"
	case Magnitude:
		return "magnitude"
	case Temperature:
		return "temperature"
	case Power:
		return "power"
	default:
		return fmt.Sprintf("Dimension(%d)", int(d))
	}
}

var (
	// ErrIncompatible is returned when converting between different dimensions.
	ErrIncompatible = errors.New("incompatible units")
	// ErrUnknownUnit is returned by Parse for unrecognised symbols.
	ErrUnknownUnit = errors.New("unknown unit")
)

// Unit is a named scale within a Dimension. scale is the size of one unit
// expressed in the dimension's reference unit.
type Unit struct {
	Symbol string
	Dim    Dimension
	scale  float64
}

// Reference units per dimension: metre, arcsecond, second, m/s, mas/yr,
// mag, kelvin, watt.
const (
	metresPerAU        = 149597870700.0
	metresPerParsec    = 3.0856775814913673e16
	metresPerLightYear = 9460730472580800.0
	metresPerSolarRad  = 6.957e8
	secondsPerYear     = 31557600.0
	wattsPerSolarLum   = 3.828e26
)

var (
	None = Unit{Symbol: "", Dim: Dimensionless, scale: 1}

	Metre       = Unit{Symbol: "m", Dim: Length, scale: 1}
	Kilometre   = Unit{Symbol: "km", Dim: Length, scale: 1e3}
	AU          = Unit{Symbol: "AU", Dim: Length, scale: metresPerAU}
	SolarRadius = Unit{Symbol: "solRad", Dim: Length, scale: metresPerSolarRad}
	Parsec      = Unit{Symbol: "pc", Dim: Length, scale: metresPerParsec}
	Kiloparsec  = Unit{Symbol: "kpc", Dim: Length, scale: 1e3 * metresPerParsec}
	Megaparsec  = Unit{Symbol: "Mpc", Dim: Length, scale: 1e6 * metresPerParsec}
	LightYear   = Unit{Symbol: "lyr", Dim: Length, scale: metresPerLightYear}

	Arcsecond      = Unit{Symbol: "arcsec", Dim: Angle, scale: 1}
	Milliarcsecond = Unit{Symbol: "mas", Dim: Angle, scale: 1e-3}
	Degree         = Unit{Symbol: "deg", Dim: Angle, scale: 3600}
	Radian         = Unit{Symbol: "rad", Dim: Angle, scale: 648000 / math.Pi}

	Second   = Unit{Symbol: "s", Dim: Time, scale: 1}
	Year     = Unit{Symbol: "yr", Dim: Time, scale: secondsPerYear}
	Gigayear = Unit{Symbol: "Gyr", Dim: Time, scale: 1e9 * secondsPerYear}

	MetrePerSecond     = Unit{Symbol: "m / s", Dim: Velocity, scale: 1}
	KilometrePerSecond = Unit{Symbol: "km / s", Dim: Velocity, scale: 1e3}

	MasPerYear    = Unit{Symbol: "mas / yr", Dim: AngularRate, scale: 1}
	ArcsecPerYear = Unit{Symbol: "arcsec / yr", Dim: AngularRate, scale: 1e3}

	Mag = Unit{Symbol: "mag", Dim: Magnitude, scale: 1}

	Kelvin = Unit{Symbol: "K", Dim: Temperature, scale: 1}

	Watt            = Unit{Symbol: "W", Dim: Power, scale: 1}
	SolarLuminosity = Unit{Symbol: "solLum", Dim: Power, scale: wattsPerSolarLum}
)

var bySymbol = map[string]Unit{
	"":            None,
	"m":           Metre,
	"km":          Kilometre,
	"au":          AU,
	"solrad":      SolarRadius,
	"rsun":        SolarRadius,
	"pc":          Parsec,
	"kpc":         Kiloparsec,
	"mpc":         Megaparsec,
	"lyr":         LightYear,
	"ly":          LightYear,
	"arcsec":      Arcsecond,
	"mas":         Milliarcsecond,
	"deg":         Degree,
	"rad":         Radian,
	"s":           Second,
	"yr":          Year,
	"gyr":         Gigayear,
	"m/s":         MetrePerSecond,
	"km/s":        KilometrePerSecond,
	"mas/yr":      MasPerYear,
	"arcsec/yr":   ArcsecPerYear,
	"mag":         Mag,
	"k":           Kelvin,
	"w":           Watt,
	"sollum":      SolarLuminosity,
	"lsun":        SolarLuminosity,

	"dimensionless": None,
}

// Parse resolves a unit symbol such as "mas", "km / s" or "Mpc".
// Matching ignores case and whitespace.
func Parse(symbol string) (Unit, error) {
	key := strings.ToLower(strings.Join(strings.Fields(symbol), ""))
	if u, ok := bySymbol[key]; ok {
		return u, nil
	}
	return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, symbol)
}

func (u Unit) String() string { return u.Symbol }

// Factor returns the multiplier that converts a value in u into a value in to.
func (u Unit) Factor(to Unit) (float64, error) {
	if u.Dim != to.Dim {
		return 0, fmt.Errorf("%w: %s (%s) to %s (%s)", ErrIncompatible, u, u.Dim, to, to.Dim)
	}
	if u == to {
		return 1, nil
	}
	return u.scale / to.scale, nil
}

// Convert converts v from one unit to another of the same dimension.
func Convert(v float64, from, to Unit) (float64, error) {
	if from == to {
		return v, nil
	}
	f, err := from.Factor(to)
	if err != nil {
		return 0, err
	}
	return v * f, nil
}

// Quantity is a value tagged with a unit.
type Quantity struct {
	Value float64
	Unit  Unit
}

// Q is shorthand for Quantity{v, u}.
func Q(v float64, u Unit) Quantity { return Quantity{Value: v, Unit: u} }

// To converts the quantity into another unit.
func (q Quantity) To(u Unit) (Quantity, error) {
	v, err := Convert(q.Value, q.Unit, u)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: v, Unit: u}, nil
}

func (q Quantity) String() string {
	if q.Unit.Symbol == "" {
		return fmt.Sprintf("%g", q.Value)
	}
	return fmt.Sprintf("%g %s", q.Value, q.Unit.Symbol)
}

// ParallaxToDistance applies the parallax equivalence d[pc] = 1 / p[arcsec].
// The result is expressed in parsecs. Non-positive parallaxes have no
// physical distance and report ok=false.
func ParallaxToDistance(p Quantity) (d Quantity, ok bool, err error) {
	if p.Unit.Dim != Angle {
		return Quantity{}, false, fmt.Errorf("%w: parallax in %s (%s)", ErrIncompatible, p.Unit, p.Unit.Dim)
	}
	q, err := p.To(Milliarcsecond)
	if err != nil {
		return Quantity{}, false, err
	}
	mas := q.Value
	if !(mas > 0) || math.IsInf(mas, 0) {
		return Quantity{}, false, nil
	}
	return Quantity{Value: 1000 / mas, Unit: Parsec}, true, nil
}

// DistanceToParallax is the inverse equivalence, returning milliarcseconds.
func DistanceToParallax(d Quantity) (p Quantity, ok bool, err error) {
	if d.Unit.Dim != Length {
		return Quantity{}, false, fmt.Errorf("%w: distance in %s (%s)", ErrIncompatible, d.Unit, d.Unit.Dim)
	}
	q, err := d.To(Parsec)
	if err != nil {
		return Quantity{}, false, err
	}
	pc := q.Value
	if !(pc > 0) || math.IsInf(pc, 0) {
		return Quantity{}, false, nil
	}
	return Quantity{Value: 1000 / pc, Unit: Milliarcsecond}, true, nil
}
