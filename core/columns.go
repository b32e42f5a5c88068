package core

import (
	"fmt"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/units"
)

// Output column names shared with collaborators that select by name.
const (
	ColDistPc     = "dist_pc"
	ColDistLy     = "dist_ly"
	ColDistMethod = "dist_method"

	ColX     = "x"
	ColY     = "y"
	ColZ     = "z"
	ColU     = "u"
	ColV     = "v"
	ColW     = "w"
	ColSpeed = "speed"

	ColNNear = "N_near"

	ColAppMag = "appmag"
	ColAbsMag = "absmag"
	ColLum    = "lum"
	ColColor  = "color"

	ColDCalc           = "dcalc"
	ColBJDistance      = "bj_distance"
	ColBJError         = "e_bj_dist"
	ColBJErrorOverDist = "bj_error_over_distance"

	ColLookbackTime = "lookback_time"
	ColComovingDist = "comoving_dist"
)

// requireFloats reads a numeric column, failing with ErrMissingInput when
// it does not exist.
func requireFloats(view catalog.View, name, role string) (catalog.Floats, catalog.Meta, error) {
	if name == "" || !view.Has(name) {
		return catalog.Floats{}, catalog.Meta{}, fmt.Errorf("%w: %s column %q not found", ErrMissingInput, role, name)
	}
	return view.Floats(name)
}

// inUnit returns f expressed in want. A column with no unit is taken to be
// in want already when assume is set, otherwise it is rejected.
func inUnit(f catalog.Floats, meta catalog.Meta, want units.Unit, assume bool, name string) (catalog.Floats, error) {
	from := meta.Unit
	if from.Dim == units.Dimensionless && want.Dim != units.Dimensionless {
		if !assume {
			return catalog.Floats{}, fmt.Errorf("%w: column %q has no unit, expected %s", ErrInvalidSelection, name, want.Dim)
		}
		from = want
	}
	factor, err := from.Factor(want)
	if err != nil {
		return catalog.Floats{}, fmt.Errorf("%w: column %q: %v", ErrInvalidSelection, name, err)
	}
	if factor == 1 {
		return f, nil
	}
	out := catalog.MakeFloats(f.Len())
	for i := range f.Values {
		if v, ok := f.At(i); ok {
			out.Set(i, v*factor)
		}
	}
	return out, nil
}

// unitWord spells out common length units for column descriptions.
func unitWord(u units.Unit) string {
	switch u {
	case units.Parsec:
		return "parsecs"
	case units.Kiloparsec:
		return "kiloparsecs"
	case units.Megaparsec:
		return "megaparsecs"
	case units.LightYear:
		return "light years"
	case units.None:
		return "catalog units"
	default:
		return u.Symbol
	}
}
