package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/units"
)

var nan = math.NaN()

func floatCol(name string, u units.Unit, vals ...float64) catalog.Column {
	return catalog.NewFloatColumn(name, catalog.Meta{Unit: u}, catalog.FloatsOf(vals...))
}

func mustCatalog(t *testing.T, cols ...catalog.Column) *catalog.Catalog {
	t.Helper()
	c, err := catalog.FromColumns(cols...)
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	return c
}

// result appends a stage output to a fresh catalog for inspection.
func result(t *testing.T, set catalog.ColumnSet) *catalog.Catalog {
	t.Helper()
	return mustCatalog(t, set...)
}

func floatsOf(t *testing.T, v catalog.View, name string) catalog.Floats {
	t.Helper()
	f, _, err := v.Floats(name)
	if err != nil {
		t.Fatalf("Floats(%q): %v", name, err)
	}
	return f
}

func intsOf(t *testing.T, v catalog.View, name string) catalog.Ints {
	t.Helper()
	f, _, err := v.Ints(name)
	if err != nil {
		t.Fatalf("Ints(%q): %v", name, err)
	}
	return f
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
