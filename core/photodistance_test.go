package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/model"
	"github.com/signalsfoundry/starcat/units"
)

func TestPhotometricDistance_Sun(t *testing.T) {
	// A solar twin has M = 4.75, so m = 4.75 puts it at 10 pc.
	d, ok := PhotometricDistance(5772, 1, 4.75)
	if !ok || !approx(d, 10, 1e-5) {
		t.Fatalf("solar twin at m=4.75: %v pc (%v), want ~10", d, ok)
	}
	d, ok = PhotometricDistance(5772, 1, 9.75)
	if !ok || !approx(d, 100, 1e-5) {
		t.Fatalf("solar twin at m=9.75: %v pc, want ~100", d)
	}
}

func TestPhotometricDistance_Invalid(t *testing.T) {
	for _, in := range [][3]float64{{0, 1, 5}, {5000, -1, 5}, {5000, 1, nan}} {
		if _, ok := PhotometricDistance(in[0], in[1], in[2]); ok {
			t.Fatalf("PhotometricDistance%v should fail", in)
		}
	}
}

func TestPhotometricDistances_LengthMismatch(t *testing.T) {
	_, err := PhotometricDistances(catalog.FloatsOf(1, 2), catalog.FloatsOf(1), catalog.FloatsOf(1, 2))
	if !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}
}

func TestPhotometricStrategy(t *testing.T) {
	cat := mustCatalog(t,
		floatCol("teff", units.Kelvin, 5772, nan),
		floatCol("radius", units.SolarRadius, 1, 1),
		floatCol("gmag", units.Mag, 4.75, 4.75),
	)
	set, err := PhotometricStrategy{TeffColumn: "teff", RadiusColumn: "radius", AppMagColumn: "gmag"}.Resolve(cat)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	out := result(t, set)
	pc := floatsOf(t, out, ColDistPc)
	if d, ok := pc.At(0); !ok || !approx(d, 10, 1e-5) {
		t.Fatalf("dist_pc = %v, want ~10", d)
	}
	if _, ok := pc.At(1); ok {
		t.Fatalf("missing temperature should mask the distance")
	}
	if m, _ := intsOf(t, out, ColDistMethod).At(0); model.DistanceMethod(m) != model.DistancePhotometric {
		t.Fatalf("dist_method = %d", m)
	}

	if _, err := (PhotometricStrategy{TeffColumn: "nope", RadiusColumn: "radius", AppMagColumn: "gmag"}).Resolve(cat); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
}
