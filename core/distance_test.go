package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/starcat/model"
	"github.com/signalsfoundry/starcat/units"
)

func TestParallaxDistance_HundredMas(t *testing.T) {
	cat := mustCatalog(t, floatCol("Plx", units.Milliarcsecond, 100, 50, 0, -3, nan))

	set, err := ParallaxDistance{Column: "Plx"}.Resolve(cat)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	out := result(t, set)
	pc := floatsOf(t, out, ColDistPc)
	ly := floatsOf(t, out, ColDistLy)
	methods := intsOf(t, out, ColDistMethod)

	if d, ok := pc.At(0); !ok || d != 10 {
		t.Fatalf("dist_pc[0] = %v (%v), want exactly 10", d, ok)
	}
	if d, ok := ly.At(0); !ok || !approx(d, 32.61563777, 1e-9) {
		t.Fatalf("dist_ly[0] = %v, want ~32.6156", d)
	}
	if d, _ := pc.At(1); d != 20 {
		t.Fatalf("dist_pc[1] = %v, want 20", d)
	}
	for _, i := range []int{2, 3, 4} {
		if _, ok := pc.At(i); ok {
			t.Fatalf("dist_pc[%d] should be masked", i)
		}
		if _, ok := ly.At(i); ok {
			t.Fatalf("dist_ly[%d] should be masked", i)
		}
		if _, ok := methods.At(i); ok {
			t.Fatalf("dist_method[%d] should be masked", i)
		}
	}
	if m, _ := methods.At(0); model.DistanceMethod(m) != model.DistanceParallax {
		t.Fatalf("dist_method = %d, want parallax", m)
	}
}

func TestParallaxDistance_LightYearsFollowParsecs(t *testing.T) {
	cat := mustCatalog(t, floatCol("Plx", units.Arcsecond, 0.1, 0.002, 1.5, 0.768))
	set, err := ParallaxDistance{Column: "Plx"}.Resolve(cat)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	out := result(t, set)
	pc := floatsOf(t, out, ColDistPc)
	ly := floatsOf(t, out, ColDistLy)
	factor, _ := units.Parsec.Factor(units.LightYear)
	for i := 0; i < out.Len(); i++ {
		p, _ := pc.At(i)
		l, _ := ly.At(i)
		if l != p*factor {
			t.Fatalf("row %d: dist_ly %v != dist_pc %v * %v", i, l, p, factor)
		}
	}
	if p, _ := pc.At(0); !approx(p, 10, 1e-12) {
		t.Fatalf("0.1 arcsec gave %v pc, want 10", p)
	}
}

func TestParallaxDistance_RequiresAngularUnit(t *testing.T) {
	cat := mustCatalog(t, floatCol("Plx", units.None, 10))
	if _, err := (ParallaxDistance{Column: "Plx"}).Resolve(cat); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection for unitless parallax, got %v", err)
	}
}

func TestDirectDistance_ConvertsToParsecs(t *testing.T) {
	cat := mustCatalog(t, floatCol("Dist", units.Kiloparsec, 1.5, nan))
	set, err := DirectDistance{Column: "Dist"}.Resolve(cat)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	out := result(t, set)
	pc := floatsOf(t, out, ColDistPc)
	if d, _ := pc.At(0); !approx(d, 1500, 1e-12) {
		t.Fatalf("dist_pc = %v, want 1500", d)
	}
	if _, ok := pc.At(1); ok {
		t.Fatalf("missing distance should stay masked")
	}
	if m, _ := intsOf(t, out, ColDistMethod).At(0); model.DistanceMethod(m) != model.DistanceDirect {
		t.Fatalf("dist_method = %d, want direct", m)
	}
}

func TestResolveDistance_Selection(t *testing.T) {
	both := mustCatalog(t,
		floatCol("Plx", units.Milliarcsecond, 100),
		floatCol("Dist", units.Parsec, 42),
	)
	plxOnly := mustCatalog(t, floatCol("Plx", units.Milliarcsecond, 100))
	neither := mustCatalog(t, floatCol("ra", units.Degree, 1))

	opts := DefaultDistanceOptions()
	set, err := ResolveDistance(both, opts)
	if err != nil {
		t.Fatalf("parallax: %v", err)
	}
	if d, _ := floatsOf(t, result(t, set), ColDistPc).At(0); d != 10 {
		t.Fatalf("parallax preferred: got %v, want 10", d)
	}

	opts.Use = model.DistanceDirect
	set, err = ResolveDistance(both, opts)
	if err != nil {
		t.Fatalf("direct: %v", err)
	}
	if d, _ := floatsOf(t, result(t, set), ColDistPc).At(0); d != 42 {
		t.Fatalf("direct: got %v, want 42", d)
	}

	if _, err := ResolveDistance(plxOnly, opts); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("direct without column: expected ErrInvalidSelection, got %v", err)
	}
	if _, err := ResolveDistance(neither, DefaultDistanceOptions()); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("no source: expected ErrMissingInput, got %v", err)
	}

	opts.Use = model.DistancePhotometric
	if _, err := ResolveDistance(both, opts); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("unsupported method: expected ErrInvalidSelection, got %v", err)
	}
}

func TestParallaxDistance_MissingColumn(t *testing.T) {
	cat := mustCatalog(t, floatCol("other", units.Milliarcsecond, 1))
	if _, err := (ParallaxDistance{Column: "Plx"}).Resolve(cat); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
}
