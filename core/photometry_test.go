package core

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/starcat/units"
)

func TestFloorLuminosity(t *testing.T) {
	cases := []struct {
		in     float64
		policy LuminosityPolicy
		want   float64
		ok     bool
	}{
		{0.0005, KeepNonPositive, 0.001, true},
		{0.01, KeepNonPositive, 0.01, true},
		{0, KeepNonPositive, 0, true},
		{-2, KeepNonPositive, -2, true},
		{0, MaskNonPositive, 0, false},
		{-2, MaskNonPositive, 0, false},
		{0.0005, MaskNonPositive, 0.001, true},
		{0.001, KeepNonPositive, 0.001, true},
	}
	for _, tc := range cases {
		got, ok := FloorLuminosity(tc.in, tc.policy)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("FloorLuminosity(%v, %v) = %v, %v; want %v, %v", tc.in, tc.policy, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAbsoluteMagnitude(t *testing.T) {
	if m, ok := AbsoluteMagnitude(10, 10); !ok || m != 10 {
		t.Fatalf("at 10 pc M should equal m, got %v", m)
	}
	if m, _ := AbsoluteMagnitude(10, 100); !approx(m, 5, 1e-12) {
		t.Fatalf("at 100 pc M = %v, want 5", m)
	}
	if _, ok := AbsoluteMagnitude(10, 0); ok {
		t.Fatalf("zero distance must not give a magnitude")
	}
}

func TestPhotometry_Stage(t *testing.T) {
	cat := mustCatalog(t,
		floatCol("phot_g_mean_mag", units.Mag, 10, 25, 5, 12),
		floatCol("bp_g", units.None, 0.5, 0.7, nan, 0.1),
		floatCol(ColDistPc, units.Parsec, 100, 1000, nan, 10),
	)
	set, err := DefaultPhotometry().Apply(context.Background(), cat)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := set.Names(); len(got) != 4 {
		t.Fatalf("columns = %v", got)
	}
	out := result(t, set)
	absmag := floatsOf(t, out, ColAbsMag)
	lum := floatsOf(t, out, ColLum)

	if m, _ := absmag.At(0); !approx(m, 5, 1e-12) {
		t.Fatalf("absmag[0] = %v, want 5", m)
	}
	if l, _ := lum.At(0); !approx(l, math.Pow(10, 1.89-2), 1e-12) {
		t.Fatalf("lum[0] = %v", l)
	}
	// M = 15 gives 10^(1.89-6), below the floor.
	if l, _ := lum.At(1); l != MinLuminosity {
		t.Fatalf("lum[1] = %v, want floor %v", l, MinLuminosity)
	}
	if _, ok := absmag.At(2); ok {
		t.Fatalf("missing distance should mask absmag")
	}
	if _, ok := lum.At(2); ok {
		t.Fatalf("missing distance should mask lum")
	}
	if c, _ := floatsOf(t, out, ColColor).At(3); c != 0.1 {
		t.Fatalf("color should pass through, got %v", c)
	}

	_, meta, _ := out.Floats(ColColor)
	if meta.Unit != units.None || meta.Description != "Gaia BP-G color" || meta.Format != "{:.2f}" {
		t.Fatalf("color metadata %+v", meta)
	}
	_, meta, _ = out.Floats(ColLum)
	if meta.Unit != units.SolarLuminosity {
		t.Fatalf("lum unit = %v", meta.Unit)
	}
}

func TestPhotometry_WithoutColor(t *testing.T) {
	cat := mustCatalog(t,
		floatCol("phot_g_mean_mag", units.Mag, 10),
		floatCol(ColDistPc, units.Parsec, 100),
	)
	set, err := DefaultPhotometry().Apply(context.Background(), cat)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, name := range set.Names() {
		if name == ColColor {
			t.Fatalf("no color column expected")
		}
	}
}

func TestPhotometry_MissingMagnitude(t *testing.T) {
	cat := mustCatalog(t, floatCol(ColDistPc, units.Parsec, 100))
	if _, err := DefaultPhotometry().Apply(context.Background(), cat); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
}

func TestParseLuminosityPolicy(t *testing.T) {
	if p, err := ParseLuminosityPolicy("mask"); err != nil || p != MaskNonPositive {
		t.Fatalf("mask: %v %v", p, err)
	}
	if _, err := ParseLuminosityPolicy("clip"); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}
}
