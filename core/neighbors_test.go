package core

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/signalsfoundry/starcat/units"
)

func randomPoints(n int, seed int64, spread float64) []Vec3 {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]Vec3, n)
	for i := range pts {
		pts[i] = Vec3{
			X: (rng.Float64() - 0.5) * spread,
			Y: (rng.Float64() - 0.5) * spread,
			Z: (rng.Float64() - 0.5) * spread,
		}
	}
	return pts
}

func TestCountNeighbors_StrategiesAgree(t *testing.T) {
	for _, n := range []int{1, 2, 150, 2000} {
		pts := randomPoints(n, int64(n), 100)
		// Duplicate positions exercise the zero-distance case.
		if n > 10 {
			pts[5] = pts[3]
		}
		pair, err := CountNeighborsPairwise(pts, 10)
		if err != nil {
			t.Fatalf("pairwise: %v", err)
		}
		for _, workers := range []int{1, 4, 0} {
			idx, err := CountNeighborsIndexed(context.Background(), pts, 10, workers)
			if err != nil {
				t.Fatalf("indexed: %v", err)
			}
			for i := range pts {
				if pair[i] != idx[i] {
					t.Fatalf("n=%d workers=%d point %d: pairwise %d, indexed %d", n, workers, i, pair[i], idx[i])
				}
			}
		}
	}
}

func TestCountNeighbors_SinglePoint(t *testing.T) {
	pts := []Vec3{{X: 1, Y: 2, Z: 3}}
	pair, _ := CountNeighborsPairwise(pts, 10)
	idx, _ := CountNeighborsIndexed(context.Background(), pts, 10, 2)
	if pair[0] != 0 || idx[0] != 0 {
		t.Fatalf("single point counts = %d, %d; want 0", pair[0], idx[0])
	}
}

func TestCountNeighbors_Boundary(t *testing.T) {
	pts := []Vec3{
		{X: 0, Y: 0, Z: 0},
		// exactly R from the first point
		{X: 10, Y: 0, Z: 0},
		// just inside R of the first point
		{X: 0, Y: -9.999999, Z: 0},
		{X: 0, Y: 0, Z: 30},
	}
	want := []int{1, 0, 1, 0}
	pair, _ := CountNeighborsPairwise(pts, 10)
	idx, _ := CountNeighborsIndexed(context.Background(), pts, 10, 1)
	for i := range want {
		if pair[i] != want[i] || idx[i] != want[i] {
			t.Fatalf("point %d: pairwise %d, indexed %d, want %d", i, pair[i], idx[i], want[i])
		}
	}
}

func TestCountNeighbors_Symmetry(t *testing.T) {
	pts := randomPoints(200, 7, 50)
	const r = 8.0
	counts, err := CountNeighborsIndexed(context.Background(), pts, r, 3)
	if err != nil {
		t.Fatalf("indexed: %v", err)
	}
	for i := range pts {
		n := 0
		for j := range pts {
			if i == j {
				continue
			}
			ij := pts[i].SquaredDistanceTo(pts[j]) < r*r
			ji := pts[j].SquaredDistanceTo(pts[i]) < r*r
			if ij != ji {
				t.Fatalf("neighbor relation not symmetric for %d, %d", i, j)
			}
			if ij {
				n++
			}
		}
		if counts[i] != n {
			t.Fatalf("point %d: count %d, want %d other points", i, counts[i], n)
		}
	}
}

func TestCountNeighbors_RejectsBadRadius(t *testing.T) {
	pts := []Vec3{{}}
	for _, r := range []float64{0, -1, nan} {
		if _, err := CountNeighborsPairwise(pts, r); !errors.Is(err, ErrInvalidSelection) {
			t.Fatalf("pairwise radius %v: expected ErrInvalidSelection, got %v", r, err)
		}
		if _, err := CountNeighborsIndexed(context.Background(), pts, r, 1); !errors.Is(err, ErrInvalidSelection) {
			t.Fatalf("indexed radius %v: expected ErrInvalidSelection, got %v", r, err)
		}
	}
}

func TestCountNeighborsIndexed_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := CountNeighborsIndexed(ctx, randomPoints(50, 1, 10), 1, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNeighborCounter_Stage(t *testing.T) {
	cat := mustCatalog(t,
		floatCol(ColX, units.Parsec, 0, 1, 2, nan, 100),
		floatCol(ColY, units.Parsec, 0, 0, 0, 0, 0),
		floatCol(ColZ, units.Parsec, 0, 0, 0, 0, 0),
	)
	var gotStrategy NeighborStrategy
	var gotQueries int
	stage := NeighborCounter{
		Radius:   1.5,
		Strategy: NeighborsPairwise,
		OnQueries: func(s NeighborStrategy, n int) {
			gotStrategy, gotQueries = s, n
		},
	}
	set, err := stage.Apply(context.Background(), cat)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	out := result(t, set)
	counts, meta, err := out.Ints(ColNNear)
	if err != nil {
		t.Fatalf("Ints: %v", err)
	}
	want := []int64{1, 2, 1, -1, 0}
	for i, w := range want {
		v, ok := counts.At(i)
		if w < 0 {
			if ok {
				t.Fatalf("N_near[%d] should be masked", i)
			}
			continue
		}
		if !ok || v != w {
			t.Fatalf("N_near[%d] = %d (%v), want %d", i, v, ok, w)
		}
	}
	if meta.Description != "Number of objects in the table within 1.5 parsecs" {
		t.Fatalf("description = %q", meta.Description)
	}
	if gotStrategy != NeighborsPairwise || gotQueries != 4 {
		t.Fatalf("OnQueries got %v, %d", gotStrategy, gotQueries)
	}

	stage.Strategy = NeighborsIndexed
	set, err = stage.Apply(context.Background(), cat)
	if err != nil {
		t.Fatalf("indexed Apply: %v", err)
	}
	idx := intsOf(t, result(t, set), ColNNear)
	for i := range want {
		a, okA := counts.At(i)
		b, okB := idx.At(i)
		if a != b || okA != okB {
			t.Fatalf("strategies disagree at %d", i)
		}
	}
}

func TestNeighborCounter_RequiresCartesian(t *testing.T) {
	cat := mustCatalog(t, floatCol(ColX, units.Parsec, 1))
	if _, err := (NeighborCounter{Radius: 10}).Apply(context.Background(), cat); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
}

func TestParseNeighborStrategy(t *testing.T) {
	if s, err := ParseNeighborStrategy("pairwise"); err != nil || s != NeighborsPairwise {
		t.Fatalf("pairwise: %v %v", s, err)
	}
	if s, err := ParseNeighborStrategy("KDTree"); err != nil || s != NeighborsIndexed {
		t.Fatalf("kdtree: %v %v", s, err)
	}
	if _, err := ParseNeighborStrategy("octree"); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}
}
