package core

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/units"
)

// DefaultNeighborRadius is the radius used when configuration leaves it
// unset, in the unit of the Cartesian columns.
const DefaultNeighborRadius = 10.0

// NeighborStrategy selects how neighbor counts are computed. Both give
// identical counts.
type NeighborStrategy int

const (
	// NeighborsIndexed queries a k-d tree built once over all positions.
	NeighborsIndexed NeighborStrategy = iota
	// NeighborsPairwise compares every pair of positions.
	NeighborsPairwise
)

func (s NeighborStrategy) String() string {
	switch s {
	case NeighborsIndexed:
		return "kdtree"
	case NeighborsPairwise:
		return "pairwise"
	default:
		return "unknown"
	}
}

// ParseNeighborStrategy accepts "kdtree"/"indexed" and "pairwise"/"brute".
func ParseNeighborStrategy(s string) (NeighborStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "kdtree", "indexed":
		return NeighborsIndexed, nil
	case "pairwise", "brute":
		return NeighborsPairwise, nil
	default:
		return 0, fmt.Errorf("%w: unknown neighbor strategy %q", ErrInvalidSelection, s)
	}
}

func checkRadius(radius float64) error {
	if !(radius > 0) {
		return fmt.Errorf("%w: neighbor radius must be positive, got %v", ErrInvalidSelection, radius)
	}
	return nil
}

// CountNeighborsPairwise returns, for every point, the number of other
// points strictly closer than radius.
func CountNeighborsPairwise(points []Vec3, radius float64) ([]int, error) {
	if err := checkRadius(radius); err != nil {
		return nil, err
	}
	r2 := radius * radius
	counts := make([]int, len(points))
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if points[i].SquaredDistanceTo(points[j]) < r2 {
				counts[i]++
				counts[j]++
			}
		}
	}
	return counts, nil
}

// CountNeighborsIndexed gives the same result as CountNeighborsPairwise
// using a k-d tree. The tree is fully built before workers start querying
// it and is never modified afterwards. workers <= 0 uses GOMAXPROCS.
func CountNeighborsIndexed(ctx context.Context, points []Vec3, radius float64, workers int) ([]int, error) {
	if err := checkRadius(radius); err != nil {
		return nil, err
	}
	counts := make([]int, len(points))
	if len(points) == 0 {
		return counts, nil
	}

	pts := make(kdtree.Points, len(points))
	for i, p := range points {
		pts[i] = kdtree.Point{p.X, p.Y, p.Z}
	}
	// kdtree.New reorders pts; queries use points, which keeps record order.
	tree := kdtree.New(pts, false)

	r2 := radius * radius
	// The search keeps anything within a slightly larger ball so that
	// pruning never drops a point the exact comparison below would accept.
	search := r2 * (1 + 1e-9)

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(points) {
		workers = len(points)
	}
	chunk := (len(points) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(points); start += chunk {
		end := start + chunk
		if end > len(points) {
			end = len(points)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				q := points[i]
				keep := kdtree.NewDistKeeper(search)
				tree.NearestSet(keep, kdtree.Point{q.X, q.Y, q.Z})
				n := 0
				for _, found := range keep.Heap {
					p, ok := found.Comparable.(kdtree.Point)
					if !ok {
						continue
					}
					if q.SquaredDistanceTo(Vec3{X: p[0], Y: p[1], Z: p[2]}) < r2 {
						n++
					}
				}
				// The query point always finds itself.
				counts[i] = n - 1
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// NeighborCounter counts, for every record, the other records within
// Radius of its (x, y, z) position. Records with a missing coordinate are
// excluded from every count and receive a masked count.
type NeighborCounter struct {
	Radius   float64
	Strategy NeighborStrategy
	Workers  int
	// OnQueries, when set, is told how many range queries ran.
	OnQueries func(strategy NeighborStrategy, queries int)
}

// Name identifies the stage in logs and metrics.
func (c NeighborCounter) Name() string { return "neighbors" }

// Apply implements the pipeline stage contract.
func (c NeighborCounter) Apply(ctx context.Context, view catalog.View) (catalog.ColumnSet, error) {
	if err := checkRadius(c.Radius); err != nil {
		return nil, err
	}
	xs, xMeta, err := requireFloats(view, ColX, "cartesian x")
	if err != nil {
		return nil, err
	}
	ys, _, err := requireFloats(view, ColY, "cartesian y")
	if err != nil {
		return nil, err
	}
	zs, _, err := requireFloats(view, ColZ, "cartesian z")
	if err != nil {
		return nil, err
	}

	n := view.Len()
	points := make([]Vec3, 0, n)
	rows := make([]int, 0, n)
	for i := 0; i < n; i++ {
		x, okX := xs.At(i)
		y, okY := ys.At(i)
		z, okZ := zs.At(i)
		if okX && okY && okZ {
			points = append(points, Vec3{X: x, Y: y, Z: z})
			rows = append(rows, i)
		}
	}

	var counts []int
	switch c.Strategy {
	case NeighborsPairwise:
		counts, err = CountNeighborsPairwise(points, c.Radius)
	case NeighborsIndexed:
		counts, err = CountNeighborsIndexed(ctx, points, c.Radius, c.Workers)
	default:
		return nil, fmt.Errorf("%w: neighbor strategy %d", ErrInvalidSelection, c.Strategy)
	}
	if err != nil {
		return nil, err
	}
	if c.OnQueries != nil {
		c.OnQueries(c.Strategy, len(points))
	}

	out := catalog.MakeInts(n)
	for k, row := range rows {
		out.Set(row, int64(counts[k]))
	}
	return catalog.ColumnSet{
		catalog.NewIntColumn(ColNNear, catalog.Meta{
			Unit:        units.None,
			UCD:         "meta.number",
			Description: fmt.Sprintf("Number of objects in the table within %s %s", strconv.FormatFloat(c.Radius, 'g', -1, 64), unitWord(xMeta.Unit)),
		}, out),
	}, nil
}
