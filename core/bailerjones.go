package core

import (
	"context"
	"math"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/model"
	"github.com/signalsfoundry/starcat/units"
)

// PhotogeoThresholdPc is the geometric distance beyond which a present
// photogeometric estimate is preferred.
const PhotogeoThresholdPc = 500.0

// BJEstimate is one Bailer-Jones distance estimate in parsecs. Missing
// values are NaN.
type BJEstimate struct {
	Median float64
	Lo     float64
	Hi     float64
}

// MissingBJEstimate is an estimate with no values.
func MissingBJEstimate() BJEstimate {
	return BJEstimate{Median: math.NaN(), Lo: math.NaN(), Hi: math.NaN()}
}

// Present reports whether the median distance is available.
func (e BJEstimate) Present() bool { return !math.IsNaN(e.Median) }

// HalfInterval is (Hi - Lo) / 2, NaN when either bound is missing.
func (e BJEstimate) HalfInterval() float64 { return (e.Hi - e.Lo) / 2 }

// ChooseBailerJones applies the photogeometric-versus-geometric decision:
// photogeo wins only when it is present and the geometric median exceeds
// PhotogeoThresholdPc. Local and remote cross-matches both call this.
func ChooseBailerJones(geo, photogeo BJEstimate) (BJEstimate, model.DistanceMethod) {
	if photogeo.Present() && geo.Median > PhotogeoThresholdPc {
		return photogeo, model.DistanceBailerJonesPhotogeo
	}
	return geo, model.DistanceBailerJonesGeometric
}

// BailerJonesColumns names the estimate columns of a cross-matched table.
// Photogeometric columns are optional; without them every record uses the
// geometric estimate.
type BailerJonesColumns struct {
	Geo        string
	GeoLo      string
	GeoHi      string
	Photogeo   string
	PhotogeoLo string
	PhotogeoHi string
}

// BailerJonesColumnsFor returns the archive column names of a release.
func BailerJonesColumnsFor(release model.GaiaRelease) BailerJonesColumns {
	if release == model.ReleaseDR2 {
		return BailerJonesColumns{Geo: "r_est", GeoLo: "r_lo", GeoHi: "r_hi"}
	}
	return BailerJonesColumns{
		Geo:        "r_med_geo",
		GeoLo:      "r_lo_geo",
		GeoHi:      "r_hi_geo",
		Photogeo:   "r_med_photogeo",
		PhotogeoLo: "r_lo_photogeo",
		PhotogeoHi: "r_hi_photogeo",
	}
}

// BailerJonesDistance selects a distance per record from Bailer-Jones
// estimates. It emits dcalc, bj_distance, e_bj_dist and
// bj_error_over_distance, and dist_pc/dist_ly/dist_method when used as a
// DistanceStrategy.
type BailerJonesDistance struct {
	Columns BailerJonesColumns
}

func (b BailerJonesDistance) Name() string { return "bailer-jones" }

// Apply emits only the cross-match columns.
func (b BailerJonesDistance) Apply(_ context.Context, view catalog.View) (catalog.ColumnSet, error) {
	set, _, _, err := b.crossMatch(view)
	return set, err
}

// Resolve emits the cross-match columns followed by the distance columns
// derived from bj_distance.
func (b BailerJonesDistance) Resolve(view catalog.View) (catalog.ColumnSet, error) {
	set, dist, methods, err := b.crossMatch(view)
	if err != nil {
		return nil, err
	}
	distSet, err := distanceColumnsBy(dist, func(i int) model.DistanceMethod { return methods[i] })
	if err != nil {
		return nil, err
	}
	return append(set, distSet...), nil
}

func (b BailerJonesDistance) crossMatch(view catalog.View) (catalog.ColumnSet, catalog.Floats, []model.DistanceMethod, error) {
	c := b.Columns
	geo, err := readEstimates(view, c.Geo, c.GeoLo, c.GeoHi, true)
	if err != nil {
		return nil, catalog.Floats{}, nil, err
	}
	photogeo, err := readEstimates(view, c.Photogeo, c.PhotogeoLo, c.PhotogeoHi, false)
	if err != nil {
		return nil, catalog.Floats{}, nil, err
	}

	n := view.Len()
	dcalc := catalog.MakeInts(n)
	dist := catalog.MakeFloats(n)
	errs := catalog.MakeFloats(n)
	ratio := catalog.MakeFloats(n)
	methods := make([]model.DistanceMethod, n)
	for i := 0; i < n; i++ {
		chosen, method := ChooseBailerJones(geo[i], photogeo[i])
		methods[i] = method
		dcalc.Set(i, int64(method))
		dist.Set(i, chosen.Median)
		e := chosen.HalfInterval()
		errs.Set(i, e)
		ratio.Set(i, e/chosen.Median)
	}

	set := catalog.ColumnSet{
		catalog.NewIntColumn(ColDCalc, catalog.Meta{
			Unit:        units.None,
			UCD:         "meta.dcalc",
			Description: "Distance Indicator: 1 indicates a Bailer-Jones photogeometric distance; 2 indicates a Bailer-Jones geometric distance",
		}, dcalc),
		catalog.NewFloatColumn(ColBJDistance, catalog.Meta{
			Unit:        units.Parsec,
			UCD:         "pos.distance",
			Description: "Bailer-Jones distance from Sun (pc)",
			Format:      "{:.6f}",
		}, dist),
		catalog.NewFloatColumn(ColBJError, catalog.Meta{
			Unit:        units.Parsec,
			UCD:         "stat.error;pos.distance",
			Description: "Half width of the Bailer-Jones distance interval (pc)",
			Format:      "{:.6f}",
		}, errs),
		catalog.NewFloatColumn(ColBJErrorOverDist, catalog.Meta{
			Unit:        units.None,
			UCD:         "stat.error",
			Description: "Bailer-Jones distance error over distance",
			Format:      "{:.6f}",
		}, ratio),
	}
	return set, dist, methods, nil
}

// readEstimates loads median/lo/hi columns as parsecs. When required is
// false and the median column is absent, every estimate is missing.
func readEstimates(view catalog.View, median, lo, hi string, required bool) ([]BJEstimate, error) {
	n := view.Len()
	out := make([]BJEstimate, n)
	for i := range out {
		out[i] = MissingBJEstimate()
	}
	if !required && (median == "" || !view.Has(median)) {
		return out, nil
	}

	med, err := estimateColumn(view, median)
	if err != nil {
		return nil, err
	}
	lower, err := estimateColumn(view, lo)
	if err != nil {
		return nil, err
	}
	upper, err := estimateColumn(view, hi)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		if v, ok := med.At(i); ok {
			out[i].Median = v
		}
		if v, ok := lower.At(i); ok {
			out[i].Lo = v
		}
		if v, ok := upper.At(i); ok {
			out[i].Hi = v
		}
	}
	return out, nil
}

func estimateColumn(view catalog.View, name string) (catalog.Floats, error) {
	f, meta, err := requireFloats(view, name, "Bailer-Jones estimate")
	if err != nil {
		return catalog.Floats{}, err
	}
	return inUnit(f, meta, units.Parsec, true, name)
}
