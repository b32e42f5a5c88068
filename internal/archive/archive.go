// Package archive cross-matches a catalog against Bailer-Jones distance
// estimates for a Gaia data release, keyed by Gaia source_id.
package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/core"
	"github.com/signalsfoundry/starcat/model"
	"github.com/signalsfoundry/starcat/units"
)

// Gaia astrometry column names emitted when motion is requested.
const (
	ColPMRA           = "pmra"
	ColPMDec          = "pmdec"
	ColRadialVelocity = "radial_velocity"
)

// Row is one source's Bailer-Jones estimates plus its Gaia motion. Missing
// motion components are NaN.
type Row struct {
	SourceID       int64
	Geo            core.BJEstimate
	Photogeo       core.BJEstimate
	PMRA           float64
	PMDec          float64
	RadialVelocity float64
}

// Archive looks up Bailer-Jones estimates by source_id. Sources the archive
// does not know are absent from the returned map.
type Archive interface {
	BailerJones(ctx context.Context, ids []int64, release model.GaiaRelease) (map[int64]Row, error)
}

// CrossMatch is a pipeline stage that fetches Bailer-Jones estimates for
// every source_id in the catalog and resolves distances from them.
type CrossMatch struct {
	Archive        Archive
	Release        model.GaiaRelease
	SourceIDColumn string
	// Motion also emits pmra, pmdec and radial_velocity for columns the
	// catalog does not already carry.
	Motion bool
}

// Name identifies the stage in logs and metrics.
func (c CrossMatch) Name() string {
	return "crossmatch/" + strings.ToLower(c.Release.String())
}

// Apply implements the pipeline stage contract.
func (c CrossMatch) Apply(ctx context.Context, view catalog.View) (catalog.ColumnSet, error) {
	if c.Release == model.ReleaseUnknown {
		return nil, fmt.Errorf("%w: release must be DR2, EDR3, or DR3", core.ErrInvalidSelection)
	}
	if c.Archive == nil {
		return nil, fmt.Errorf("%w: no archive configured", core.ErrInvalidSelection)
	}
	if c.SourceIDColumn == "" || !view.Has(c.SourceIDColumn) {
		return nil, fmt.Errorf("%w: source id column %q not found", core.ErrMissingInput, c.SourceIDColumn)
	}
	ids, _, err := view.Ints(c.SourceIDColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: source id column %q: %v", core.ErrInvalidSelection, c.SourceIDColumn, err)
	}

	query := make([]int64, 0, ids.Len())
	for i := range ids.Values {
		if id, ok := ids.At(i); ok {
			query = append(query, id)
		}
	}
	rows, err := c.Archive.BailerJones(ctx, query, c.Release)
	if err != nil {
		return nil, fmt.Errorf("bailer-jones %s lookup: %w", c.Release, err)
	}

	matched, err := c.matchedCatalog(ids, rows)
	if err != nil {
		return nil, err
	}
	bj := core.BailerJonesDistance{Columns: core.BailerJonesColumnsFor(c.Release)}
	set, err := bj.Resolve(matched)
	if err != nil {
		return nil, err
	}
	if c.Motion {
		for _, col := range motionColumns(ids, rows) {
			if !view.Has(col.Name) {
				set = append(set, col)
			}
		}
	}
	return set, nil
}

// matchedCatalog lays the fetched estimates out in catalog order under the
// release's column names.
func (c CrossMatch) matchedCatalog(ids catalog.Ints, rows map[int64]Row) (*catalog.Catalog, error) {
	names := core.BailerJonesColumnsFor(c.Release)
	n := ids.Len()
	geo := [3]catalog.Floats{catalog.MakeFloats(n), catalog.MakeFloats(n), catalog.MakeFloats(n)}
	photo := [3]catalog.Floats{catalog.MakeFloats(n), catalog.MakeFloats(n), catalog.MakeFloats(n)}
	for i := 0; i < n; i++ {
		id, ok := ids.At(i)
		if !ok {
			continue
		}
		row, ok := rows[id]
		if !ok {
			continue
		}
		setEstimate(geo, i, row.Geo)
		setEstimate(photo, i, row.Photogeo)
	}

	pc := catalog.Meta{Unit: units.Parsec, UCD: "pos.distance"}
	cols := catalog.ColumnSet{
		catalog.NewFloatColumn(names.Geo, pc, geo[0]),
		catalog.NewFloatColumn(names.GeoLo, pc, geo[1]),
		catalog.NewFloatColumn(names.GeoHi, pc, geo[2]),
	}
	if c.Release.HasPhotogeometric() {
		cols = append(cols,
			catalog.NewFloatColumn(names.Photogeo, pc, photo[0]),
			catalog.NewFloatColumn(names.PhotogeoLo, pc, photo[1]),
			catalog.NewFloatColumn(names.PhotogeoHi, pc, photo[2]),
		)
	}
	cat := catalog.New(n)
	if err := cat.Append(cols); err != nil {
		return nil, err
	}
	return cat, nil
}

// setEstimate stores each value on its own; Set masks the NaN ones.
func setEstimate(dst [3]catalog.Floats, i int, e core.BJEstimate) {
	dst[0].Set(i, e.Median)
	dst[1].Set(i, e.Lo)
	dst[2].Set(i, e.Hi)
}

func motionColumns(ids catalog.Ints, rows map[int64]Row) catalog.ColumnSet {
	n := ids.Len()
	pmra, pmdec, rv := catalog.MakeFloats(n), catalog.MakeFloats(n), catalog.MakeFloats(n)
	for i := 0; i < n; i++ {
		id, ok := ids.At(i)
		if !ok {
			continue
		}
		if row, ok := rows[id]; ok {
			pmra.Set(i, row.PMRA)
			pmdec.Set(i, row.PMDec)
			rv.Set(i, row.RadialVelocity)
		}
	}
	return catalog.ColumnSet{
		catalog.NewFloatColumn(ColPMRA, catalog.Meta{
			Unit:        units.MasPerYear,
			UCD:         "pos.pm;pos.eq.ra",
			Description: "Proper motion in right ascension times cos(dec)",
			Format:      "{:.6f}",
		}, pmra),
		catalog.NewFloatColumn(ColPMDec, catalog.Meta{
			Unit:        units.MasPerYear,
			UCD:         "pos.pm;pos.eq.dec",
			Description: "Proper motion in declination",
			Format:      "{:.6f}",
		}, pmdec),
		catalog.NewFloatColumn(ColRadialVelocity, catalog.Meta{
			Unit:        units.KilometrePerSecond,
			UCD:         "spect.dopplerVeloc.opt",
			Description: "Radial velocity",
			Format:      "{:.6f}",
		}, rv),
	}
}
