package archive

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/signalsfoundry/starcat/core"
	"github.com/signalsfoundry/starcat/internal/logging"
	"github.com/signalsfoundry/starcat/model"
)

// lookupBatch bounds the number of bound parameters per IN query.
const lookupBatch = 500

// schema mirrors the subset of the Gaia archive tables the cross-match
// reads. DR3 shares the EDR3 Bailer-Jones table.
const schema = `
CREATE TABLE IF NOT EXISTS gaia_source (
    source_id       INTEGER PRIMARY KEY,
    ra              REAL,
    dec             REAL,
    parallax        REAL,
    pmra            REAL,
    pmdec           REAL,
    radial_velocity REAL
);

CREATE TABLE IF NOT EXISTS bj_distance_edr3 (
    source_id      INTEGER PRIMARY KEY,
    r_med_geo      REAL,
    r_lo_geo       REAL,
    r_hi_geo       REAL,
    r_med_photogeo REAL,
    r_lo_photogeo  REAL,
    r_hi_photogeo  REAL
);

CREATE TABLE IF NOT EXISTS bj_distance_dr2 (
    source_id INTEGER PRIMARY KEY,
    r_est     REAL,
    r_lo      REAL,
    r_hi      REAL
);
`

// Source is one gaia_source row. Missing values are NaN.
type Source struct {
	SourceID       int64
	RA             float64
	Dec            float64
	Parallax       float64
	PMRA           float64
	PMDec          float64
	RadialVelocity float64
}

// SQLite is an offline Archive backed by a local mirror of the Gaia tables.
type SQLite struct {
	db  *sql.DB
	log logging.Logger
}

// Open opens (or creates) the mirror at path and creates missing tables.
func Open(ctx context.Context, path string, log logging.Logger) (*SQLite, error) {
	if log == nil {
		log = logging.Noop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: create schema: %w", err)
	}
	return &SQLite{db: db, log: log}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// BailerJones implements Archive. Motion comes from gaia_source when the
// source is present there.
func (s *SQLite) BailerJones(ctx context.Context, ids []int64, release model.GaiaRelease) (map[int64]Row, error) {
	table, cols, err := bjTable(release)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Row, len(ids))
	for start := 0; start < len(ids); start += lookupBatch {
		end := min(start+lookupBatch, len(ids))
		if err := s.lookup(ctx, table, cols, release, ids[start:end], out); err != nil {
			return nil, err
		}
	}
	s.log.Debug(ctx, "bailer-jones lookup",
		logging.String("release", release.String()),
		logging.Int("requested", len(ids)),
		logging.Int("matched", len(out)),
	)
	return out, nil
}

func (s *SQLite) lookup(ctx context.Context, table string, cols []string, release model.GaiaRelease, ids []int64, out map[int64]Row) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	q := fmt.Sprintf(`
		SELECT b.source_id, b.%s, g.pmra, g.pmdec, g.radial_velocity
		FROM %s b LEFT JOIN gaia_source g ON g.source_id = b.source_id
		WHERE b.source_id IN (%s)`,
		strings.Join(cols, ", b."), table, placeholders)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("archive: query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		est := make([]*float64, 6)
		var pmra, pmdec, rv *float64
		dest := []any{&id}
		for i := range cols {
			dest = append(dest, &est[i])
		}
		dest = append(dest, &pmra, &pmdec, &rv)
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("archive: scan %s: %w", table, err)
		}

		row := Row{
			SourceID:       id,
			Geo:            estimate(est[0], est[1], est[2]),
			Photogeo:       core.MissingBJEstimate(),
			PMRA:           nullFloat(pmra),
			PMDec:          nullFloat(pmdec),
			RadialVelocity: nullFloat(rv),
		}
		if release.HasPhotogeometric() {
			row.Photogeo = estimate(est[3], est[4], est[5])
		}
		out[id] = row
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("archive: iterate %s: %w", table, err)
	}
	return nil
}

// estimate keeps each bound even when the median is NULL, matching a
// local table read column by column.
func estimate(med, lo, hi *float64) core.BJEstimate {
	return core.BJEstimate{Median: nullFloat(med), Lo: nullFloat(lo), Hi: nullFloat(hi)}
}

// bjTable names the Bailer-Jones table and its estimate columns, geometric
// first, for release.
func bjTable(release model.GaiaRelease) (string, []string, error) {
	names := core.BailerJonesColumnsFor(release)
	switch release {
	case model.ReleaseDR2:
		return "bj_distance_dr2", []string{names.Geo, names.GeoLo, names.GeoHi}, nil
	case model.ReleaseEDR3, model.ReleaseDR3:
		return "bj_distance_edr3", []string{
			names.Geo, names.GeoLo, names.GeoHi,
			names.Photogeo, names.PhotogeoLo, names.PhotogeoHi,
		}, nil
	default:
		return "", nil, fmt.Errorf("%w: release must be DR2, EDR3, or DR3, got %s", core.ErrInvalidSelection, release)
	}
}

// PutSources upserts gaia_source rows in one transaction.
func (s *SQLite) PutSources(ctx context.Context, sources []Source) error {
	const q = `
		INSERT INTO gaia_source (source_id, ra, dec, parallax, pmra, pmdec, radial_velocity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			ra = excluded.ra, dec = excluded.dec, parallax = excluded.parallax,
			pmra = excluded.pmra, pmdec = excluded.pmdec,
			radial_velocity = excluded.radial_velocity`
	return s.putAll(ctx, q, len(sources), func(i int) []any {
		src := sources[i]
		return []any{src.SourceID, sqlFloat(src.RA), sqlFloat(src.Dec), sqlFloat(src.Parallax),
			sqlFloat(src.PMRA), sqlFloat(src.PMDec), sqlFloat(src.RadialVelocity)}
	})
}

// PutBailerJones upserts Bailer-Jones estimates for release. Photogeometric
// estimates are dropped for DR2.
func (s *SQLite) PutBailerJones(ctx context.Context, release model.GaiaRelease, rows []Row) error {
	table, cols, err := bjTable(release)
	if err != nil {
		return err
	}
	updates := make([]string, len(cols))
	for i, c := range cols {
		updates[i] = c + " = excluded." + c
	}
	q := fmt.Sprintf(`INSERT INTO %s (source_id, %s) VALUES (?%s)
		ON CONFLICT(source_id) DO UPDATE SET %s`,
		table, strings.Join(cols, ", "), strings.Repeat(", ?", len(cols)), strings.Join(updates, ", "))

	return s.putAll(ctx, q, len(rows), func(i int) []any {
		r := rows[i]
		args := []any{r.SourceID, sqlFloat(r.Geo.Median), sqlFloat(r.Geo.Lo), sqlFloat(r.Geo.Hi)}
		if len(cols) == 6 {
			args = append(args, sqlFloat(r.Photogeo.Median), sqlFloat(r.Photogeo.Lo), sqlFloat(r.Photogeo.Hi))
		}
		return args
	})
}

func (s *SQLite) putAll(ctx context.Context, q string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("archive: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("archive: upsert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive: commit: %w", err)
	}
	return nil
}

// sqlFloat stores NaN as NULL.
func sqlFloat(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// nullFloat maps NULL back to NaN.
func nullFloat(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
