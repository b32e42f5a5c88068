package main

import (
	"context"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/core"
	"github.com/signalsfoundry/starcat/internal/archive"
	"github.com/signalsfoundry/starcat/internal/config"
	"github.com/signalsfoundry/starcat/internal/pipeline"
	"github.com/signalsfoundry/starcat/internal/tableio"
	"github.com/signalsfoundry/starcat/model"
)

var crossmatchCmd = &cobra.Command{
	Use:   "crossmatch <input>",
	Short: "Attach Bailer-Jones distances from the local Gaia mirror",
	Args:  requireOneArg,
	RunE:  runCrossmatch,
}

var crossmatchImportCmd = &cobra.Command{
	Use:   "import <table>",
	Short: "Load Bailer-Jones estimates and Gaia motions into the local mirror",
	Args:  requireOneArg,
	RunE:  runCrossmatchImport,
}

func init() {
	for _, c := range []*cobra.Command{crossmatchCmd, crossmatchImportCmd} {
		c.Flags().String("release", "", "Gaia release: DR2, EDR3 or DR3")
		c.Flags().String("db", "", "path of the SQLite mirror")
		c.Flags().String("source-id", "", "source id column")
	}
	crossmatchCmd.Flags().StringP("output", "o", "", "output file (default <input>_augmented.<ext>)")
	crossmatchCmd.Flags().Bool("motion", false, "also attach pmra, pmdec and radial_velocity")

	crossmatchCmd.AddCommand(crossmatchImportCmd)
	rootCmd.AddCommand(crossmatchCmd)
}

func applyCrossmatchFlags(cmd *cobra.Command, cfg *config.Config) (model.GaiaRelease, error) {
	f := cmd.Flags()
	if v, _ := f.GetString("release"); v != "" {
		cfg.Crossmatch.Release = v
	}
	if v, _ := f.GetString("db"); v != "" {
		cfg.Crossmatch.Database = v
	}
	if v, _ := f.GetString("source-id"); v != "" {
		cfg.Crossmatch.SourceID = v
	}
	if f.Lookup("motion") != nil && f.Changed("motion") {
		cfg.Crossmatch.Motion, _ = f.GetBool("motion")
	}
	release, err := model.ParseGaiaRelease(cfg.Crossmatch.Release)
	if err != nil {
		return model.ReleaseUnknown, fmt.Errorf("%w: %v", core.ErrInvalidSelection, err)
	}
	return release, nil
}

func runCrossmatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	release, err := applyCrossmatchFlags(cmd, &cfg)
	if err != nil {
		return err
	}
	cfg.Input.Path = args[0]
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.Output.Path = v
	}
	if cfg.Output.Path == "" {
		cfg.Output.Path = defaultOutputPath(args[0])
	}

	log := newLogger(cmd, cfg)
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	db, err := archive.Open(ctx, cfg.Crossmatch.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	p := pipeline.New([]pipeline.Stage{archive.CrossMatch{
		Archive:        db,
		Release:        release,
		SourceIDColumn: cfg.Crossmatch.SourceID,
		Motion:         cfg.Crossmatch.Motion,
	}}, pipeline.WithLogger(log))
	return augment(ctx, cmd.OutOrStdout(), cfg, p)
}

func runCrossmatchImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	release, err := applyCrossmatchFlags(cmd, &cfg)
	if err != nil {
		return err
	}
	log := newLogger(cmd, cfg)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cat, err := tableio.Load(args[0], tableio.Options{})
	if err != nil {
		return fmt.Errorf("load %s: %w", args[0], err)
	}
	db, err := archive.Open(ctx, cfg.Crossmatch.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := importMirror(ctx, db, cat, release, cfg.Crossmatch.SourceID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d sources into %s (%s)\n", n, cfg.Crossmatch.Database, release)
	return nil
}

// importMirror stores the Bailer-Jones columns of release, and any Gaia
// astrometry columns, found in cat.
func importMirror(ctx context.Context, db *archive.SQLite, cat *catalog.Catalog, release model.GaiaRelease, idColumn string) (int, error) {
	if !cat.Has(idColumn) {
		return 0, fmt.Errorf("%w: source id column %q not found", core.ErrMissingInput, idColumn)
	}
	ids, _, err := cat.Ints(idColumn)
	if err != nil {
		return 0, err
	}

	names := core.BailerJonesColumnsFor(release)
	if !cat.Has(names.Geo) {
		return 0, fmt.Errorf("%w: %s estimates need column %q", core.ErrMissingInput, release, names.Geo)
	}
	read := func(name string) (catalog.Floats, error) {
		if name == "" || !cat.Has(name) {
			return catalog.MakeFloats(cat.Len()), nil
		}
		f, _, err := cat.Floats(name)
		return f, err
	}
	cols := []string{names.Geo, names.GeoLo, names.GeoHi, names.Photogeo, names.PhotogeoLo, names.PhotogeoHi,
		"ra", "dec", "parallax", archive.ColPMRA, archive.ColPMDec, archive.ColRadialVelocity}
	vals := make([]catalog.Floats, len(cols))
	hasAstrometry := false
	for i, name := range cols {
		if vals[i], err = read(name); err != nil {
			return 0, err
		}
		if i >= 6 && cat.Has(name) {
			hasAstrometry = true
		}
	}
	at := func(col, row int) float64 {
		if v, ok := vals[col].At(row); ok {
			return v
		}
		return math.NaN()
	}
	estimate := func(first, row int) core.BJEstimate {
		if _, ok := vals[first].At(row); !ok {
			return core.MissingBJEstimate()
		}
		return core.BJEstimate{Median: at(first, row), Lo: at(first+1, row), Hi: at(first+2, row)}
	}

	var rows []archive.Row
	var sources []archive.Source
	for i := 0; i < cat.Len(); i++ {
		id, ok := ids.At(i)
		if !ok {
			continue
		}
		rows = append(rows, archive.Row{SourceID: id, Geo: estimate(0, i), Photogeo: estimate(3, i)})
		sources = append(sources, archive.Source{
			SourceID: id, RA: at(6, i), Dec: at(7, i), Parallax: at(8, i),
			PMRA: at(9, i), PMDec: at(10, i), RadialVelocity: at(11, i),
		})
	}
	if err := db.PutBailerJones(ctx, release, rows); err != nil {
		return 0, err
	}
	if hasAstrometry {
		if err := db.PutSources(ctx, sources); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}
