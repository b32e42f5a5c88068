package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/starcat/internal/archive"
	"github.com/signalsfoundry/starcat/internal/config"
	"github.com/signalsfoundry/starcat/internal/observability"
	"github.com/signalsfoundry/starcat/internal/pipeline"
	"github.com/signalsfoundry/starcat/internal/tableio"
	"github.com/signalsfoundry/starcat/model"
)

var runCmd = &cobra.Command{
	Use:   "run <input>",
	Short: "Run the augmentation pipeline on a catalog file",
	Args:  requireOneArg,
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringP("output", "o", "", "output file (default <input>_augmented.<ext>)")
	f.String("input-format", "", "input format: csv or parquet (default from extension)")
	f.String("output-format", "", "output format: csv or parquet (default from extension)")
	f.String("distance-method", "", "distance method: parallax, distance, photometric, redshift, bailer-jones")
	f.String("frame", "", "input frame: icrs or galactic")
	f.Float64("radius", 0, "neighbor radius in the distance unit")
	f.String("neighbor-strategy", "", "neighbor strategy: kdtree or pairwise")
	f.Bool("photometry", false, "derive absolute magnitude and luminosity")
	f.Bool("bj-local", false, "read Bailer-Jones estimates from the input's own columns")
	f.String("release", "", "Gaia release of the Bailer-Jones estimates: DR2, EDR3 or DR3")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address")
	f.Bool("watch", false, "re-run whenever the input file changes")

	rootCmd.AddCommand(runCmd)
}

// applyRunFlags applies explicitly set flags on top of the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, input string) {
	f := cmd.Flags()
	cfg.Input.Path = input
	if v, _ := f.GetString("input-format"); v != "" {
		cfg.Input.Format = v
	}
	if v, _ := f.GetString("output"); v != "" {
		cfg.Output.Path = v
	}
	if v, _ := f.GetString("output-format"); v != "" {
		cfg.Output.Format = v
	}
	if v, _ := f.GetString("distance-method"); v != "" {
		cfg.Distance.Method = v
	}
	if v, _ := f.GetString("frame"); v != "" {
		cfg.Frame.Frame = v
	}
	if f.Changed("radius") {
		cfg.Neighbors.Radius, _ = f.GetFloat64("radius")
	}
	if v, _ := f.GetString("neighbor-strategy"); v != "" {
		cfg.Neighbors.Strategy = v
	}
	if f.Changed("photometry") {
		cfg.Photometry.Enabled, _ = f.GetBool("photometry")
	}
	if f.Changed("bj-local") {
		cfg.Crossmatch.Local, _ = f.GetBool("bj-local")
	}
	if v, _ := f.GetString("release"); v != "" {
		cfg.Crossmatch.Release = v
	}
	if v, _ := f.GetString("metrics-addr"); v != "" {
		cfg.MetricsAddr = v
	}
	if cfg.Output.Path == "" {
		cfg.Output.Path = defaultOutputPath(input)
	}
}

func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_augmented" + ext
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, &cfg, args[0])
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(cmd, cfg)
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	shutdown, err := observability.InitTracing(ctx, tracingConfig(cfg), log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	collector, err := observability.NewPipelineCollector(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		if err := collector.Serve(ctx, cfg.MetricsAddr, log); err != nil {
			return err
		}
	}

	deps := pipeline.Deps{Collector: collector}
	if cfg.Distance.ParseMethodOrUnknown() == model.DistanceBailerJonesGeometric && !cfg.Crossmatch.Local {
		db, err := archive.Open(ctx, cfg.Crossmatch.Database, log)
		if err != nil {
			return err
		}
		defer db.Close()
		deps.Archive = db
	}

	stages, err := pipeline.Stages(cfg, deps)
	if err != nil {
		return err
	}
	p := pipeline.New(stages, pipeline.WithLogger(log), pipeline.WithMetrics(collector))

	runOnce := func() error {
		return augment(ctx, cmd.OutOrStdout(), cfg, p)
	}
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		return watchFile(ctx, cfg.Input.Path, log, runOnce)
	}
	return runOnce()
}

// augment loads the input catalog, runs p over it and saves the result.
func augment(ctx context.Context, out io.Writer, cfg config.Config, p *pipeline.Pipeline) error {
	overrides, err := cfg.UnitOverrides()
	if err != nil {
		return err
	}
	cat, err := tableio.Load(cfg.Input.Path, tableio.Options{Format: cfg.Input.Format, Units: overrides})
	if err != nil {
		return fmt.Errorf("load %s: %w", cfg.Input.Path, err)
	}

	report, err := p.Run(ctx, cat)
	if err != nil {
		return err
	}
	if err := tableio.Save(cfg.Output.Path, cfg.Output.Format, cat); err != nil {
		return fmt.Errorf("save %s: %w", cfg.Output.Path, err)
	}

	fmt.Fprintf(out, "%s: %d records, added %s -> %s\n",
		cfg.Input.Path, report.Records, strings.Join(report.Columns(), ", "), cfg.Output.Path)
	return nil
}
