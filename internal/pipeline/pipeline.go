// Package pipeline runs catalog augmentation stages in order against one
// catalog. Each stage reads a snapshot and returns the columns it derived;
// the pipeline appends them, so a failed stage leaves the catalog as the
// previous stage left it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/core"
	"github.com/signalsfoundry/starcat/internal/logging"
	"github.com/signalsfoundry/starcat/internal/observability"
)

// ErrNoStages is returned by Run when the pipeline has nothing to do.
var ErrNoStages = errors.New("pipeline has no stages")

// Stage derives new columns from a read-only view of the catalog.
type Stage interface {
	Name() string
	Apply(ctx context.Context, view catalog.View) (catalog.ColumnSet, error)
}

// MetricsRecorder receives per-stage timings and catalog sizes.
type MetricsRecorder interface {
	ObserveStage(stage string, d time.Duration, err error)
	SetCatalogCounts(records, columns int)
}

// StageReport summarises one completed stage.
type StageReport struct {
	Name     string
	Columns  []string
	Duration time.Duration
}

// Report summarises a run. On failure it lists the stages that completed.
type Report struct {
	RunID   string
	Records int
	Stages  []StageReport
}

// Columns lists every column written during the run, in write order.
func (r *Report) Columns() []string {
	var out []string
	for _, s := range r.Stages {
		out = append(out, s.Columns...)
	}
	return out
}

// Pipeline is an ordered list of stages plus their observers.
type Pipeline struct {
	stages  []Stage
	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
}

// Option customises Pipeline construction.
type Option func(*Pipeline)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithTracer overrides the tracer used for stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// New builds a pipeline that runs stages in the given order.
func New(stages []Stage, opts ...Option) *Pipeline {
	p := &Pipeline{
		stages: append([]Stage(nil), stages...),
		log:    logging.Noop(),
		tracer: observability.Tracer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stages returns the stage names in run order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run applies every stage to cat in order and stops at the first error.
// A column may be written once per run; a second write is an ErrSchema.
func (p *Pipeline) Run(ctx context.Context, cat *catalog.Catalog) (*Report, error) {
	if len(p.stages) == 0 {
		return nil, ErrNoStages
	}
	ctx, log := logging.WithRunLogger(ctx, p.log)
	ctx = logging.ContextWithLogger(ctx, log)

	report := &Report{RunID: logging.RunIDFromContext(ctx), Records: cat.Len()}
	unsubscribe := cat.Subscribe(func(ev catalog.Event) {
		log.Debug(ctx, "catalog columns appended",
			logging.Strings("columns", ev.Columns),
			logging.Int("total_columns", ev.Total),
		)
	})
	defer unsubscribe()

	log.Info(ctx, "pipeline started",
		logging.Int("records", cat.Len()),
		logging.Int("columns", cat.NumColumns()),
		logging.Strings("stages", p.Stages()),
	)
	start := time.Now()

	written := make(map[string]string)
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		sr, err := p.runStage(ctx, log, cat, stage, written)
		if err != nil {
			log.Error(ctx, "pipeline failed",
				logging.String("stage", stage.Name()),
				logging.Err(err),
			)
			return report, err
		}
		report.Stages = append(report.Stages, sr)
	}

	if p.metrics != nil {
		p.metrics.SetCatalogCounts(cat.Len(), cat.NumColumns())
	}
	log.Info(ctx, "pipeline finished",
		logging.Int("columns", cat.NumColumns()),
		logging.Float("seconds", time.Since(start).Seconds()),
	)
	return report, nil
}

func (p *Pipeline) runStage(ctx context.Context, log logging.Logger, cat *catalog.Catalog, stage Stage, written map[string]string) (StageReport, error) {
	name := stage.Name()
	ctx, span := p.tracer.Start(ctx, "stage "+name,
		trace.WithAttributes(
			attribute.String("starcat.stage", name),
			attribute.Int("starcat.records", cat.Len()),
		),
	)
	defer span.End()

	log = log.With(logging.String("stage", name))
	log.Debug(ctx, "stage started", logging.Int("columns", cat.NumColumns()))

	started := time.Now()
	set, err := stage.Apply(ctx, cat.Snapshot())
	if err == nil {
		err = checkRewrites(name, set, written)
	}
	if err == nil {
		err = cat.Append(set)
	}
	elapsed := time.Since(started)
	if p.metrics != nil {
		p.metrics.ObserveStage(name, elapsed, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return StageReport{}, fmt.Errorf("stage %s: %w", name, err)
	}

	names := set.Names()
	for _, col := range names {
		written[col] = name
	}
	span.SetAttributes(attribute.StringSlice("starcat.columns", names))
	log.Info(ctx, "stage finished",
		logging.Strings("new_columns", names),
		logging.Int("columns", cat.NumColumns()),
		logging.Float("seconds", elapsed.Seconds()),
	)
	return StageReport{Name: name, Columns: names, Duration: elapsed}, nil
}

// checkRewrites rejects a column an earlier stage of the same run wrote.
func checkRewrites(stage string, set catalog.ColumnSet, written map[string]string) error {
	for _, col := range set {
		if prev, ok := written[col.Name]; ok {
			return fmt.Errorf("%w: column %q was already written by stage %s in this run", core.ErrSchema, col.Name, prev)
		}
	}
	return nil
}
