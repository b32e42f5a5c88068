package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/core"
	"github.com/signalsfoundry/starcat/internal/logging"
	"github.com/signalsfoundry/starcat/internal/observability"
	"github.com/signalsfoundry/starcat/units"
)

func starCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	deg := catalog.Meta{Unit: units.Degree}
	cat, err := catalog.FromColumns(
		catalog.NewFloatColumn("RAdeg", deg, catalog.FloatsOf(0, 0, 0)),
		catalog.NewFloatColumn("DEdeg", deg, catalog.FloatsOf(0, 0, 0)),
		catalog.NewFloatColumn("Plx", catalog.Meta{Unit: units.Milliarcsecond}, catalog.FloatsOf(100, 100, 40)),
	)
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	return cat
}

func coreStages() []Stage {
	return []Stage{
		core.DefaultDistanceOptions(),
		core.FrameTransformer{Options: core.DefaultFrameOptions()},
		core.NeighborCounter{Radius: core.DefaultNeighborRadius, Strategy: core.NeighborsIndexed},
	}
}

func TestRunAppliesStagesInOrder(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}
	cat := starCatalog(t)

	p := New(coreStages(), WithMetrics(collector))
	report, err := p.Run(context.Background(), cat)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.RunID == "" {
		t.Fatalf("expected a run id")
	}
	if report.Records != 3 {
		t.Fatalf("Records = %d, want 3", report.Records)
	}
	wantStages := []string{"distance/parallax", "frame", "neighbors"}
	if len(report.Stages) != len(wantStages) {
		t.Fatalf("got %d stage reports, want %d", len(report.Stages), len(wantStages))
	}
	for i, s := range report.Stages {
		if s.Name != wantStages[i] {
			t.Fatalf("stage %d = %q, want %q", i, s.Name, wantStages[i])
		}
	}
	wantCols := "dist_pc,dist_ly,dist_method,x,y,z,N_near"
	if got := strings.Join(report.Columns(), ","); got != wantCols {
		t.Fatalf("columns = %s, want %s", got, wantCols)
	}

	counts, _, err := cat.Ints(core.ColNNear)
	if err != nil {
		t.Fatalf("Ints(N_near): %v", err)
	}
	want := []int64{1, 1, 0}
	for i, w := range want {
		if counts.Values[i] != w || !counts.Valid[i] {
			t.Fatalf("N_near[%d] = %d (valid=%v), want %d", i, counts.Values[i], counts.Valid[i], w)
		}
	}

	if got := testutil.ToFloat64(collector.StageRuns.WithLabelValues("neighbors", observability.ResultOK)); got != 1 {
		t.Fatalf("neighbors runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.CatalogColumns); got != 10 {
		t.Fatalf("catalog columns gauge = %v, want 10", got)
	}
	if got := testutil.ToFloat64(collector.CatalogRecords); got != 3 {
		t.Fatalf("catalog records gauge = %v, want 3", got)
	}
}

type fixedStage struct {
	name string
	cols []string
	err  error
}

func (s fixedStage) Name() string { return s.name }

func (s fixedStage) Apply(_ context.Context, view catalog.View) (catalog.ColumnSet, error) {
	if s.err != nil {
		return nil, s.err
	}
	set := make(catalog.ColumnSet, 0, len(s.cols))
	for _, name := range s.cols {
		f := catalog.MakeFloats(view.Len())
		set = append(set, catalog.NewFloatColumn(name, catalog.Meta{Unit: units.None}, f))
	}
	return set, nil
}

func TestRunRejectsSecondWriteInOneRun(t *testing.T) {
	cat := starCatalog(t)
	p := New([]Stage{
		fixedStage{name: "first", cols: []string{"a", "b"}},
		fixedStage{name: "second", cols: []string{"c", "a"}},
	})

	report, err := p.Run(context.Background(), cat)
	if !errors.Is(err, core.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
	if len(report.Stages) != 1 || report.Stages[0].Name != "first" {
		t.Fatalf("expected only the first stage to complete, got %+v", report.Stages)
	}
	if cat.Has("c") {
		t.Fatalf("failed stage must not append any column")
	}
}

func TestRunAllowsRewriteAcrossRuns(t *testing.T) {
	cat := starCatalog(t)
	p := New([]Stage{fixedStage{name: "only", cols: []string{"a"}}})

	for i := 0; i < 2; i++ {
		if _, err := p.Run(context.Background(), cat); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if cat.NumColumns() != 4 {
		t.Fatalf("NumColumns = %d, want 4", cat.NumColumns())
	}
}

func TestRunStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	reg := prometheus.NewRegistry()
	collector, err := observability.NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}
	cat := starCatalog(t)
	p := New([]Stage{
		fixedStage{name: "bad", err: boom},
		fixedStage{name: "never", cols: []string{"z"}},
	}, WithMetrics(collector))

	_, err = p.Run(context.Background(), cat)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if !strings.Contains(err.Error(), "stage bad") {
		t.Fatalf("error should name the stage: %v", err)
	}
	if cat.Has("z") {
		t.Fatalf("later stages must not run")
	}
	if got := testutil.ToFloat64(collector.StageRuns.WithLabelValues("bad", observability.ResultError)); got != 1 {
		t.Fatalf("error runs = %v, want 1", got)
	}
}

func TestRunMissingInput(t *testing.T) {
	cat, err := catalog.FromColumns(catalog.NewFloatColumn("mag", catalog.Meta{}, catalog.FloatsOf(1)))
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	_, err = New(coreStages()).Run(context.Background(), cat)
	if !errors.Is(err, core.ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(coreStages()).Run(ctx, starCatalog(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunWithoutStages(t *testing.T) {
	if _, err := New(nil).Run(context.Background(), starCatalog(t)); !errors.Is(err, ErrNoStages) {
		t.Fatalf("expected ErrNoStages, got %v", err)
	}
}

func TestRunLogsRunID(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Config{Level: "debug", Format: "json", Output: &buf})

	ctx := logging.ContextWithRunID(context.Background(), "run-42")
	report, err := New(coreStages(), WithLogger(log)).Run(ctx, starCatalog(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RunID != "run-42" {
		t.Fatalf("RunID = %q, want run-42", report.RunID)
	}
	out := buf.String()
	for _, want := range []string{`"run_id":"run-42"`, `"msg":"stage finished"`, `"stage":"neighbors"`, `"msg":"catalog columns appended"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %s:\n%s", want, out)
		}
	}
}
