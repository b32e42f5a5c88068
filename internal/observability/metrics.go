package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/starcat/internal/logging"
)

// Stage run results used as the "result" label.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// PipelineCollector bundles Prometheus metrics for catalog pipeline runs.
type PipelineCollector struct {
	gatherer prometheus.Gatherer

	StageDuration   *prometheus.HistogramVec
	StageRuns       *prometheus.CounterVec
	CatalogRecords  prometheus.Gauge
	CatalogColumns  prometheus.Gauge
	NeighborQueries *prometheus.CounterVec
}

// NewPipelineCollector registers pipeline metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewPipelineCollector(reg prometheus.Registerer) (*PipelineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "starcat_stage_duration_seconds",
		Help:    "Wall time of a pipeline stage in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 120},
	}, []string{"stage"})
	durations, err := registerHistogramVec(reg, durations, "starcat_stage_duration_seconds")
	if err != nil {
		return nil, err
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "starcat_stage_runs_total",
		Help: "Total number of pipeline stage runs, labeled by stage and result.",
	}, []string{"stage", "result"})
	runs, err = registerCounterVec(reg, runs, "starcat_stage_runs_total")
	if err != nil {
		return nil, err
	}

	records, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "starcat_catalog_records",
		Help: "Number of records in the catalog being processed.",
	}), "starcat_catalog_records")
	if err != nil {
		return nil, err
	}
	columns, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "starcat_catalog_columns",
		Help: "Number of columns in the catalog being processed.",
	}), "starcat_catalog_columns")
	if err != nil {
		return nil, err
	}

	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "starcat_neighbor_queries_total",
		Help: "Total number of neighbor range queries, labeled by strategy.",
	}, []string{"strategy"})
	queries, err = registerCounterVec(reg, queries, "starcat_neighbor_queries_total")
	if err != nil {
		return nil, err
	}

	return &PipelineCollector{
		gatherer:        gatherer,
		StageDuration:   durations,
		StageRuns:       runs,
		CatalogRecords:  records,
		CatalogColumns:  columns,
		NeighborQueries: queries,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *PipelineCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveStage records one stage run.
func (c *PipelineCollector) ObserveStage(stage string, d time.Duration, err error) {
	if c == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	if c.StageRuns != nil {
		c.StageRuns.WithLabelValues(stage, result).Inc()
	}
	if c.StageDuration != nil {
		c.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// SetCatalogCounts updates the catalog shape gauges.
func (c *PipelineCollector) SetCatalogCounts(records, columns int) {
	if c == nil {
		return
	}
	if c.CatalogRecords != nil {
		c.CatalogRecords.Set(float64(records))
	}
	if c.CatalogColumns != nil {
		c.CatalogColumns.Set(float64(columns))
	}
}

// AddNeighborQueries counts range queries issued by the neighbor counter.
func (c *PipelineCollector) AddNeighborQueries(strategy string, n int) {
	if c == nil || c.NeighborQueries == nil {
		return
	}
	c.NeighborQueries.WithLabelValues(strategy).Add(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PipelineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled. It returns once the
// listener is bound; serving continues in the background.
func (c *PipelineCollector) Serve(ctx context.Context, addr string, log logging.Logger) error {
	if log == nil {
		log = logging.Noop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "metrics server stopped", logging.Err(err))
		}
	}()

	log.Info(ctx, "serving metrics", logging.String("addr", ln.Addr().String()))
	return nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
