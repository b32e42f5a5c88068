package observability

import (
	"context"
	"testing"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
	if span.SpanContext().IsValid() {
		t.Fatalf("disabled tracing should produce noop spans")
	}
	ShutdownWithTimeout(context.Background(), shutdown, nil)
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin", SampleRatio: 1}, nil); err == nil {
		t.Fatalf("expected an error for an unknown exporter")
	}
}

func TestInitTracingStdoutRecordsSpans(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "stdout", ServiceName: "starcat", SampleRatio: 1}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	defer InitTracing(context.Background(), TracingConfig{}, nil)

	_, span := Tracer().Start(context.Background(), "stage distance/parallax")
	span.End()
	if !span.SpanContext().IsValid() || !span.SpanContext().IsSampled() {
		t.Fatalf("expected a sampled span, got %+v", span.SpanContext())
	}
	ShutdownWithTimeout(context.Background(), shutdown, nil)
}
