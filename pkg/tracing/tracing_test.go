package tracing

import (
	"context"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestEnabled(t *testing.T) {
	tests := []struct {
		env       string
		defaultOn bool
		want      bool
	}{
		{"", true, true},
		{"", false, false},
		{"false", true, false},
		{"TRUE", false, true},
		{"0", true, false},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Setenv("TRACING_ENABLED", tt.env)
		if got := Enabled(tt.defaultOn); got != tt.want {
			t.Fatalf("TRACING_ENABLED=%q default=%v: expected %v", tt.env, tt.defaultOn, tt.want)
		}
	}
}

func TestInitTracerDisabled(t *testing.T) {
	tp, tracer, err := InitTracer(context.Background(), "marketpulse-test", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil || tracer == nil {
		t.Fatal("expected tracer provider")
	}
}

func TestInitTracerEnabledWithStubExporter(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	orig := newTraceExporter
	defer func() { newTraceExporter = orig }()

	stub := &stubExporter{}
	newTraceExporter = func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
		stub.endpoint = endpoint
		return stub, nil
	}

	tp, tracer, err := InitTracer(context.Background(), "marketpulse-test", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tracer == nil {
		t.Fatal("expected tracer")
	}
	if stub.endpoint != "collector:4317" {
		t.Fatalf("expected endpoint to be propagated, got %s", stub.endpoint)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInitTracerDefaultEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	orig := newTraceExporter
	defer func() { newTraceExporter = orig }()

	var endpoint string
	newTraceExporter = func(ctx context.Context, e string) (sdktrace.SpanExporter, error) {
		endpoint = e
		return &stubExporter{}, nil
	}

	tp, _, err := InitTracer(context.Background(), "marketpulse-test", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tp.Shutdown(context.Background())
	if endpoint != DefaultEndpoint {
		t.Fatalf("expected default endpoint, got %s", endpoint)
	}
}

type stubExporter struct {
	endpoint string
}

func (s *stubExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return nil
}

func (s *stubExporter) Shutdown(ctx context.Context) error {
	return nil
}
