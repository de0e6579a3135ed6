package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/signalsfoundry/starlinker/internal/logging"
)

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("MESH_TRACING_ENABLED", "TRUE")
	t.Setenv("MESH_TRACING_EXPORTER", "OTLP")
	t.Setenv("MESH_TRACING_SERVICE_NAME", "")
	t.Setenv("MESH_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("MESH_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv("daemon")
	if !cfg.Enabled || cfg.Exporter != ExporterOTLP || cfg.ServiceName != "daemon" || cfg.Component != "daemon" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("MESH_TRACING_SAMPLE_RATIO", "7")
	t.Setenv("MESH_TRACING_EXPORTER", "")
	t.Setenv("MESH_TRACING_SERVICE_NAME", "edge-1")
	cfg = TracingConfigFromEnv("cli")
	if cfg.SampleRatio != 1 || cfg.Exporter != ExporterStdout || cfg.ServiceName != "edge-1" {
		t.Fatalf("cfg = %+v, want ratio 1, stdout exporter, edge-1", cfg)
	}
}

func TestInitTracing_StdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{
		Enabled:     true,
		ServiceName: "test",
		Component:   "cli",
		Exporter:    ExporterStdout,
		SampleRatio: 1,
		Output:      &buf,
	}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := Tracer().Start(ctx, "topology.build")
	span.SetAttributes(AttrNodes.Int(6))
	span.End()
	ShutdownWithTimeout(ctx, shutdown, logging.Noop())

	out := buf.String()
	for _, want := range []string{"topology.build", string(AttrNodes), string(AttrComponent), "starlinker"} {
		if !strings.Contains(out, want) {
			t.Fatalf("exported span missing %q:\n%s", want, out)
		}
	}
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}
