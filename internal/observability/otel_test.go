package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/seismolab/go-quake-backend/internal/config"
)

func preserveOTelGlobals(t *testing.T) func() {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	return func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	}
}

func TestSetupOTel_Disabled_NoOp(t *testing.T) {
	restore := preserveOTelGlobals(t)
	defer restore()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{
		Enabled:     false,
		Endpoint:    "ignored:4317",
		ServiceName: "svc",
		SampleRatio: 1.0,
	}, "v0.0.0")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected non-nil shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned error: %v", err)
	}
}

func TestSetupOTel_Insecure_SetsProvider(t *testing.T) {
	restore := preserveOTelGlobals(t)
	defer restore()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: "svc-insecure",
		SampleRatio: 1.0,
	}, "v1.2.3")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("expected *sdktrace.TracerProvider")
	}
}

func TestSetupOTel_SecureTLS_SetsProvider(t *testing.T) {
	restore := preserveOTelGlobals(t)
	defer restore()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{
		Enabled:     true,
		Insecure:    false,
		Endpoint:    "localhost:4317",
		ServiceName: "svc-tls",
		SampleRatio: 0.5,
	}, "v9.9.9")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("expected *sdktrace.TracerProvider")
	}
}

func TestSetupOTel_ExporterError_Propagates_AndGlobalsIntact(t *testing.T) {
	restore := preserveOTelGlobals(t)
	defer restore()

	orig := newOTLPExporterFn
	defer func() { newOTLPExporterFn = orig }()
	newOTLPExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return nil, errors.New("boom-exporter")
	}

	prevTP := otel.GetTracerProvider()

	_, err := SetupOTel(context.Background(), config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: "svc",
		SampleRatio: 1.0,
	}, "v0")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if otel.GetTracerProvider() != prevTP {
		t.Fatal("tracer provider changed on failure")
	}
}

func TestShutdown_IsCallable(t *testing.T) {
	restore := preserveOTelGlobals(t)
	defer restore()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: "svc-shutdown",
		SampleRatio: 1.0,
	}, "v1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	ct, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if err := shutdown(ct); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}
