package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, Options{Endpoint: endpoint, ServiceName: "casedesk"}, nil)
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Fatalf("NewProviders(%q) returned nil providers", endpoint)
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("shutdown should be a no-op, got %v", err)
		}
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"://invalid", "http://[invalid", "http://"} {
		t.Run(endpoint, func(t *testing.T) {
			if _, err := NewProviders(ctx, Options{Endpoint: endpoint}, zap.NewNop()); err == nil {
				t.Errorf("NewProviders(%q) should return error", endpoint)
			}
		})
	}
}

// Exporters dial lazily, so construction succeeds without a collector.
func TestNewProviders_WithEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"localhost:4317", "http://localhost:4317", "https://collector:4317/v1/traces"} {
		t.Run(endpoint, func(t *testing.T) {
			providers, err := NewProviders(ctx, Options{Endpoint: endpoint, ServiceName: "casedesk", Insecure: true}, zap.NewNop())
			if err != nil {
				t.Fatalf("NewProviders(%q): %v", endpoint, err)
			}
			shutdownCtx, cancel := context.WithCancel(ctx)
			cancel()
			_ = providers.Shutdown(shutdownCtx)
		})
	}
}

func TestSetGlobal(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	providers, err := NewProviders(context.Background(), Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	providers.SetGlobal()
	if otel.GetTracerProvider() != providers.TracerProvider {
		t.Error("global TracerProvider not set")
	}
	if otel.GetMeterProvider() != providers.MeterProvider {
		t.Error("global MeterProvider not set")
	}
	(&Providers{}).SetGlobal()
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw      string
		force    bool
		target   string
		insecure bool
	}{
		{"localhost:4317", false, "localhost:4317", true},
		{"http://collector:4317", false, "collector:4317", true},
		{"https://collector:4317/v1/traces", false, "collector:4317", false},
		{"https://collector:4317", true, "collector:4317", true},
	}
	for _, tt := range tests {
		c, err := parseEndpoint(tt.raw, tt.force)
		if err != nil {
			t.Fatalf("parseEndpoint(%q): %v", tt.raw, err)
		}
		if c.target != tt.target || c.insecure != tt.insecure {
			t.Errorf("parseEndpoint(%q, %v) = %+v, want target %q insecure %v", tt.raw, tt.force, c, tt.target, tt.insecure)
		}
	}
}
