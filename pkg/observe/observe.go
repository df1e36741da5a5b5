// Package observe wires up the orchestrator's observability: JSON
// structured logging and optional OpenTelemetry tracing. The metrics
// HTTP surface lives with the rest of the web layer in httpapi.
package observe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds observability configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// EnableTracing turns on OpenTelemetry tracing with a stdout
	// exporter. Off by default; the orchestrator's spans are only
	// interesting when debugging slow bootstraps.
	EnableTracing bool
}

// Manager owns the tracer provider lifecycle.
type Manager struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	shutdownOnce   sync.Once
}

// InitLogging installs a JSON slog handler as the process default.
func InitLogging() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
}

// NewManager creates an observability manager.
func NewManager(config *Config) *Manager {
	if config == nil {
		config = &Config{ServiceName: "unknown", ServiceVersion: "0.0.0"}
	}
	return &Manager{config: config}
}

// Init sets up tracing when enabled. Without tracing it is a no-op and
// Tracer returns a noop tracer.
func (m *Manager) Init(ctx context.Context) error {
	if !m.config.EnableTracing {
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(m.config.ServiceName),
			semconv.ServiceVersion(m.config.ServiceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("create stdout exporter: %w", err)
	}

	m.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(m.tracerProvider)

	slog.Info("tracing initialized",
		"service_name", m.config.ServiceName,
		"exporter", "stdout")
	return nil
}

// Tracer returns a tracer for the given name.
func (m *Manager) Tracer(name string) trace.Tracer {
	if m.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// Shutdown flushes and stops the tracer provider.
func (m *Manager) Shutdown(ctx context.Context) error {
	var err error
	m.shutdownOnce.Do(func() {
		if m.tracerProvider != nil {
			if e := m.tracerProvider.Shutdown(ctx); e != nil {
				err = fmt.Errorf("shutdown tracer provider: %w", e)
			}
		}
	})
	return err
}
