package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

const telemetryShutdownTimeout = 5 * time.Second

// telemetryAttributes describe this deployment: which backends hold the
// locks and the ledger, and where the data files live.
func telemetryAttributes(cfg Config) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
		semconv.DeploymentEnvironment(cfg.Env),
		attribute.String("cinex.data_dir", cfg.DataDir),
		attribute.String("cinex.lock.backend", cfg.Lock.Backend),
		attribute.String("cinex.ledger.backend", cfg.Ledger.Backend),
		attribute.Bool("cinex.nats.enabled", cfg.Nats.URL != ""),
	}
}

type telemetryProviders struct {
	tracer *trace.TracerProvider
	meter  *metric.MeterProvider
	logger *log.LoggerProvider
}

func (p telemetryProviders) shutdown(ctx context.Context) error {
	var errs []error

	if p.tracer != nil {
		errs = append(errs, p.tracer.Shutdown(ctx))
	}
	if p.meter != nil {
		errs = append(errs, p.meter.Shutdown(ctx))
	}
	if p.logger != nil {
		errs = append(errs, p.logger.Shutdown(ctx))
	}

	return errors.Join(errs...)
}

// newTelemetryProviders builds trace, metric and log providers that export
// over OTLP gRPC to the collector. Providers built before a failure are shut
// down before the error is returned.
func newTelemetryProviders(ctx context.Context, cfg Config, res *resource.Resource) (telemetryProviders, error) {
	var p telemetryProviders

	fail := func(what string, err error) (telemetryProviders, error) {
		return telemetryProviders{}, errors.Join(fmt.Errorf("creating otel %s exporter: %w", what, err), p.shutdown(ctx))
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(cfg.OtelCollectorUrl),
	)
	if err != nil {
		return fail("trace", err)
	}

	p.tracer = trace.NewTracerProvider(
		trace.WithSampler(trace.AlwaysSample()),
		trace.WithResource(res),
		trace.WithBatcher(traceExporter),
	)

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithEndpoint(cfg.OtelCollectorUrl),
	)
	if err != nil {
		return fail("metric", err)
	}

	p.meter = metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(cfg.OtelMetricInterval))),
	)

	logExporter, err := otlploggrpc.New(ctx,
		otlploggrpc.WithInsecure(),
		otlploggrpc.WithEndpoint(cfg.OtelCollectorUrl),
	)
	if err != nil {
		return fail("log", err)
	}

	p.logger = log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(logExporter)),
	)

	return p, nil
}

// InitTelemetry points the global otel providers at the configured collector
// and returns their shutdown function. Without a collector URL the no-op
// globals stay in place.
func (app *Application) InitTelemetry() (func(context.Context), error) {
	if app.config.OtelCollectorUrl == "" {
		app.logger.Debug("otel collector url not set, telemetry disabled")

		return func(context.Context) {}, nil
	}

	ctx := context.Background()

	res, err := resource.New(ctx, resource.WithAttributes(telemetryAttributes(app.config)...))
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	providers, err := newTelemetryProviders(ctx, app.config, res)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(providers.tracer)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetMeterProvider(providers.meter)
	global.SetLoggerProvider(providers.logger)

	app.logger.Info("telemetry enabled",
		"collector", app.config.OtelCollectorUrl,
		"metric_interval", app.config.OtelMetricInterval)

	return func(ctx context.Context) {
		shutdownCtx, cancel := context.WithTimeout(ctx, telemetryShutdownTimeout)
		defer cancel()

		if err := providers.shutdown(shutdownCtx); err != nil {
			app.logger.Error("failed to shut down telemetry providers", "error", err)
		}
	}, nil
}

// MultiHandler sends each record to every handler enabled for its level.
type MultiHandler struct {
	handlers []slog.Handler
}

func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (h *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.each(func(handler slog.Handler) slog.Handler { return handler.WithAttrs(attrs) })
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	return h.each(func(handler slog.Handler) slog.Handler { return handler.WithGroup(name) })
}

func (h *MultiHandler) each(fn func(slog.Handler) slog.Handler) *MultiHandler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = fn(handler)
	}

	return &MultiHandler{handlers: handlers}
}
