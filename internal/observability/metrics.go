package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/parlorhq/session-service/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type AppMetrics struct {
	sessionFetchCounter  metric.Int64Counter
	sessionCreateCounter metric.Int64Counter
	sessionDeleteCounter metric.Int64Counter
	sessionRenewCounter  metric.Int64Counter
	lockGateCounter      metric.Int64Counter
	repositoryCounter    metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("session-service")
	fetchCounter, err := meter.Int64Counter("session.fetch.outcomes")
	if err != nil {
		return nil, err
	}
	createCounter, err := meter.Int64Counter("session.create.outcomes")
	if err != nil {
		return nil, err
	}
	deleteCounter, err := meter.Int64Counter("session.delete.outcomes")
	if err != nil {
		return nil, err
	}
	renewCounter, err := meter.Int64Counter("session.renewals")
	if err != nil {
		return nil, err
	}
	lockCounter, err := meter.Int64Counter("session.lock_gate.rejections")
	if err != nil {
		return nil, err
	}
	repoCounter, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		sessionFetchCounter:  fetchCounter,
		sessionCreateCounter: createCounter,
		sessionDeleteCounter: deleteCounter,
		sessionRenewCounter:  renewCounter,
		lockGateCounter:      lockCounter,
		repositoryCounter:    repoCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

// RecordSessionFetch counts per-request credential resolution outcomes:
// authenticated, anonymous, renewed, locked.
func RecordSessionFetch(ctx context.Context, outcome, source string) {
	m := current()
	if m == nil {
		return
	}
	m.sessionFetchCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("source", source),
	))
}

func RecordSessionCreate(ctx context.Context, flow, status string) {
	m := current()
	if m == nil {
		return
	}
	m.sessionCreateCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("status", status),
	))
}

func RecordSessionDelete(ctx context.Context, reason string) {
	m := current()
	if m == nil {
		return
	}
	m.sessionDeleteCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func RecordSessionRenewal(ctx context.Context, status string) {
	m := current()
	if m == nil {
		return
	}
	m.sessionRenewCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordLockGateRejection(ctx context.Context) {
	m := current()
	if m == nil {
		return
	}
	m.lockGateCounter.Add(ctx, 1)
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, status string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}
