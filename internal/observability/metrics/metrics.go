package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes the data-access instruments.
type Metrics struct {
	authzDecisions   metric.Int64Counter
	tenantViolations metric.Int64Counter
	auditWrites      metric.Int64Counter
	jobRuns          metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New registers the instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "finsight"
	}
	meter := provider.Meter(name)

	authzDecisions, err := meter.Int64Counter("finsight_authz_decisions_total",
		metric.WithDescription("Permission checks by role, action and outcome."))
	if err != nil {
		return nil, err
	}
	tenantViolations, err := meter.Int64Counter("finsight_tenant_violations_total",
		metric.WithDescription("Rejected cross-tenant reads and writes."))
	if err != nil {
		return nil, err
	}
	auditWrites, err := meter.Int64Counter("finsight_audit_writes_total",
		metric.WithDescription("Audit records written by outcome."))
	if err != nil {
		return nil, err
	}

	jobRuns, err := meter.Int64Counter("finsight_job_runs_total",
		metric.WithDescription("Background job runs by job and outcome."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		authzDecisions:   authzDecisions,
		tenantViolations: tenantViolations,
		auditWrites:      auditWrites,
		jobRuns:          jobRuns,
	}, nil
}

// RecordAuthzDecision counts a permission check.
func (m *Metrics) RecordAuthzDecision(ctx context.Context, role, action string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "granted"
	}
	attrs := FilterAttributes(
		attribute.String("role", strings.TrimSpace(role)),
		attribute.String("action", strings.TrimSpace(action)),
		attribute.String("outcome", outcome),
	)
	m.authzDecisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTenantViolation counts a rejected cross-tenant access; kind is the error code.
func (m *Metrics) RecordTenantViolation(ctx context.Context, resource, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("resource", strings.TrimSpace(resource)),
		attribute.String("kind", strings.TrimSpace(kind)),
	)
	m.tenantViolations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAuditWrite counts a persisted audit record.
func (m *Metrics) RecordAuditWrite(ctx context.Context, resource, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("resource", strings.TrimSpace(resource)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.auditWrites.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordJobRun counts a finished background job run.
func (m *Metrics) RecordJobRun(ctx context.Context, job, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("job", strings.TrimSpace(job)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.jobRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// org_id and user_id are deliberately absent; tenants are unbounded.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"role":     {},
	"action":   {},
	"outcome":  {},
	"kind":     {},
	"resource": {},
	"job":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
