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

// Metrics exposes application-level instruments.
type Metrics struct {
	quotes           metric.Int64Counter
	quoteMisses      metric.Int64Counter
	sessionTurns     metric.Int64Counter
	paymentsStarted  metric.Int64Counter
	reconciliations  metric.Int64Counter
	renderFallbacks  metric.Int64Counter
	capabilityErrors metric.Int64Counter
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
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "covera"
	}
	meter := provider.Meter(name)

	var (
		m   Metrics
		err error
	)
	if m.quotes, err = meter.Int64Counter("covera_quotes_total"); err != nil {
		return nil, err
	}
	if m.quoteMisses, err = meter.Int64Counter("covera_quote_misses_total"); err != nil {
		return nil, err
	}
	if m.sessionTurns, err = meter.Int64Counter("covera_session_turns_total"); err != nil {
		return nil, err
	}
	if m.paymentsStarted, err = meter.Int64Counter("covera_payments_initiated_total"); err != nil {
		return nil, err
	}
	if m.reconciliations, err = meter.Int64Counter("covera_payment_reconciliations_total"); err != nil {
		return nil, err
	}
	if m.renderFallbacks, err = meter.Int64Counter("covera_document_render_fallbacks_total"); err != nil {
		return nil, err
	}
	if m.capabilityErrors, err = meter.Int64Counter("covera_capability_errors_total"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordQuote counts resolved quotes per product.
func (m *Metrics) RecordQuote(ctx context.Context, product string) {
	if m == nil {
		return
	}
	m.quotes.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("product", strings.TrimSpace(product)))...))
}

// RecordQuoteMiss counts resolution misses and validation rejections.
func (m *Metrics) RecordQuoteMiss(ctx context.Context, product, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("product", strings.TrimSpace(product)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.quoteMisses.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordSessionTurn(ctx context.Context, step string) {
	if m == nil {
		return
	}
	m.sessionTurns.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("step", strings.TrimSpace(step)))...))
}

// RecordPaymentInitiated counts settlement attempts per method.
func (m *Metrics) RecordPaymentInitiated(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.paymentsStarted.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("method", strings.TrimSpace(method)))...))
}

// RecordReconciliation counts callbacks by provider and mapped status.
func (m *Metrics) RecordReconciliation(ctx context.Context, provider, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.reconciliations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRenderFallback(ctx context.Context, template string) {
	if m == nil {
		return
	}
	m.renderFallbacks.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("template", strings.TrimSpace(template)))...))
}

func (m *Metrics) RecordCapabilityError(ctx context.Context, capability, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("capability", strings.TrimSpace(capability)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.capabilityErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
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

// Phone numbers, session ids and references never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"product":    {},
	"reason":     {},
	"step":       {},
	"method":     {},
	"provider":   {},
	"status":     {},
	"template":   {},
	"capability": {},
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
