package observability

import (
	"github.com/smallbiznis/covera/internal/observability/logger"
	"github.com/smallbiznis/covera/internal/observability/metrics"
	"github.com/smallbiznis/covera/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the zap logger, the OTLP trace and meter providers, the
// quote and payment instruments and the prometheus HTTP histograms.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.loggerConfig,
		Config.tracingConfig,
		Config.metricsConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
