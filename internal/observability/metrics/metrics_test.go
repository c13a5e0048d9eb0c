package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("product", "auto"),
		attribute.String("phone", "242066000000"),
		attribute.String("session_id", "abc"),
		attribute.String("method", "PAY_ON_DELIVERY"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "phone" || attr.Key == "session_id" {
			t.Fatalf("unexpected label %s retained", attr.Key)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordQuote(context.Background(), "auto")
	m.RecordReconciliation(context.Background(), "momo", "valide")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "covera-test"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordQuote(context.Background(), "voyage")
	m.RecordRenderFallback(context.Background(), "proposal")
}
