package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsHighCardinalityLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("event_id", "123"),
		attribute.String("user_id", "456"),
		attribute.String("outcome", "checked_in"),
		attribute.String("endpoint", "checkin"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "event_id" || attr.Key == "user_id" {
			t.Fatalf("unexpected attribute %s", attr.Key)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordRegistration(ctx, "free", "confirmed")
	m.RecordPaymentEvent(ctx, "stripe", "checkout.session.completed")
	m.RecordCheckIn(ctx, "checked_in")
	m.RecordRateLimitAllowed(ctx, "registrations")
	m.RecordRateLimitDenied(ctx, "registrations", "token_bucket")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "eventflow"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordCheckIn(context.Background(), "already_checked_in")
}
