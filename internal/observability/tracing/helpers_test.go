package tracing

import (
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPersonalData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("email", "ada@example.com"),
		attribute.String("http.route", "/api/events/:id/checkin"),
		attribute.String("qr_code", "01HX"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("expected only http.route to survive, got %v", attrs)
	}
}

func TestSafeErrorRedactsEmails(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	if got := SafeError(errors.New("user ada@example.com not found")); got.Error() != "redacted error" {
		t.Fatalf("expected redacted error, got %v", got)
	}
	if got := SafeError(errors.New(strings.Repeat("x", 300))); got.Error() != "redacted error" {
		t.Fatalf("expected long error to be redacted")
	}
	plain := errors.New("db timeout")
	if got := SafeError(plain); got != plain {
		t.Fatalf("expected plain error to pass through")
	}
}
