package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var sensitiveAttributeKeys = map[attribute.Key]struct{}{
	"email":           {},
	"user.email":      {},
	"qr_code":         {},
	"password":        {},
	"authorization":   {},
	"stripe.customer": {},
}

// ExtractContext joins the caller's trace, if any, carried on the request headers.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// SafeAttributes drops attributes that could carry personal data or secrets.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := sensitiveAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError keeps the error class but strips messages that may echo request input.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "@") || len(msg) > 256 {
		return errors.New("redacted error")
	}
	return err
}

// StartSpan starts an internal span on the eventflow tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("eventflow").Start(ctx, name, trace.WithAttributes(SafeAttributes(attrs...)...))
}
