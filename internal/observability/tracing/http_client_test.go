package tracing

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(recorder),
	))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return recorder
}

func TestWrapHTTPClientInjectsTraceContext(t *testing.T) {
	useRecorder(t)

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := WrapHTTPClient(&http.Client{})
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if traceparent == "" {
		t.Fatalf("expected traceparent header on outbound request")
	}
}

func TestWrapHTTPClientSpanCoversBodyRead(t *testing.T) {
	recorder := useRecorder(t)

	const delay = 100 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(delay)
		_, _ = w.Write([]byte("done"))
	}))
	defer srv.Close()

	resp, err := WrapHTTPClient(&http.Client{}).Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n := len(recorder.Ended()); n != 0 {
		t.Fatalf("expected span to stay open until the body is read, %d ended", n)
	}
	if _, err := io.ReadAll(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected one ended span, got %d", len(ended))
	}
	if d := ended[0].EndTime().Sub(ended[0].StartTime()); d < delay {
		t.Fatalf("expected span to cover the body transfer, lasted %s", d)
	}
}

func TestWrapHTTPClientDoesNotDoubleWrap(t *testing.T) {
	original := &http.Client{}
	once := WrapHTTPClient(original)
	twice := WrapHTTPClient(once)

	if original.Transport != nil {
		t.Fatalf("expected original client to be left untouched")
	}
	if _, ok := twice.Transport.(*otelhttp.Transport); !ok {
		t.Fatalf("expected traced transport, got %T", twice.Transport)
	}
	if twice.Transport != once.Transport {
		t.Fatalf("expected a single traced layer")
	}
}
