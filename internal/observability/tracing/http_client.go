package tracing

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// WrapHTTPClient returns a copy of client whose transport opens a client span
// per request and forwards the trace context. The span ends once the response
// body is read to EOF or closed.
func WrapHTTPClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	wrapped := *client
	if _, ok := wrapped.Transport.(*otelhttp.Transport); !ok {
		wrapped.Transport = otelhttp.NewTransport(wrapped.Transport)
	}
	return &wrapped
}
