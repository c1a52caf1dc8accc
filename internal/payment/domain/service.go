package domain

import (
	"context"
	"net/http"
)

// WebhookService is the entry point for provider deliveries.
type WebhookService interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}
