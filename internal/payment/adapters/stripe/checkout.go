package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	obstracing "github.com/smallbiznis/eventflow/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/eventflow/internal/payment/domain"
)

const (
	DefaultAPIBase  = "https://api.stripe.com"
	checkoutTimeout = 12 * time.Second
)

type CheckoutClientConfig struct {
	SecretKey string
	APIBase   string
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// CheckoutClient creates hosted Checkout Sessions over the Stripe REST API.
type CheckoutClient struct {
	secretKey string
	apiBase   string
	http      *http.Client
}

func NewCheckoutClient(cfg CheckoutClientConfig) *CheckoutClient {
	apiBase := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	client := cfg.HTTPClient
	if client == nil {
		client = obstracing.WrapHTTPClient(&http.Client{Timeout: checkoutTimeout})
	}
	return &CheckoutClient{
		secretKey: strings.TrimSpace(cfg.SecretKey),
		apiBase:   apiBase,
		http:      client,
	}
}

func (c *CheckoutClient) CreateCheckoutSession(ctx context.Context, req paymentdomain.CheckoutSessionRequest) (*paymentdomain.CheckoutSession, error) {
	if c.secretKey == "" {
		return nil, paymentdomain.ErrProviderNotConfigured
	}
	if req.UnitAmount <= 0 || req.Metadata.Quantity <= 0 {
		return nil, fmt.Errorf("%w: amount and quantity must be positive", paymentdomain.ErrCheckoutFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, checkoutTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v1/checkout/sessions", strings.NewReader(encodeSessionForm(req).Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrCheckoutFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", paymentdomain.ErrCheckoutFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr stripeErrorResponse
		_ = json.Unmarshal(body, &apiErr)
		message := strings.TrimSpace(apiErr.Error.Message)
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d: %s", paymentdomain.ErrCheckoutFailed, resp.StatusCode, message)
	}

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", paymentdomain.ErrCheckoutFailed, err)
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("%w: incomplete session", paymentdomain.ErrCheckoutFailed)
	}
	return &paymentdomain.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func encodeSessionForm(req paymentdomain.CheckoutSessionRequest) url.Values {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "usd"
	}
	form.Set("line_items[0][quantity]", strconv.Itoa(req.Metadata.Quantity))
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.UnitAmount, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.ProductName)

	for key, value := range req.Metadata.Values() {
		form.Set("metadata["+key+"]", value)
	}
	return form
}
