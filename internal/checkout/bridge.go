package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPBridge creates hosted checkout sessions over the platform's REST API.
type HTTPBridge struct {
	baseURL string
	client  *http.Client
}

func NewHTTPBridge(baseURL string) *HTTPBridge {
	return &HTTPBridge{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (b *HTTPBridge) CreateCheckoutSession(ctx context.Context, snapshot *CartSnapshot) (string, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("checkout session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("checkout session request returned status %d", resp.StatusCode)
	}

	var out struct {
		CheckoutURL string `json:"checkout_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode checkout session response: %w", err)
	}
	if out.CheckoutURL == "" {
		return "", fmt.Errorf("checkout session response missing checkout_url")
	}
	return out.CheckoutURL, nil
}
