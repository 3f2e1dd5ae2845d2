package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPSource reads authoritative stock from the commerce platform over
// HTTP, behind a circuit breaker so a struggling upstream fails fast
// instead of tying up every reserve call.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[AuthoritativeStock]
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	settings := gobreaker.Settings{
		Name:    "stock-source",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &HTTPSource{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[AuthoritativeStock](settings),
	}
}

func (s *HTTPSource) GetAuthoritativeStock(ctx context.Context, productID, variationID string) (AuthoritativeStock, error) {
	return s.breaker.Execute(func() (AuthoritativeStock, error) {
		return s.fetch(ctx, productID, variationID)
	})
}

func (s *HTTPSource) fetch(ctx context.Context, productID, variationID string) (AuthoritativeStock, error) {
	var stock AuthoritativeStock

	endpoint := fmt.Sprintf("%s/stock/%s", s.baseURL, url.PathEscape(productID))
	if variationID != "" {
		endpoint += "?variation=" + url.QueryEscape(variationID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return stock, fmt.Errorf("build stock request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return stock, fmt.Errorf("stock request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stock, fmt.Errorf("stock source returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&stock); err != nil {
		return stock, fmt.Errorf("decode stock response: %w", err)
	}
	return stock, nil
}
