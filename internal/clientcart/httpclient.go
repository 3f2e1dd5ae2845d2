package clientcart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/service"
)

// HTTPCartServer talks to the cartd REST surface and satisfies
// CartServer. The server resolves the cart from the session header, so
// the cartID parameters are informational only.
type HTTPCartServer struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewHTTPCartServer(baseURL, sessionID string) *HTTPCartServer {
	return &HTTPCartServer{
		baseURL:   baseURL,
		sessionID: sessionID,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// codeErrors maps the API's error codes back onto the domain sentinels
// so the cache's rollback logic sees the same errors a local caller would.
var codeErrors = map[string]error{
	"insufficient_stock":   domain.ErrInsufficientStock,
	"reservation_expired":  domain.ErrReservationExpired,
	"reservation_released": domain.ErrReservationReleased,
	"cart_converted":       domain.ErrCartConverted,
	"not_found":            domain.ErrItemNotFound,
}

func (s *HTTPCartServer) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", s.sessionID)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil {
			if sentinel, ok := codeErrors[apiErr.Code]; ok {
				return sentinel
			}
			return fmt.Errorf("request failed: %s", apiErr.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

type addItemPayload struct {
	ProductID   string             `json:"product_id"`
	VariationID string             `json:"variation_id,omitempty"`
	Quantity    int                `json:"quantity"`
	UnitPrice   int64              `json:"unit_price"`
	Currency    string             `json:"currency"`
	Attributes  []domain.Attribute `json:"attributes,omitempty"`
}

type quantityPayload struct {
	Quantity int `json:"quantity"`
}

func (s *HTTPCartServer) AddItem(ctx context.Context, _ string, input service.ItemInput) (*domain.CartItem, error) {
	var item domain.CartItem
	err := s.do(ctx, http.MethodPost, "/api/v1/cart/items", addItemPayload{
		ProductID:   input.ProductID,
		VariationID: input.VariationID,
		Quantity:    input.Quantity,
		UnitPrice:   input.UnitPrice,
		Currency:    input.Currency,
		Attributes:  input.Attributes,
	}, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *HTTPCartServer) UpdateQuantity(ctx context.Context, _ string, itemID string, newQuantity int) error {
	return s.do(ctx, http.MethodPut, "/api/v1/cart/items/"+itemID, quantityPayload{Quantity: newQuantity}, nil)
}

func (s *HTTPCartServer) RemoveItem(ctx context.Context, _ string, itemID string) error {
	return s.do(ctx, http.MethodDelete, "/api/v1/cart/items/"+itemID, nil, nil)
}

// FetchCart pulls the server's view for reconciliation after reconnect.
func (s *HTTPCartServer) FetchCart(ctx context.Context) (*domain.Cart, error) {
	var cart domain.Cart
	if err := s.do(ctx, http.MethodGet, "/api/v1/cart", nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}
