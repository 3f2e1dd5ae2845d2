package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/cache"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/catalog"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/checkout"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/repository"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/reservation"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/service"
	"github.com/abhijeets54/ankkorwoo-sub001/pkg/logger"
)

// nopCache always misses so handler tests stay deterministic.
type nopCache struct{}

func (nopCache) Get(context.Context, string) (*domain.Cart, error) { return nil, cache.ErrCacheMiss }
func (nopCache) Set(context.Context, string, *domain.Cart) error   { return nil }
func (nopCache) Delete(context.Context, string) error              { return nil }

type mockPreparer struct {
	handoff *checkout.Handoff
	err     error
	cartID  string
	key     string
}

func (m *mockPreparer) PrepareCheckout(_ context.Context, cartID, key string) (*checkout.Handoff, error) {
	m.cartID = cartID
	m.key = key
	if m.err != nil {
		return nil, m.err
	}
	return m.handoff, nil
}

func setupAPI(t *testing.T) (http.Handler, *catalog.StaticSource, *mockPreparer) {
	t.Helper()
	source := catalog.NewStaticSource()
	authority := reservation.NewMemoryAuthority(source, logger.NewNop())
	authority.RefreshMaxAge = 0
	carts := service.NewCartService(
		repository.NewMemoryRepository(), nopCache{}, authority, logger.NewNop(), time.Minute)

	preparer := &mockPreparer{handoff: &checkout.Handoff{CheckoutID: "co-1", Ref: "https://pay.example.com/c/1"}}
	router := NewRouter(
		NewCartHandler(carts),
		NewCheckoutHandler(carts, preparer),
		NewStockHandler(authority),
		30*time.Second,
	)
	return router, source, preparer
}

func doJSON(t *testing.T, router http.Handler, method, path string, headers map[string]string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func userHeaders() map[string]string { return map[string]string{"X-User-ID": "42"} }

func addItemBody(qty int) AddItemRequest {
	return AddItemRequest{ProductID: "shirt-1", Quantity: qty, UnitPrice: 1999, Currency: "USD"}
}

func TestGetCart_CreatesCartForOwner(t *testing.T) {
	router, _, _ := setupAPI(t)

	rec := doJSON(t, router, "GET", "/api/v1/cart", userHeaders(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cart domain.Cart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	assert.Equal(t, "user:42", cart.OwnerKey)
	assert.Empty(t, cart.Items)
}

func TestCart_MissingOwnerHeader(t *testing.T) {
	router, _, _ := setupAPI(t)

	rec := doJSON(t, router, "GET", "/api/v1/cart", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddItem_Success(t *testing.T) {
	router, source, _ := setupAPI(t)
	source.SetStock("shirt-1", "", 10)

	rec := doJSON(t, router, "POST", "/api/v1/cart/items", userHeaders(), addItemBody(2))
	require.Equal(t, http.StatusCreated, rec.Code)

	var item domain.CartItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, 2, item.Quantity)
	assert.NotEmpty(t, item.ReservationID)

	rec = doJSON(t, router, "GET", "/api/v1/cart", userHeaders(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cart domain.Cart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	assert.Len(t, cart.Items, 1)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	router, _, _ := setupAPI(t)

	rec := doJSON(t, router, "POST", "/api/v1/cart/items", userHeaders(), addItemBody(0))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, "POST", "/api/v1/cart/items", userHeaders(), addItemBody(100))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddItem_InsufficientStockIsConflict(t *testing.T) {
	router, source, _ := setupAPI(t)
	source.SetStock("shirt-1", "", 1)

	rec := doJSON(t, router, "POST", "/api/v1/cart/items", userHeaders(), addItemBody(5))
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "insufficient_stock", errResp.Code)
}

func TestUpdateAndRemoveItem(t *testing.T) {
	router, source, _ := setupAPI(t)
	source.SetStock("shirt-1", "", 10)

	rec := doJSON(t, router, "POST", "/api/v1/cart/items", userHeaders(), addItemBody(2))
	require.Equal(t, http.StatusCreated, rec.Code)
	var item domain.CartItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))

	rec = doJSON(t, router, "PUT", "/api/v1/cart/items/"+item.ID, userHeaders(), UpdateQuantityRequest{Quantity: 5})
	require.Equal(t, http.StatusOK, rec.Code)
	var cart domain.Cart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	rec = doJSON(t, router, "DELETE", "/api/v1/cart/items/"+item.ID, userHeaders(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	assert.Empty(t, cart.Items)
}

func TestMergeCart_RequiresUserIdentity(t *testing.T) {
	router, _, _ := setupAPI(t)

	rec := doJSON(t, router, "POST", "/api/v1/cart/merge",
		map[string]string{"X-Session-ID": "abc"}, MergeRequest{SessionID: "abc"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMergeCart_Success(t *testing.T) {
	router, source, _ := setupAPI(t)
	source.SetStock("shirt-1", "", 10)

	sessionHeaders := map[string]string{"X-Session-ID": "abc"}
	rec := doJSON(t, router, "POST", "/api/v1/cart/items", sessionHeaders, addItemBody(2))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, "POST", "/api/v1/cart/merge", userHeaders(), MergeRequest{SessionID: "abc"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MergeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Cart.Items, 1)
	assert.Equal(t, "user:42", resp.Cart.OwnerKey)
	assert.Empty(t, resp.Conflicts)
}

func TestCheckout_RequiresIdempotencyKey(t *testing.T) {
	router, _, _ := setupAPI(t)

	rec := doJSON(t, router, "POST", "/api/v1/checkout", userHeaders(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_Success(t *testing.T) {
	router, source, preparer := setupAPI(t)
	source.SetStock("shirt-1", "", 10)

	headers := userHeaders()
	rec := doJSON(t, router, "POST", "/api/v1/cart/items", headers, addItemBody(1))
	require.Equal(t, http.StatusCreated, rec.Code)

	headers["Idempotency-Key"] = "key-1"
	rec = doJSON(t, router, "POST", "/api/v1/checkout", headers, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var handoff checkout.Handoff
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &handoff))
	assert.Equal(t, "co-1", handoff.CheckoutID)
	assert.Equal(t, "key-1", preparer.key)
	assert.NotEmpty(t, preparer.cartID)
}

func TestCheckout_InProgressIsConflict(t *testing.T) {
	router, _, preparer := setupAPI(t)
	preparer.err = checkout.ErrCheckoutInProgress

	headers := userHeaders()
	headers["Idempotency-Key"] = "key-1"
	rec := doJSON(t, router, "POST", "/api/v1/checkout", headers, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCheckStock_IsPublic(t *testing.T) {
	router, source, _ := setupAPI(t)
	source.SetStock("shirt-1", "", 3)

	rec := doJSON(t, router, "GET", "/api/v1/stock/shirt-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Available)
	assert.Equal(t, domain.StockInStock, resp.Status)
}

func TestCheckStock_HoldsReduceAvailability(t *testing.T) {
	router, source, _ := setupAPI(t)
	source.SetStock("shirt-1", "", 3)

	rec := doJSON(t, router, "POST", "/api/v1/cart/items", userHeaders(), addItemBody(3))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, "GET", "/api/v1/stock/shirt-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Available)
	assert.Equal(t, domain.StockOutOfStock, resp.Status)
}
