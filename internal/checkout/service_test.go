package checkout

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/catalog"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/repository"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/reservation"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/service"
	"github.com/abhijeets54/ankkorwoo-sub001/pkg/logger"
)

type fixture struct {
	checkout *Service
	carts    *service.CartService
	source   *catalog.StaticSource
	repo     *mockRepo
	bridge   *mockBridge
}

func setupCheckout(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	source := catalog.NewStaticSource()
	authority := reservation.NewMemoryAuthority(source, logger.NewNop())
	authority.RefreshMaxAge = 0
	carts := service.NewCartService(
		repository.NewMemoryRepository(), newMapCache(), authority, logger.NewNop(), ttl)

	repo := newMockRepo()
	bridge := &mockBridge{url: "https://pay.example.com/c/abc123"}
	svc := NewService(repo, carts, authority, bridge, "https://shop.example.com/cart", logger.NewNop())
	return &fixture{checkout: svc, carts: carts, source: source, repo: repo, bridge: bridge}
}

func (f *fixture) cartWithItem(t *testing.T, qty int) *domain.Cart {
	t.Helper()
	ctx := context.Background()
	f.source.SetStock("shirt-1", "", 10)
	cart, err := f.carts.GetOrCreate(ctx, domain.UserOwner("42"))
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, cart.ID, service.ItemInput{
		ProductID: "shirt-1", Quantity: qty, UnitPrice: 1999, Currency: "USD",
	})
	require.NoError(t, err)
	return cart
}

func TestPrepareCheckout_Success(t *testing.T) {
	f := setupCheckout(t, time.Minute)
	ctx := context.Background()
	cart := f.cartWithItem(t, 2)

	handoff, err := f.checkout.PrepareCheckout(ctx, cart.ID, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/c/abc123", handoff.Ref)
	assert.False(t, handoff.Degraded)

	frozen, err := f.carts.CartByID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CartStatusConverted, frozen.Status)
	assert.Equal(t, handoff.CheckoutID, frozen.OrderRef)

	session := f.repo.sessionByID(handoff.CheckoutID)
	require.NotNil(t, session)
	assert.Equal(t, SessionConverted, session.Status)

	events, err := f.repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "checkout.prepared", events[0].EventType)
	assert.Contains(t, string(events[0].Payload), handoff.CheckoutID)
}

func TestPrepareCheckout_IdempotentReplay(t *testing.T) {
	f := setupCheckout(t, time.Minute)
	ctx := context.Background()
	cart := f.cartWithItem(t, 1)

	first, err := f.checkout.PrepareCheckout(ctx, cart.ID, "key-1")
	require.NoError(t, err)

	// the cart is already converted, so a non-replayed retry would fail
	second, err := f.checkout.PrepareCheckout(ctx, cart.ID, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.CheckoutID, second.CheckoutID)
	assert.Equal(t, first.Ref, second.Ref)
	assert.Equal(t, 1, f.bridge.called)
}

func TestPrepareCheckout_NewKeyOnConvertedCartFails(t *testing.T) {
	f := setupCheckout(t, time.Minute)
	ctx := context.Background()
	cart := f.cartWithItem(t, 1)

	_, err := f.checkout.PrepareCheckout(ctx, cart.ID, "key-1")
	require.NoError(t, err)

	_, err = f.checkout.PrepareCheckout(ctx, cart.ID, "key-2")
	assert.ErrorIs(t, err, domain.ErrCartConverted)
}

func TestPrepareCheckout_EmptyCart(t *testing.T) {
	f := setupCheckout(t, time.Minute)
	ctx := context.Background()

	cart, err := f.carts.GetOrCreate(ctx, domain.UserOwner("42"))
	require.NoError(t, err)

	_, err = f.checkout.PrepareCheckout(ctx, cart.ID, "key-1")
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestPrepareCheckout_ExpiredReservationAborts(t *testing.T) {
	f := setupCheckout(t, time.Millisecond)
	ctx := context.Background()
	cart := f.cartWithItem(t, 2)

	time.Sleep(10 * time.Millisecond)

	_, err := f.checkout.PrepareCheckout(ctx, cart.ID, "key-1")
	assert.ErrorIs(t, err, domain.ErrReservationExpired)

	// cart stays OPEN so the client can re-reserve and retry
	reloaded, err := f.carts.CartByID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CartStatusOpen, reloaded.Status)

	var failed *Session
	for _, s := range f.repo.sessions {
		failed = s
	}
	require.NotNil(t, failed)
	assert.Equal(t, SessionFailed, failed.Status)
}

func TestPrepareCheckout_BridgeFailureFallsBack(t *testing.T) {
	f := setupCheckout(t, time.Minute)
	f.bridge.err = assert.AnError
	ctx := context.Background()
	cart := f.cartWithItem(t, 3)

	handoff, err := f.checkout.PrepareCheckout(ctx, cart.ID, "key-1")
	require.NoError(t, err)
	assert.True(t, handoff.Degraded)
	assert.True(t, strings.HasPrefix(handoff.Ref, "https://shop.example.com/cart?"))
	assert.Contains(t, handoff.Ref, "add-to-cart=shirt-1")
	assert.Contains(t, handoff.Ref, "quantity=3")

	// fallback happens after conversion, never instead of it
	frozen, err := f.carts.CartByID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CartStatusConverted, frozen.Status)
}

func TestPrepareCheckout_InProgressAndFailedKeys(t *testing.T) {
	f := setupCheckout(t, time.Minute)
	ctx := context.Background()

	f.repo.sessions["key-busy"] = &Session{ID: "s-1", IdempotencyKey: "key-busy", Status: SessionInitiated}
	f.repo.sessions["key-dead"] = &Session{ID: "s-2", IdempotencyKey: "key-dead", Status: SessionFailed}

	_, err := f.checkout.PrepareCheckout(ctx, "cart-x", "key-busy")
	assert.ErrorIs(t, err, ErrCheckoutInProgress)

	_, err = f.checkout.PrepareCheckout(ctx, "cart-x", "key-dead")
	assert.ErrorIs(t, err, ErrCheckoutFailed)
}

func TestOutboxPoller_PublishesAndMarks(t *testing.T) {
	repo := newMockRepo()
	require.NoError(t, repo.CompleteSession(context.Background(), "s-1", "ref", false, []byte(`{"checkout_id":"s-1"}`)))

	writer := &fakeWriter{}
	p := &OutboxPoller{tick: time.Millisecond, repo: repo, writer: writer, log: logger.NewNop()}

	p.processUnpublishedEvents(context.Background())

	require.Len(t, writer.msgs, 1)
	assert.Equal(t, "s-1", string(writer.msgs[0].Key))
	require.Len(t, writer.msgs[0].Headers, 1)
	assert.Equal(t, "checkout.prepared", string(writer.msgs[0].Headers[0].Value))

	remaining, err := repo.GetUnprocessedEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestOutboxPoller_FailedPublishStaysQueued(t *testing.T) {
	repo := newMockRepo()
	require.NoError(t, repo.CompleteSession(context.Background(), "s-1", "ref", false, []byte(`{}`)))

	writer := &fakeWriter{err: assert.AnError}
	p := &OutboxPoller{tick: time.Millisecond, repo: repo, writer: writer, log: logger.NewNop()}

	p.processUnpublishedEvents(context.Background())

	remaining, err := repo.GetUnprocessedEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
