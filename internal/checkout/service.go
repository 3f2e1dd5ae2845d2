package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
	"github.com/abhijeets54/ankkorwoo-sub001/pkg/logger"
)

var (
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrCheckoutFailed     = errors.New("previous checkout attempt failed")
)

// CartSnapshotItem captures one line with its price at handoff time.
type CartSnapshotItem struct {
	ProductID   string             `json:"product_id"`
	VariationID string             `json:"variation_id,omitempty"`
	Quantity    int                `json:"quantity"`
	UnitPrice   int64              `json:"unit_price"`
	Subtotal    int64              `json:"subtotal"`
	Attributes  []domain.Attribute `json:"attributes,omitempty"`
}

type CartSnapshot struct {
	CartID      string             `json:"cart_id"`
	OwnerKey    string             `json:"owner_key"`
	Items       []CartSnapshotItem `json:"items"`
	TotalAmount int64              `json:"total_amount"`
	Currency    string             `json:"currency"`
	CapturedAt  time.Time          `json:"captured_at"`
}

// Handoff is the outcome of a prepared checkout: the reference the client
// redirects to, and whether it was produced through the degraded fallback.
type Handoff struct {
	CheckoutID string `json:"checkout_id"`
	Ref        string `json:"ref"`
	Degraded   bool   `json:"degraded"`
}

// CartGateway is the slice of the cart service checkout needs.
type CartGateway interface {
	CartByID(ctx context.Context, cartID string) (*domain.Cart, error)
	ConvertToOrder(ctx context.Context, cartID, orderRef string) error
}

// ReservationGateway revalidates holds before the cart is frozen.
type ReservationGateway interface {
	Get(ctx context.Context, reservationID string) (*domain.StockReservation, error)
}

// SessionBridge creates a hosted checkout session on the commerce platform
// and returns its URL.
type SessionBridge interface {
	CreateCheckoutSession(ctx context.Context, snapshot *CartSnapshot) (string, error)
}

type Service struct {
	repo        RepoInterface
	cart        CartGateway
	reservation ReservationGateway
	bridge      SessionBridge
	fallbackURL string
	log         *logger.Logger
}

func NewService(repo RepoInterface, cart CartGateway, res ReservationGateway, bridge SessionBridge, fallbackURL string, log *logger.Logger) *Service {
	return &Service{
		repo:        repo,
		cart:        cart,
		reservation: res,
		bridge:      bridge,
		fallbackURL: fallbackURL,
		log:         log,
	}
}

// PrepareCheckout freezes the cart and hands it off to the platform.
//
// Retries with the same idempotency key replay the stored result instead
// of converting twice. Every line's reservation is revalidated before
// conversion; a lapsed hold aborts the whole handoff and the cart stays
// OPEN so the client can re-reserve and retry. The degraded query-string
// fallback is used only when the session bridge fails after the cart is
// already converted.
func (s *Service) PrepareCheckout(ctx context.Context, cartID, idempotencyKey string) (*Handoff, error) {
	existing, err := s.repo.GetSessionByIdempotencyKey(ctx, idempotencyKey)
	if err != nil && !errors.Is(err, ErrIdempotencyKeyNotFound) {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if existing != nil {
		switch existing.Status {
		case SessionConverted:
			return &Handoff{CheckoutID: existing.ID, Ref: existing.CheckoutRef, Degraded: existing.Degraded}, nil
		case SessionFailed:
			return nil, ErrCheckoutFailed
		default:
			return nil, ErrCheckoutInProgress
		}
	}

	cart, err := s.cart.CartByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !cart.IsOpen() {
		return nil, domain.ErrCartConverted
	}
	if len(cart.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	snapshot := buildSnapshot(cart)
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}

	session := &Session{
		ID:             uuid.New().String(),
		CartID:         cart.ID,
		OwnerKey:       cart.OwnerKey,
		IdempotencyKey: idempotencyKey,
		Status:         SessionInitiated,
		Snapshot:       snapshotJSON,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	if err := s.revalidate(ctx, cart); err != nil {
		if failErr := s.repo.FailSession(ctx, session.ID); failErr != nil {
			s.log.Error("failed to mark checkout session failed",
				"checkout_id", session.ID, "error", failErr)
		}
		return nil, err
	}

	// Conversion confirms every hold; the cart is immutable from here on.
	if err := s.cart.ConvertToOrder(ctx, cart.ID, session.ID); err != nil {
		if failErr := s.repo.FailSession(ctx, session.ID); failErr != nil {
			s.log.Error("failed to mark checkout session failed",
				"checkout_id", session.ID, "error", failErr)
		}
		return nil, err
	}

	ref, degraded := s.resolveRef(ctx, session, snapshot)

	payload, err := json.Marshal(map[string]interface{}{
		"checkout_id":  session.ID,
		"cart_id":      cart.ID,
		"owner_key":    cart.OwnerKey,
		"items":        snapshot.Items,
		"total_amount": snapshot.TotalAmount,
		"currency":     snapshot.Currency,
		"ref":          ref,
		"degraded":     degraded,
		"completed_at": time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkout payload: %w", err)
	}

	if err := s.repo.CompleteSession(ctx, session.ID, ref, degraded, payload); err != nil {
		// The cart is converted; the session row records the attempt even
		// though completion failed, so operators can reconcile.
		return nil, fmt.Errorf("failed to complete checkout session: %w", err)
	}

	return &Handoff{CheckoutID: session.ID, Ref: ref, Degraded: degraded}, nil
}

// revalidate checks that each line's hold is still active and still covers
// the line quantity.
func (s *Service) revalidate(ctx context.Context, cart *domain.Cart) error {
	for _, item := range cart.Items {
		if item.ReservationID == "" {
			return fmt.Errorf("item %s has no reservation: %w", item.ID, domain.ErrReservationExpired)
		}
		res, err := s.reservation.Get(ctx, item.ReservationID)
		if err != nil {
			return fmt.Errorf("item %s: %w", item.ID, err)
		}
		if !res.Active(time.Now()) {
			return fmt.Errorf("item %s: %w", item.ID, domain.ErrReservationExpired)
		}
		if res.Quantity < item.Quantity {
			return fmt.Errorf("item %s holds %d of %d units: %w",
				item.ID, res.Quantity, item.Quantity, domain.ErrInsufficientStock)
		}
	}
	return nil
}

func (s *Service) resolveRef(ctx context.Context, session *Session, snapshot *CartSnapshot) (string, bool) {
	ref, err := s.bridge.CreateCheckoutSession(ctx, snapshot)
	if err == nil {
		return ref, false
	}
	s.log.Warn("checkout session bridge failed, falling back to query-string handoff",
		"checkout_id", session.ID, "error", err)
	return s.buildFallbackRef(session, snapshot), true
}

// buildFallbackRef encodes the frozen lines into the platform's add-to-cart
// query string. Loses attribute fidelity but never strands a converted cart.
func (s *Service) buildFallbackRef(session *Session, snapshot *CartSnapshot) string {
	q := url.Values{}
	q.Set("checkout_id", session.ID)
	for _, item := range snapshot.Items {
		id := item.ProductID
		if item.VariationID != "" {
			id = item.ProductID + ":" + item.VariationID
		}
		q.Add("add-to-cart", id)
		q.Add("quantity", strconv.Itoa(item.Quantity))
	}
	return s.fallbackURL + "?" + q.Encode()
}

func buildSnapshot(cart *domain.Cart) *CartSnapshot {
	snapshot := &CartSnapshot{
		CartID:     cart.ID,
		OwnerKey:   cart.OwnerKey,
		Items:      make([]CartSnapshotItem, 0, len(cart.Items)),
		CapturedAt: time.Now(),
	}
	for _, item := range cart.Items {
		subtotal := item.UnitPrice * int64(item.Quantity)
		snapshot.Items = append(snapshot.Items, CartSnapshotItem{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    subtotal,
			Attributes:  item.Attributes,
		})
		snapshot.TotalAmount += subtotal
		if snapshot.Currency == "" {
			snapshot.Currency = item.Currency
		}
	}
	return snapshot
}
