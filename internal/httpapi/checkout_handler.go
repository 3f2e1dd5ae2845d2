package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/checkout"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/service"
)

// CheckoutPreparer is the slice of the checkout service the handler needs.
type CheckoutPreparer interface {
	PrepareCheckout(ctx context.Context, cartID, idempotencyKey string) (*checkout.Handoff, error)
}

type CheckoutHandler struct {
	carts    *service.CartService
	checkout CheckoutPreparer
}

func NewCheckoutHandler(carts *service.CartService, preparer CheckoutPreparer) *CheckoutHandler {
	return &CheckoutHandler{carts: carts, checkout: preparer}
}

// PrepareCheckout freezes the owner's cart and returns the handoff ref.
// The Idempotency-Key header is required so network retries replay the
// first result instead of double-converting.
func (h *CheckoutHandler) PrepareCheckout(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		respondError(w, http.StatusBadRequest, "missing_idempotency_key", "Idempotency-Key header is required")
		return
	}

	cart, err := h.carts.GetOrCreate(r.Context(), owner)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	handoff, err := h.checkout.PrepareCheckout(r.Context(), cart.ID, idempotencyKey)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrCheckoutInProgress):
			respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
		case errors.Is(err, checkout.ErrCheckoutFailed):
			respondError(w, http.StatusConflict, "checkout_failed", err.Error())
		default:
			respondDomainError(w, err)
		}
		return
	}
	respondJSON(w, http.StatusOK, handoff)
}
