package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/service"
)

const maxLineQuantity = 99

type CartHandler struct {
	carts *service.CartService
}

func NewCartHandler(carts *service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type AddItemRequest struct {
	ProductID   string             `json:"product_id"`
	VariationID string             `json:"variation_id,omitempty"`
	Quantity    int                `json:"quantity"`
	UnitPrice   int64              `json:"unit_price"`
	Currency    string             `json:"currency"`
	Attributes  []domain.Attribute `json:"attributes,omitempty"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type MergeRequest struct {
	SessionID string `json:"session_id"`
}

type MergeResponse struct {
	Cart      *domain.Cart           `json:"cart"`
	Conflicts []domain.MergeConflict `json:"conflicts"`
}

func (h *CartHandler) resolveCart(w http.ResponseWriter, r *http.Request) *domain.Cart {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return nil
	}
	cart, err := h.carts.GetOrCreate(r.Context(), owner)
	if err != nil {
		respondDomainError(w, err)
		return nil
	}
	return cart
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart := h.resolveCart(w, r)
	if cart == nil {
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	cart := h.resolveCart(w, r)
	if cart == nil {
		return
	}

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	item, err := h.carts.AddItem(r.Context(), cart.ID, service.ItemInput{
		ProductID:   req.ProductID,
		VariationID: req.VariationID,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		Currency:    req.Currency,
		Attributes:  req.Attributes,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	cart := h.resolveCart(w, r)
	if cart == nil {
		return
	}

	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	itemID := chi.URLParam(r, "itemID")
	if err := h.carts.UpdateQuantity(r.Context(), cart.ID, itemID, req.Quantity); err != nil {
		respondDomainError(w, err)
		return
	}

	updated, err := h.carts.CartByID(r.Context(), cart.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart := h.resolveCart(w, r)
	if cart == nil {
		return
	}

	itemID := chi.URLParam(r, "itemID")
	if err := h.carts.RemoveItem(r.Context(), cart.ID, itemID); err != nil {
		respondDomainError(w, err)
		return
	}

	updated, err := h.carts.CartByID(r.Context(), cart.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart := h.resolveCart(w, r)
	if cart == nil {
		return
	}

	if err := h.carts.Clear(r.Context(), cart.ID); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MergeCart folds a guest session cart into the authenticated user's cart.
// Requires a user identity; the session to merge comes from the body.
func (h *CartHandler) MergeCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok || owner.Kind != domain.OwnerUser {
		respondError(w, http.StatusUnauthorized, "unauthorized", "merge requires an authenticated user")
		return
	}

	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "session_id is required")
		return
	}

	cart, conflicts, err := h.carts.MergeGuestIntoUser(r.Context(), req.SessionID, owner.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if conflicts == nil {
		conflicts = []domain.MergeConflict{}
	}
	respondJSON(w, http.StatusOK, MergeResponse{Cart: cart, Conflicts: conflicts})
}
