package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
)

// StockChecker is the slice of the reservation authority the handler needs.
type StockChecker interface {
	CheckAvailable(ctx context.Context, productID, variationID string) (int, error)
}

type StockHandler struct {
	authority StockChecker
}

func NewStockHandler(authority StockChecker) *StockHandler {
	return &StockHandler{authority: authority}
}

type StockResponse struct {
	ProductID   string             `json:"product_id"`
	VariationID string             `json:"variation_id,omitempty"`
	Available   int                `json:"available"`
	Status      domain.StockStatus `json:"status"`
}

// CheckStock reports availability net of active holds.
func (h *StockHandler) CheckStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	variationID := r.URL.Query().Get("variation")

	available, err := h.authority.CheckAvailable(r.Context(), productID, variationID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	status := domain.StockInStock
	if available <= 0 {
		status = domain.StockOutOfStock
	}
	respondJSON(w, http.StatusOK, StockResponse{
		ProductID:   productID,
		VariationID: variationID,
		Available:   available,
		Status:      status,
	})
}
