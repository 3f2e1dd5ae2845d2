package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/reservation"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// an encode failure here means the client hung up; nothing to do
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondDomainError maps domain errors to HTTP statuses. Stock and
// lifecycle conflicts are 409 so clients can distinguish "retry after
// refresh" from plain bad input.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		respondError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, domain.ErrReservationExpired):
		respondError(w, http.StatusConflict, "reservation_expired", err.Error())
	case errors.Is(err, domain.ErrReservationReleased):
		respondError(w, http.StatusConflict, "reservation_released", err.Error())
	case errors.Is(err, domain.ErrCartConverted):
		respondError(w, http.StatusConflict, "cart_converted", err.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, domain.ErrCartNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrReservationNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, reservation.ErrInvalidQuantity),
		errors.Is(err, reservation.ErrInvalidTTL):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
