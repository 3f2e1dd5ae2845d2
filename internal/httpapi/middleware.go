package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
)

type contextKey string

const (
	ownerKey     contextKey = "owner"
	requestIDKey contextKey = "request_id"
)

// OwnerMiddleware resolves the request's cart owner from the X-User-ID or
// X-Session-ID header. Token validation happens upstream; by the time a
// request reaches this service the headers are trusted. A user identity
// wins when both are present.
func OwnerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var owner domain.Owner
		switch {
		case r.Header.Get("X-User-ID") != "":
			owner = domain.UserOwner(r.Header.Get("X-User-ID"))
		case r.Header.Get("X-Session-ID") != "":
			owner = domain.SessionOwner(r.Header.Get("X-Session-ID"))
		default:
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing X-User-ID or X-Session-ID header")
			return
		}

		ctx := context.WithValue(r.Context(), ownerKey, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware tags each request, honoring an inbound X-Request-ID.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ownerFromContext(ctx context.Context) (domain.Owner, bool) {
	owner, ok := ctx.Value(ownerKey).(domain.Owner)
	return owner, ok
}
