package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/wardrobehq/wardrobe/internal/api/response"
)

// OwnerHeader carries the caller's identity. Authentication itself is an
// upstream concern; this layer only requires the id to be a UUID.
const OwnerHeader = "X-Owner-ID"

type contextKey string

const ownerIDKey contextKey = "owner_id"

func SetOwnerID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerIDKey, id)
}

func GetOwnerID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(ownerIDKey).(uuid.UUID)
	return id, ok
}

// RequireOwner rejects requests without a parseable owner id and puts
// the id on the request context for handlers.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(OwnerHeader)
		if raw == "" {
			response.Error(w, http.StatusUnauthorized, "MISSING_OWNER",
				"X-Owner-ID header is required", nil)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "INVALID_OWNER",
				"X-Owner-ID must be a UUID", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(SetOwnerID(r.Context(), id)))
	})
}
