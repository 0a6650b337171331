package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/wardrobehq/wardrobe/internal/api/middleware"
	"github.com/wardrobehq/wardrobe/internal/api/response"
)

// Dependencies holds all handler dependencies for the router.
type Dependencies struct {
	HealthHandler http.HandlerFunc

	UploadHandler      http.HandlerFunc
	BatchUploadHandler http.HandlerFunc
	GetItemHandler     http.HandlerFunc
	ListItemsHandler   http.HandlerFunc
	ConfirmHandler     http.HandlerFunc
	DeleteItemHandler  http.HandlerFunc

	DuplicateCheckHandler http.HandlerFunc
	AnalyzeHandler        http.HandlerFunc

	SweepHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Owner-scoped routes
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireOwner)

		r.Post("/api/v1/items", orNotImplemented(deps.UploadHandler))
		r.Post("/api/v1/items/batch", orNotImplemented(deps.BatchUploadHandler))
		r.Get("/api/v1/items", orNotImplemented(deps.ListItemsHandler))
		r.Get("/api/v1/items/{itemID}", orNotImplemented(deps.GetItemHandler))
		r.Post("/api/v1/items/{itemID}/confirm", orNotImplemented(deps.ConfirmHandler))
		r.Delete("/api/v1/items/{itemID}", orNotImplemented(deps.DeleteItemHandler))

		r.Post("/api/v1/duplicates/check", orNotImplemented(deps.DuplicateCheckHandler))
		r.Post("/api/v1/analyze", orNotImplemented(deps.AnalyzeHandler))
	})

	// Admin routes
	r.Post("/api/v1/admin/sweep", orNotImplemented(deps.SweepHandler))

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
