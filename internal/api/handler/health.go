package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/wardrobehq/wardrobe/internal/api/response"
)

// Pinger is anything that can report backend liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
// Each named dependency is pinged; the endpoint degrades to 503 when any
// of them is down.
func NewHealthHandler(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := make(map[string]string, len(deps))
		healthy := true
		for name, p := range deps {
			if p == nil {
				continue
			}
			if err := p.Ping(ctx); err != nil {
				checks[name] = "down: " + err.Error()
				healthy = false
				continue
			}
			checks[name] = "ok"
		}

		body := map[string]any{"status": "ok", "checks": checks}
		if !healthy {
			body["status"] = "degraded"
			response.Error(w, http.StatusServiceUnavailable, "UNHEALTHY",
				"One or more dependencies are down", checks)
			return
		}
		response.JSON(w, body)
	}
}
