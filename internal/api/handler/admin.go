package handler

import (
	"net/http"

	"github.com/wardrobehq/wardrobe/internal/api/response"
	"github.com/wardrobehq/wardrobe/internal/sweeper"
)

// NewSweepHandler returns an http.HandlerFunc for POST /api/v1/admin/sweep.
// `?reset=true` runs the full reset instead of the aged sweep.
func NewSweepHandler(sw *sweeper.Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			stats sweeper.Stats
			err   error
		)
		if r.URL.Query().Get("reset") == "true" {
			stats, err = sw.FullReset(r.Context())
		} else {
			stats, err = sw.Sweep(r.Context())
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "SWEEP_FAILED",
				"Sweep did not complete", map[string]string{"error": err.Error()})
			return
		}
		response.JSON(w, stats)
	}
}
