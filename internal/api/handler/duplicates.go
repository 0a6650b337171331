package handler

import (
	"encoding/json"
	"net/http"

	"github.com/wardrobehq/wardrobe/internal/api/middleware"
	"github.com/wardrobehq/wardrobe/internal/api/response"
	"github.com/wardrobehq/wardrobe/internal/dedup"
	"github.com/wardrobehq/wardrobe/pkg/phash"
)

// NewDuplicateCheckHandler returns an http.HandlerFunc for
// POST /api/v1/duplicates/check. Clients submit a perceptual hash and get
// the nearest completed match back, if any.
func NewDuplicateCheckHandler(detector *dedup.Detector) http.HandlerFunc {
	type checkResult struct {
		Duplicate bool         `json:"duplicate"`
		Match     *dedup.Match `json:"match,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_OWNER", "Missing owner", nil)
			return
		}

		var req struct {
			Hash string `json:"hash"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if _, err := phash.Parse(req.Hash); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_HASH",
				"hash must be 16 hex characters", nil)
			return
		}

		match, err := detector.Check(r.Context(), ownerID, req.Hash)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Duplicate check failed", nil)
			return
		}
		response.JSON(w, checkResult{Duplicate: match != nil, Match: match})
	}
}
