package handler

import (
	"net/http"

	"github.com/wardrobehq/wardrobe/internal/api/middleware"
	"github.com/wardrobehq/wardrobe/internal/api/response"
	"github.com/wardrobehq/wardrobe/internal/extract"
)

// NewAnalyzeHandler returns an http.HandlerFunc for POST /api/v1/analyze:
// synchronous single-image analysis outside the pipeline, with the
// shorter interactive retry budget.
func NewAnalyzeHandler(ex *extract.Extractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetOwnerID(r); !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_OWNER", "Missing owner", nil)
			return
		}

		data, _, err := readUpload(r)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		meta := ex.Extract(r.Context(), data, http.DetectContentType(data), extract.InteractiveAttempts)
		response.JSON(w, meta)
	}
}
