package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/wardrobehq/wardrobe/internal/api/middleware"
	"github.com/wardrobehq/wardrobe/internal/api/response"
	"github.com/wardrobehq/wardrobe/internal/cache"
	"github.com/wardrobehq/wardrobe/internal/dedup"
	"github.com/wardrobehq/wardrobe/internal/stager"
	"github.com/wardrobehq/wardrobe/internal/storage"
	"github.com/wardrobehq/wardrobe/internal/store"
	"github.com/wardrobehq/wardrobe/pkg/models"
)

const (
	// HashHeader lets clients submit a precomputed perceptual hash with a
	// raw-body upload.
	HashHeader = "X-Perceptual-Hash"

	maxUploadBytes      = 32 << 20
	maxBatchFiles       = 24
	maxBatchesPerMinute = 10
	statusCacheTTL      = 5 * time.Minute
	defaultListLimit    = 100
)

// UploadResult is the immediate answer to an upload; processing continues
// in the background.
type UploadResult struct {
	ItemID         uuid.UUID    `json:"item_id"`
	Status         string       `json:"status"`
	PerceptualHash string       `json:"perceptual_hash"`
	Duplicate      *dedup.Match `json:"duplicate,omitempty"`
}

// NewUploadHandler returns an http.HandlerFunc for POST /api/v1/items.
// Accepts multipart ("image" file + optional "hash" field) or a raw image
// body with the hash header. The duplicate check is advisory and never
// blocks the upload.
func NewUploadHandler(s *stager.Stager, detector *dedup.Detector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_OWNER", "Missing owner", nil)
			return
		}

		data, hash, err := readUpload(r)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		res, err := s.Stage(r.Context(), stager.Upload{OwnerID: ownerID, Data: data, Hash: hash})
		if err != nil {
			writeStageError(w, err)
			return
		}

		out := UploadResult{
			ItemID:         res.ItemID,
			Status:         string(models.ItemStatusPending),
			PerceptualHash: res.Hash,
		}
		if match, err := detector.Check(r.Context(), ownerID, res.Hash); err == nil {
			out.Duplicate = match
		}
		response.Accepted(w, out)
	}
}

// NewBatchUploadHandler returns an http.HandlerFunc for
// POST /api/v1/items/batch: multipart with repeated "images" files, staged
// with bounded parallelism, each reported individually. Batch admission
// is counted per owner per minute to protect the inference service.
func NewBatchUploadHandler(s *stager.Stager, c cache.Cache) http.HandlerFunc {
	type batchEntry struct {
		Filename string     `json:"filename"`
		ItemID   *uuid.UUID `json:"item_id,omitempty"`
		Status   string     `json:"status"`
		Error    string     `json:"error,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_OWNER", "Missing owner", nil)
			return
		}
		if c != nil {
			n, err := c.IncrWithExpiry(r.Context(), cache.BatchAdmissionKey(ownerID), time.Minute)
			if err == nil && n > maxBatchesPerMinute {
				response.Error(w, http.StatusTooManyRequests, "RATE_LIMITED",
					"Too many batches, slow down", nil)
				return
			}
		}
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid multipart body", nil)
			return
		}
		files := r.MultipartForm.File["images"]
		if len(files) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "images is required", nil)
			return
		}
		if len(files) > maxBatchFiles {
			response.Error(w, http.StatusBadRequest, "BATCH_TOO_LARGE", "Too many files in one batch", nil)
			return
		}

		uploads := make([]stager.Upload, 0, len(files))
		names := make([]string, 0, len(files))
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unreadable file part", nil)
				return
			}
			data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
			f.Close()
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unreadable file part", nil)
				return
			}
			uploads = append(uploads, stager.Upload{OwnerID: ownerID, Data: data})
			names = append(names, fh.Filename)
		}

		results := s.StageBatch(r.Context(), uploads)
		entries := make([]batchEntry, len(results))
		for i, res := range results {
			entries[i] = batchEntry{Filename: names[i]}
			if res.Err != nil {
				entries[i].Status = "rejected"
				entries[i].Error = res.Err.Error()
				continue
			}
			id := res.ItemID
			entries[i].ItemID = &id
			entries[i].Status = string(models.ItemStatusPending)
		}
		response.Accepted(w, entries)
	}
}

// NewGetItemHandler returns an http.HandlerFunc for GET /api/v1/items/{itemID}.
// Polling clients hit the cache while the item is still in flight; the
// store is only consulted once the cached status says there is something
// worth reading.
func NewGetItemHandler(st store.Store, c cache.Cache) http.HandlerFunc {
	type pollResult struct {
		ItemID uuid.UUID `json:"item_id"`
		Status string    `json:"status"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_OWNER", "Missing owner", nil)
			return
		}
		itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "itemID must be a UUID", nil)
			return
		}

		if c != nil {
			status, found, err := c.GetItemStatus(r.Context(), itemID)
			if err == nil && found && inFlight(models.ItemStatus(status)) {
				response.JSON(w, pollResult{ItemID: itemID, Status: status})
				return
			}
		}

		item, err := st.GetItem(r.Context(), itemID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Item not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load item", nil)
			return
		}
		if item.OwnerID != ownerID {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Item not found", nil)
			return
		}
		if c != nil {
			_ = c.SetItemStatus(r.Context(), itemID, string(item.Status), statusCacheTTL)
		}
		response.JSON(w, item)
	}
}

// NewListItemsHandler returns an http.HandlerFunc for GET /api/v1/items.
// Only completed items are listed.
func NewListItemsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_OWNER", "Missing owner", nil)
			return
		}
		items, err := st.ListItems(r.Context(), store.ItemFilter{
			OwnerID:  ownerID,
			Statuses: []models.ItemStatus{models.ItemStatusCompleted},
			Limit:    defaultListLimit,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list items", nil)
			return
		}
		if items == nil {
			items = []*models.Item{}
		}
		response.Collection(w, items, response.CollectionMeta{Count: len(items)})
	}
}

// NewConfirmHandler returns an http.HandlerFunc for
// POST /api/v1/items/{itemID}/confirm. Confirmation promotes the processed
// artifact into permanent storage and flips the item to completed.
func NewConfirmHandler(st store.Store, objects storage.ObjectStore, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_OWNER", "Missing owner", nil)
			return
		}
		itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "itemID must be a UUID", nil)
			return
		}

		item, err := st.GetItem(r.Context(), itemID)
		if err != nil || item.OwnerID != ownerID {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Item not found", nil)
			return
		}
		if item.Status != models.ItemStatusProcessed {
			response.Error(w, http.StatusConflict, "NOT_CONFIRMABLE",
				"Only processed items can be confirmed", map[string]string{"status": string(item.Status)})
			return
		}

		processedKey := storage.ProcessedKey(ownerID, itemID)
		permanentKey := storage.PermanentKey(itemID)
		if err := objects.Move(r.Context(), processedKey, permanentKey); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to relocate image", nil)
			return
		}
		if err := st.PromoteItem(r.Context(), itemID, ownerID, permanentKey); err != nil {
			if errors.Is(err, store.ErrInvalidTransition) {
				response.Error(w, http.StatusConflict, "NOT_CONFIRMABLE", "Item state changed", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to promote item", nil)
			return
		}
		if c != nil {
			_ = c.SetItemStatus(r.Context(), itemID, string(models.ItemStatusCompleted), statusCacheTTL)
		}

		item, err = st.GetItem(r.Context(), itemID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load item", nil)
			return
		}
		response.JSON(w, item)
	}
}

// NewDeleteItemHandler returns an http.HandlerFunc for
// DELETE /api/v1/items/{itemID}. Discards a non-completed item, record
// and staging artifacts both.
func NewDeleteItemHandler(st store.Store, objects storage.ObjectStore, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_OWNER", "Missing owner", nil)
			return
		}
		itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "itemID must be a UUID", nil)
			return
		}

		item, err := st.GetItem(r.Context(), itemID)
		if err != nil || item.OwnerID != ownerID {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Item not found", nil)
			return
		}
		if item.Status == models.ItemStatusCompleted {
			response.Error(w, http.StatusConflict, "ITEM_COMPLETED",
				"Completed items are managed by the catalog, not the pipeline", nil)
			return
		}

		if item.StagingKey != "" {
			_ = objects.Delete(r.Context(), item.StagingKey)
		}
		_ = objects.Delete(r.Context(), storage.ProcessedKey(ownerID, itemID))
		if err := st.DeleteItem(r.Context(), itemID); err != nil && !errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete item", nil)
			return
		}
		if c != nil {
			_ = c.Delete(r.Context(), cache.ItemStatusKey(itemID))
		}
		response.NoContent(w)
	}
}

// inFlight reports whether a cached status still changes often enough
// that polling clients do not need the full record.
func inFlight(s models.ItemStatus) bool {
	return s == models.ItemStatusPending || s == models.ItemStatusProcessing
}

// readUpload extracts image bytes and an optional client hash from either
// a multipart form or a raw request body.
func readUpload(r *http.Request) ([]byte, string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, "", errors.New("invalid multipart body")
		}
		f, _, err := r.FormFile("image")
		if err != nil {
			return nil, "", errors.New("image file part is required")
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			return nil, "", errors.New("unreadable image part")
		}
		return data, r.FormValue("hash"), nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		return nil, "", errors.New("unreadable request body")
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty request body")
	}
	return data, r.Header.Get(HashHeader), nil
}

func writeStageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stager.ErrUnsupportedType):
		response.Error(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE",
			"Only JPEG, PNG and WebP images are accepted", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to stage upload", nil)
	}
}
