package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rahul4469/seemenu/internal/models"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HistoryLister reads recorded upload attempts.
type HistoryLister interface {
	Recent(ctx context.Context, limit int) ([]*models.UploadRecord, error)
	ByID(ctx context.Context, id uuid.UUID) (*models.UploadRecord, error)
}

// HistoryController exposes recent upload attempts as JSON.
type HistoryController struct {
	uploads HistoryLister
	logger  *slog.Logger
}

// NewHistoryController accepts a nil lister, in which case history is
// reported as disabled.
func NewHistoryController(uploads HistoryLister, logger *slog.Logger) *HistoryController {
	return &HistoryController{uploads: uploads, logger: logger}
}

type historyResponse struct {
	Uploads []*models.UploadRecord `json:"uploads"`
}

// GetHistory handles GET /history?limit=N.
func (c *HistoryController) GetHistory(w http.ResponseWriter, r *http.Request) {
	if c.uploads == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "upload history is not enabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := c.uploads.Recent(r.Context(), limit)
	if err != nil {
		c.logger.Error("failed to list upload history", "error", err)
		if errors.Is(err, models.ErrHistoryNotMigrated) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "upload history is not migrated"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list upload history"})
		return
	}
	if records == nil {
		records = []*models.UploadRecord{}
	}

	writeJSON(w, http.StatusOK, historyResponse{Uploads: records})
}

// GetUpload handles GET /history/{id}.
func (c *HistoryController) GetUpload(w http.ResponseWriter, r *http.Request) {
	if c.uploads == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "upload history is not enabled"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid upload id"})
		return
	}

	rec, err := c.uploads.ByID(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUploadNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "upload not found"})
		case errors.Is(err, models.ErrHistoryNotMigrated):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "upload history is not migrated"})
		default:
			c.logger.Error("failed to get upload", "id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get upload"})
		}
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
