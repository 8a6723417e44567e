package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type generationItem struct {
	ID               string     `json:"id"`
	OriginalFilename string     `json:"original_filename"`
	OriginalURL      string     `json:"original_url,omitempty"`
	OriginalSize     int64      `json:"original_size"`
	OriginalFormat   string     `json:"original_format"`
	GeneratedURL     string     `json:"generated_url,omitempty"`
	GeneratedSize    int64      `json:"generated_size,omitempty"`
	Description      string     `json:"description,omitempty"`
	LogoApplied      bool       `json:"logo_applied"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

func toGenerationItem(rec *domain.GenerationRecord) generationItem {
	return generationItem{
		ID:               rec.ID,
		OriginalFilename: rec.OriginalFilename,
		OriginalURL:      rec.OriginalURL,
		OriginalSize:     rec.OriginalSize,
		OriginalFormat:   rec.OriginalFormat,
		GeneratedURL:     rec.GeneratedURL,
		GeneratedSize:    rec.GeneratedSize,
		Description:      rec.Description,
		LogoApplied:      rec.LogoApplied,
		ErrorMessage:     rec.ErrorMessage,
		Status:           string(rec.Status),
		CreatedAt:        rec.CreatedAt,
		StartedAt:        rec.StartedAt,
		CompletedAt:      rec.CompletedAt,
	}
}

// ListGenerations handles GET /v1/generations with optional status filter and
// limit/offset pagination, newest first.
func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	var status *domain.GenerationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := domain.ParseGenerationStatus(raw)
		if err != nil {
			a.error(w, r, http.StatusBadRequest, "bad_request", "unknown status filter")
			return
		}
		status = &parsed
	}

	recs, err := a.Generations.List(r.Context(), status, limit, offset)
	if err != nil {
		a.Logger.Error().Err(err).Msg("generations: list failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to load generations")
		return
	}

	items := make([]generationItem, 0, len(recs))
	for i := range recs {
		items = append(items, toGenerationItem(&recs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

// GetGeneration handles GET /v1/generations/{id}.
func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", "id required")
		return
	}
	rec, err := a.Generations.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, r, http.StatusNotFound, "not_found", "generation not found")
			return
		}
		a.Logger.Error().Err(err).Str("generation_id", id).Msg("generations: lookup failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to load generation")
		return
	}
	a.json(w, http.StatusOK, toGenerationItem(rec))
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
