package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/history"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/refresh"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/snapshot"
)

// Refresher runs a full data refresh.
type Refresher interface {
	Run(ctx context.Context) (*refresh.Result, error)
}

// ResultReader serves the latest cached refresh output.
type ResultReader interface {
	GetSnapshot() (*snapshot.Snapshot, error)
	GetHistory() ([]history.Point, error)
}

// Handler handles portfolio HTTP requests.
type Handler struct {
	refresher Refresher
	cache     ResultReader
	log       zerolog.Logger
}

// NewHandler creates a new portfolio handler.
func NewHandler(refresher Refresher, cache ResultReader, log zerolog.Logger) *Handler {
	return &Handler{
		refresher: refresher,
		cache:     cache,
		log:       log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers portfolio routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolio", h.HandleGetPortfolio)
	r.Get("/portfolio/history", h.HandleGetHistory)
	r.Post("/refresh", h.HandleRefresh)
}

// HandleGetPortfolio returns the latest snapshot, computing one on demand
// when nothing has been cached yet (first request after startup).
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		snap, err := h.cache.GetSnapshot()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to read cached snapshot, recomputing")
		}
		if snap != nil {
			h.writeJSON(w, http.StatusOK, snap)
			return
		}
	}

	result, err := h.refresher.Run(r.Context())
	if err != nil {
		h.writeRefreshError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result.Snapshot)
}

// HandleGetHistory returns the latest history series, computing it on demand
// when nothing has been cached yet.
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		points, err := h.cache.GetHistory()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to read cached history, recomputing")
		}
		if points != nil {
			h.writeJSON(w, http.StatusOK, points)
			return
		}
	}

	result, err := h.refresher.Run(r.Context())
	if err != nil {
		h.writeRefreshError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result.History)
}

// HandleRefresh triggers a synchronous refresh.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.refresher.Run(r.Context())
	if err != nil {
		h.writeRefreshError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"updated_at":  result.Snapshot.UpdatedAt,
		"total_value": result.Snapshot.Portfolio.TotalValue,
		"positions":   len(result.Snapshot.Positions),
	})
}

// writeRefreshError maps refresh failures onto HTTP statuses. An empty
// portfolio configuration is the caller's problem; everything else is ours.
func (h *Handler) writeRefreshError(w http.ResponseWriter, err error) {
	if errors.Is(err, snapshot.ErrNoPositions) {
		h.writeError(w, http.StatusBadRequest, "no positions configured")
		return
	}
	h.log.Error().Err(err).Msg("Refresh failed")
	h.writeError(w, http.StatusInternalServerError, "refresh failed")
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
