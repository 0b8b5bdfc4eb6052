package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/voiceheard/internal/store"
)

const defaultHistoryLimit = 50

// HistoryHandler serves the history list and favorites.
type HistoryHandler struct {
	store *store.Store
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(s *store.Store) *HistoryHandler {
	return &HistoryHandler{store: s}
}

type listHistoryResponse struct {
	History []*store.HistoryRecord `json:"history"`
}

type favoriteRequest struct {
	Favorite *bool `json:"favorite"`
}

// List handles GET /api/history?limit=&favorites=.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	favorites := r.URL.Query().Get("favorites") == "true"

	records, err := h.store.History().List(r.Context(), limit, favorites)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list history")
		return
	}
	if records == nil {
		records = []*store.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, listHistoryResponse{History: records})
}

// Favorite handles POST /api/history/{id}/favorite. An empty body marks the
// record as a favorite.
func (h *HistoryHandler) Favorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	favorite := true
	var req favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Favorite != nil {
		favorite = *req.Favorite
	}

	if err := h.store.History().SetFavorite(r.Context(), id, favorite); err != nil {
		writeErr(w, err, "Failed to update history")
		return
	}
	rec, err := h.store.History().Get(r.Context(), id)
	if err != nil {
		writeErr(w, err, "Failed to get history")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
