package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prodtrack/api/internal/database"
	"github.com/rs/zerolog"
)

// GroupStore defines the database methods needed by group handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type GroupStore interface {
	ListGroupsByPlant(ctx context.Context, plant string) ([]database.Group, error)
}

// GroupHandler lists the operator groups of a plant.
type GroupHandler struct {
	store GroupStore
	log   zerolog.Logger
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(store GroupStore, log zerolog.Logger) *GroupHandler {
	return &GroupHandler{store: store, log: log}
}

// RegisterRoutes registers group endpoints. The router is expected to apply
// middleware.RequirePlant.
func (h *GroupHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type groupResponse struct {
	ID    int32  `json:"id"`
	Plant string `json:"plant"`
	Name  string `json:"name"`
}

// List returns the groups of {plant}.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	plant := strings.TrimSpace(chi.URLParam(r, "plant"))
	if plant == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "plant is required"})
		return
	}

	groups, err := h.store.ListGroupsByPlant(r.Context(), plant)
	if err != nil {
		h.log.Error().Err(err).Str("plant", plant).Msg("list groups")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]groupResponse, len(groups))
	for i, g := range groups {
		resp[i] = groupResponse{ID: g.ID, Plant: g.Plant, Name: g.Name}
	}
	writeJSON(w, http.StatusOK, resp)
}
