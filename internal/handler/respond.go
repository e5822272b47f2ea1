package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/prodtrack/api/internal/auth"
	"github.com/prodtrack/api/internal/enum"
	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// canAccessPlant mirrors middleware.RequirePlant for routes whose plant is
// only known after a lookup.
func canAccessPlant(claims *auth.Claims, plant string) bool {
	if claims == nil {
		return false
	}
	if claims.Role == enum.UserRoleAdmin || claims.Plant == "" {
		return true
	}
	return strings.EqualFold(claims.Plant, plant)
}
