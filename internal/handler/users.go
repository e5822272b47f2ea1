package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/prodtrack/api/internal/database"
	"github.com/prodtrack/api/internal/enum"
	"github.com/prodtrack/api/internal/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// UserStore defines the database methods needed by user handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type UserStore interface {
	ListUsersByPlant(ctx context.Context, plant pgtype.Text) ([]database.User, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	DeactivateUser(ctx context.Context, arg database.DeactivateUserParams) (uuid.UUID, error)
}

// UserHandler manages the operators and supervisors of a plant.
type UserHandler struct {
	store UserStore
	log   zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store UserStore, log zerolog.Logger) *UserHandler {
	return &UserHandler{store: store, log: log}
}

// RegisterRoutes registers user endpoints. Mounted under /plants/{plant}/users
// behind RequirePlant and RequireRole(ADMIN, SUPERVISOR).
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Delete("/{id}", h.Deactivate)
}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,max=128"`
	Role     string `json:"role" validate:"required,oneof=SUPERVISOR OPERATOR"`
}

type userDetailResponse struct {
	ID        uuid.UUID `json:"id"`
	Plant     string    `json:"plant"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDetailResponse(u database.User) userDetailResponse {
	return userDetailResponse{
		ID:        u.ID,
		Plant:     u.Plant.String,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func plantParam(r *http.Request) pgtype.Text {
	plant := strings.TrimSpace(chi.URLParam(r, "plant"))
	return pgtype.Text{String: plant, Valid: plant != ""}
}

// List returns the active users of {plant}.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	plant := plantParam(r)
	if !plant.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "plant is required"})
		return
	}

	users, err := h.store.ListUsersByPlant(r.Context(), plant)
	if err != nil {
		h.log.Error().Err(err).Str("plant", plant.String).Msg("list users")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]userDetailResponse, len(users))
	for i, u := range users {
		resp[i] = toUserDetailResponse(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create adds a user to {plant}. Supervisors may only add operators.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	plant := plantParam(r)
	if !plant.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "plant is required"})
		return
	}

	req, err := decodeJSON[createUserRequest](r)
	if err != nil {
		writeBindError(w, h.log, err)
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	if claims.Role != enum.UserRoleAdmin && req.Role != enum.UserRoleOperator {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "supervisors can only create operators"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.log.Error().Err(err).Msg("hash password")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	user, err := h.store.CreateUser(r.Context(), database.CreateUserParams{
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		Plant:        plant,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email already exists"})
			return
		}
		h.log.Error().Err(err).Str("plant", plant.String).Msg("create user")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.log.Info().
		Str("plant", plant.String).
		Str("user_id", user.ID.String()).
		Str("created_by", claims.UserID.String()).
		Msg("user created")
	writeJSON(w, http.StatusCreated, toUserDetailResponse(user))
}

// Deactivate soft-deletes a user of {plant}.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	plant := plantParam(r)
	if !plant.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "plant is required"})
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil && claims.UserID == userID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot deactivate yourself"})
		return
	}

	_, err = h.store.DeactivateUser(r.Context(), database.DeactivateUserParams{ID: userID, Plant: plant})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		h.log.Error().Err(err).Str("user_id", userID.String()).Msg("deactivate user")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
