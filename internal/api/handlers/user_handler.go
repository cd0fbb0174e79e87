package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lendingdesk/lending-api/internal/apperr"
	"github.com/lendingdesk/lending-api/internal/auth"
	"github.com/lendingdesk/lending-api/internal/models"
	"github.com/lendingdesk/lending-api/internal/services"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	userService   services.UserServiceProvider
	accessService services.AccessServiceProvider
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.UserServiceProvider, accessService services.AccessServiceProvider) *UserHandler {
	return &UserHandler{userService: userService, accessService: accessService}
}

// CreateUserPayload defines the structure for registration requests.
type CreateUserPayload struct {
	Username string `json:"username"`
}

// Create handles new user registration.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload CreateUserPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, apperr.New(apperr.ErrValidation, "Invalid request body"))
		return
	}

	user, err := h.userService.CreateUser(payload.Username)
	if err != nil {
		log.Warn().Err(err).Str("username", payload.Username).Msg("Failed to register user")
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// List handles retrieving the set of registered users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r, 100)
	users, err := h.userService.ListUsers(skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// VisibleLoans lists every loan a user owns or has been granted access to.
func (h *UserHandler) VisibleLoans(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if _, err := h.userService.GetUserByID(userID); err != nil {
		writeError(w, r, err)
		return
	}

	loans, err := h.accessService.GetVisibleLoans(userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if loans == nil {
		loans = []models.Loan{}
	}
	writeJSON(w, http.StatusOK, loans)
}

// TokenPayload defines the structure for token requests.
type TokenPayload struct {
	Username string `json:"username"`
}

// IssueToken hands out a bearer token for an existing username, letting
// clients omit the user_id query parameters on later calls.
func (h *UserHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var payload TokenPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, apperr.New(apperr.ErrValidation, "Invalid request body"))
		return
	}

	user, err := h.userService.GetUserByUsername(payload.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := auth.GenerateJWT(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate JWT")
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// pagination reads skip/limit query parameters with sane bounds.
func pagination(r *http.Request, defaultLimit int) (int, int) {
	skip, err := strconv.Atoi(r.URL.Query().Get("skip"))
	if err != nil || skip < 0 {
		skip = 0
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	return skip, limit
}
