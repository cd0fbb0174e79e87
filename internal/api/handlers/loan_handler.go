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

// LoanHandler handles HTTP requests related to loans.
type LoanHandler struct {
	service services.LoanServiceProvider
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(service services.LoanServiceProvider) *LoanHandler {
	return &LoanHandler{service: service}
}

// CreateLoanPayload defines the structure for loan creation requests.
type CreateLoanPayload struct {
	Amount  float64 `json:"amount"`
	Apr     float64 `json:"apr"`
	Term    int     `json:"term"`
	Status  string  `json:"status"`
	OwnerID string  `json:"owner_id"`
}

// Create handles the request to create a new loan. The owner receives view
// access as part of creation.
func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload CreateLoanPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, apperr.New(apperr.ErrValidation, "Invalid request body"))
		return
	}

	ownerID := payload.OwnerID
	if ownerID == "" {
		ownerID, _ = auth.UserIDFromContext(r.Context())
	}

	loan, err := h.service.CreateLoan(models.Loan{
		Amount:  payload.Amount,
		Apr:     payload.Apr,
		Term:    payload.Term,
		Status:  payload.Status,
		OwnerID: ownerID,
	})
	if err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("Failed to create loan")
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, loan)
}

// ListByOwner handles the request to list the loans owned by a user.
func (h *LoanHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	ownerID := actingUser(r, "owner_id")
	if ownerID == "" {
		writeError(w, r, apperr.New(apperr.ErrValidation, "owner_id is required"))
		return
	}

	skip, limit := pagination(r, 100)
	loans, err := h.service.ListLoansByOwner(ownerID, skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if loans == nil {
		loans = []models.Loan{}
	}
	writeJSON(w, http.StatusOK, loans)
}

// GetSchedule handles the request for a loan's full monthly schedule. The
// loan must be owned by or shared with the acting user.
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loanID")
	userID := actingUser(r, "user_id")
	if userID == "" {
		writeError(w, r, apperr.New(apperr.ErrValidation, "user_id is required"))
		return
	}

	schedule, err := h.service.GetSchedule(loanID, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// GetSummary handles the request for a loan's state as of a given month.
func (h *LoanHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loanID")
	userID := actingUser(r, "user_id")
	if userID == "" {
		writeError(w, r, apperr.New(apperr.ErrValidation, "user_id is required"))
		return
	}

	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, r, apperr.New(apperr.ErrValidation, "Month must be an integer"))
		return
	}

	summary, err := h.service.GetSummary(loanID, userID, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Update handles the request to change a loan's mutable fields. Only the
// owner may update.
func (h *LoanHandler) Update(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loanID")
	userID := actingUser(r, "user_id")
	if userID == "" {
		writeError(w, r, apperr.New(apperr.ErrValidation, "user_id is required"))
		return
	}

	var update models.LoanUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, r, apperr.New(apperr.ErrValidation, "Invalid request body"))
		return
	}

	loan, err := h.service.UpdateLoan(loanID, userID, update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// Share handles the request to grant another user view access to a loan.
func (h *LoanHandler) Share(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loanID")
	ownerID := actingUser(r, "owner_id")
	granteeID := r.URL.Query().Get("user_id")
	if ownerID == "" || granteeID == "" {
		writeError(w, r, apperr.New(apperr.ErrValidation, "owner_id and user_id are required"))
		return
	}

	if err := h.service.ShareLoan(loanID, ownerID, granteeID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "success"})
}

// actingUser resolves the acting user's id: the named query parameter wins,
// with bearer-token claims as the fallback.
func actingUser(r *http.Request, param string) string {
	if v := r.URL.Query().Get(param); v != "" {
		return v
	}
	if id, ok := auth.UserIDFromContext(r.Context()); ok {
		return id
	}
	return ""
}
