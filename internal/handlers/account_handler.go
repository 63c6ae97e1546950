package handlers

import (
	"errors"
	"net/http"

	"mathquest/internal/models"
	"mathquest/internal/service"
)

// AccountHandler handles registration, login, stats and guardian routes
type AccountHandler struct {
	accounts *service.AccountService
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Age      int    `json:"age"`
	Role     string `json:"role"`
}

// Register creates a learner or guardian account
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Age:      req.Age,
		Role:     req.Role,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":   true,
		"id":   account.ID,
		"role": account.Role,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	OK     bool        `json:"ok"`
	ID     string      `json:"id,omitempty"`
	Role   models.Role `json:"role,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// CheckLogin verifies a username and password
func (h *AccountHandler) CheckLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.accounts.CheckLogin(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, service.ErrNoSuchAccount):
		writeJSON(w, http.StatusNotFound, loginResponse{Reason: CodeNoUser})
	case errors.Is(err, service.ErrBadSecret):
		writeJSON(w, http.StatusUnauthorized, loginResponse{Reason: CodeWrongPassword})
	case err != nil:
		respondWithServiceError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, loginResponse{OK: true, ID: account.ID, Role: account.Role})
	}
}

type statsRequest struct {
	Username string `json:"username"`
}

// StatsByBody returns the summary of the account named in the request body
func (h *AccountHandler) StatsByBody(w http.ResponseWriter, r *http.Request) {
	var req statsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.writeStats(w, r, req.Username)
}

// Stats returns the summary of the account named in the path
func (h *AccountHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeStats(w, r, r.PathValue("username"))
}

func (h *AccountHandler) writeStats(w http.ResponseWriter, r *http.Request, username string) {
	summary, err := h.accounts.GetStats(r.Context(), username)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": summary})
}

type createChildRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Age      int    `json:"age"`
}

// CreateChild creates a learner for the guardian in the path
func (h *AccountHandler) CreateChild(w http.ResponseWriter, r *http.Request) {
	h.createChild(w, r, r.PathValue("guardianID"))
}

// CreateChildForCaller creates a learner for the guardian named by X-User-Id
func (h *AccountHandler) CreateChildForCaller(w http.ResponseWriter, r *http.Request) {
	h.createChild(w, r, guardianIDFromHeader(r))
}

func (h *AccountHandler) createChild(w http.ResponseWriter, r *http.Request, guardianID string) {
	var req createChildRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.accounts.CreateChild(r.Context(), guardianID, service.ChildInput{
		Username: req.Username,
		Password: req.Password,
		Age:      req.Age,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	response := map[string]any{
		"ok":    true,
		"child": created.Account.Summary(),
	}
	if created.GeneratedPassword != "" {
		response["generatedPassword"] = created.GeneratedPassword
	}
	writeJSON(w, http.StatusCreated, response)
}

// ListChildren returns the learners of the guardian in the path
func (h *AccountHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	h.listChildren(w, r, r.PathValue("guardianID"))
}

// ListChildrenForCaller returns the learners of the guardian named by X-User-Id
func (h *AccountHandler) ListChildrenForCaller(w http.ResponseWriter, r *http.Request) {
	h.listChildren(w, r, guardianIDFromHeader(r))
}

func (h *AccountHandler) listChildren(w http.ResponseWriter, r *http.Request, guardianID string) {
	children, err := h.accounts.ListChildrenOf(r.Context(), guardianID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "children": children})
}

type gateRequest struct {
	Password string `json:"password"`
}

// AllAccounts returns every account to holders of the support gate password
func (h *AccountHandler) AllAccounts(w http.ResponseWriter, r *http.Request) {
	var req gateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	accounts, err := h.accounts.ListAllAccounts(r.Context(), req.Password)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "users": accounts})
}

// Health reports whether the account store answers
func (h *AccountHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Ping(r.Context()); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "store": "up"})
}

// Ping answers without touching the store
func Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "pong"})
}
