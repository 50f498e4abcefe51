package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/licensed/internal/model"
	"github.com/faucetdb/licensed/internal/service"
	"github.com/faucetdb/licensed/internal/store"
)

// SystemHandler manages the server's own accounts: admin sessions, admins
// and API keys.
type SystemHandler struct {
	store    *store.Store
	authSvc  *service.AuthService
	tokenTTL time.Duration
}

// NewSystemHandler creates a new SystemHandler. Session tokens live for
// tokenTTL.
func NewSystemHandler(s *store.Store, authSvc *service.AuthService, tokenTTL time.Duration) *SystemHandler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &SystemHandler{store: s, authSvc: authSvc, tokenTTL: tokenTTL}
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	AdminID   int64  `json:"admin_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

// Login authenticates an admin and returns a JWT session token.
// POST /api/v1/system/admin/session
func (h *SystemHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, admin, err := h.authSvc.Login(r.Context(), req.Email, req.Password, h.tokenTTL)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case errors.Is(err, service.ErrAccountDisabled):
		writeError(w, http.StatusUnauthorized, "Account is disabled")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Authentication error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.tokenTTL.Seconds()),
		AdminID:   admin.ID,
		Email:     admin.Email,
		Name:      admin.Name,
	})
}

// Logout is a no-op on the server; JWTs are stateless and clients discard
// their token.
// DELETE /api/v1/system/admin/session
func (h *SystemHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session invalidated",
	})
}

// ---------------------------------------------------------------------------
// Admin management
// ---------------------------------------------------------------------------

// ListAdmins returns every admin account.
// GET /api/v1/system/admin
func (h *SystemHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.store.ListAdmins(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list admins")
		return
	}
	if admins == nil {
		admins = []model.Admin{}
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: admins,
		Meta:     &model.ResponseMeta{Count: len(admins)},
	})
}

// CreateAdmin creates a new admin account.
// POST /api/v1/system/admin
func (h *SystemHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if body.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}

	hash, err := service.HashPassword(body.Password)
	if err != nil {
		if errors.Is(err, service.ErrWeakPassword) {
			writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	admin := &model.Admin{
		Email:        body.Email,
		PasswordHash: hash,
		Name:         body.Name,
		IsActive:     true,
	}
	if err := h.store.CreateAdmin(r.Context(), admin); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "Admin with this email already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create admin")
		return
	}
	writeJSON(w, http.StatusCreated, admin)
}

// ---------------------------------------------------------------------------
// API key management
// ---------------------------------------------------------------------------

// ListAPIKeys returns all API keys without their hashes.
// GET /api/v1/system/api-key
func (h *SystemHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list API keys")
		return
	}
	if keys == nil {
		keys = []model.APIKey{}
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: keys,
		Meta:     &model.ResponseMeta{Count: len(keys)},
	})
}

type createAPIKeyRequest struct {
	Label     string     `json:"label"`
	Scope     string     `json:"scope"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// createAPIKeyResponse carries the plaintext key, shown once.
type createAPIKeyResponse struct {
	model.APIKey
	Key string `json:"api_key"`
}

// CreateAPIKey generates a key, stores its hash and returns the plaintext
// exactly once.
// POST /api/v1/system/api-key
func (h *SystemHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Scope == "" {
		req.Scope = model.ScopeRead
	}
	if !model.ValidScope(req.Scope) {
		writeError(w, http.StatusBadRequest, "scope must be read or admin")
		return
	}

	plaintext, hash, prefix, err := service.GenerateAPIKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate key")
		return
	}

	key := &model.APIKey{
		KeyHash:   hash,
		KeyPrefix: prefix,
		Label:     req.Label,
		Scope:     req.Scope,
		IsActive:  true,
		ExpiresAt: req.ExpiresAt,
	}
	if err := h.store.CreateAPIKey(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save API key")
		return
	}
	writeJSON(w, http.StatusCreated, createAPIKeyResponse{APIKey: *key, Key: plaintext})
}

// RevokeAPIKey deactivates an API key by ID.
// DELETE /api/v1/system/api-key/{keyId}
func (h *SystemHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "keyId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid key ID: "+chi.URLParam(r, "keyId"))
		return
	}

	if err := h.store.RevokeAPIKey(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to revoke API key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key revoked",
	})
}
