package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/qr-attendance/internal/auth"
	"github.com/ukydev/qr-attendance/internal/middleware"
	"github.com/ukydev/qr-attendance/internal/models"
)

// Accounts is the identity store behind the auth endpoints.
type Accounts interface {
	Login(req models.LoginRequest) (*models.Identity, error)
	Logout()
	CurrentIdentity() *models.Identity
}

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *auth.Service
	accounts    Accounts
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, accounts Accounts) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		accounts:    accounts,
	}
}

// Login signs the device in. The first login for an email creates the account.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var loginReq models.LoginRequest
	if err := json.Unmarshal(body, &loginReq); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if loginReq.Email == "" || loginReq.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	identity, err := h.accounts.Login(loginReq)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.authService.GenerateToken(identity)
	if err != nil {
		log.WithError(err).Error("Failed to generate token")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	log.WithField("employee_id", identity.EmployeeID).Info("User logged in")
	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token:    token,
		Identity: *identity,
	})
}

// Logout clears the device's identity. Later matches are not submitted.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.accounts.Logout()
	if identity, ok := middleware.GetIdentityFromContext(r.Context()); ok {
		log.WithField("employee_id", identity.EmployeeID).Info("User logged out")
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Me returns the caller's identity from the token, and whether the device is
// still signed in as that identity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	current := h.accounts.CurrentIdentity()
	writeJSON(w, http.StatusOK, struct {
		models.Identity
		Active bool `json:"active"`
	}{
		Identity: *identity,
		Active:   current != nil && current.EmployeeID == identity.EmployeeID,
	})
}
