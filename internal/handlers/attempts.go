package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/qr-attendance/internal/db"
	"github.com/ukydev/qr-attendance/internal/middleware"
	"github.com/ukydev/qr-attendance/internal/models"
)

// RecentAttemptsLimit caps GET /api/attempts.
const RecentAttemptsLimit = 50

// AttemptHandler serves the attempt journal.
type AttemptHandler struct {
	attempts db.AttemptCollection
}

// NewAttemptHandler creates the handler. attempts is nil when no journal is configured.
func NewAttemptHandler(attempts db.AttemptCollection) *AttemptHandler {
	return &AttemptHandler{attempts: attempts}
}

// List returns the latest attempts. With ?mine=true only the caller's own
// submitted attempts are listed.
func (h *AttemptHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.attempts == nil {
		http.Error(w, "Attempt journal is not configured", http.StatusServiceUnavailable)
		return
	}

	var employeeID string
	if r.URL.Query().Get("mine") == "true" {
		identity, ok := middleware.GetIdentityFromContext(r.Context())
		if !ok {
			http.Error(w, "User context not found", http.StatusUnauthorized)
			return
		}
		employeeID = identity.EmployeeID
	}

	attempts, err := h.attempts.RecentAttempts(r.Context(), employeeID, RecentAttemptsLimit)
	if err != nil {
		log.WithError(err).Error("Failed to list attempts")
		http.Error(w, "Failed to list attempts", http.StatusInternalServerError)
		return
	}
	if attempts == nil {
		attempts = []models.Attempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}
