package db

import (
	"context"

	"github.com/ukydev/qr-attendance/internal/models"
)

// AttemptCollection defines the interface for the verification attempt journal.
type AttemptCollection interface {
	InsertAttempt(ctx context.Context, attempt models.Attempt) error
	RecentAttempts(ctx context.Context, employeeID string, limit int64) ([]models.Attempt, error)
}
