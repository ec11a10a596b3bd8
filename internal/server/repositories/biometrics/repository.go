// Package biometrics provides the PostgreSQL-backed repository for biometric
// profiles.
package biometrics

import (
	"context"
	"time"

	"github.com/keyhaven/keyhaven/internal/server/evidence"
	"github.com/keyhaven/keyhaven/internal/server/models"
)

type Repository interface {
	// Get returns the user's profile or common.ErrNotFound.
	Get(ctx context.Context, userID string) (*models.BiometricProfile, error)

	// UpsertSlot replaces exactly one modality slot in a single statement;
	// the other slots are untouched and an abandoned request leaves no
	// partial row.
	UpsertSlot(ctx context.Context, userID string, modality evidence.Modality, slot *models.BiometricSlot) error

	// TouchVerified records a successful biometric verification.
	TouchVerified(ctx context.Context, userID string, at time.Time) error
}
