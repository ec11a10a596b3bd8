// Package settings provides the PostgreSQL-backed repository for per-user
// policy settings.
package settings

import (
	"context"

	"github.com/keyhaven/keyhaven/internal/server/models"
)

type Repository interface {
	// Get returns the user's settings or common.ErrNotFound when no row
	// exists; the caller applies defaults.
	Get(ctx context.Context, userID string) (*models.Settings, error)

	Upsert(ctx context.Context, s *models.Settings) error
}
