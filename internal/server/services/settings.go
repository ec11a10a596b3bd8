package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keyhaven/keyhaven/internal/common"
	"github.com/keyhaven/keyhaven/internal/server/models"
	"github.com/keyhaven/keyhaven/internal/server/repositories/repomanager"
)

// SettingsService reads and writes per-user policy settings, applying the
// configured defaults when the user never saved any.
type SettingsService struct {
	db              *sql.DB
	rm              repomanager.RepositoryManager
	defaultInterval time.Duration
}

func NewSettingsService(db *sql.DB, rm repomanager.RepositoryManager, defaultInterval time.Duration) *SettingsService {
	return &SettingsService{db: db, rm: rm, defaultInterval: defaultInterval}
}

// Get returns the stored settings, falling back to defaults when no row
// exists.
func (s *SettingsService) Get(ctx context.Context, userID string) (*models.Settings, error) {
	stored, err := s.rm.Settings(s.db).Get(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return &models.Settings{
			UserID:                 userID,
			ReVerificationInterval: s.defaultInterval,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Update persists a new re-verification interval.
func (s *SettingsService) Update(ctx context.Context, userID string, interval time.Duration) (*models.Settings, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: reverification interval must be positive", common.ErrValidation)
	}

	stored := &models.Settings{
		UserID:                 userID,
		ReVerificationInterval: interval,
		UpdatedAt:              time.Now(),
	}
	if err := s.rm.Settings(s.db).Upsert(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}
