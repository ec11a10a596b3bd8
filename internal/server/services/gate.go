package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keyhaven/keyhaven/internal/common"
	"github.com/keyhaven/keyhaven/internal/server/repositories/repomanager"
)

// GateService enforces the re-verification policy on sensitive vault
// operations: the user's last successful biometric verification must be no
// older than their configured interval.
type GateService struct {
	db       *sql.DB
	rm       repomanager.RepositoryManager
	settings *SettingsService
	now      func() time.Time
}

func NewGateService(db *sql.DB, rm repomanager.RepositoryManager, settings *SettingsService) *GateService {
	return &GateService{db: db, rm: rm, settings: settings, now: time.Now}
}

// RequireFreshVerification fails with common.ErrReverifyRequired unless the
// user verified a biometric within their re-verification interval. The policy
// binds only users who enrolled biometrics: with no profile on record the
// gate stays open. An enrolled user who never verified is always stale.
func (g *GateService) RequireFreshVerification(ctx context.Context, userID string) error {
	cfg, err := g.settings.Get(ctx, userID)
	if err != nil {
		return err
	}

	profile, err := g.rm.Biometrics(g.db).Get(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if profile.LastVerifiedAt == nil {
		return fmt.Errorf("%w: no biometric verification on record", common.ErrReverifyRequired)
	}
	if g.now().Sub(*profile.LastVerifiedAt) > cfg.ReVerificationInterval {
		return fmt.Errorf("%w: last verification at %s", common.ErrReverifyRequired, profile.LastVerifiedAt.Format(time.RFC3339))
	}

	return nil
}
