package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keyhaven/keyhaven/internal/common"
	"github.com/keyhaven/keyhaven/internal/dbx"
	"github.com/keyhaven/keyhaven/internal/server/models"
)

// PostgresRepository implements settings storage over a dbx.DBTX. The
// interval is persisted as nanoseconds in a bigint column.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.Settings, error) {
	query := `
		SELECT user_id, reverification_interval, updated_at FROM settings
		WHERE user_id = $1
	`
	s := &models.Settings{}
	var interval int64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&s.UserID, &interval, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get settings for user %s: %w", userID, err)
	}
	s.ReVerificationInterval = time.Duration(interval)

	return s, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, s *models.Settings) error {
	query := `
		INSERT INTO settings (user_id, reverification_interval, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET
			reverification_interval = EXCLUDED.reverification_interval,
			updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, s.UserID, int64(s.ReVerificationInterval)); err != nil {
		return fmt.Errorf("upsert settings for user %s: %w", s.UserID, err)
	}

	return nil
}
