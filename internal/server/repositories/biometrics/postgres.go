package biometrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/keyhaven/keyhaven/internal/common"
	"github.com/keyhaven/keyhaven/internal/dbx"
	"github.com/keyhaven/keyhaven/internal/server/evidence"
	"github.com/keyhaven/keyhaven/internal/server/models"
)

// PostgresRepository implements biometric profile storage over a dbx.DBTX.
// Each modality slot is a jsonb column, so a slot write is one statement.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// slotColumn maps a validated modality to its column. Modality is a closed
// enum parsed at the API boundary, so interpolation is safe.
func slotColumn(m evidence.Modality) (string, error) {
	switch m {
	case evidence.ModalityFace:
		return "face", nil
	case evidence.ModalityVoice:
		return "voice", nil
	case evidence.ModalityFingerprint:
		return "fingerprint", nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrInvalidModality, m)
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.BiometricProfile, error) {
	query := `
		SELECT user_id, face, voice, fingerprint, last_verified_at, updated_at
		FROM biometric_profiles
		WHERE user_id = $1
	`
	profile := &models.BiometricProfile{}
	var face, voice, fingerpnt []byte
	var lastVerified sql.NullTime
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID, &face, &voice, &fingerpnt, &lastVerified, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get biometric profile for user %s: %w", userID, err)
	}

	if profile.Face, err = decodeSlot(face); err != nil {
		return nil, err
	}
	if profile.Voice, err = decodeSlot(voice); err != nil {
		return nil, err
	}
	if profile.Fingerprint, err = decodeSlot(fingerpnt); err != nil {
		return nil, err
	}
	if lastVerified.Valid {
		profile.LastVerifiedAt = &lastVerified.Time
	}

	return profile, nil
}

func decodeSlot(raw []byte) (*models.BiometricSlot, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	slot := &models.BiometricSlot{}
	if err := json.Unmarshal(raw, slot); err != nil {
		return nil, fmt.Errorf("decode biometric slot: %w", err)
	}
	return slot, nil
}

func (r *PostgresRepository) UpsertSlot(ctx context.Context, userID string, modality evidence.Modality, slot *models.BiometricSlot) error {
	column, err := slotColumn(modality)
	if err != nil {
		return err
	}

	data, err := json.Marshal(slot)
	if err != nil {
		return fmt.Errorf("encode biometric slot: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO biometric_profiles (user_id, %s, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET
			%s = EXCLUDED.%s,
			updated_at = now()
	`, column, column, column)

	if _, err := r.db.ExecContext(ctx, query, userID, data); err != nil {
		return fmt.Errorf("upsert %s slot for user %s: %w", modality, userID, err)
	}

	return nil
}

func (r *PostgresRepository) TouchVerified(ctx context.Context, userID string, at time.Time) error {
	query := `
		INSERT INTO biometric_profiles (user_id, last_verified_at, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET
			last_verified_at = EXCLUDED.last_verified_at,
			updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, userID, at); err != nil {
		return fmt.Errorf("touch verification for user %s: %w", userID, err)
	}

	return nil
}
