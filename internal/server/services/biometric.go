package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/keyhaven/keyhaven/internal/common"
	"github.com/keyhaven/keyhaven/internal/logging"
	"github.com/keyhaven/keyhaven/internal/server/evidence"
	"github.com/keyhaven/keyhaven/internal/server/match"
	"github.com/keyhaven/keyhaven/internal/server/models"
	"github.com/keyhaven/keyhaven/internal/server/repositories/repomanager"
)

// EvidenceUpload is one piece of freshly captured biometric evidence as it
// arrives from the client.
type EvidenceUpload struct {
	Raw         []byte
	ContentType string

	// DurationMs is client-declared and only meaningful for voice.
	DurationMs int
}

// BiometricService enrolls evidence per modality and runs verification
// against the stored slot.
type BiometricService struct {
	db         *sql.DB
	rm         repomanager.RepositoryManager
	store      evidence.Store
	normalizer *evidence.Normalizer
	engine     *match.Engine
	logger     logging.Logger
}

func NewBiometricService(db *sql.DB, rm repomanager.RepositoryManager, store evidence.Store, engine *match.Engine, logger logging.Logger) *BiometricService {
	return &BiometricService{
		db:         db,
		rm:         rm,
		store:      store,
		normalizer: evidence.NewNormalizer(store),
		engine:     engine,
		logger:     logger.With("module", "biometric_service"),
	}
}

// Save enrolls (or replaces) the user's evidence for one modality. The blob
// is uploaded to object storage first and the slot row is written in a
// single statement afterwards, so an abandoned request never leaves a slot
// pointing at a missing object.
func (s *BiometricService) Save(ctx context.Context, userID string, modality evidence.Modality, up EvidenceUpload) (*models.BiometricSlot, error) {
	ev, err := s.normalizer.NormalizeUpload(modality, up.Raw, up.ContentType)
	if err != nil {
		return nil, err
	}

	key := evidence.NewStorageKey(userID, modality)
	if err := s.store.Put(ctx, key, up.Raw, up.ContentType); err != nil {
		return nil, err
	}

	slot := &models.BiometricSlot{
		StorageKey:  key,
		ContentType: up.ContentType,
		Size:        int64(len(up.Raw)),
		UpdatedAt:   time.Now(),
	}
	if ev.Raster != nil {
		b := ev.Raster.Bounds()
		slot.Width = b.Dx()
		slot.Height = b.Dy()
	}
	if modality == evidence.ModalityVoice {
		slot.DurationMs = up.DurationMs
	}

	if err := s.rm.Biometrics(s.db).UpsertSlot(ctx, userID, modality, slot); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "biometric evidence enrolled", "user_id", userID, "modality", modality.String(), "size", slot.Size)
	return slot, nil
}

// Profile returns the user's enrollment state plus a short-lived download
// URL per enrolled slot, so clients fetch evidence straight from the object
// store.
func (s *BiometricService) Profile(ctx context.Context, userID string) (*models.BiometricProfile, map[evidence.Modality]string, error) {
	profile, err := s.rm.Biometrics(s.db).Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	urls := make(map[evidence.Modality]string)
	for _, modality := range []evidence.Modality{evidence.ModalityFace, evidence.ModalityVoice, evidence.ModalityFingerprint} {
		slot := profile.Slot(modality)
		if slot == nil {
			continue
		}
		url, err := s.store.PresignGetURL(ctx, slot.StorageKey)
		if err != nil {
			return nil, nil, err
		}
		urls[modality] = url
	}

	return profile, urls, nil
}

// Match verifies captured evidence against the stored slot. Absent
// enrollment is common.ErrNotFound; every operational failure surfaces as
// an error, never as a passing result. A successful match refreshes the
// profile's verification timestamp.
func (s *BiometricService) Match(ctx context.Context, userID string, modality evidence.Modality, up EvidenceUpload) (match.Result, error) {
	profile, err := s.rm.Biometrics(s.db).Get(ctx, userID)
	if err != nil {
		return match.Result{}, fmt.Errorf("biometric profile: %w", err)
	}

	slot := profile.Slot(modality)
	if slot == nil {
		return match.Result{}, fmt.Errorf("%w: no stored %s evidence", common.ErrNotFound, modality)
	}

	captured, err := s.normalizer.NormalizeUpload(modality, up.Raw, up.ContentType)
	if err != nil {
		return match.Result{}, err
	}

	stored, err := s.normalizer.FetchStored(ctx, modality, slot.StorageKey, slot.ContentType)
	if err != nil {
		return match.Result{}, err
	}

	result, err := s.engine.Score(ctx, stored, captured)
	if err != nil {
		return match.Result{}, err
	}

	if result.Matched {
		if err := s.rm.Biometrics(s.db).TouchVerified(ctx, userID, time.Now()); err != nil {
			return match.Result{}, err
		}
	}

	s.logger.Info(ctx, "biometric match scored", "user_id", userID, "modality", modality.String(), "matched", result.Matched)
	return result, nil
}
