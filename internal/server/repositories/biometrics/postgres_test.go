package biometrics

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/keyhaven/keyhaven/internal/common"
	"github.com/keyhaven/keyhaven/internal/server/evidence"
	"github.com/keyhaven/keyhaven/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestGet_DecodesSlots(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	verifiedAt := time.Now().Add(-time.Minute)
	rows := sqlmock.NewRows([]string{"user_id", "face", "voice", "fingerprint", "last_verified_at", "updated_at"}).
		AddRow("u-1", []byte(`{"storageKey":"k-face","contentType":"image/png"}`), nil, nil, verifiedAt, time.Now())

	mock.ExpectQuery(`SELECT\s+user_id,\s*face,\s*voice,\s*fingerprint`).
		WithArgs("u-1").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Face == nil || got.Face.StorageKey != "k-face" {
		t.Fatalf("unexpected face slot: %+v", got.Face)
	}
	if got.Voice != nil || got.Fingerprint != nil {
		t.Fatalf("expected empty voice/fingerprint slots")
	}
	if got.LastVerifiedAt == nil || !got.LastVerifiedAt.Equal(verifiedAt) {
		t.Fatalf("unexpected last_verified_at: %v", got.LastVerifiedAt)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+user_id`).
		WithArgs("u-ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "u-ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertSlot_TargetsOnlyItsColumn(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+biometric_profiles\s*\(user_id,\s*voice,\s*updated_at\)`).
		WithArgs("u-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	slot := &models.BiometricSlot{StorageKey: "k-voice", ContentType: "audio/webm"}
	if err := repo.UpsertSlot(context.Background(), "u-1", evidence.ModalityVoice, slot); err != nil {
		t.Fatalf("UpsertSlot error: %v", err)
	}
}

func TestUpsertSlot_RejectsUnknownModality(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	err := repo.UpsertSlot(context.Background(), "u-1", evidence.Modality("iris"), &models.BiometricSlot{})
	if !errors.Is(err, common.ErrInvalidModality) {
		t.Fatalf("expected ErrInvalidModality, got %v", err)
	}
}

func TestTouchVerified(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`INSERT\s+INTO\s+biometric_profiles\s*\(user_id,\s*last_verified_at`).
		WithArgs("u-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.TouchVerified(context.Background(), "u-1", at); err != nil {
		t.Fatalf("TouchVerified error: %v", err)
	}
}
