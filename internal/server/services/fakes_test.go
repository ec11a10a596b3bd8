package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keyhaven/keyhaven/internal/common"
	"github.com/keyhaven/keyhaven/internal/dbx"
	"github.com/keyhaven/keyhaven/internal/server/evidence"
	"github.com/keyhaven/keyhaven/internal/server/models"
	"github.com/keyhaven/keyhaven/internal/server/repositories/biometrics"
	"github.com/keyhaven/keyhaven/internal/server/repositories/repomanager"
	"github.com/keyhaven/keyhaven/internal/server/repositories/settings"
	"github.com/keyhaven/keyhaven/internal/server/repositories/users"
	"github.com/keyhaven/keyhaven/internal/server/repositories/vaults"
)

// fakeRepoManager vends in-memory repositories regardless of the DBTX it is
// handed, which lets service tests run without a database.
type fakeRepoManager struct {
	users      *fakeUsersRepo
	vaults     *fakeVaultsRepo
	biometrics *fakeBiometricsRepo
	settings   *fakeSettingsRepo
}

var _ repomanager.RepositoryManager = (*fakeRepoManager)(nil)

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:      &fakeUsersRepo{byID: map[string]*models.User{}},
		vaults:     &fakeVaultsRepo{entries: map[string]*models.CredentialEntry{}},
		biometrics: &fakeBiometricsRepo{profiles: map[string]*models.BiometricProfile{}},
		settings:   &fakeSettingsRepo{rows: map[string]*models.Settings{}},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoManager) Vaults(dbx.DBTX) vaults.Repository            { return m.vaults }
func (m *fakeRepoManager) Biometrics(dbx.DBTX) biometrics.Repository    { return m.biometrics }
func (m *fakeRepoManager) Settings(dbx.DBTX) settings.Repository        { return m.settings }

func (m *fakeRepoManager) addUser(email string) *models.User {
	u := &models.User{ID: uuid.NewString(), Email: email, CreatedAt: time.Now()}
	m.users.byID[u.ID] = u
	return u
}

type fakeUsersRepo struct {
	byID map[string]*models.User
}

func (r *fakeUsersRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	for _, u := range r.byID {
		if u.Email == user.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	saved := *user
	saved.ID = uuid.NewString()
	saved.CreatedAt = time.Now()
	r.byID[saved.ID] = &saved
	return &saved, nil
}

func (r *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

func (r *fakeUsersRepo) UpdatePasswordHash(_ context.Context, id string, passwordHash string) error {
	u, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

type fakeVaultsRepo struct {
	vault   *models.Vault
	entries map[string]*models.CredentialEntry
}

func (r *fakeVaultsRepo) CreateIfAbsent(_ context.Context, userID string, encryptionKey []byte) (*models.Vault, error) {
	if r.vault != nil && r.vault.UserID == userID {
		return &models.Vault{ID: r.vault.ID, UserID: userID, EncryptionKey: r.vault.EncryptionKey, CreatedAt: r.vault.CreatedAt}, nil
	}
	r.vault = &models.Vault{ID: uuid.NewString(), UserID: userID, EncryptionKey: encryptionKey, CreatedAt: time.Now()}
	v := *r.vault
	return &v, nil
}

func (r *fakeVaultsRepo) GetByUserID(_ context.Context, userID string) (*models.Vault, error) {
	if r.vault == nil || r.vault.UserID != userID {
		return nil, common.ErrNotFound
	}
	v := *r.vault
	return &v, nil
}

func (r *fakeVaultsRepo) ListEntries(_ context.Context, vaultID string) ([]*models.CredentialEntry, error) {
	var out []*models.CredentialEntry
	for _, e := range r.entries {
		if e.VaultID == vaultID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeVaultsRepo) GetEntry(_ context.Context, vaultID, entryID string) (*models.CredentialEntry, error) {
	e, ok := r.entries[entryID]
	if !ok || e.VaultID != vaultID {
		return nil, common.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *fakeVaultsRepo) InsertEntry(_ context.Context, entry *models.CredentialEntry) (*models.CredentialEntry, error) {
	saved := *entry
	saved.ID = uuid.NewString()
	saved.CreatedAt = time.Now()
	saved.UpdatedAt = saved.CreatedAt
	r.entries[saved.ID] = &saved
	copied := saved
	return &copied, nil
}

func (r *fakeVaultsRepo) InsertEntries(ctx context.Context, entries []*models.CredentialEntry) error {
	for _, e := range entries {
		if _, err := r.InsertEntry(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeVaultsRepo) UpdateEntry(_ context.Context, vaultID, entryID string, upd vaults.EntryUpdate) (*models.CredentialEntry, error) {
	e, ok := r.entries[entryID]
	if !ok || e.VaultID != vaultID {
		return nil, common.ErrNotFound
	}
	if upd.Site != nil {
		e.Site = *upd.Site
	}
	if upd.Username != nil {
		e.Username = *upd.Username
	}
	if upd.SecretCiphertext != nil {
		e.SecretCiphertext = *upd.SecretCiphertext
	}
	if upd.Notes != nil {
		e.Notes = *upd.Notes
	}
	e.UpdatedAt = time.Now()
	copied := *e
	return &copied, nil
}

func (r *fakeVaultsRepo) DeleteEntry(_ context.Context, vaultID, entryID string) error {
	e, ok := r.entries[entryID]
	if !ok || e.VaultID != vaultID {
		return common.ErrNotFound
	}
	delete(r.entries, entryID)
	return nil
}

type fakeBiometricsRepo struct {
	profiles map[string]*models.BiometricProfile
	touchErr error
}

func (r *fakeBiometricsRepo) Get(_ context.Context, userID string) (*models.BiometricProfile, error) {
	p, ok := r.profiles[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeBiometricsRepo) UpsertSlot(_ context.Context, userID string, modality evidence.Modality, slot *models.BiometricSlot) error {
	p, ok := r.profiles[userID]
	if !ok {
		p = &models.BiometricProfile{UserID: userID}
		r.profiles[userID] = p
	}
	switch modality {
	case evidence.ModalityFace:
		p.Face = slot
	case evidence.ModalityVoice:
		p.Voice = slot
	case evidence.ModalityFingerprint:
		p.Fingerprint = slot
	default:
		return fmt.Errorf("unexpected modality %q", modality)
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (r *fakeBiometricsRepo) TouchVerified(_ context.Context, userID string, at time.Time) error {
	if r.touchErr != nil {
		return r.touchErr
	}
	p, ok := r.profiles[userID]
	if !ok {
		p = &models.BiometricProfile{UserID: userID}
		r.profiles[userID] = p
	}
	p.LastVerifiedAt = &at
	return nil
}

type fakeSettingsRepo struct {
	rows map[string]*models.Settings
}

func (r *fakeSettingsRepo) Get(_ context.Context, userID string) (*models.Settings, error) {
	s, ok := r.rows[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSettingsRepo) Upsert(_ context.Context, s *models.Settings) error {
	copied := *s
	r.rows[s.UserID] = &copied
	return nil
}

// fakeEvidenceStore keeps objects in memory.
type fakeEvidenceStore struct {
	objects map[string][]byte
	putErr  error
	getErr  error
}

func newFakeEvidenceStore() *fakeEvidenceStore {
	return &fakeEvidenceStore{objects: map[string][]byte{}}
}

func (f *fakeEvidenceStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeEvidenceStore) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: no object %s", common.ErrEvidenceFetch, key)
	}
	return data, nil
}

func (f *fakeEvidenceStore) PresignGetURL(_ context.Context, key string) (string, error) {
	return "https://store.test/" + key, nil
}
