// Package services implements the application services sitting between the
// HTTP layer and the repositories.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/keyhaven/keyhaven/internal/common"
	"github.com/keyhaven/keyhaven/internal/cryptox"
	"github.com/keyhaven/keyhaven/internal/dbx"
	"github.com/keyhaven/keyhaven/internal/logging"
	"github.com/keyhaven/keyhaven/internal/server/models"
	"github.com/keyhaven/keyhaven/internal/server/repositories/repomanager"
	"github.com/keyhaven/keyhaven/internal/server/repositories/vaults"
)

// MaskedSecret replaces a secret in any response where the entry is not
// explicitly being revealed, and in list responses for entries whose
// ciphertext cannot be decrypted.
const MaskedSecret = "******"

// vaultKeySize is the per-vault key length generated at vault creation. The
// key is persisted for a future key-wrap migration; the operative cipher key
// is the process-wide secret.
const vaultKeySize = 32

// AddCredentialInput is the payload for appending one credential.
type AddCredentialInput struct {
	Site     string
	Username string
	Secret   string
	Notes    string
}

// UpdateCredentialInput carries the partial update; nil fields are left
// untouched.
type UpdateCredentialInput struct {
	Site     *string
	Username *string
	Secret   *string
	Notes    *string
}

// ImportItem is one row of a bulk credential import.
type ImportItem struct {
	URL      string
	Username string
	Password string
	Note     string
}

// RevealedEntry pairs a stored entry with its secret in plaintext (or the
// mask when decryption failed).
type RevealedEntry struct {
	Entry  *models.CredentialEntry
	Secret string
}

// VaultService is the vault store adapter: it owns the per-user collection
// of credential records and routes every secret write through the field
// cipher.
type VaultService struct {
	db     *sql.DB
	rm     repomanager.RepositoryManager
	cipher *cryptox.FieldCipher
	logger logging.Logger
}

func NewVaultService(db *sql.DB, rm repomanager.RepositoryManager, cipher *cryptox.FieldCipher, logger logging.Logger) *VaultService {
	return &VaultService{
		db:     db,
		rm:     rm,
		cipher: cipher,
		logger: logger.With("module", "vault_service"),
	}
}

// GetOrCreate returns the user's vault, creating it with a fresh per-vault
// key on first access. The underlying upsert guarantees at most one vault
// per user under concurrent first access. Fails with common.ErrNotFound when
// the user does not exist.
func (s *VaultService) GetOrCreate(ctx context.Context, userID string) (*models.Vault, error) {
	if _, err := s.rm.Users(s.db).GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("vault owner: %w", err)
	}

	vault, err := s.rm.Vaults(s.db).CreateIfAbsent(ctx, userID, common.GenerateRandByteArray(vaultKeySize))
	if err != nil {
		return nil, err
	}

	vault.Entries, err = s.rm.Vaults(s.db).ListEntries(ctx, vault.ID)
	if err != nil {
		return nil, err
	}

	return vault, nil
}

// AddCredential encrypts the secret and appends a new entry. The returned
// vault carries stored ciphertext; presentation-layer masking is the
// caller's concern.
func (s *VaultService) AddCredential(ctx context.Context, userID string, in AddCredentialInput) (*models.Vault, error) {
	if in.Site == "" || in.Secret == "" {
		return nil, fmt.Errorf("%w: site and secret are required", common.ErrValidation)
	}

	vault, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	token, err := s.cipher.Encrypt(in.Secret)
	if err != nil {
		return nil, err
	}

	entry := &models.CredentialEntry{
		VaultID:          vault.ID,
		Site:             in.Site,
		Username:         in.Username,
		SecretCiphertext: token,
		Notes:            in.Notes,
	}
	saved, err := s.rm.Vaults(s.db).InsertEntry(ctx, entry)
	if err != nil {
		return nil, err
	}

	vault.Entries = append(vault.Entries, saved)
	return vault, nil
}

// UpdateCredential applies a partial update; a new secret is re-encrypted
// before it is written. Returns the updated entry with its secret revealed
// plus the whole vault. Fails with common.ErrNotFound when the vault or the
// entry is absent.
func (s *VaultService) UpdateCredential(ctx context.Context, userID, entryID string, in UpdateCredentialInput) (*RevealedEntry, *models.Vault, error) {
	vault, err := s.rm.Vaults(s.db).GetByUserID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("vault for user %s: %w", userID, err)
	}

	upd := vaults.EntryUpdate{
		Site:     in.Site,
		Username: in.Username,
		Notes:    in.Notes,
	}
	if in.Secret != nil {
		token, err := s.cipher.Encrypt(*in.Secret)
		if err != nil {
			return nil, nil, err
		}
		upd.SecretCiphertext = &token
	}

	entry, err := s.rm.Vaults(s.db).UpdateEntry(ctx, vault.ID, entryID, upd)
	if err != nil {
		return nil, nil, err
	}

	secret, err := s.revealSecret(entry.SecretCiphertext)
	if err != nil {
		return nil, nil, err
	}

	vault.Entries, err = s.rm.Vaults(s.db).ListEntries(ctx, vault.ID)
	if err != nil {
		return nil, nil, err
	}

	return &RevealedEntry{Entry: entry, Secret: secret}, vault, nil
}

// GetCredential reveals one entry's secret to the authorized caller. A
// decryption failure here is fatal, never an empty secret. Legacy plaintext
// entries are returned as-is and opportunistically re-encrypted.
func (s *VaultService) GetCredential(ctx context.Context, userID, entryID string) (*RevealedEntry, error) {
	vault, err := s.rm.Vaults(s.db).GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("vault for user %s: %w", userID, err)
	}

	entry, err := s.rm.Vaults(s.db).GetEntry(ctx, vault.ID, entryID)
	if err != nil {
		return nil, err
	}

	if !cryptox.IsCipherToken(entry.SecretCiphertext) {
		s.reencryptLegacy(ctx, vault.ID, entry)
		return &RevealedEntry{Entry: entry, Secret: entry.SecretCiphertext}, nil
	}

	secret, err := s.cipher.Decrypt(entry.SecretCiphertext)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", entryID, err)
	}

	return &RevealedEntry{Entry: entry, Secret: secret}, nil
}

// reencryptLegacy upgrades a legacy plaintext secret to a cipher token. The
// conditional update only fires if the stored value is still the plaintext
// we read, so a racing writer wins. Best effort: failure only logs.
func (s *VaultService) reencryptLegacy(ctx context.Context, vaultID string, entry *models.CredentialEntry) {
	token, err := s.cipher.Encrypt(entry.SecretCiphertext)
	if err != nil {
		s.logger.Warn(ctx, "legacy re-encrypt failed", "entry_id", entry.ID, "error", err.Error())
		return
	}

	query := `
		UPDATE credential_entries SET secret_ciphertext = $4, updated_at = now()
		WHERE id = $1 AND vault_id = $2 AND secret_ciphertext = $3
	`
	if _, err := s.db.ExecContext(ctx, query, entry.ID, vaultID, entry.SecretCiphertext, token); err != nil {
		s.logger.Warn(ctx, "legacy re-encrypt failed", "entry_id", entry.ID, "error", err.Error())
	}
}

// DeleteCredential removes the entry and returns the remaining vault.
func (s *VaultService) DeleteCredential(ctx context.Context, userID, entryID string) (*models.Vault, error) {
	vault, err := s.rm.Vaults(s.db).GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("vault for user %s: %w", userID, err)
	}

	if err := s.rm.Vaults(s.db).DeleteEntry(ctx, vault.ID, entryID); err != nil {
		return nil, err
	}

	vault.Entries, err = s.rm.Vaults(s.db).ListEntries(ctx, vault.ID)
	if err != nil {
		return nil, err
	}

	return vault, nil
}

// List returns every entry with its secret revealed where possible. A
// decryption failure is isolated to its entry: the secret is masked and the
// listing continues.
func (s *VaultService) List(ctx context.Context, userID string) (*models.Vault, []*RevealedEntry, error) {
	vault, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	revealed := make([]*RevealedEntry, 0, len(vault.Entries))
	for _, entry := range vault.Entries {
		secret, err := s.revealSecret(entry.SecretCiphertext)
		if err != nil {
			s.logger.Warn(ctx, "masking undecryptable entry", "entry_id", entry.ID)
			secret = MaskedSecret
		}
		revealed = append(revealed, &RevealedEntry{Entry: entry, Secret: secret})
	}

	return vault, revealed, nil
}

// Import appends a batch of externally supplied credentials in a single
// transaction. Every secret goes through the cipher: the import path gets no
// encryption bypass.
func (s *VaultService) Import(ctx context.Context, userID string, items []ImportItem) (int, *models.Vault, error) {
	if len(items) == 0 {
		return 0, nil, fmt.Errorf("%w: empty import", common.ErrValidation)
	}
	for i, item := range items {
		if item.URL == "" || item.Password == "" {
			return 0, nil, fmt.Errorf("%w: item %d is missing url or password", common.ErrValidation, i)
		}
	}

	vault, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, nil, err
	}

	entries := make([]*models.CredentialEntry, 0, len(items))
	for _, item := range items {
		token, err := s.cipher.Encrypt(item.Password)
		if err != nil {
			return 0, nil, err
		}
		entries = append(entries, &models.CredentialEntry{
			VaultID:          vault.ID,
			Site:             item.URL,
			Username:         item.Username,
			SecretCiphertext: token,
			Notes:            item.Note,
		})
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.rm.Vaults(tx).InsertEntries(ctx, entries)
	})
	if err != nil {
		return 0, nil, err
	}

	vault.Entries, err = s.rm.Vaults(s.db).ListEntries(ctx, vault.ID)
	if err != nil {
		return 0, nil, err
	}

	return len(items), vault, nil
}

// revealSecret decrypts cipher-shaped values and passes legacy plaintext
// through unchanged.
func (s *VaultService) revealSecret(stored string) (string, error) {
	if !cryptox.IsCipherToken(stored) {
		return stored, nil
	}
	return s.cipher.Decrypt(stored)
}
