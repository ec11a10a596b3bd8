// Package vaults provides the PostgreSQL-backed repository for vaults and
// their credential entries.
package vaults

import (
	"context"

	"github.com/keyhaven/keyhaven/internal/server/models"
)

// EntryUpdate carries the partial-field update for a credential entry. Nil
// pointers leave the stored value untouched.
type EntryUpdate struct {
	Site             *string
	Username         *string
	SecretCiphertext *string
	Notes            *string
}

type Repository interface {
	// CreateIfAbsent inserts a vault for userID unless one already exists
	// and returns the persisted vault either way. Backed by an upsert on
	// the user_id uniqueness constraint, so concurrent first access cannot
	// create two vaults.
	CreateIfAbsent(ctx context.Context, userID string, encryptionKey []byte) (*models.Vault, error)

	GetByUserID(ctx context.Context, userID string) (*models.Vault, error)

	ListEntries(ctx context.Context, vaultID string) ([]*models.CredentialEntry, error)
	GetEntry(ctx context.Context, vaultID, entryID string) (*models.CredentialEntry, error)
	InsertEntry(ctx context.Context, entry *models.CredentialEntry) (*models.CredentialEntry, error)
	InsertEntries(ctx context.Context, entries []*models.CredentialEntry) error

	// UpdateEntry applies a partial update as a single conditional UPDATE
	// keyed by (entry id, vault id) and refreshes updated_at. Returns
	// common.ErrNotFound when no row matches.
	UpdateEntry(ctx context.Context, vaultID, entryID string, upd EntryUpdate) (*models.CredentialEntry, error)

	// DeleteEntry removes the entry; common.ErrNotFound when absent.
	DeleteEntry(ctx context.Context, vaultID, entryID string) error
}
