package vaults

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/keyhaven/keyhaven/internal/common"
	"github.com/keyhaven/keyhaven/internal/dbx"
	"github.com/keyhaven/keyhaven/internal/server/models"
)

// PostgresRepository implements vault storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateIfAbsent relies on the user_id uniqueness constraint: the insert is a
// no-op on conflict and the surviving row is re-read. No check-then-insert.
func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, userID string, encryptionKey []byte) (*models.Vault, error) {
	query := `
		INSERT INTO vaults (user_id, encryption_key)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING id, user_id, encryption_key, created_at
	`
	vault := &models.Vault{}
	err := r.db.QueryRowContext(ctx, query, userID, encryptionKey).Scan(
		&vault.ID, &vault.UserID, &vault.EncryptionKey, &vault.CreatedAt)
	if err == nil {
		return vault, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("create vault for user %s: %w", userID, err)
	}

	// Conflict: another request created the vault first.
	return r.GetByUserID(ctx, userID)
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*models.Vault, error) {
	query := `
		SELECT id, user_id, encryption_key, created_at FROM vaults
		WHERE user_id = $1
	`
	vault := &models.Vault{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&vault.ID, &vault.UserID, &vault.EncryptionKey, &vault.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get vault for user %s: %w", userID, err)
	}

	return vault, nil
}

const entryColumns = `id, vault_id, site, username, secret_ciphertext, notes, created_at, updated_at`

func scanEntry(row *sql.Row) (*models.CredentialEntry, error) {
	e := &models.CredentialEntry{}
	err := row.Scan(&e.ID, &e.VaultID, &e.Site, &e.Username,
		&e.SecretCiphertext, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *PostgresRepository) ListEntries(ctx context.Context, vaultID string) ([]*models.CredentialEntry, error) {
	query := `
		SELECT ` + entryColumns + ` FROM credential_entries
		WHERE vault_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, vaultID)
	if err != nil {
		return nil, fmt.Errorf("list entries for vault %s: %w", vaultID, err)
	}
	defer rows.Close()

	var result []*models.CredentialEntry
	for rows.Next() {
		e := &models.CredentialEntry{}
		if err := rows.Scan(&e.ID, &e.VaultID, &e.Site, &e.Username,
			&e.SecretCiphertext, &e.Notes, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) GetEntry(ctx context.Context, vaultID, entryID string) (*models.CredentialEntry, error) {
	query := `
		SELECT ` + entryColumns + ` FROM credential_entries
		WHERE id = $1 AND vault_id = $2
	`
	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, entryID, vaultID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get entry %s: %w", entryID, err)
	}

	return entry, nil
}

func (r *PostgresRepository) InsertEntry(ctx context.Context, entry *models.CredentialEntry) (*models.CredentialEntry, error) {
	query := `
		INSERT INTO credential_entries (vault_id, site, username, secret_ciphertext, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		entry.VaultID, entry.Site, entry.Username, entry.SecretCiphertext, entry.Notes).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert entry into vault %s: %w", entry.VaultID, err)
	}

	return entry, nil
}

// InsertEntries appends a batch of entries. Callers that need atomicity run
// it inside dbx.WithTx with a repository bound to the transaction.
func (r *PostgresRepository) InsertEntries(ctx context.Context, entries []*models.CredentialEntry) error {
	for _, entry := range entries {
		if _, err := r.InsertEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// UpdateEntry is a single conditional UPDATE: partial fields are applied with
// COALESCE and updated_at is refreshed in the same statement, so two racing
// updates cannot lose each other's writes the way a read-modify-write would.
func (r *PostgresRepository) UpdateEntry(ctx context.Context, vaultID, entryID string, upd EntryUpdate) (*models.CredentialEntry, error) {
	query := `
		UPDATE credential_entries SET
			site = COALESCE($3, site),
			username = COALESCE($4, username),
			secret_ciphertext = COALESCE($5, secret_ciphertext),
			notes = COALESCE($6, notes),
			updated_at = now()
		WHERE id = $1 AND vault_id = $2
		RETURNING ` + entryColumns + `
	`
	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, entryID, vaultID,
		upd.Site, upd.Username, upd.SecretCiphertext, upd.Notes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("update entry %s: %w", entryID, err)
	}

	return entry, nil
}

func (r *PostgresRepository) DeleteEntry(ctx context.Context, vaultID, entryID string) error {
	query := `DELETE FROM credential_entries WHERE id = $1 AND vault_id = $2`

	res, err := r.db.ExecContext(ctx, query, entryID, vaultID)
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", entryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}

	return nil
}
