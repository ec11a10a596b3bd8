package models

import "time"

// Vault is the per-user container of credential entries. EncryptionKey is a
// per-vault key generated at creation and persisted for a future key-wrap
// migration; the operative cipher key is the process-wide secret.
type Vault struct {
	ID            string
	UserID        string
	EncryptionKey []byte
	CreatedAt     time.Time
	Entries       []*CredentialEntry
}

// CredentialEntry is one site/username/secret/notes record inside a vault.
//
// SecretCiphertext is either a cipher token (contains the ":" separator) or
// legacy plaintext; readers must detect which. UpdatedAt is refreshed
// explicitly by every mutating operation.
type CredentialEntry struct {
	ID               string
	VaultID          string
	Site             string
	Username         string
	SecretCiphertext string
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
