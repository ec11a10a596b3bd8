// Package models holds the persistence-facing data structures shared by
// repositories and services.
package models

import "time"

// User is the identity root. Every user owns exactly one Vault (created
// lazily) and at most one BiometricProfile and Settings row.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}
