// Package users provides the PostgreSQL-backed repository for identity
// records.
package users

import (
	"context"

	"github.com/keyhaven/keyhaven/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	// UpdatePasswordHash is the only way to mutate the password hash;
	// identity fields are immutable after signup.
	UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error
}
