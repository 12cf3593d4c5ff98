// Package users persists zkvault accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/zkvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	UpdateCredential(ctx context.Context, id int64, verifier, loginSalt []byte) error
	IncrementKeyGeneration(ctx context.Context, id int64) (int64, error)
}
