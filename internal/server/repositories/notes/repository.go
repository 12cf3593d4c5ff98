// Package notes persists encrypted note records, always scoped by owner.
package notes

import (
	"context"

	"github.com/dmitrijs2005/zkvault/internal/server/models"
)

type Repository interface {
	List(ctx context.Context, ownerID int64) ([]models.Note, error)
	ListForUpdate(ctx context.Context, ownerID int64) ([]models.Note, error)
	Get(ctx context.Context, ownerID, id int64) (*models.Note, error)
	Create(ctx context.Context, note *models.Note) (*models.Note, error)
	Update(ctx context.Context, note *models.Note) (*models.Note, error)
	Delete(ctx context.Context, ownerID, id int64) error
}
