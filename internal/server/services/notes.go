package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/zkvault/internal/server/models"
	"github.com/dmitrijs2005/zkvault/internal/server/repositories/repomanager"
)

// NoteService stores encrypted notes. Every call is scoped to ownerID,
// which the HTTP layer takes from the access token.
type NoteService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewNoteService(db *sql.DB, m repomanager.RepositoryManager) *NoteService {
	return &NoteService{db: db, repomanager: m}
}

func (s *NoteService) List(ctx context.Context, ownerID int64) ([]models.Note, error) {
	return s.repomanager.Notes(s.db).List(ctx, ownerID)
}

func (s *NoteService) Get(ctx context.Context, ownerID, id int64) (*models.Note, error) {
	return s.repomanager.Notes(s.db).Get(ctx, ownerID, id)
}

func (s *NoteService) Create(ctx context.Context, ownerID int64, note *models.Note) (*models.Note, error) {
	note.OwnerID = ownerID
	return s.repomanager.Notes(s.db).Create(ctx, note)
}

func (s *NoteService) Update(ctx context.Context, ownerID int64, note *models.Note) (*models.Note, error) {
	note.OwnerID = ownerID
	return s.repomanager.Notes(s.db).Update(ctx, note)
}

func (s *NoteService) Delete(ctx context.Context, ownerID, id int64) error {
	return s.repomanager.Notes(s.db).Delete(ctx, ownerID, id)
}
