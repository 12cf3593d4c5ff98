package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/zkvault/internal/common"
	"github.com/dmitrijs2005/zkvault/internal/dbx"
	"github.com/dmitrijs2005/zkvault/internal/server/models"
	"github.com/dmitrijs2005/zkvault/internal/server/repositories/pgerr"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const noteColumns = `owner_id, id, ciphertext, nonce, auth_tag, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (*models.Note, error) {
	n := &models.Note{}
	if err := row.Scan(&n.OwnerID, &n.ID, &n.Ciphertext, &n.Nonce, &n.AuthTag, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return n, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, ownerID int64) ([]models.Note, error) {
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return out, nil
}

// List returns the owner's notes, most recently updated first.
func (r *PostgresRepository) List(ctx context.Context, ownerID int64) ([]models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE owner_id = $1 ORDER BY updated_at DESC, id`
	return r.list(ctx, query, ownerID)
}

// ListForUpdate returns the owner's notes ordered by id and locks their
// rows until the surrounding transaction ends.
func (r *PostgresRepository) ListForUpdate(ctx context.Context, ownerID int64) ([]models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE owner_id = $1 ORDER BY id FOR UPDATE`
	return r.list(ctx, query, ownerID)
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id int64) (*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE owner_id = $1 AND id = $2`

	n, err := scanNote(r.db.QueryRowContext(ctx, query, ownerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Create inserts note. An id already used by the same owner yields
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, note *models.Note) (*models.Note, error) {
	query :=
		`INSERT INTO notes (owner_id, id, ciphertext, nonce, auth_tag)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		note.OwnerID, note.ID, note.Ciphertext, note.Nonce, note.AuthTag).
		Scan(&note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return note, nil
}

// Update replaces the ciphertext of an existing note.
func (r *PostgresRepository) Update(ctx context.Context, note *models.Note) (*models.Note, error) {
	query :=
		`UPDATE notes SET ciphertext = $3, nonce = $4, auth_tag = $5, updated_at = now()
		 WHERE owner_id = $1 AND id = $2
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		note.OwnerID, note.ID, note.Ciphertext, note.Nonce, note.AuthTag).
		Scan(&note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return note, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id int64) error {
	query := `DELETE FROM notes WHERE owner_id = $1 AND id = $2`

	res, err := r.db.ExecContext(ctx, query, ownerID, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
