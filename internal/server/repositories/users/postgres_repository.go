package users

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

const userColumns = `id, email, username_hash, password_verifier, login_salt, key_generation, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.UsernameHash, &u.Verifier, &u.LoginSalt,
		&u.KeyGeneration, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// Create inserts user and fills in its id and timestamps. A duplicate email
// yields common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, username_hash, password_verifier, login_salt)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, key_generation, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.UsernameHash, user.Verifier, user.LoginSalt).
		Scan(&user.ID, &user.KeyGeneration, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// UpdateCredential replaces the stored verifier hash and login salt.
func (r *PostgresRepository) UpdateCredential(ctx context.Context, id int64, verifier, loginSalt []byte) error {
	query :=
		`UPDATE users SET password_verifier = $2, login_salt = $3, updated_at = now()
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, verifier, loginSalt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

// IncrementKeyGeneration bumps the account's key generation, which counts
// completed rotations, and returns the new value.
func (r *PostgresRepository) IncrementKeyGeneration(ctx context.Context, id int64) (int64, error) {
	query :=
		`UPDATE users SET key_generation = key_generation + 1
		 WHERE id = $1
		 RETURNING key_generation`

	var gen int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&gen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return gen, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
