// Package services implements the zkvault server use cases on top of the
// repositories: account registration and login, credential changes, key
// rotation and owner-scoped note storage.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/zkvault/internal/common"
	"github.com/dmitrijs2005/zkvault/internal/cryptox"
	"github.com/dmitrijs2005/zkvault/internal/dbx"
	"github.com/dmitrijs2005/zkvault/internal/logging"
	"github.com/dmitrijs2005/zkvault/internal/server/archive"
	"github.com/dmitrijs2005/zkvault/internal/server/auth"
	"github.com/dmitrijs2005/zkvault/internal/server/config"
	"github.com/dmitrijs2005/zkvault/internal/server/models"
	"github.com/dmitrijs2005/zkvault/internal/server/repositories/pgerr"
	"github.com/dmitrijs2005/zkvault/internal/server/repositories/repomanager"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string
	User  *models.User
}

// RotationResult describes an applied key rotation.
type RotationResult struct {
	Records       int
	KeyGeneration int64
	ArchiveKey    string
}

type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	archiver                    archive.Archiver
	log                         logging.Logger
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	txRetries                   uint64
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, a archive.Archiver, log logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		archiver:                    a,
		log:                         log,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		txRetries:                   3,
	}
}

func validSalt(salt []byte) bool {
	return len(salt) == cryptox.SaltSize
}

// Register stores a new account. Only the bcrypt hash of the verifier is
// persisted.
func (s *UserService) Register(ctx context.Context, email, usernameHash, verifier string, loginSalt []byte) (*models.User, error) {
	email = cryptox.NormalizeEmail(email)
	if email == "" || verifier == "" || !validSalt(loginSalt) {
		return nil, common.ErrorValidation
	}

	hash, err := auth.HashVerifier(verifier)
	if err != nil {
		return nil, fmt.Errorf("hash verifier: %w", err)
	}

	user := &models.User{
		Email:        email,
		UsernameHash: usernameHash,
		Verifier:     hash,
		LoginSalt:    loginSalt,
	}

	user, err = s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login checks verifier against the stored hash and issues an access
// token. Unknown emails and wrong verifiers both yield
// common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, email, verifier string) (*LoginResult, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, cryptox.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			auth.CheckVerifier(nil, verifier)
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if !auth.CheckVerifier(user.Verifier, verifier) {
		return nil, common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	return &LoginResult{Token: token, User: user}, nil
}

func (s *UserService) checkCurrent(ctx context.Context, tx dbx.DBTX, userID int64, verifier string) (*models.User, error) {
	user, err := s.repomanager.Users(tx).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if !auth.CheckVerifier(user.Verifier, verifier) {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

// ChangePassword replaces the credential after re-checking the current
// verifier and bumps the key generation, since a new login salt means a
// new vault key. Note ciphertexts are not touched.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, currentVerifier, newVerifier string, newLoginSalt []byte) error {
	if newVerifier == "" || !validSalt(newLoginSalt) {
		return common.ErrorValidation
	}

	hash, err := auth.HashVerifier(newVerifier)
	if err != nil {
		return fmt.Errorf("hash verifier: %w", err)
	}

	var gen int64
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.checkCurrent(ctx, tx, userID, currentVerifier); err != nil {
			return err
		}
		repo := s.repomanager.Users(tx)
		if err := repo.UpdateCredential(ctx, userID, hash, newLoginSalt); err != nil {
			return err
		}
		gen, err = repo.IncrementKeyGeneration(ctx, userID)
		return err
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "credential changed", "user_id", userID, "key_generation", gen)
	return nil
}

func sameIDs(current []models.Note, proposed []models.Note) bool {
	if len(current) != len(proposed) {
		return false
	}
	a := make([]int64, len(current))
	for i, n := range current {
		a[i] = n.ID
	}
	b := make([]int64, len(proposed))
	for i, n := range proposed {
		b[i] = n.ID
	}
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// Rotate applies a complete key rotation in one serializable transaction:
// every note is replaced and the credential flipped, or nothing changes.
// records must cover exactly the owner's current notes, otherwise
// common.ErrConflict is returned. When an archive is configured the old
// ciphertexts are stored there before anything is overwritten.
func (s *UserService) Rotate(ctx context.Context, userID int64, currentVerifier, newVerifier string, newLoginSalt []byte, records []models.Note) (*RotationResult, error) {
	if newVerifier == "" || !validSalt(newLoginSalt) {
		return nil, common.ErrorValidation
	}
	for i := range records {
		records[i].OwnerID = userID
		if records[i].ID <= 0 {
			return nil, common.ErrorValidation
		}
	}

	hash, err := auth.HashVerifier(newVerifier)
	if err != nil {
		return nil, fmt.Errorf("hash verifier: %w", err)
	}

	var res *RotationResult
	b := retry.WithMaxRetries(s.txRetries, retry.NewExponential(20*time.Millisecond))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		r, err := s.rotateTx(ctx, userID, currentVerifier, hash, newLoginSalt, records)
		if err != nil {
			if pgerr.IsSerializationFailure(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		s.log.Warn(ctx, "rotation rejected", "user_id", userID, "error", err)
		return nil, err
	}

	s.log.Info(ctx, "rotation applied", "user_id", userID, "records", res.Records,
		"key_generation", res.KeyGeneration, "archive_key", res.ArchiveKey)
	return res, nil
}

func (s *UserService) rotateTx(ctx context.Context, userID int64, currentVerifier string, hash, newLoginSalt []byte, records []models.Note) (*RotationResult, error) {
	res := &RotationResult{Records: len(records)}

	err := dbx.WithTx(ctx, s.db, dbx.Serializable, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.checkCurrent(ctx, tx, userID, currentVerifier)
		if err != nil {
			return err
		}

		notes := s.repomanager.Notes(tx)
		current, err := notes.ListForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if !sameIDs(current, records) {
			return fmt.Errorf("%w: record set does not match stored notes", common.ErrConflict)
		}

		res.ArchiveKey, err = s.archiver.Archive(ctx, userID, user.KeyGeneration, current)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}

		for i := range records {
			if _, err := notes.Update(ctx, &records[i]); err != nil {
				return fmt.Errorf("update note %d: %w", records[i].ID, err)
			}
		}

		users := s.repomanager.Users(tx)
		if err := users.UpdateCredential(ctx, userID, hash, newLoginSalt); err != nil {
			return err
		}
		res.KeyGeneration, err = users.IncrementKeyGeneration(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
