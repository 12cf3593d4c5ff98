// Package services contains the zkvault client application services: the
// vault crypto surface, authentication, note management and the password
// rotation coordinator. Storage and the server are reached through the
// RecordStore and Authenticator interfaces.
package services

import (
	"context"

	"github.com/dmitrijs2005/zkvault/internal/client/models"
	"github.com/dmitrijs2005/zkvault/internal/cryptox"
)

// Credential is what the server stores for an account at registration.
type Credential struct {
	Email            string
	UsernameHash     string
	PasswordVerifier string
	LoginSalt        []byte
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	OwnerID   int64
	Email     string
	LoginSalt []byte
}

// RecordStore persists encrypted records. Implementations return
// common.ErrorNotFound for missing records, common.ErrorAlreadyExists for a
// duplicate id on Create and common.ErrUnavailable for transient failures.
type RecordStore interface {
	List(ctx context.Context, ownerID int64) ([]models.Record, error)
	Get(ctx context.Context, ownerID, recordID int64) (*models.Record, error)
	Create(ctx context.Context, ownerID int64, rec *cryptox.EncryptedRecord) error
	Update(ctx context.Context, ownerID, recordID int64, rec *cryptox.EncryptedRecord) error
	Delete(ctx context.Context, ownerID, recordID int64) error
}

// Authenticator talks to the server's credential endpoints. A rejected
// verifier is reported as common.ErrorUnauthorized.
type Authenticator interface {
	Register(ctx context.Context, cred Credential) (int64, error)
	Login(ctx context.Context, email, verifier string) (*LoginResult, error)
	ChangePassword(ctx context.Context, currentVerifier, newVerifier string, newLoginSalt []byte) error
}

// RotationCommit is the complete outcome of a rotation, applied by the
// server in a single transaction.
type RotationCommit struct {
	CurrentVerifier string
	NewVerifier     string
	NewLoginSalt    []byte
	Records         []*cryptox.EncryptedRecord
}

// RotationCommitter is implemented by Authenticators whose server can apply
// a RotationCommit atomically.
type RotationCommitter interface {
	CommitRotation(ctx context.Context, commit RotationCommit) error
}
