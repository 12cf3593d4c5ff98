package services

import (
	"context"

	"github.com/dmitrijs2005/zkvault/internal/client/session"
	"github.com/dmitrijs2005/zkvault/internal/cryptox"
)

// Vault is the client's cryptographic surface. Record operations use the
// key held by the session.
type Vault interface {
	DeriveVaultKey(password, salt []byte) *cryptox.Key
	DeriveVerifier(password []byte, email string) string
	EncryptRecord(plaintext []byte, ownerID, recordID int64) (*cryptox.EncryptedRecord, error)
	DecryptRecord(rec *cryptox.EncryptedRecord, ownerID, recordID int64) ([]byte, error)
	RotatePassword(ctx context.Context, currentPassword, newPassword []byte) error
	ResumeRotation(ctx context.Context) error
	RotationPending() bool
	// DiscardRotation wipes an unfinished rotation.
	DiscardRotation()
}

type vault struct {
	params   cryptox.KDFParams
	sess     *session.Session
	rotation *RotationCoordinator
}

// NewVault builds a Vault over sess. Password rotation is delegated to
// rotation.
func NewVault(sess *session.Session, params cryptox.KDFParams, rotation *RotationCoordinator) Vault {
	return &vault{params: params, sess: sess, rotation: rotation}
}

func (v *vault) DeriveVaultKey(password, salt []byte) *cryptox.Key {
	return cryptox.DeriveKey(password, salt, v.params.VaultKeyIterations, false)
}

func (v *vault) DeriveVerifier(password []byte, email string) string {
	return cryptox.DeriveVerifier(password, email, v.params.VerifierIterations)
}

func (v *vault) EncryptRecord(plaintext []byte, ownerID, recordID int64) (*cryptox.EncryptedRecord, error) {
	key, ok := v.sess.Key()
	if !ok {
		return nil, cryptox.ErrKeyUnavailable
	}
	return cryptox.EncryptRecord(plaintext, key, ownerID, recordID)
}

func (v *vault) DecryptRecord(rec *cryptox.EncryptedRecord, ownerID, recordID int64) ([]byte, error) {
	key, ok := v.sess.Key()
	if !ok {
		return nil, cryptox.ErrKeyUnavailable
	}
	return cryptox.DecryptRecord(rec, key, ownerID, recordID)
}

func (v *vault) RotatePassword(ctx context.Context, currentPassword, newPassword []byte) error {
	return v.rotation.Rotate(ctx, currentPassword, newPassword)
}

func (v *vault) ResumeRotation(ctx context.Context) error {
	return v.rotation.ResumeCommit(ctx)
}

func (v *vault) RotationPending() bool {
	return v.rotation != nil && v.rotation.Pending()
}

func (v *vault) DiscardRotation() {
	if v.rotation != nil {
		v.rotation.Discard()
	}
}
