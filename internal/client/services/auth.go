package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/zkvault/internal/client/session"
	"github.com/dmitrijs2005/zkvault/internal/cryptox"
)

// AuthService registers accounts and opens and closes sessions.
//
// Register and Login never send the password: the server only sees the
// verifier, which is derived with a different salt and cost than the
// vault key.
type AuthService interface {
	Register(ctx context.Context, email string, password []byte) (int64, error)
	Login(ctx context.Context, email string, password []byte) (session.Identity, error)
	Logout(ctx context.Context)
}

type authService struct {
	auth  Authenticator
	vault Vault
	sess  *session.Session
}

func NewAuthService(auth Authenticator, vault Vault, sess *session.Session) AuthService {
	return &authService{auth: auth, vault: vault, sess: sess}
}

// Register creates an account with a fresh random login salt.
func (a *authService) Register(ctx context.Context, email string, password []byte) (int64, error) {
	salt, err := cryptox.NewSalt()
	if err != nil {
		return 0, err
	}

	cred := Credential{
		Email:            cryptox.NormalizeEmail(email),
		UsernameHash:     cryptox.UsernameHash(email),
		PasswordVerifier: a.vault.DeriveVerifier(password, email),
		LoginSalt:        salt,
	}

	id, err := a.auth.Register(ctx, cred)
	if err != nil {
		return 0, fmt.Errorf("register: %w", err)
	}
	return id, nil
}

// Login authenticates with the verifier, derives the vault key from the
// returned login salt and starts the session.
func (a *authService) Login(ctx context.Context, email string, password []byte) (session.Identity, error) {
	email = cryptox.NormalizeEmail(email)

	res, err := a.auth.Login(ctx, email, a.vault.DeriveVerifier(password, email))
	if err != nil {
		return session.Identity{}, fmt.Errorf("login: %w", err)
	}

	identity := session.Identity{OwnerID: res.OwnerID, Email: email, Token: res.Token}
	a.sess.Begin(identity, a.vault.DeriveVaultKey(password, res.LoginSalt))
	return identity, nil
}

// Logout wipes the vault key and any unfinished rotation, and forgets the
// session.
func (a *authService) Logout(ctx context.Context) {
	a.vault.DiscardRotation()
	a.sess.Clear()
}
