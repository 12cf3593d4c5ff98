package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/zkvault/internal/common"
)

const minPasswordLength = 8

var (
	errPasswordTooShort = errors.New("password must be at least 8 characters")
	errPasswordMismatch = errors.New("passwords do not match")
	errEmptyEmail       = errors.New("email must not be empty")
)

// readNewPassword asks for a password twice. The caller wipes the result.
func (a *App) readNewPassword(prompt string) ([]byte, error) {
	pw, err := getPassword(a.out, prompt)
	if err != nil {
		return nil, err
	}
	if len(pw) < minPasswordLength {
		common.WipeByteArray(pw)
		return nil, errPasswordTooShort
	}

	confirm, err := getPassword(a.out, "Repeat password")
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(confirm)

	if string(pw) != string(confirm) {
		common.WipeByteArray(pw)
		return nil, errPasswordMismatch
	}
	return pw, nil
}

func (a *App) readEmail() (string, error) {
	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", errEmptyEmail
	}
	return email, nil
}

func (a *App) Register(ctx context.Context) error {
	email, err := a.readEmail()
	if err != nil {
		return err
	}

	pw, err := a.readNewPassword("Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	id, err := a.authService.Register(ctx, email, pw)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) || errors.Is(err, common.ErrConflict) {
			return errors.New("an account with this email already exists")
		}
		return err
	}

	a.success("Registered account #%d. You can log in now.", id)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := a.readEmail()
	if err != nil {
		return err
	}

	pw, err := getPassword(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	identity, err := a.authService.Login(ctx, email, pw)
	if err != nil {
		return err
	}

	a.success("Logged in as %s", identity.Email)
	return nil
}

// Logout ends the session. An unfinished password change is discarded with
// it, so the user is asked first.
func (a *App) Logout(ctx context.Context) error {
	ok, err := a.confirmDiscardRotation("Log out anyway?")
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}

	a.authService.Logout(ctx)
	a.success("Logged out")
	return nil
}

// confirmDiscardRotation asks before an action that drops an unfinished
// password change. It returns true when nothing is pending.
func (a *App) confirmDiscardRotation(question string) (bool, error) {
	if !a.vault.RotationPending() {
		return true, nil
	}
	a.warn("A password change did not finish and some notes are only readable with the new password.")
	a.warn("Run 'passwd' to resume it, otherwise those notes are lost.")
	return Confirm(a.reader, question, a.out)
}

// confirmLeave reports whether the REPL may exit.
func (a *App) confirmLeave(ctx context.Context) bool {
	ok, err := a.confirmDiscardRotation("Exit anyway?")
	if err != nil {
		a.report(ctx, err)
		return false
	}
	return ok
}
