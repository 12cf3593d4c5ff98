package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/zkvault/internal/client/services"
	"github.com/dmitrijs2005/zkvault/internal/common"
)

func (a *App) printRotationState(s services.RotationState) {
	switch s {
	case services.StateVerifying:
		fmt.Fprintln(a.out, "  checking the current password...")
	case services.StateDecryptingAll:
		fmt.Fprintln(a.out, "  decrypting notes...")
	case services.StateDerivingNewKey:
		fmt.Fprintln(a.out, "  deriving the new key...")
	case services.StateReencryptingAll:
		fmt.Fprintln(a.out, "  re-encrypting notes...")
	case services.StateCommitting:
		fmt.Fprintln(a.out, "  saving to the server...")
	}
}

// ChangePassword rotates the account password and re-encrypts every note.
// When an earlier attempt left the vault half-committed the user is asked
// to resume that one instead.
func (a *App) ChangePassword(ctx context.Context) error {
	if a.vault.RotationPending() {
		a.warn("The previous password change did not finish.")
		resume, err := Confirm(a.reader, "Resume it now?", a.out)
		if err != nil {
			return err
		}
		if !resume {
			fmt.Fprintln(a.out, "Not resumed. Your notes stay split between the two keys until you do.")
			return nil
		}
		if err := a.vault.ResumeRotation(ctx); err != nil {
			return err
		}
		a.success("Password changed")
		return nil
	}

	current, err := getPassword(a.out, "Current password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)

	next, err := a.readNewPassword("New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	if err := a.vault.RotatePassword(ctx, current, next); err != nil {
		return err
	}
	a.success("Password changed. Use the new password from now on.")
	return nil
}
