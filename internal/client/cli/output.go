package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/dmitrijs2005/zkvault/internal/client/services"
	"github.com/dmitrijs2005/zkvault/internal/client/session"
	"github.com/dmitrijs2005/zkvault/internal/common"
	"github.com/dmitrijs2005/zkvault/internal/cryptox"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

func (a *App) success(format string, args ...any) {
	okColor.Fprintf(a.out, format+"\n", args...)
}

func (a *App) warn(format string, args ...any) {
	warnColor.Fprintf(a.out, format+"\n", args...)
}

// report prints err in a form meant for the user. Details that only matter
// for debugging go to the log.
func (a *App) report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	a.log.Debug(ctx, "command failed", "error", err)
	errColor.Fprintln(a.out, "Error: "+describeError(err))
}

func describeError(err error) string {
	var (
		authErr    *services.AuthError
		abortedErr *services.RotationAbortedError
		partialErr *services.CommitPartialFailureError
	)

	switch {
	case errors.As(err, &authErr):
		return "the current password is incorrect; nothing was changed"
	case errors.As(err, &abortedErr):
		return fmt.Sprintf("password not changed: notes %s could not be decrypted with the current key", joinIDs(abortedErr.Unreadable))
	case errors.As(err, &partialErr):
		return describePartialFailure(partialErr)
	case errors.Is(err, services.ErrResumeRequired):
		return "a previous password change is unfinished; run 'passwd' to resume it"
	case errors.Is(err, session.ErrNoSession):
		return "please log in first"
	case errors.Is(err, session.ErrRotationInProgress):
		return "a password change is already running"
	case errors.Is(err, common.ErrTokenExpired):
		return "your session has expired; log in again"
	case errors.Is(err, common.ErrorUnauthorized):
		return "invalid email or password"
	case errors.Is(err, common.ErrorAlreadyExists), errors.Is(err, common.ErrConflict):
		return "the server rejected the change as conflicting: " + err.Error()
	case errors.Is(err, common.ErrorNotFound):
		return "no such note"
	case errors.Is(err, cryptox.ErrIntegrity):
		return "the note could not be decrypted: it was tampered with or belongs to another key"
	case errors.Is(err, common.ErrUnavailable):
		return "the server is unavailable, try again later"
	case errors.Is(err, common.ErrorValidation):
		return "the server rejected the request: " + err.Error()
	}
	return err.Error()
}

func describePartialFailure(e *services.CommitPartialFailureError) string {
	var b strings.Builder
	b.WriteString("password not changed")
	if e.CredentialFailed {
		b.WriteString("; the server did not accept the new credential")
	}
	if len(e.Failed) > 0 {
		fmt.Fprintf(&b, "; writes failed for notes %s", joinIDs(e.Failed))
	}
	if e.RetrySafe() {
		b.WriteString(". All notes are still readable with your current password, so it is safe to try again")
		return b.String()
	}
	if len(e.Stranded) > 0 {
		fmt.Fprintf(&b, ". Notes %s are encrypted under the new password", joinIDs(e.Stranded))
	}
	if e.Indeterminate {
		b.WriteString(". The server outcome could not be confirmed")
	}
	b.WriteString(". Run 'passwd' again to resume the change")
	return b.String()
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
