package services

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/zkvault/internal/cryptox"
)

var (
	// ErrResumeRequired is returned by Rotate while a previous commit left
	// records under the new key; ResumeCommit must finish it first.
	ErrResumeRequired = errors.New("previous rotation left records under the new key; resume it first")

	// ErrNothingToResume is returned by ResumeCommit without a pending plan.
	ErrNothingToResume = errors.New("no rotation to resume")
)

// AuthError reports that the current password was not accepted while
// verifying a rotation.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("current password rejected: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RotationAbortedError reports records that could not be decrypted with
// the session key. Nothing was written.
type RotationAbortedError struct {
	Unreadable []int64
}

func (e *RotationAbortedError) Error() string {
	return fmt.Sprintf("rotation aborted: %d record(s) could not be decrypted: %v", len(e.Unreadable), e.Unreadable)
}

func (e *RotationAbortedError) Unwrap() error { return cryptox.ErrIntegrity }

// CommitPartialFailureError reports a rotation commit that did not complete.
// The credential was not changed.
//
// Failed lists the records whose write failed (empty when the credential
// update itself failed). OldKey lists records readable with the old
// password. Stranded lists records left under the new key because rolling
// them back failed. Indeterminate is set when the server outcome could not
// be established.
type CommitPartialFailureError struct {
	Failed           []int64
	OldKey           []int64
	Stranded         []int64
	CredentialFailed bool
	Indeterminate    bool
	Err              error
}

func (e *CommitPartialFailureError) Error() string {
	return fmt.Sprintf("rotation commit failed (failed=%v, old_key=%d, stranded=%v): %v",
		e.Failed, len(e.OldKey), e.Stranded, e.Err)
}

func (e *CommitPartialFailureError) Unwrap() error { return e.Err }

// RetrySafe reports whether every record is back under the old key, so a
// fresh rotation with the old password can be attempted.
func (e *CommitPartialFailureError) RetrySafe() bool {
	return len(e.Stranded) == 0 && !e.Indeterminate
}
