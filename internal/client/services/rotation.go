package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/zkvault/internal/client/session"
	"github.com/dmitrijs2005/zkvault/internal/common"
	"github.com/dmitrijs2005/zkvault/internal/cryptox"
	"github.com/dmitrijs2005/zkvault/internal/logging"
)

// RotationState is a step of the password rotation state machine.
type RotationState int

const (
	StateIdle RotationState = iota
	StateVerifying
	StateDecryptingAll
	StateDerivingNewKey
	StateReencryptingAll
	StateCommitting
	StateDone
	StateFailed
)

func (s RotationState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateVerifying:
		return "Verifying"
	case StateDecryptingAll:
		return "DecryptingAll"
	case StateDerivingNewKey:
		return "DerivingNewKey"
	case StateReencryptingAll:
		return "ReencryptingAll"
	case StateCommitting:
		return "Committing"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("RotationState(%d)", int(s))
	}
}

// RotationOptions configures a RotationCoordinator.
type RotationOptions struct {
	Params cryptox.KDFParams
	// CommitRetries is the number of attempts per record write in the
	// staged commit. Values below 1 mean a single attempt.
	CommitRetries int
	RetryBackoff  time.Duration
	// Atomic selects the server-side transactional commit when the
	// Authenticator supports it.
	Atomic bool
	// OnState is called after every transition, outside any lock.
	OnState func(RotationState)
	Log     logging.Logger
}

// RotationCoordinator changes the account password and re-encrypts every
// record under the new vault key. Either the whole vault ends up under the
// new key with the new credential, or the credential is unchanged and the
// outcome for each record is reported in a CommitPartialFailureError.
type RotationCoordinator struct {
	mu      sync.Mutex
	state   RotationState
	pending *rotationPlan

	sess  *session.Session
	store RecordStore
	auth  Authenticator
	opts  RotationOptions
}

type stagedRecord struct {
	id   int64
	old  *cryptox.EncryptedRecord
	next *cryptox.EncryptedRecord
}

type rotationPlan struct {
	rotationID      string
	ownerID         int64
	email           string
	currentVerifier string
	newVerifier     string
	newSalt         []byte
	newKey          *cryptox.Key
	records         []stagedRecord
}

// wipe overwrites the new key and salt. The plan must not be used after.
func (p *rotationPlan) wipe() {
	p.newKey.Wipe()
	common.WipeByteArray(p.newSalt)
	p.currentVerifier, p.newVerifier = "", ""
	p.records = nil
}

func (p *rotationPlan) ids() []int64 {
	ids := make([]int64, len(p.records))
	for i, r := range p.records {
		ids[i] = r.id
	}
	return ids
}

func (p *rotationPlan) commit() RotationCommit {
	recs := make([]*cryptox.EncryptedRecord, len(p.records))
	for i, r := range p.records {
		recs[i] = r.next
	}
	return RotationCommit{
		CurrentVerifier: p.currentVerifier,
		NewVerifier:     p.newVerifier,
		NewLoginSalt:    p.newSalt,
		Records:         recs,
	}
}

type plainRecord struct {
	id        int64
	old       *cryptox.EncryptedRecord
	plaintext []byte
}

func wipePlain(recs []plainRecord) {
	for i := range recs {
		common.WipeByteArray(recs[i].plaintext)
		recs[i].plaintext = nil
	}
}

func NewRotationCoordinator(sess *session.Session, store RecordStore, auth Authenticator, opts RotationOptions) *RotationCoordinator {
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	if opts.Params.VaultKeyIterations == 0 && opts.Params.VerifierIterations == 0 {
		opts.Params = cryptox.DefaultKDFParams()
	}
	if opts.CommitRetries < 1 {
		opts.CommitRetries = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 100 * time.Millisecond
	}
	return &RotationCoordinator{sess: sess, store: store, auth: auth, opts: opts}
}

// State returns the current state.
func (c *RotationCoordinator) State() RotationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending reports whether a failed commit left a plan that ResumeCommit
// can finish for the account of the current session.
func (c *RotationCoordinator) Pending() bool {
	identity, err := c.sess.Identity()
	if err != nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil && c.pending.ownerID == identity.OwnerID
}

// Discard wipes and forgets a pending plan. Records it left under the new
// key stay unreadable with the old password.
func (c *RotationCoordinator) Discard() {
	c.mu.Lock()
	plan := c.pending
	c.pending = nil
	c.state = StateIdle
	c.mu.Unlock()

	if plan != nil {
		c.opts.Log.Warn(context.Background(), "pending rotation discarded",
			"rotation_id", plan.rotationID, "owner_id", plan.ownerID, "stranded_records", len(plan.records))
		plan.wipe()
	}
}

// takePending removes and returns the pending plan when it belongs to
// ownerID. A plan left by another account is discarded.
func (c *RotationCoordinator) takePending(ownerID int64, remove bool) *rotationPlan {
	c.mu.Lock()
	plan := c.pending
	if plan != nil && (remove || plan.ownerID != ownerID) {
		c.pending = nil
	}
	c.mu.Unlock()

	if plan == nil {
		return nil
	}
	if plan.ownerID != ownerID {
		c.opts.Log.Warn(context.Background(), "discarding rotation of another account",
			"rotation_id", plan.rotationID, "owner_id", plan.ownerID)
		plan.wipe()
		return nil
	}
	return plan
}

func (c *RotationCoordinator) setState(ctx context.Context, log logging.Logger, s RotationState) {
	c.mu.Lock()
	from := c.state
	c.state = s
	c.mu.Unlock()

	log.Info(ctx, "rotation state", "from", from.String(), "to", s.String())
	if c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}

// Rotate replaces currentPassword with newPassword. Cancelling ctx before
// the Committing state leaves server state untouched; once Committing is
// reached cancellation is ignored.
func (c *RotationCoordinator) Rotate(ctx context.Context, currentPassword, newPassword []byte) (err error) {
	release, err := c.sess.AcquireRotation()
	if err != nil {
		return err
	}
	defer release()

	identity, err := c.sess.Identity()
	if err != nil {
		return err
	}
	if c.takePending(identity.OwnerID, false) != nil {
		return ErrResumeRequired
	}
	key, ok := c.sess.Key()
	if !ok {
		return session.ErrNoSession
	}

	rotationID := uuid.NewString()
	log := c.opts.Log.With("rotation_id", rotationID, "owner_id", identity.OwnerID)

	defer func() {
		if err != nil {
			log.Warn(ctx, "rotation failed", "error", err)
			c.setState(ctx, log, StateFailed)
		}
	}()

	c.setState(ctx, log, StateVerifying)
	currentVerifier, err := c.verify(ctx, identity, key, currentPassword)
	if err != nil {
		return err
	}

	c.setState(ctx, log, StateDecryptingAll)
	plain, err := c.decryptAll(ctx, identity.OwnerID, key)
	if err != nil {
		return err
	}
	defer wipePlain(plain)

	if err := ctx.Err(); err != nil {
		return err
	}

	c.setState(ctx, log, StateDerivingNewKey)
	newSalt, err := cryptox.NewSalt()
	if err != nil {
		return err
	}
	newKey := cryptox.DeriveKey(newPassword, newSalt, c.opts.Params.VaultKeyIterations, false)
	plan := &rotationPlan{
		rotationID:      rotationID,
		ownerID:         identity.OwnerID,
		email:           identity.Email,
		currentVerifier: currentVerifier,
		newVerifier:     cryptox.DeriveVerifier(newPassword, identity.Email, c.opts.Params.VerifierIterations),
		newSalt:         newSalt,
		newKey:          newKey,
	}

	c.setState(ctx, log, StateReencryptingAll)
	plan.records, err = reencryptAll(plain, newKey, identity.OwnerID)
	wipePlain(plain)
	if err != nil {
		newKey.Wipe()
		return err
	}

	if err := ctx.Err(); err != nil {
		newKey.Wipe()
		return err
	}

	return c.finish(context.WithoutCancel(ctx), log, plan)
}

// ResumeCommit retries a commit that left records stranded under the new
// key. It writes every record forward and then updates the credential.
func (c *RotationCoordinator) ResumeCommit(ctx context.Context) (err error) {
	release, err := c.sess.AcquireRotation()
	if err != nil {
		return err
	}
	defer release()

	identity, err := c.sess.Identity()
	if err != nil {
		return err
	}
	plan := c.takePending(identity.OwnerID, true)
	if plan == nil {
		return ErrNothingToResume
	}

	log := c.opts.Log.With("rotation_id", plan.rotationID, "owner_id", plan.ownerID)
	log.Info(ctx, "resuming rotation commit", "records", len(plan.records))

	err = c.finish(context.WithoutCancel(ctx), log, plan)
	if err != nil {
		c.setState(ctx, log, StateFailed)
	}
	return err
}

// finish runs the Committing state and installs the new key on success.
// A plan whose failure leaves records under the new key is kept for
// ResumeCommit; otherwise the new key is wiped.
func (c *RotationCoordinator) finish(ctx context.Context, log logging.Logger, plan *rotationPlan) error {
	c.setState(ctx, log, StateCommitting)

	if err := c.commit(ctx, log, plan); err != nil {
		var pf *CommitPartialFailureError
		if errors.As(err, &pf) && !pf.RetrySafe() {
			c.mu.Lock()
			c.pending = plan
			c.mu.Unlock()
			log.Error(ctx, "rotation commit incomplete", "stranded", pf.Stranded, "indeterminate", pf.Indeterminate)
		} else {
			plan.wipe()
		}
		return err
	}

	c.sess.SetKey(plan.newKey)
	c.setState(ctx, log, StateDone)
	return nil
}

func (c *RotationCoordinator) verify(ctx context.Context, identity session.Identity, key *cryptox.Key, password []byte) (string, error) {
	verifier := cryptox.DeriveVerifier(password, identity.Email, c.opts.Params.VerifierIterations)

	res, err := c.auth.Login(ctx, identity.Email, verifier)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return "", &AuthError{Err: err}
		}
		return "", fmt.Errorf("verify current password: %w", err)
	}
	if res.OwnerID != identity.OwnerID {
		return "", &AuthError{Err: common.ErrorUnauthorized}
	}

	candidate := cryptox.DeriveKey(password, res.LoginSalt, c.opts.Params.VaultKeyIterations, false)
	defer candidate.Wipe()
	if !candidate.Equal(key) {
		return "", &AuthError{Err: common.ErrorUnauthorized}
	}

	if res.Token != "" {
		c.sess.SetToken(res.Token)
	}
	return verifier, nil
}

func (c *RotationCoordinator) decryptAll(ctx context.Context, ownerID int64, key *cryptox.Key) ([]plainRecord, error) {
	recs, err := c.store.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	plain := make([]plainRecord, 0, len(recs))
	var unreadable []int64

	for _, r := range recs {
		pt, err := cryptox.DecryptRecord(r.Sealed, key, ownerID, r.ID())
		if err != nil {
			if errors.Is(err, cryptox.ErrKeyUnavailable) {
				wipePlain(plain)
				return nil, err
			}
			unreadable = append(unreadable, r.ID())
			continue
		}
		plain = append(plain, plainRecord{id: r.ID(), old: r.Sealed, plaintext: pt})
	}

	if len(unreadable) > 0 {
		wipePlain(plain)
		return nil, &RotationAbortedError{Unreadable: unreadable}
	}
	return plain, nil
}

func reencryptAll(plain []plainRecord, newKey *cryptox.Key, ownerID int64) ([]stagedRecord, error) {
	staged := make([]stagedRecord, 0, len(plain))
	for _, p := range plain {
		next, err := cryptox.EncryptRecord(p.plaintext, newKey, ownerID, p.id)
		if err != nil {
			return nil, fmt.Errorf("re-encrypt record %d: %w", p.id, err)
		}
		staged = append(staged, stagedRecord{id: p.id, old: p.old, next: next})
	}
	return staged, nil
}

func (c *RotationCoordinator) commit(ctx context.Context, log logging.Logger, plan *rotationPlan) error {
	if committer, ok := c.auth.(RotationCommitter); ok && c.opts.Atomic {
		return c.commitAtomic(ctx, log, committer, plan)
	}
	return c.commitStaged(ctx, log, plan)
}

func (c *RotationCoordinator) commitAtomic(ctx context.Context, log logging.Logger, committer RotationCommitter, plan *rotationPlan) error {
	err := committer.CommitRotation(ctx, plan.commit())
	if err == nil {
		c.refreshToken(ctx, plan)
		return nil
	}

	switch c.probeCredential(ctx, plan) {
	case credentialFlipped:
		log.Warn(ctx, "commit response lost, server applied rotation", "error", err)
		return nil
	case credentialUnknown:
		return &CommitPartialFailureError{Failed: plan.ids(), Indeterminate: true, Err: err}
	}
	return &CommitPartialFailureError{Failed: plan.ids(), OldKey: plan.ids(), Err: err}
}

func (c *RotationCoordinator) commitStaged(ctx context.Context, log logging.Logger, plan *rotationPlan) error {
	written := make([]stagedRecord, 0, len(plan.records))
	var failed []int64
	var cause error

	for _, r := range plan.records {
		if err := c.writeRecord(ctx, plan.ownerID, r.id, r.next); err != nil {
			failed = append(failed, r.id)
			cause = fmt.Errorf("write record %d: %w", r.id, err)
			break
		}
		written = append(written, r)
	}

	credentialFailed := false
	if cause == nil {
		err := c.auth.ChangePassword(ctx, plan.currentVerifier, plan.newVerifier, plan.newSalt)
		if err == nil {
			c.refreshToken(ctx, plan)
			return nil
		}

		switch c.probeCredential(ctx, plan) {
		case credentialFlipped:
			log.Warn(ctx, "change-password response lost, server applied it", "error", err)
			return nil
		case credentialUnknown:
			// The credential may already be new, so written records stay
			// under the new key.
			return &CommitPartialFailureError{
				Stranded:         idsOf(written),
				CredentialFailed: true,
				Indeterminate:    true,
				Err:              fmt.Errorf("change password: %w", err),
			}
		}
		credentialFailed = true
		cause = fmt.Errorf("change password: %w", err)
	}

	log.Warn(ctx, "rolling back staged writes", "written", len(written), "error", cause)
	stranded := c.rollback(ctx, log, plan.ownerID, written)

	return &CommitPartialFailureError{
		Failed:           failed,
		OldKey:           without(plan.ids(), stranded),
		Stranded:         stranded,
		CredentialFailed: credentialFailed,
		Err:              cause,
	}
}

func (c *RotationCoordinator) rollback(ctx context.Context, log logging.Logger, ownerID int64, written []stagedRecord) []int64 {
	var stranded []int64
	for i := len(written) - 1; i >= 0; i-- {
		r := written[i]
		if err := c.writeRecord(ctx, ownerID, r.id, r.old); err != nil {
			log.Error(ctx, "rollback failed", "record_id", r.id, "error", err)
			stranded = append(stranded, r.id)
		}
	}
	return stranded
}

// writeRecord updates one record, retrying only transient failures.
func (c *RotationCoordinator) writeRecord(ctx context.Context, ownerID, recordID int64, rec *cryptox.EncryptedRecord) error {
	backoff := retry.WithMaxRetries(uint64(c.opts.CommitRetries-1), retry.NewExponential(c.opts.RetryBackoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.store.Update(ctx, ownerID, recordID, rec)
		if errors.Is(err, common.ErrUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
}

type credentialOutcome int

const (
	credentialUnchanged credentialOutcome = iota
	credentialFlipped
	credentialUnknown
)

// probeCredential finds out whether a failed commit was applied anyway by
// logging in with the new verifier.
func (c *RotationCoordinator) probeCredential(ctx context.Context, plan *rotationPlan) credentialOutcome {
	res, err := c.auth.Login(ctx, plan.email, plan.newVerifier)
	switch {
	case err == nil:
		if res.Token != "" {
			c.sess.SetToken(res.Token)
		}
		return credentialFlipped
	case errors.Is(err, common.ErrorUnauthorized):
		return credentialUnchanged
	default:
		return credentialUnknown
	}
}

// refreshToken logs in with the new verifier so the session carries a
// token issued after the change. On failure the old token is kept.
func (c *RotationCoordinator) refreshToken(ctx context.Context, plan *rotationPlan) {
	if res, err := c.auth.Login(ctx, plan.email, plan.newVerifier); err == nil && res.Token != "" {
		c.sess.SetToken(res.Token)
	}
}

func idsOf(recs []stagedRecord) []int64 {
	ids := make([]int64, len(recs))
	for i, r := range recs {
		ids[i] = r.id
	}
	return ids
}

func without(ids, exclude []int64) []int64 {
	skip := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
