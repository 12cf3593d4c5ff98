package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/zkvault/internal/client/models"
	"github.com/dmitrijs2005/zkvault/internal/client/session"
	"github.com/dmitrijs2005/zkvault/internal/common"
	"github.com/dmitrijs2005/zkvault/internal/cryptox"
)

var testParams = cryptox.KDFParams{VaultKeyIterations: 20, VerifierIterations: 10}

type recKey struct{ owner, id int64 }

// memStore is an in-memory RecordStore with failure injection.
type memStore struct {
	mu      sync.Mutex
	recs    map[recKey]models.Record
	order   []recKey
	calls   map[int64]int
	updates int

	// onUpdate, when set, can fail the n-th (1-based) update of a record.
	onUpdate  func(id int64, call int) error
	createErr []error
	listErr   error
}

func newMemStore() *memStore {
	return &memStore{recs: map[recKey]models.Record{}, calls: map[int64]int{}}
}

func clone(rec *cryptox.EncryptedRecord, owner, id int64) *cryptox.EncryptedRecord {
	return &cryptox.EncryptedRecord{
		OwnerID:    owner,
		RecordID:   id,
		Ciphertext: append([]byte(nil), rec.Ciphertext...),
		Nonce:      append([]byte(nil), rec.Nonce...),
		Tag:        append([]byte(nil), rec.Tag...),
	}
}

func (m *memStore) List(ctx context.Context, ownerID int64) ([]models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []models.Record{}
	for _, k := range m.order {
		if k.owner != ownerID {
			continue
		}
		r := m.recs[k]
		out = append(out, models.Record{Sealed: clone(r.Sealed, k.owner, k.id), CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt})
	}
	return out, nil
}

func (m *memStore) Get(ctx context.Context, ownerID, recordID int64) (*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[recKey{ownerID, recordID}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.Record{Sealed: clone(r.Sealed, ownerID, recordID), CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}, nil
}

func (m *memStore) Create(ctx context.Context, ownerID int64, rec *cryptox.EncryptedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.createErr) > 0 {
		err := m.createErr[0]
		m.createErr = m.createErr[1:]
		if err != nil {
			return err
		}
	}
	k := recKey{ownerID, rec.RecordID}
	if _, ok := m.recs[k]; ok {
		return common.ErrorAlreadyExists
	}
	now := time.Now()
	m.recs[k] = models.Record{Sealed: clone(rec, ownerID, rec.RecordID), CreatedAt: now, UpdatedAt: now}
	m.order = append(m.order, k)
	return nil
}

func (m *memStore) Update(ctx context.Context, ownerID, recordID int64, rec *cryptox.EncryptedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[recordID]++
	if m.onUpdate != nil {
		if err := m.onUpdate(recordID, m.calls[recordID]); err != nil {
			return err
		}
	}
	k := recKey{ownerID, recordID}
	r, ok := m.recs[k]
	if !ok {
		return common.ErrorNotFound
	}
	r.Sealed = clone(rec, ownerID, recordID)
	r.UpdatedAt = time.Now()
	m.recs[k] = r
	m.updates++
	return nil
}

func (m *memStore) Delete(ctx context.Context, ownerID, recordID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := recKey{ownerID, recordID}
	if _, ok := m.recs[k]; !ok {
		return common.ErrorNotFound
	}
	delete(m.recs, k)
	for i, o := range m.order {
		if o == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// sealed returns a copy of the stored ciphertext of one record.
func (m *memStore) sealed(owner, id int64) *cryptox.EncryptedRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.recs[recKey{owner, id}]
	return clone(r.Sealed, owner, id)
}

// fakeAuth is an Authenticator backed by one account.
type fakeAuth struct {
	mu       sync.Mutex
	ownerID  int64
	email    string
	verifier string
	salt     []byte
	tokens   int

	loginErr    error
	changeErr   error
	changeApply bool
	changeCalls int
	registerErr error
	registered  []Credential
}

func (a *fakeAuth) Register(ctx context.Context, cred Credential) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.registerErr != nil {
		return 0, a.registerErr
	}
	a.registered = append(a.registered, cred)
	a.email, a.verifier, a.salt = cred.Email, cred.PasswordVerifier, cred.LoginSalt
	return a.ownerID, nil
}

func (a *fakeAuth) Login(ctx context.Context, email, verifier string) (*LoginResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	if email != a.email || verifier != a.verifier {
		return nil, common.ErrorUnauthorized
	}
	a.tokens++
	return &LoginResult{
		Token:     fmt.Sprintf("token-%d", a.tokens),
		OwnerID:   a.ownerID,
		Email:     a.email,
		LoginSalt: append([]byte(nil), a.salt...),
	}, nil
}

func (a *fakeAuth) ChangePassword(ctx context.Context, currentVerifier, newVerifier string, newLoginSalt []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.changeCalls++
	if a.changeErr != nil && !a.changeApply {
		return a.changeErr
	}
	if currentVerifier != a.verifier {
		return common.ErrorUnauthorized
	}
	a.verifier, a.salt = newVerifier, append([]byte(nil), newLoginSalt...)
	return a.changeErr
}

func (a *fakeAuth) currentVerifier() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.verifier
}

func (a *fakeAuth) currentSalt() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]byte(nil), a.salt...)
}

// atomicAuth adds a transactional CommitRotation over the same store.
type atomicAuth struct {
	*fakeAuth
	store     *memStore
	commitErr error
	commits   int
}

func (a *atomicAuth) CommitRotation(ctx context.Context, c RotationCommit) error {
	a.commits++
	if a.commitErr != nil {
		return a.commitErr
	}

	a.fakeAuth.mu.Lock()
	defer a.fakeAuth.mu.Unlock()
	if c.CurrentVerifier != a.verifier {
		return common.ErrorUnauthorized
	}

	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	owned := 0
	for k := range a.store.recs {
		if k.owner == a.ownerID {
			owned++
		}
	}
	if owned != len(c.Records) {
		return common.ErrConflict
	}
	for _, r := range c.Records {
		if _, ok := a.store.recs[recKey{a.ownerID, r.RecordID}]; !ok {
			return common.ErrConflict
		}
	}
	for _, r := range c.Records {
		k := recKey{a.ownerID, r.RecordID}
		rec := a.store.recs[k]
		rec.Sealed = clone(r, a.ownerID, r.RecordID)
		a.store.recs[k] = rec
	}
	a.verifier, a.salt = c.NewVerifier, append([]byte(nil), c.NewLoginSalt...)
	return nil
}

// vaultFixture is a logged-in account with records 1..n.
type vaultFixture struct {
	owner    int64
	email    string
	password []byte
	store    *memStore
	auth     *fakeAuth
	sess     *session.Session
}

func newFixture(t *testing.T, n int) *vaultFixture {
	t.Helper()

	f := &vaultFixture{
		owner:    42,
		email:    "alice@example.com",
		password: []byte("old password"),
		store:    newMemStore(),
		sess:     session.New(),
	}

	salt, err := cryptox.NewSalt()
	require.NoError(t, err)
	f.auth = &fakeAuth{
		ownerID:  f.owner,
		email:    f.email,
		verifier: cryptox.DeriveVerifier(f.password, f.email, testParams.VerifierIterations),
		salt:     salt,
	}

	key := cryptox.DeriveKey(f.password, salt, testParams.VaultKeyIterations, false)
	f.sess.Begin(session.Identity{OwnerID: f.owner, Email: f.email, Token: "t0"}, key)

	for id := int64(1); id <= int64(n); id++ {
		rec, err := cryptox.EncryptRecord([]byte(plaintextFor(id)), key, f.owner, id)
		require.NoError(t, err)
		require.NoError(t, f.store.Create(context.Background(), f.owner, rec))
	}
	return f
}

func plaintextFor(id int64) string {
	return fmt.Sprintf("note %d\nbody of record", id)
}

// keyFor derives the vault key for password with the server's current salt.
func (f *vaultFixture) keyFor(password string) *cryptox.Key {
	return cryptox.DeriveKey([]byte(password), f.auth.currentSalt(), testParams.VaultKeyIterations, false)
}

// readableWith reports which records decrypt under key.
func (f *vaultFixture) readableWith(t *testing.T, key *cryptox.Key, n int) []int64 {
	t.Helper()
	var ok []int64
	for id := int64(1); id <= int64(n); id++ {
		pt, err := cryptox.DecryptRecord(f.store.sealed(f.owner, id), key, f.owner, id)
		if err == nil {
			require.Equal(t, plaintextFor(id), string(pt))
			ok = append(ok, id)
		} else {
			require.True(t, errors.Is(err, cryptox.ErrIntegrity))
		}
	}
	return ok
}

func ids(from, to int64) []int64 {
	out := []int64{}
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
