package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/zkvault/internal/common"
	"github.com/dmitrijs2005/zkvault/internal/dbx"
	"github.com/dmitrijs2005/zkvault/internal/logging"
	"github.com/dmitrijs2005/zkvault/internal/server/auth"
	"github.com/dmitrijs2005/zkvault/internal/server/config"
	"github.com/dmitrijs2005/zkvault/internal/server/models"
	notesrepo "github.com/dmitrijs2005/zkvault/internal/server/repositories/notes"
	usersrepo "github.com/dmitrijs2005/zkvault/internal/server/repositories/users"
)

type fakeUsersRepo struct {
	byID      map[int64]*models.User
	nextID    int64
	createErr error
	getErr    []error
	updateErr error
}

func newFakeUsers() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[int64]*models.User{}, nextID: 1}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	u.ID = f.nextID
	f.nextID++
	u.CreatedAt = time.Now()
	cp := *u
	f.byID[u.ID] = &cp
	return u, nil
}

func (f *fakeUsersRepo) popGetErr() error {
	if len(f.getErr) == 0 {
		return nil
	}
	err := f.getErr[0]
	f.getErr = f.getErr[1:]
	return err
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if err := f.popGetErr(); err != nil {
		return nil, err
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	if err := f.popGetErr(); err != nil {
		return nil, err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) UpdateCredential(_ context.Context, id int64, verifier, salt []byte) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Verifier, u.LoginSalt = verifier, salt
	return nil
}

func (f *fakeUsersRepo) IncrementKeyGeneration(_ context.Context, id int64) (int64, error) {
	u, ok := f.byID[id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	u.KeyGeneration++
	return u.KeyGeneration, nil
}

type noteKey struct{ owner, id int64 }

type fakeNotesRepo struct {
	rows      map[noteKey]models.Note
	updateErr map[int64]error
	listErr   error
}

func newFakeNotes() *fakeNotesRepo {
	return &fakeNotesRepo{rows: map[noteKey]models.Note{}, updateErr: map[int64]error{}}
}

func (f *fakeNotesRepo) List(_ context.Context, owner int64) ([]models.Note, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Note
	for k, n := range f.rows {
		if k.owner == owner {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotesRepo) ListForUpdate(ctx context.Context, owner int64) ([]models.Note, error) {
	return f.List(ctx, owner)
}

func (f *fakeNotesRepo) Get(_ context.Context, owner, id int64) (*models.Note, error) {
	n, ok := f.rows[noteKey{owner, id}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &n, nil
}

func (f *fakeNotesRepo) Create(_ context.Context, n *models.Note) (*models.Note, error) {
	k := noteKey{n.OwnerID, n.ID}
	if _, ok := f.rows[k]; ok {
		return nil, common.ErrorAlreadyExists
	}
	n.CreatedAt, n.UpdatedAt = time.Now(), time.Now()
	f.rows[k] = *n
	return n, nil
}

func (f *fakeNotesRepo) Update(_ context.Context, n *models.Note) (*models.Note, error) {
	if err := f.updateErr[n.ID]; err != nil {
		return nil, err
	}
	k := noteKey{n.OwnerID, n.ID}
	old, ok := f.rows[k]
	if !ok {
		return nil, common.ErrorNotFound
	}
	n.CreatedAt, n.UpdatedAt = old.CreatedAt, time.Now()
	f.rows[k] = *n
	return n, nil
}

func (f *fakeNotesRepo) Delete(_ context.Context, owner, id int64) error {
	k := noteKey{owner, id}
	if _, ok := f.rows[k]; !ok {
		return common.ErrorNotFound
	}
	delete(f.rows, k)
	return nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	n *fakeNotesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return m.u }
func (m *fakeRepoManager) Notes(dbx.DBTX) notesrepo.Repository          { return m.n }

type fakeArchiver struct {
	calls    int
	archived []models.Note
	gen      int64
	err      error
}

func (a *fakeArchiver) Archive(_ context.Context, _ int64, gen int64, notes []models.Note) (string, error) {
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	a.gen = gen
	a.archived = append([]models.Note(nil), notes...)
	return "rotations/key", nil
}

type fixture struct {
	db      *sql.DB
	mock    sqlmock.Sqlmock
	rm      *fakeRepoManager
	arch    *fakeArchiver
	users   *UserService
	notes   *NoteService
	cfg     *config.Config
	ownerID int64
}

func testSalt(b byte) []byte {
	s := make([]byte, 16)
	for i := range s {
		s[i] = b
	}
	return s
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rm := &fakeRepoManager{u: newFakeUsers(), n: newFakeNotes()}
	arch := &fakeArchiver{}
	cfg := &config.Config{SecretKey: "k", AccessTokenValidityDuration: time.Hour}

	f := &fixture{
		db:    db,
		mock:  mock,
		rm:    rm,
		arch:  arch,
		users: NewUserService(db, rm, arch, logging.Nop(), cfg),
		notes: NewNoteService(db, rm),
		cfg:   cfg,
	}
	return f
}

// seedUser stores alice with verifier "old-verifier" and n notes.
func (f *fixture) seedUser(t *testing.T, n int) {
	t.Helper()
	hash, err := auth.HashVerifier("old-verifier")
	if err != nil {
		t.Fatalf("HashVerifier: %v", err)
	}
	u, err := f.rm.u.Create(context.Background(), &models.User{
		Email:     "alice@example.com",
		Verifier:  hash,
		LoginSalt: testSalt(1),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	f.ownerID = u.ID
	for i := 1; i <= n; i++ {
		_, err := f.rm.n.Create(context.Background(), &models.Note{
			OwnerID:    u.ID,
			ID:         int64(i),
			Ciphertext: []byte{byte(i)},
			Nonce:      make([]byte, 12),
			AuthTag:    make([]byte, 16),
		})
		if err != nil {
			t.Fatalf("seed note: %v", err)
		}
	}
}
