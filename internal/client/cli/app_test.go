package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/zkvault/internal/client/models"
	"github.com/dmitrijs2005/zkvault/internal/client/services"
	"github.com/dmitrijs2005/zkvault/internal/client/session"
	"github.com/dmitrijs2005/zkvault/internal/common"
	"github.com/dmitrijs2005/zkvault/internal/cryptox"
	"github.com/dmitrijs2005/zkvault/internal/logging"
)

type fakeAuth struct {
	regEmail string
	regPass  []byte
	regID    int64
	regErr   error

	loginEmail string
	loginPass  []byte
	loginErr   error

	logoutCalled bool
}

func (f *fakeAuth) Register(_ context.Context, email string, pass []byte) (int64, error) {
	f.regEmail, f.regPass = email, append([]byte(nil), pass...)
	return f.regID, f.regErr
}
func (f *fakeAuth) Login(_ context.Context, email string, pass []byte) (session.Identity, error) {
	f.loginEmail, f.loginPass = email, append([]byte(nil), pass...)
	if f.loginErr != nil {
		return session.Identity{}, f.loginErr
	}
	return session.Identity{OwnerID: 1, Email: email, Token: "tok"}, nil
}
func (f *fakeAuth) Logout(context.Context) { f.logoutCalled = true }

type fakeNotes struct {
	notes   map[int64]*models.Note
	views   []services.NoteView
	nextID  int64
	err     error
	deleted []int64
}

func newFakeNotes() *fakeNotes {
	return &fakeNotes{notes: map[int64]*models.Note{}, nextID: 100}
}

func (f *fakeNotes) List(context.Context) ([]services.NoteView, error) { return f.views, f.err }
func (f *fakeNotes) Get(_ context.Context, id int64) (*models.Note, error) {
	if f.err != nil {
		return nil, f.err
	}
	n, ok := f.notes[id]
	if !ok {
		return nil, fmt.Errorf("get note: %w", common.ErrorNotFound)
	}
	cp := *n
	return &cp, nil
}
func (f *fakeNotes) Create(_ context.Context, title, body string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	id := f.nextID
	f.nextID++
	f.notes[id] = &models.Note{ID: id, Title: title, Body: body}
	return id, nil
}
func (f *fakeNotes) Update(_ context.Context, id int64, title, body string) error {
	if f.err != nil {
		return f.err
	}
	f.notes[id] = &models.Note{ID: id, Title: title, Body: body}
	return nil
}
func (f *fakeNotes) Delete(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	delete(f.notes, id)
	return nil
}

type fakeVault struct {
	services.Vault

	pending    bool
	rotateCur  []byte
	rotateNext []byte
	rotateErr  error
	resumed    bool
	resumeErr  error
}

func (f *fakeVault) RotatePassword(_ context.Context, cur, next []byte) error {
	f.rotateCur, f.rotateNext = append([]byte(nil), cur...), append([]byte(nil), next...)
	return f.rotateErr
}
func (f *fakeVault) ResumeRotation(context.Context) error {
	f.resumed = true
	return f.resumeErr
}
func (f *fakeVault) RotationPending() bool { return f.pending }

type testApp struct {
	*App
	out   *bytes.Buffer
	auth  *fakeAuth
	notes *fakeNotes
	vault *fakeVault
}

func newTestApp(t *testing.T, input string) *testApp {
	t.Helper()

	origNoColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = origNoColor })

	out := &bytes.Buffer{}
	ta := &testApp{out: out, auth: &fakeAuth{}, notes: newFakeNotes(), vault: &fakeVault{}}
	ta.App = &App{
		sess:        session.New(),
		authService: ta.auth,
		noteService: ta.notes,
		vault:       ta.vault,
		reader:      bufio.NewReader(strings.NewReader(input)),
		out:         out,
		log:         logging.Nop(),
	}
	return ta
}

// stubPasswords feeds the given passwords to getPassword in order.
func stubPasswords(t *testing.T, pws ...string) {
	t.Helper()
	orig := getPassword
	getPassword = func(_ io.Writer, _ string) ([]byte, error) {
		if len(pws) == 0 {
			return nil, errors.New("no more passwords")
		}
		pw := pws[0]
		pws = pws[1:]
		return []byte(pw), nil
	}
	t.Cleanup(func() { getPassword = orig })
}

func TestApp_Register(t *testing.T) {
	ta := newTestApp(t, "alice@example.com\n")
	ta.auth.regID = 42
	stubPasswords(t, "correct horse", "correct horse")

	require.NoError(t, ta.Register(context.Background()))
	require.Equal(t, "alice@example.com", ta.auth.regEmail)
	require.Equal(t, []byte("correct horse"), ta.auth.regPass)
	require.Contains(t, ta.out.String(), "Registered account #42")
}

func TestApp_RegisterValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		pws     []string
		wantErr error
	}{
		{name: "empty email", input: "\n", wantErr: errEmptyEmail},
		{name: "short password", input: "a@b.c\n", pws: []string{"short"}, wantErr: errPasswordTooShort},
		{name: "mismatch", input: "a@b.c\n", pws: []string{"password-1", "password-2"}, wantErr: errPasswordMismatch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ta := newTestApp(t, tc.input)
			stubPasswords(t, tc.pws...)

			err := ta.Register(context.Background())
			require.ErrorIs(t, err, tc.wantErr)
			require.Empty(t, ta.auth.regEmail)
		})
	}
}

func TestApp_RegisterDuplicate(t *testing.T) {
	ta := newTestApp(t, "alice@example.com\n")
	ta.auth.regErr = fmt.Errorf("register: %w", common.ErrConflict)
	stubPasswords(t, "correct horse", "correct horse")

	err := ta.Register(context.Background())
	require.EqualError(t, err, "an account with this email already exists")
}

func TestApp_LoginAndLogout(t *testing.T) {
	ta := newTestApp(t, "alice@example.com\n")
	stubPasswords(t, "correct horse")

	require.NoError(t, ta.Login(context.Background()))
	require.Equal(t, "alice@example.com", ta.auth.loginEmail)
	require.Equal(t, []byte("correct horse"), ta.auth.loginPass)
	require.Contains(t, ta.out.String(), "Logged in as alice@example.com")

	require.NoError(t, ta.Logout(context.Background()))
	require.True(t, ta.auth.logoutCalled)
}

func TestApp_LoginRejected(t *testing.T) {
	ta := newTestApp(t, "alice@example.com\n")
	ta.auth.loginErr = fmt.Errorf("login: %w", common.ErrorUnauthorized)
	stubPasswords(t, "wrong password")

	err := ta.Login(context.Background())
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	ta.report(context.Background(), err)
	require.Contains(t, ta.out.String(), "Error: invalid email or password")
}

func TestApp_List(t *testing.T) {
	ta := newTestApp(t, "")
	updated := time.Date(2026, 3, 1, 10, 30, 0, 0, time.Local)
	ta.notes.views = []services.NoteView{
		{Note: models.Note{ID: 2, Title: "Groceries", Body: "milk\neggs", UpdatedAt: updated}},
		{Note: models.Note{ID: 1}, Err: cryptox.ErrIntegrity},
	}

	require.NoError(t, ta.List(context.Background()))
	out := ta.out.String()
	require.Contains(t, out, "ID")
	require.Contains(t, out, "2026-03-01 10:30")
	require.Contains(t, out, "Groceries")
	require.Contains(t, out, "milk eggs")
	require.Contains(t, out, "[unreadable]")
}

func TestApp_ListEmpty(t *testing.T) {
	ta := newTestApp(t, "")
	require.NoError(t, ta.List(context.Background()))
	require.Contains(t, ta.out.String(), "No notes yet")
}

func TestApp_AddShowEditDelete(t *testing.T) {
	ta := newTestApp(t, strings.Join([]string{
		// add
		"Shopping", "milk", "bread", "",
		// edit: keep title, new body
		"", "just milk", "",
		// delete confirmation
		"y",
	}, "\n")+"\n")
	ctx := context.Background()

	require.NoError(t, ta.Add(ctx))
	require.Equal(t, &models.Note{ID: 100, Title: "Shopping", Body: "milk\nbread"}, ta.notes.notes[100])
	require.Contains(t, ta.out.String(), "Created note #100")

	ta.out.Reset()
	require.NoError(t, ta.Show(ctx, []string{"100"}))
	require.Contains(t, ta.out.String(), "#100 Shopping")
	require.Contains(t, ta.out.String(), "milk\nbread")

	require.NoError(t, ta.Edit(ctx, []string{"100"}))
	require.Equal(t, "Shopping", ta.notes.notes[100].Title)
	require.Equal(t, "just milk", ta.notes.notes[100].Body)

	require.NoError(t, ta.Delete(ctx, []string{"100"}))
	require.Equal(t, []int64{100}, ta.notes.deleted)
}

func TestApp_DeleteCancelled(t *testing.T) {
	ta := newTestApp(t, "n\n")
	require.NoError(t, ta.Delete(context.Background(), []string{"5"}))
	require.Empty(t, ta.notes.deleted)
	require.Contains(t, ta.out.String(), "Cancelled")
}

func TestApp_NoteIDValidation(t *testing.T) {
	ta := newTestApp(t, "")
	ctx := context.Background()

	require.ErrorIs(t, ta.Show(ctx, nil), errNoteID)
	require.ErrorIs(t, ta.Edit(ctx, []string{"abc"}), errNoteID)
	require.ErrorIs(t, ta.Delete(ctx, []string{"-3"}), errNoteID)
}

func TestApp_ShowMissing(t *testing.T) {
	ta := newTestApp(t, "")
	err := ta.Show(context.Background(), []string{"77"})
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestApp_ChangePassword(t *testing.T) {
	ta := newTestApp(t, "")
	stubPasswords(t, "old password", "new password", "new password")

	require.NoError(t, ta.ChangePassword(context.Background()))
	require.Equal(t, []byte("old password"), ta.vault.rotateCur)
	require.Equal(t, []byte("new password"), ta.vault.rotateNext)
	require.Contains(t, ta.out.String(), "Password changed")
}

func TestApp_ChangePasswordMismatch(t *testing.T) {
	ta := newTestApp(t, "")
	stubPasswords(t, "old password", "new password", "other password")

	require.ErrorIs(t, ta.ChangePassword(context.Background()), errPasswordMismatch)
	require.Nil(t, ta.vault.rotateCur)
}

func TestApp_ChangePasswordResumesPending(t *testing.T) {
	ta := newTestApp(t, "y\n")
	ta.vault.pending = true

	require.NoError(t, ta.ChangePassword(context.Background()))
	require.True(t, ta.vault.resumed)
	require.Nil(t, ta.vault.rotateCur)
}

func TestApp_ChangePasswordResumeDeclined(t *testing.T) {
	ta := newTestApp(t, "n\n")
	ta.vault.pending = true

	require.NoError(t, ta.ChangePassword(context.Background()))
	require.False(t, ta.vault.resumed)
	require.Contains(t, ta.out.String(), "Not resumed")
}

func TestApp_PrintRotationState(t *testing.T) {
	ta := newTestApp(t, "")
	for _, s := range []services.RotationState{
		services.StateVerifying,
		services.StateDecryptingAll,
		services.StateDerivingNewKey,
		services.StateReencryptingAll,
		services.StateCommitting,
		services.StateDone,
	} {
		ta.printRotationState(s)
	}
	require.Equal(t, strings.Join([]string{
		"  checking the current password...",
		"  decrypting notes...",
		"  deriving the new key...",
		"  re-encrypting notes...",
		"  saving to the server...",
	}, "\n")+"\n", ta.out.String())
}

func TestApp_StatusAndLoggedIn(t *testing.T) {
	ta := newTestApp(t, "")
	require.False(t, ta.isLoggedIn())
	require.Equal(t, "not logged in", ta.status())

	ta.sess.Begin(session.Identity{OwnerID: 1, Email: "alice@example.com"}, nil)
	require.True(t, ta.isLoggedIn())
	require.Equal(t, "alice@example.com", ta.status())
}

func TestApp_Search(t *testing.T) {
	ta := newTestApp(t, "")
	ta.notes.views = []services.NoteView{
		{Note: models.Note{ID: 3, Title: "Groceries", Body: "Milk and eggs"}},
		{Note: models.Note{ID: 2, Title: "Travel", Body: "passport, tickets"}},
		{Note: models.Note{ID: 1, Title: "MILKSHAKE recipe", Body: "banana"}},
		{Note: models.Note{ID: 4}, Err: cryptox.ErrIntegrity},
	}

	require.NoError(t, ta.Search(context.Background(), []string{"milk"}))
	out := ta.out.String()
	require.Contains(t, out, "Groceries")
	require.Contains(t, out, "MILKSHAKE recipe")
	require.NotContains(t, out, "Travel")
	require.NotContains(t, out, "[unreadable]")
}

func TestApp_SearchMultiWordAndNoMatch(t *testing.T) {
	ta := newTestApp(t, "")
	ta.notes.views = []services.NoteView{
		{Note: models.Note{ID: 2, Title: "Travel", Body: "Passport, Tickets"}},
	}

	require.NoError(t, ta.Search(context.Background(), []string{"passport,", "TICKETS"}))
	require.Contains(t, ta.out.String(), "Travel")

	ta.out.Reset()
	require.NoError(t, ta.Search(context.Background(), []string{"visa"}))
	require.Contains(t, ta.out.String(), `No notes match "visa"`)
	require.NotContains(t, ta.out.String(), "TITLE")

	require.ErrorIs(t, ta.Search(context.Background(), nil), errSearchQuery)
}

func TestApp_LogoutWithPendingRotation(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		ta := newTestApp(t, "n\n")
		ta.vault.pending = true

		require.NoError(t, ta.Logout(context.Background()))
		require.False(t, ta.auth.logoutCalled)
		require.Contains(t, ta.out.String(), "Run 'passwd' to resume it")
		require.Contains(t, ta.out.String(), "Cancelled")
	})

	t.Run("confirmed", func(t *testing.T) {
		ta := newTestApp(t, "y\n")
		ta.vault.pending = true

		require.NoError(t, ta.Logout(context.Background()))
		require.True(t, ta.auth.logoutCalled)
	})
}

func TestApp_ConfirmLeave(t *testing.T) {
	ta := newTestApp(t, "")
	require.True(t, ta.confirmLeave(context.Background()))

	ta = newTestApp(t, "no\n")
	ta.vault.pending = true
	require.False(t, ta.confirmLeave(context.Background()))

	ta = newTestApp(t, "yes\n")
	ta.vault.pending = true
	require.True(t, ta.confirmLeave(context.Background()))
}
