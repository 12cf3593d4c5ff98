package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/zkvault/internal/client/client"
	"github.com/dmitrijs2005/zkvault/internal/client/config"
	"github.com/dmitrijs2005/zkvault/internal/client/services"
	"github.com/dmitrijs2005/zkvault/internal/client/session"
	"github.com/dmitrijs2005/zkvault/internal/logging"
)

const pingTimeout = 3 * time.Second

type App struct {
	config      *config.Config
	api         client.Client
	sess        *session.Session
	authService services.AuthService
	noteService services.NoteService
	vault       services.Vault
	reader      *bufio.Reader
	out         io.Writer
	log         logging.Logger
}

func NewApp(c *config.Config) (*App, error) {
	log := logging.NewText(os.Stderr, logging.ParseLevel(c.LogLevel))

	sess := session.New()
	api := client.NewHTTPClient(c.ServerURL, c.RequestTimeout, sess.Token)

	a := &App{
		config: c,
		api:    api,
		sess:   sess,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		log:    log,
	}

	rotation := services.NewRotationCoordinator(sess, api, api, services.RotationOptions{
		Params:        c.KDFParams(),
		CommitRetries: c.CommitRetries,
		RetryBackoff:  200 * time.Millisecond,
		Atomic:        c.AtomicRotation,
		OnState:       a.printRotationState,
		Log:           log,
	})

	a.vault = services.NewVault(sess, c.KDFParams(), rotation)
	a.authService = services.NewAuthService(api, a.vault, sess)
	a.noteService = services.NewNoteService(api, a.vault, sess, log)

	return a, nil
}

// Run checks that the server answers, then blocks in the REPL until the
// user exits. The session key and any unfinished rotation are wiped on
// return.
func (a *App) Run(ctx context.Context) {
	defer a.authService.Logout(context.WithoutCancel(ctx))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	if err := a.api.Ping(pingCtx); err != nil {
		warnColor.Fprintf(a.out, "Server %s is not reachable: %v\n", a.config.ServerURL, err)
	}
	cancel()

	fmt.Fprintln(a.out, "zkvault: type 'help' for the list of commands")
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.sess.Active()
}

func (a *App) status() string {
	identity, err := a.sess.Identity()
	if err != nil {
		return "not logged in"
	}
	return identity.Email
}
