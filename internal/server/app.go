// Package server initializes and runs the zkvault API server. It opens the
// database, applies migrations, wires services to the HTTP API and handles
// graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/zkvault/internal/common"
	"github.com/dmitrijs2005/zkvault/internal/logging"
	"github.com/dmitrijs2005/zkvault/internal/server/archive"
	"github.com/dmitrijs2005/zkvault/internal/server/config"
	"github.com/dmitrijs2005/zkvault/internal/server/httpapi"
	"github.com/dmitrijs2005/zkvault/internal/server/metrics"
	"github.com/dmitrijs2005/zkvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/zkvault/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
}

// openDB is a seam for tests.
var openDB = repomanager.OpenPostgres

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, logging.ParseLevel(c.LogLevel))

	if err := ensureSecret(ctx, c, logger); err != nil {
		return nil, err
	}

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	arch, err := archive.New(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive init error: %w", err)
	}
	if c.ArchiveEnabled() {
		logger.Info(ctx, "rotation archive enabled", "bucket", c.S3Bucket)
	}

	us := services.NewUserService(db, rm, arch, logger.With("module", "users"), c)
	ns := services.NewNoteService(db, rm)

	srv := httpapi.NewServer(httpapi.Options{
		Address:            c.EndpointAddr,
		SecretKey:          c.SecretKey,
		LoginRatePerMinute: c.LoginRatePerMinute,
	}, logger, metrics.New(), us, ns, db)

	return &App{config: c, logger: logger, db: db, http: srv}, nil
}

// ensureSecret generates a random signing key when none is configured.
// Tokens issued with it do not survive a restart.
func ensureSecret(ctx context.Context, c *config.Config, logger logging.Logger) error {
	if c.SecretKey != "" {
		return nil
	}
	secret, err := common.MakeRandHexString(32)
	if err != nil {
		return fmt.Errorf("generating jwt secret: %w", err)
	}
	c.SecretKey = secret
	logger.Warn(ctx, "no jwt secret configured, using a random one")
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a termination signal arrives or the server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
