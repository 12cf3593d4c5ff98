// Package httpapi is the zkvault REST API: gin routes, request validation,
// bearer authentication, the login rate limiter and request metrics.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/zkvault/internal/logging"
	"github.com/dmitrijs2005/zkvault/internal/server/metrics"
	"github.com/dmitrijs2005/zkvault/internal/server/models"
	"github.com/dmitrijs2005/zkvault/internal/server/services"
)

// UserService is the account surface the API needs.
type UserService interface {
	Register(ctx context.Context, email, usernameHash, verifier string, loginSalt []byte) (*models.User, error)
	Login(ctx context.Context, email, verifier string) (*services.LoginResult, error)
	ChangePassword(ctx context.Context, userID int64, currentVerifier, newVerifier string, newLoginSalt []byte) error
	Rotate(ctx context.Context, userID int64, currentVerifier, newVerifier string, newLoginSalt []byte, records []models.Note) (*services.RotationResult, error)
}

// NoteService is the note storage surface the API needs.
type NoteService interface {
	List(ctx context.Context, ownerID int64) ([]models.Note, error)
	Get(ctx context.Context, ownerID, id int64) (*models.Note, error)
	Create(ctx context.Context, ownerID int64, note *models.Note) (*models.Note, error)
	Update(ctx context.Context, ownerID int64, note *models.Note) (*models.Note, error)
	Delete(ctx context.Context, ownerID, id int64) error
}

// Pinger reports database health for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	address      string
	users        UserService
	notes        NoteService
	db           Pinger
	logger       logging.Logger
	metrics      *metrics.Metrics
	loginLimiter *keyedLimiter
	jwtSecret    []byte
	engine       *gin.Engine
}

type Options struct {
	Address            string
	SecretKey          string
	LoginRatePerMinute int
}

func NewServer(opts Options, l logging.Logger, m *metrics.Metrics, us UserService, ns NoteService, db Pinger) *Server {
	s := &Server{
		address:      opts.Address,
		users:        us,
		notes:        ns,
		db:           db,
		logger:       l.With("module", "http_server"),
		metrics:      m,
		loginLimiter: newLoginLimiter(opts.LoginRatePerMinute),
		jwtSecret:    []byte(opts.SecretKey),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestIDMiddleware(), s.metrics.Middleware(), s.accessLog())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	{
		api.POST("/auth/register", s.register)
		api.POST("/auth/login", s.limitLogins(), s.login)
	}

	private := api.Group("", s.authenticate())
	{
		private.PUT("/auth/change-password", s.changePassword)
		private.POST("/auth/rotate", s.rotate)

		private.GET("/notes", s.listNotes)
		private.POST("/notes", s.createNote)
		private.GET("/notes/:id", s.getNote)
		private.PUT("/notes/:id", s.updateNote)
		private.DELETE("/notes/:id", s.deleteNote)
	}

	return r
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
