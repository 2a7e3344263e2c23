// Package http exposes the sample-submission services as a JSON API under
// /api. Bearer tokens issued by /api/login authenticate the caller; routes
// under /api/admin additionally require an admin account.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrijs2005/seqsubmit/internal/logging"
	"github.com/dmitrijs2005/seqsubmit/internal/server/auth"
	"github.com/dmitrijs2005/seqsubmit/internal/server/metrics"
	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
	"github.com/dmitrijs2005/seqsubmit/internal/server/services"
)

type UserService interface {
	Register(ctx context.Context, email, password string, isAdmin bool) (services.Reply, error)
	Activate(ctx context.Context, token string) (services.Reply, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, services.Reply, error)
	AdminToken(ctx context.Context, who auth.Identity) (string, error)
	Identify(ctx context.Context, userID string) (*auth.Identity, error)
	SetPassword(ctx context.Context, email, current, next string) (bool, error)
	List(ctx context.Context) ([]models.UserSummary, error)
}

type SampleService interface {
	Add(ctx context.Context, req services.NewSample) (*models.Sample, string, error)
	List(ctx context.Context, email string) ([]*models.Sample, error)
	Reference(ctx context.Context, who auth.Identity, primaryKey string) (*services.Download, services.Reply, error)
	Result(ctx context.Context, who auth.Identity, primaryKey, fileType string) (*services.Download, services.Reply, error)
	WeeklyArchive(ctx context.Context, date time.Time) (*services.Download, error)
}

type QuotaService interface {
	Remaining(ctx context.Context, date time.Time) (services.Remaining, error)
}

type SettingsService interface {
	Current(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, actorEmail string, u services.SettingsUpdate) (services.Reply, error)
}

type ResultService interface {
	Process(ctx context.Context, up services.ResultUpload) (services.Reply, error)
}

// Services bundles the business logic the API is served from.
type Services struct {
	Users    UserService
	Samples  SampleService
	Quota    QuotaService
	Settings SettingsService
	Results  ResultService
}

// Options carries transport settings.
type Options struct {
	Address        string
	JWTSecret      []byte
	MaxUploadBytes int64
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
}

const (
	slotRetries       = 3
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
	multipartMemory   = 32 << 20
)

type Server struct {
	address        string
	svc            Services
	jwtSecret      []byte
	maxUploadBytes int64
	metrics        *metrics.Metrics
	gatherer       prometheus.Gatherer
	logger         logging.Logger
	now            func() time.Time
}

func NewServer(svc Services, opts Options, l logging.Logger) *Server {
	return &Server{
		address:        opts.Address,
		svc:            svc,
		jwtSecret:      opts.JWTSecret,
		maxUploadBytes: opts.MaxUploadBytes,
		metrics:        opts.Metrics,
		gatherer:       opts.Gatherer,
		logger:         l.With("module", "http_server"),
		now:            time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(s.gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/signup", s.handleSignup)
		r.Get("/activate/{token}", s.handleActivate)
		r.Get("/remaining", s.handleRemaining)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/change_password", s.handleChangePassword)
			r.Get("/running_options", s.handleRunningOptions)
			r.Get("/samples", s.handleSamples)
			r.Post("/reference_sequence", s.handleReferenceSequence)
			r.Post("/result", s.handleResult)
			r.Post("/sample", s.handleAddSample)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireAdmin)

				r.Get("/settings", s.handleGetSettings)
				r.Post("/settings", s.handleUpdateSettings)
				r.Get("/samples", s.handleAdminSamples)
				r.Post("/zipsamples", s.handleZipSamples)
				r.Get("/users", s.handleAdminUsers)
				r.Get("/token", s.handleAdminToken)
				r.Post("/result", s.handleAdminResult)
			})
		})
	})

	return r
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
