// Package server initializes and runs the sample-submission server.
// It opens the database and applies migrations, selects the blob store and
// mail transport, wires the services, and runs the HTTP API and the gRPC
// health service until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrijs2005/seqsubmit/internal/logging"
	"github.com/dmitrijs2005/seqsubmit/internal/server/blob"
	"github.com/dmitrijs2005/seqsubmit/internal/server/blob/fs"
	"github.com/dmitrijs2005/seqsubmit/internal/server/blob/s3"
	"github.com/dmitrijs2005/seqsubmit/internal/server/config"
	"github.com/dmitrijs2005/seqsubmit/internal/server/mail"
	"github.com/dmitrijs2005/seqsubmit/internal/server/metrics"
	"github.com/dmitrijs2005/seqsubmit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/seqsubmit/internal/server/services"

	gs "github.com/dmitrijs2005/seqsubmit/internal/server/grpc"
	hs "github.com/dmitrijs2005/seqsubmit/internal/server/http"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *hs.Server
	grpcServer *gs.GRPCServer
}

// Components is what NewApp wires the servers from; it is also what the
// admin CLI needs to create accounts.
type Components struct {
	DB       *sql.DB
	Users    *services.UserService
	Samples  *services.SampleService
	Quota    *services.QuotaService
	Settings *services.SettingsService
	Results  *services.ResultService
}

// OpenDB opens the database named by c and brings its schema up to date.
func OpenDB(ctx context.Context, c *config.Config, m repomanager.RepositoryManager) (*sql.DB, error) {
	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}
	return db, nil
}

// NewBlobStore returns the store selected by c.BlobDriver.
func NewBlobStore(ctx context.Context, c *config.Config) (blob.Store, error) {
	switch c.BlobDriver {
	case "fs", "":
		return fs.New(c.DataPath)
	case "s3":
		return s3.New(ctx, s3.Config{
			Region:          c.S3Region,
			Bucket:          c.S3Bucket,
			Endpoint:        c.S3BaseEndpoint,
			AccessKeyID:     c.S3RootUser,
			SecretAccessKey: c.S3RootPassword,
		})
	}
	return nil, fmt.Errorf("unknown blob driver %q", c.BlobDriver)
}

// NewComponents wires the services over an open database.
func NewComponents(db *sql.DB, m repomanager.RepositoryManager, blobs blob.Store, mailer mail.Sender, mx *metrics.Metrics, logger logging.Logger, c *config.Config) *Components {
	return &Components{
		DB:       db,
		Users:    services.NewUserService(db, m, mailer, mx, logger, c),
		Samples:  services.NewSampleService(db, m, blobs, mx, logger),
		Quota:    services.NewQuotaService(db, m),
		Settings: services.NewSettingsService(db, m, logger),
		Results:  services.NewResultService(db, m, blobs, mailer, mx, logger),
	}
}

func NewApp(c *config.Config) (*App, error) {

	slog := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slog)

	ctx := context.Background()

	generated, err := c.EnsureSecretKey()
	if err != nil {
		return nil, fmt.Errorf("secret key error: %w", err)
	}
	if generated {
		logger.Warn(ctx, "no secret key of at least 17 characters configured, generated a random one; tokens will not survive a restart")
	}

	m := repomanager.NewPostgresRepositoryManager()
	db, err := OpenDB(ctx, c, m)
	if err != nil {
		return nil, err
	}

	blobs, err := NewBlobStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	mailer, err := mail.NewSMTPSender(mail.SMTPConfig{
		Addr:     c.SMTPAddr,
		User:     c.SMTPUser,
		Password: c.SMTPPassword,
		From:     c.MailFrom,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mail init error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mx := metrics.New(reg)

	comp := NewComponents(db, m, blobs, mailer, mx, logger, c)

	httpServer := hs.NewServer(hs.Services{
		Users:    comp.Users,
		Samples:  comp.Samples,
		Quota:    comp.Quota,
		Settings: comp.Settings,
		Results:  comp.Results,
	}, hs.Options{
		Address:        c.EndpointAddrHTTP,
		JWTSecret:      []byte(c.SecretKey),
		MaxUploadBytes: c.MaxUploadBytes,
		Metrics:        mx,
		Gatherer:       reg,
	}, logger)

	grpcServer := gs.NewGRPCServer(c.EndpointAddrGRPC, logger, db.PingContext)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		httpServer: httpServer,
		grpcServer: grpcServer,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

type runner interface {
	Run(ctx context.Context) error
}

func (app *App) start(ctx context.Context, cancelFunc context.CancelFunc, name string, r runner) {
	if err := r.Run(ctx); err != nil {
		app.logger.Error(ctx, "server stopped with error", "server", name, "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.start(ctx, cancelFunc, "http", app.httpServer)
	}()
	go func() {
		defer wg.Done()
		app.start(ctx, cancelFunc, "grpc", app.grpcServer)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
