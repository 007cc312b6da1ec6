// Package server wires configuration, storage backends and services into
// the HTTP application and runs it until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/cryptox"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/httpserver"
	"github.com/dmitrijs2005/filevault/internal/server/ratelimit"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/services"
	"github.com/dmitrijs2005/filevault/internal/server/storage"
	"github.com/dmitrijs2005/filevault/internal/timex"
	"github.com/redis/go-redis/v9"
)

const (
	downloadLimitWindow = time.Minute
	downloadLimitPrefix = "filevault:download:"
)

// Seams replaced in tests.
var (
	sqlOpen = sql.Open

	newRepoManager = repomanager.NewPostgresRepositoryManager

	newObjectStore = func(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
		return storage.NewS3Store(ctx, cfg)
	}
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	redis  *redis.Client
	server *httpserver.HTTPServer
}

// NewApp validates the configuration and builds every component. Any
// returned error wrapping common.ErrConfiguration is fatal.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	key := []byte(c.EncryptionKey)
	envelope, err := cryptox.NewEnvelope(key)
	common.WipeByteArray(key)
	if err != nil {
		return nil, err
	}

	db, err := sqlOpen("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	store, err := newObjectStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{config: c, logger: logger, db: db}

	var limiter httpserver.Limiter
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "redis unavailable, download limiter disabled", "addr", c.RedisAddr, "error", err)
			_ = app.redis.Close()
			app.redis = nil
		} else {
			limiter = ratelimit.NewRedisLimiter(app.redis, downloadLimitPrefix, c.DownloadRateLimit, downloadLimitWindow)
		}
	}

	shares := services.NewShareService(db, rm, c, timex.SystemClock, logger)
	files := services.NewFileService(db, rm, store, envelope, shares, c, logger)
	users := services.NewUserService(db, rm, c, logger)

	app.server = httpserver.NewHTTPServer(c.EndpointAddrHTTP, logger, users, files, limiter, c.MaxUploadSize)
	return app, nil
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

// Run serves HTTP until ctx is cancelled or a termination signal arrives,
// then releases the database and Redis connections.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	err := app.server.Run(ctx)
	if err != nil {
		app.logger.Error(ctx, err.Error())
	}

	app.close(ctx)
	app.logger.Info(ctx, "App stopped")
	return err
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "redis close error", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close error", "error", err)
		}
	}
}
