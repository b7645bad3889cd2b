// Package server initializes and runs the main application server.
// It opens the database and cache connections, applies migrations, wires
// the services behind the HTTP API, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/webstack/webstack/internal/logging"
	"github.com/webstack/webstack/internal/server/auth"
	"github.com/webstack/webstack/internal/server/cache"
	"github.com/webstack/webstack/internal/server/config"
	"github.com/webstack/webstack/internal/server/httpapi"
	"github.com/webstack/webstack/internal/server/ratelimit"
	"github.com/webstack/webstack/internal/server/repositories/repomanager"
	"github.com/webstack/webstack/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	cache  *cache.Client
	api    *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	cacheClient, err := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("cache init error: %w", err)
	}

	codec, err := auth.NewTokenCodec([]byte(cfg.SecretKey), cfg.SigningAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("token codec error: %w", err)
	}

	limiter := ratelimit.New(cacheClient, logger)

	userService := services.NewUserService(db, rm, codec, limiter, logger, cfg)
	apiKeyService := services.NewAPIKeyService(db, rm)
	fileService := services.NewFileService(db, rm, cfg)

	authenticator := auth.NewAuthenticator(
		auth.NewTokenStrategy(codec, rm.Users(db)),
		auth.NewAPIKeyStrategy(rm.Users(db), rm.APIKeys(db), logger),
	)

	api := httpapi.NewServer(userService, apiKeyService, fileService, authenticator, limiter, logger, cfg)

	return &App{config: cfg, logger: logger, db: db, cache: cacheClient, api: api}, nil
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

func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.Addr)

	app.initSignalHandler(cancelFunc)

	srv := &http.Server{
		Addr:    app.config.Addr,
		Handler: app.api.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http server shutdown", "error", err.Error())
	}
	if err := app.cache.Close(); err != nil {
		app.logger.Error(shutdownCtx, "cache close", "error", err.Error())
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(shutdownCtx, "db close", "error", err.Error())
	}
	return nil
}
