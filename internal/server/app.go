// Package server initializes and runs the application: configuration,
// database, redis, object storage, the service graph and the HTTP endpoint
// with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/keyhaven/keyhaven/internal/cryptox"
	"github.com/keyhaven/keyhaven/internal/logging"
	"github.com/keyhaven/keyhaven/internal/server/config"
	"github.com/keyhaven/keyhaven/internal/server/evidence"
	"github.com/keyhaven/keyhaven/internal/server/httpapi"
	"github.com/keyhaven/keyhaven/internal/server/match"
	"github.com/keyhaven/keyhaven/internal/server/otp"
	"github.com/keyhaven/keyhaven/internal/server/repositories/repomanager"
	"github.com/keyhaven/keyhaven/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	handler http.Handler
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewDefault()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)

	store, err := evidence.NewS3Store(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}

	cipher, err := cryptox.New(cfg.CipherSecret)
	if err != nil {
		return nil, fmt.Errorf("field cipher: %w", err)
	}

	secretKey := []byte(cfg.SecretKey)
	otpStore := otp.NewStore(redisClient, cfg.OTPValidityDuration)

	// Face and voice comparison is delegated to an external comparator;
	// none is wired in yet, so those matches fail closed. Fingerprint
	// scoring is built in.
	engine := match.NewEngine(nil, cfg.CompareTimeout)

	userSvc := services.NewUserService(db, rm, otpStore, otp.NewLogSender(logger), secretKey, cfg.AccessTokenValidityDuration)
	vaultSvc := services.NewVaultService(db, rm, cipher, logger)
	biometricSvc := services.NewBiometricService(db, rm, store, engine, logger)
	settingsSvc := services.NewSettingsService(db, rm, cfg.DefaultReVerificationInterval)
	gateSvc := services.NewGateService(db, rm, settingsSvc)

	handler := httpapi.NewRouter(httpapi.RouterConfig{
		Auth:       httpapi.NewAuthHandler(userSvc, logger),
		Vault:      httpapi.NewVaultHandler(vaultSvc, logger),
		Biometrics: httpapi.NewBiometricHandler(biometricSvc, logger),
		Settings:   httpapi.NewSettingsHandler(settingsSvc),
		Gate:       gateSvc,
		SecretKey:  secretKey,
	})

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		redis:   redisClient,
		handler: handler,
	}, nil
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
	srv := &http.Server{
		Addr:         app.config.EndpointAddr,
		Handler:      app.handler,
		ReadTimeout:  app.config.ReadTimeout,
		WriteTimeout: app.config.WriteTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "shutdown error", "error", err.Error())
		}
	}()

	app.logger.Info(ctx, "starting http server", "addr", app.config.EndpointAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.redis.Close(); err != nil {
		app.logger.Error(ctx, "redis close error", "error", err.Error())
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}

	app.logger.Info(ctx, "app stopped")
}
