package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chapatuventa/marketplace/internal/auth/notify"
	"github.com/chapatuventa/marketplace/internal/auth/service"
	"github.com/chapatuventa/marketplace/internal/auth/store"
	"github.com/chapatuventa/marketplace/internal/auth/store/drivers/sqlite"
	"github.com/chapatuventa/marketplace/pkg/cryptox"
	"github.com/chapatuventa/marketplace/pkg/jwtx"
	"github.com/chapatuventa/marketplace/pkg/slogx"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the auth services to their dependencies and owns the
// process lifecycle.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	notifier notify.Notifier

	vault        *service.CredentialService
	otp          *service.OtpService
	ledger       *service.LedgerService
	auth         *service.AuthService
	housekeeping *service.Housekeeping
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("AUTH_JWT_SECRET must be set")
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initNotifier(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()

	return app, nil
}

// Auth exposes the orchestrator for embedding callers (transports, CLIs).
func (app *Application) Auth() *service.AuthService { return app.auth }

// Run starts background work and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("auth service started", "version", BuildVersion, "env", app.cfg.Env)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	app.logger.Info("shutdown signal received", "signal", sig)

	return app.Shutdown()
}

// Shutdown stops background work and releases resources.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	app.housekeeping.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initNotifier() error {
	if app.cfg.SESRegion == "" || app.cfg.SESFromAddress == "" {
		app.logger.Warn("SES not configured, email delivery disabled")
		app.notifier = notify.LogNotifier{}
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(app.cfg.SESRegion),
	)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	app.notifier = notify.NewSESNotifier(awsCfg, app.cfg.SESFromAddress, app.cfg.OtpTTL)
	app.logger.Info("SES notifier enabled", "region", app.cfg.SESRegion)
	return nil
}

func (app *Application) initServices() {
	app.vault = &service.CredentialService{
		Store:  app.db,
		Params: cryptox.DefaultParams(),
	}

	otpCfg := service.DefaultOtpConfig()
	otpCfg.CodeLength = app.cfg.OtpCodeLength
	otpCfg.TTL = app.cfg.OtpTTL
	otpCfg.MaxAttempts = app.cfg.OtpMaxAttempts
	app.otp = &service.OtpService{
		Store:    app.db,
		Notifier: app.notifier,
		Config:   otpCfg,
	}

	app.ledger = &service.LedgerService{
		Store:      app.db,
		RefreshTTL: app.cfg.RefreshTokenTTL,
	}

	app.auth = &service.AuthService{
		Store:  app.db,
		Vault:  app.vault,
		Otp:    app.otp,
		Ledger: app.ledger,
		Signer: jwtx.NewSigner([]byte(app.cfg.JWTSecret), app.cfg.Issuer, app.cfg.AccessTokenTTL),
	}

	app.housekeeping = &service.Housekeeping{
		Store:    app.db,
		Interval: app.cfg.HousekeepingInterval,
	}
}
