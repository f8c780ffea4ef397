// Package app assembles the authorization server: config, database, signing
// key, client registry, services, and the HTTP server, with graceful
// shutdown on SIGINT/SIGTERM.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nightporter/staffgate/internal/auth/clients"
	httpapi "github.com/nightporter/staffgate/internal/auth/http"
	"github.com/nightporter/staffgate/internal/auth/oidc"
	"github.com/nightporter/staffgate/internal/auth/service"
	"github.com/nightporter/staffgate/internal/auth/store"
	"github.com/nightporter/staffgate/internal/auth/store/drivers/sqlite"
	"github.com/nightporter/staffgate/pkg/clockx"
	"github.com/nightporter/staffgate/pkg/cryptox"
	"github.com/nightporter/staffgate/pkg/jwtx"
	"github.com/nightporter/staffgate/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger
	clock  clockx.Clock

	db       store.Store
	signer   jwtx.Signer
	registry *clients.Registry
	codes    *oidc.CodeStore

	tokenService        *service.TokenService
	refreshService      *service.TokenRefreshService
	sessionService      *service.SessionService
	employeeService     *service.EmployeeService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg:   cfg,
		clock: clockx.Real{},
		logger: slogx.New(slogx.Config{
			Service: "staffgate-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	signer, err := initSigner(cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.signer = signer

	registry, err := clients.LoadFile(cfg.PolicyDefaults(), cfg.ClientsFile)
	if err != nil {
		return nil, err
	}
	app.registry = registry

	app.initServices()
	app.initHTTP()

	if err := app.seedDirectory(); err != nil {
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port, "issuer", app.cfg.Issuer, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
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

func (app *Application) initServices() {
	app.codes = oidc.NewCodeStore(app.clock, app.cfg.CodeTTL)

	app.tokenService = &service.TokenService{
		Store:    app.db,
		Clock:    app.clock,
		Claims:   &service.DefaultClaimsFactory{Issuer: app.cfg.Issuer},
		Policies: app.registry,
		Encoder:  &oidc.JWTAccessTokenEncoder{Signer: app.signer},
		Issuer:   app.cfg.Issuer,
	}
	app.refreshService = &service.TokenRefreshService{
		Store:  app.db,
		Tokens: app.tokenService,
		Clock:  app.clock,
		Logger: app.logger,
	}
	app.sessionService = &service.SessionService{Store: app.db, Clock: app.clock}
	app.employeeService = &service.EmployeeService{Store: app.db, Clock: app.clock}

	app.housekeepingService = &service.HousekeepingService{
		Store:     app.db,
		Clock:     app.clock,
		Logger:    app.logger,
		Interval:  app.cfg.HousekeepingInterval,
		Retention: app.cfg.HousekeepingRetention,
		Purgers:   []service.ExpiredPurger{app.codes},
	}
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.cfg.Issuer,
		BuildVersion,
		app.signer,
		app.db,
		app.clock,
		app.logger,
	)

	router.Registry = app.registry
	router.Codes = app.codes
	router.IDTokens = &oidc.IDTokenFactory{
		Signer: app.signer,
		Clock:  app.clock,
		Issuer: app.cfg.Issuer,
	}
	router.TokenService = app.tokenService
	router.RefreshService = app.refreshService
	router.SessionService = app.sessionService
	router.EmployeeService = app.employeeService
	router.SessionLifetime = app.cfg.SessionLifetime
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// seedDirectory creates the bootstrap account on an empty directory. When no
// password is configured one is generated and logged exactly once.
func (app *Application) seedDirectory() error {
	password := app.cfg.SeedPassword
	generated := false
	if password == "" {
		var err error
		password, err = cryptox.GeneratePassword()
		if err != nil {
			return fmt.Errorf("generate bootstrap password: %w", err)
		}
		generated = true
	}

	created, err := app.employeeService.Seed(context.Background(), service.SeedEmployee{
		Username:    app.cfg.SeedUsername,
		DisplayName: app.cfg.SeedName,
		Email:       app.cfg.SeedEmail,
		Password:    password,
		Roles:       []string{"admin"},
	})
	if err != nil {
		return fmt.Errorf("seed directory: %w", err)
	}

	if created {
		if generated {
			app.logger.Warn("bootstrap account created with a generated password",
				"username", app.cfg.SeedUsername, "password", password)
		} else {
			app.logger.Info("bootstrap account created", "username", app.cfg.SeedUsername)
		}
	}
	return nil
}
