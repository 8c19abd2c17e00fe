package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	specpkg "github.com/onescheduler/dashboard/api"
	"github.com/onescheduler/dashboard/internal/api"
	"github.com/onescheduler/dashboard/internal/api/handler"
	"github.com/onescheduler/dashboard/internal/config"
	"github.com/onescheduler/dashboard/internal/database"
	"github.com/onescheduler/dashboard/internal/identity"
	"github.com/onescheduler/dashboard/internal/preference"
	"github.com/onescheduler/dashboard/internal/seed"
	"github.com/onescheduler/dashboard/internal/setup"
	"github.com/onescheduler/dashboard/internal/tenant"
	"github.com/onescheduler/dashboard/internal/tenantctx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	prefs, closePrefs, err := initPreferences(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closePrefs()

	var providers []identity.OAuthProvider
	if cfg.GoogleEnabled() {
		providers = append(providers, identity.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL))
	}
	identitySvc := identity.NewService(
		identity.NewUserRepository(db.Pool()),
		identity.NewSessionRepository(db.Pool()),
		identity.NewTokenIssuer(cfg.SessionSecret),
		cfg.BcryptCost,
		cfg.SessionTTL,
		providers...,
	)
	slog.Info("sign-in providers enabled", "providers", identitySvc.Providers())

	store := tenant.NewStore(db.Pool())

	if cfg.SeedFile != "" {
		res, err := seed.LoadFile(ctx, cfg.SeedFile, identitySvc, store)
		if err != nil {
			return fmt.Errorf("loading seed file: %w", err)
		}
		slog.Info("seed file applied",
			"path", cfg.SeedFile,
			"usersCreated", res.UsersCreated,
			"tenantsCreated", res.TenantsCreated,
			"membersJoined", res.MembersJoined,
		)
	}

	registry := tenantctx.NewRegistry(tenantctx.Sources{
		Users:       identitySvc,
		Memberships: store,
		Preferences: prefs,
	}, identitySvc)
	defer registry.Close()

	setupSvc := setup.NewService(store, registry, identitySvc, setup.Options{
		NameCheckInterval: cfg.NameCheckInterval,
		RedirectDelay:     cfg.SetupRedirectDelay,
	})
	defer setupSvc.Close()

	router := api.NewRouter(api.RouterDeps{
		DBPinger:    db,
		Version:     cfg.Version,
		OpenAPISpec: specpkg.OpenAPISpec,
		Identity:    identitySvc,
		Contexts:    registry,
		Setup:       setupSvc,
		Cookie: handler.CookieOptions{
			Secure: cfg.CookieSecure,
			TTL:    cfg.SessionTTL,
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting dashboard server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return identitySvc.RunSweeper(gctx, cfg.SessionSweepInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// initPreferences opens the configured preference backend and returns a
// function that releases it.
func initPreferences(ctx context.Context, cfg *config.Config, db *database.DB) (preference.Store, func(), error) {
	switch cfg.PreferenceBackend {
	case "postgres":
		return preference.NewPostgresStore(db.Pool()), func() {}, nil
	case "redis":
		rs, err := preference.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return rs, func() {
			if err := rs.Close(); err != nil {
				slog.Warn("closing redis preference store", "error", err)
			}
		}, nil
	case "memory":
		slog.Warn("using in-memory preference store; current tenant choices are lost on restart")
		return preference.NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown preference backend %q", cfg.PreferenceBackend)
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(logHandler))
}
