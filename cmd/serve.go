package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apolloyr/tunebridge/internal/auth"
	"github.com/apolloyr/tunebridge/internal/server"
	"github.com/apolloyr/tunebridge/internal/services"
	"github.com/apolloyr/tunebridge/internal/session"
	"github.com/apolloyr/tunebridge/internal/shared"
	"github.com/apolloyr/tunebridge/internal/tokens"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

const shutdownGrace = 10 * time.Second

// Serve wires the full gateway and runs the HTTP server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd.String("config"))
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if host := cmd.String("host"); host != "" {
		config.Server.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		config.Server.Port = port
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	store := tokens.NewSQLiteStore(db)

	sessionStore, err := r.sessionStore(ctx, config)
	if err != nil {
		return err
	}

	ttl := time.Duration(config.Session.TTLMinutes) * time.Minute
	sessions := session.NewManager(sessionStore, config.Server.SessionSecret, ttl)

	engine, err := auth.NewEngine(auth.EngineOpts{
		Credentials: config.Credentials.Spotify.Map(),
		Store:       store,
		HTTPClient:  r.httpClient,
		Logger:      r.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create auth engine: %w", err)
	}

	search := services.NewYouTubeService(
		config.Credentials.YouTube.APIKey,
		config.Credentials.YouTube.ResolverURL,
	)

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger), server.CORS())

	router.Handler(server.NewGateway(server.GatewayOpts{
		Engine:         engine,
		Store:          store,
		Sessions:       sessions,
		DeepLinkScheme: config.Server.DeepLinkScheme,
		LandingPath:    config.Server.LandingPath,
		Logger:         r.logger,
	}))
	router.Handler(server.NewLibraryHandler(server.LibraryOpts{
		Engine:   engine,
		Sessions: sessions,
		Logger:   r.logger,
	}))
	router.Handler(server.NewVideoHandler(search, r.logger))
	router.Handler(&server.PlayerHandler{})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	r.logger.Info("server listening", "addr", addr, "session_backend", config.Session.Backend)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// sessionStore builds the configured session backend.
func (r *Runner) sessionStore(ctx context.Context, config *shared.Config) (session.Store, error) {
	switch config.Session.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     config.Session.RedisAddr,
			Password: config.Session.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return session.NewRedisStore(client), nil
	case "", "memory":
		return session.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown session backend %q", shared.ErrInvalidConfig, config.Session.Backend)
	}
}
