package main

import (
	"context"
	"fmt"

	"github.com/apolloyr/tunebridge/internal/auth"
	"github.com/apolloyr/tunebridge/internal/shared"
	"github.com/apolloyr/tunebridge/internal/tokens"
	"github.com/urfave/cli/v3"
)

// AuthURL prints the upstream authorization URL for the configured client,
// optionally opening it in the default browser. Useful for verifying
// credentials and redirect URI registration without running the server.
func (r *Runner) AuthURL(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd.String("config"))

	engine, err := auth.NewEngine(auth.EngineOpts{
		Credentials: config.Credentials.Spotify.Map(),
		Store:       tokens.NewMemoryStore(),
		HTTPClient:  r.httpClient,
		Logger:      r.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create auth engine: %w", err)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state: %w", err)
	}

	authURL := engine.AuthorizationURL(state)

	if cmd.Bool("json") {
		return r.writeJSON(map[string]string{"url": authURL, "state": state}, true)
	}

	if err := r.writePlain("%s\n", authURL); err != nil {
		return err
	}

	if cmd.Bool("open") {
		r.logger.Info("opening browser")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}

	return nil
}
