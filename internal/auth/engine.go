// OAuth2 authorization-code flow engine for Spotify
//
// Carries a user from authorization URL through code exchange, identity
// resolution, and transparent refresh, reading and writing the token store.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/apolloyr/tunebridge/internal/shared"
	"github.com/apolloyr/tunebridge/internal/tokens"
	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyMeURL    = "https://api.spotify.com/v1/me"

	// DefaultExpiryMargin treats tokens as expired this long before their
	// literal expiry, so a token cannot lapse mid-flight on a downstream call.
	DefaultExpiryMargin = 30 * time.Second

	defaultScope = "user-library-read"
)

// Engine sequences the OAuth2 authorization-code flow against Spotify and
// keeps stored token records fresh. Safe for concurrent use; refreshes for
// the same user are serialized per key.
type Engine struct {
	config      *oauth2.Config
	store       tokens.Store
	locks       *tokens.KeyedMutex
	httpClient  *http.Client
	identityURL string
	margin      time.Duration
	logger      *log.Logger
}

// EngineOpts contains configuration options for creating an Engine.
type EngineOpts struct {
	Credentials map[string]string
	Store       tokens.Store
	Margin      time.Duration
	HTTPClient  *http.Client
	Logger      *log.Logger
}

// NewEngine creates a flow engine from OAuth2 client credentials.
//
// Required credential keys: client_id, client_secret, redirect_uri.
// Optional: scope (defaults to the read-only library scope).
func NewEngine(opts EngineOpts) (*Engine, error) {
	clientID := opts.Credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := opts.Credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := opts.Credentials["redirect_uri"]
	if redirectURI == "" {
		return nil, fmt.Errorf("%w: missing redirect_uri", shared.ErrMissingCredentials)
	}

	scope := opts.Credentials["scope"]
	if scope == "" {
		scope = defaultScope
	}

	if opts.Store == nil {
		return nil, fmt.Errorf("%w: token store is required", shared.ErrInvalidArgument)
	}
	if opts.Margin <= 0 {
		opts.Margin = DefaultExpiryMargin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &Engine{
		config:      config,
		store:       opts.Store,
		locks:       tokens.NewKeyedMutex(),
		httpClient:  opts.HTTPClient,
		identityURL: spotifyMeURL,
		margin:      opts.Margin,
		logger:      opts.Logger,
	}, nil
}

// AuthorizationURL builds the upstream authorization URL for user login.
//
// Pure construction from static client configuration. The consent dialog is
// always shown so switching accounts works without clearing upstream cookies.
func (e *Engine) AuthorizationURL(state string) string {
	return e.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("show_dialog", "true"))
}

// ExchangeCode exchanges an authorization code for a token record.
//
// A code the upstream rejects (expired, already used, consent denied) surfaces
// as [shared.ErrInvalidGrant]; transport failures and upstream 5xx surface as
// [shared.ErrUpstreamUnavailable]. Raw upstream error bodies are never
// propagated.
func (e *Engine) ExchangeCode(ctx context.Context, code string) (*tokens.Record, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)

	token, err := e.config.Exchange(ctx, code)
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	return &tokens.Record{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}, nil
}

// ResolveIdentity calls the upstream identity endpoint and returns the user ID
// the access token belongs to.
func (e *Engine) ResolveIdentity(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.identityURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: identity endpoint unreachable", shared.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: identity endpoint returned %d", shared.ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return "", fmt.Errorf("%w: identity endpoint returned %d", shared.ErrInvalidGrant, resp.StatusCode)
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("%w: failed to decode identity response", shared.ErrUpstreamUnavailable)
	}
	if user.ID == "" {
		return "", fmt.Errorf("%w: identity response missing user id", shared.ErrUpstreamUnavailable)
	}

	return user.ID, nil
}

// ValidToken returns a live access token for the given user, refreshing the
// stored record first when it is expired or inside the safety margin.
//
// Errors distinguish "never logged in" ([shared.ErrNoSession]) from "was
// logged in, now invalid" ([shared.ErrReauthRequired]) so callers can route
// the two differently. A successful refresh overwrites the stored record
// before the new token is returned.
func (e *Engine) ValidToken(ctx context.Context, userID string) (string, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	record, err := e.store.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to read token record: %w", err)
	}
	if record == nil {
		return "", fmt.Errorf("%w: %s", shared.ErrNoSession, userID)
	}

	if !record.Expired(time.Now(), e.margin) {
		return record.AccessToken, nil
	}

	e.logger.Info("refreshing expired token", "user_id", userID)

	refreshed, err := e.refresh(ctx, record)
	if err != nil {
		return "", err
	}

	if err := e.store.Put(ctx, *refreshed); err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	return refreshed.AccessToken, nil
}

// refresh mints a new access token from the record's refresh token.
// The caller holds the per-user lock.
func (e *Engine) refresh(ctx context.Context, record *tokens.Record) (*tokens.Record, error) {
	if record.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token for %s", shared.ErrReauthRequired, record.UserID)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	source := e.config.TokenSource(ctx, &oauth2.Token{RefreshToken: record.RefreshToken})

	token, err := source.Token()
	if err != nil {
		e.logger.Warn("token refresh failed", "user_id", record.UserID, "err", err)

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500 {
				return nil, fmt.Errorf("%w: token endpoint returned %d", shared.ErrUpstreamUnavailable, retrieveErr.Response.StatusCode)
			}
			// Revoked or rotated out from under us; only a new login fixes this
			return nil, fmt.Errorf("%w: refresh rejected for %s", shared.ErrReauthRequired, record.UserID)
		}
		return nil, fmt.Errorf("%w: token endpoint unreachable", shared.ErrUpstreamUnavailable)
	}

	updated := *record
	updated.AccessToken = token.AccessToken
	updated.ExpiresAt = token.Expiry
	if token.RefreshToken != "" {
		// Spotify rotates refresh tokens only occasionally; keep the old one otherwise
		updated.RefreshToken = token.RefreshToken
	}

	return &updated, nil
}

// classifyExchangeError maps oauth2 exchange failures onto the error taxonomy.
func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500 {
			return fmt.Errorf("%w: token endpoint returned %d", shared.ErrUpstreamUnavailable, retrieveErr.Response.StatusCode)
		}
		return fmt.Errorf("%w: %s", shared.ErrInvalidGrant, retrieveErr.ErrorCode)
	}
	return fmt.Errorf("%w: token endpoint unreachable", shared.ErrUpstreamUnavailable)
}
