package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/apolloyr/tunebridge/internal/session"
	"github.com/apolloyr/tunebridge/internal/shared"
	"github.com/apolloyr/tunebridge/internal/tokens"
	"github.com/charmbracelet/log"
)

// FlowEngine is the slice of the OAuth flow engine the HTTP layer consumes.
type FlowEngine interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*tokens.Record, error)
	ResolveIdentity(ctx context.Context, accessToken string) (string, error)
	ValidToken(ctx context.Context, userID string) (string, error)
}

// Gateway sequences the login → callback lifecycle and routes the result of
// the authorization flow back to whichever client surface initiated it.
//
// Implements the Handler interface for registration with a Router.
type Gateway struct {
	engine         FlowEngine
	store          tokens.Store
	sessions       *session.Manager
	deepLinkScheme string
	landingPath    string
	logger         *log.Logger
}

// GatewayOpts contains configuration options for creating a Gateway.
type GatewayOpts struct {
	Engine         FlowEngine
	Store          tokens.Store
	Sessions       *session.Manager
	DeepLinkScheme string
	LandingPath    string
	Logger         *log.Logger
}

// NewGateway creates the auth gateway handler.
func NewGateway(opts GatewayOpts) *Gateway {
	if opts.DeepLinkScheme == "" {
		opts.DeepLinkScheme = "tunebridge"
	}
	if opts.LandingPath == "" {
		opts.LandingPath = "/player"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Gateway{
		engine:         opts.Engine,
		store:          opts.Store,
		sessions:       opts.Sessions,
		deepLinkScheme: opts.DeepLinkScheme,
		landingPath:    opts.LandingPath,
		logger:         opts.Logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (g *Gateway) Routes() []string {
	return []string{"/", "/callback"}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		g.login(w, r)
	case "/callback":
		g.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

// login records the intended delivery channel in the browser session and
// redirects to the upstream authorization URL.
func (g *Gateway) login(w http.ResponseWriter, r *http.Request) {
	sess, err := g.sessions.Ensure(w, r)
	if err != nil {
		g.logger.Error("failed to establish session", "err", err)
		http.Error(w, "Session unavailable", http.StatusInternalServerError)
		return
	}

	channel := session.ParseChannel(r.URL.Query().Get("redirect"))

	state, err := shared.GenerateState()
	if err != nil {
		http.Error(w, "Failed to start authorization", http.StatusInternalServerError)
		return
	}

	if err := g.sessions.SetPendingIntent(r.Context(), sess, channel, state); err != nil {
		g.logger.Error("failed to record login intent", "err", err)
		http.Error(w, "Session unavailable", http.StatusInternalServerError)
		return
	}

	g.logger.Info("authorization requested", "channel", channel)
	http.Redirect(w, r, g.engine.AuthorizationURL(state), http.StatusFound)
}

// callback completes the authorization flow: exchanges the code, resolves the
// user identity, persists the token record, binds the identity to the browser
// session, and dispatches the result over the pending delivery channel.
func (g *Gateway) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, err := g.sessions.Ensure(w, r)
	if err != nil {
		g.logger.Error("failed to establish session", "err", err)
		http.Error(w, "Session unavailable", http.StatusInternalServerError)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		// User cancelled or denied consent upstream
		channel, _ := g.sessions.TakePendingIntent(ctx, sess)
		g.logger.Info("authorization cancelled", "channel", channel)

		if channel == session.ChannelApp {
			http.Redirect(w, r, g.deepLinkScheme+"://callback?error=cancelled", http.StatusFound)
			return
		}
		http.Error(w, "Error: no code provided", http.StatusBadRequest)
		return
	}

	// A session that never initiated login has no recorded state; such
	// callbacks are still processed and default to the web channel.
	if sess.PendingState != "" && r.URL.Query().Get("state") != sess.PendingState {
		g.sessions.TakePendingIntent(ctx, sess)
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	record, err := g.engine.ExchangeCode(ctx, code)
	if err != nil {
		g.fail(w, "code exchange failed", err)
		return
	}

	userID, err := g.engine.ResolveIdentity(ctx, record.AccessToken)
	if err != nil {
		g.fail(w, "identity resolution failed", err)
		return
	}

	record.UserID = userID
	if err := g.store.Put(ctx, *record); err != nil {
		g.logger.Error("failed to persist token record", "user_id", userID, "err", err)
		http.Error(w, "Failed to store credentials", http.StatusInternalServerError)
		return
	}

	if err := g.sessions.BindUser(ctx, sess, userID); err != nil {
		g.logger.Error("failed to bind session identity", "user_id", userID, "err", err)
		http.Error(w, "Session unavailable", http.StatusInternalServerError)
		return
	}

	channel, _ := g.sessions.TakePendingIntent(ctx, sess)
	g.logger.Info("authorization complete", "user_id", userID, "channel", channel)

	if channel == session.ChannelApp {
		// One-shot token handoff; the app manages its own token lifecycle from here
		target := g.deepLinkScheme + "://callback?access_token=" + url.QueryEscape(record.AccessToken)
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	http.Redirect(w, r, g.landingPath, http.StatusFound)
}

// fail maps flow errors onto HTTP responses without leaking upstream detail.
// The flow never silently redirects as if successful.
func (g *Gateway) fail(w http.ResponseWriter, msg string, err error) {
	g.logger.Warn(msg, "err", err)

	if errors.Is(err, shared.ErrInvalidGrant) {
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}
	http.Error(w, "Authorization service unavailable", http.StatusBadGateway)
}
