package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/apolloyr/tunebridge/internal/services"
	"github.com/apolloyr/tunebridge/internal/session"
	"github.com/apolloyr/tunebridge/internal/shared"
	"github.com/charmbracelet/log"
)

// LibraryHandler serves the authenticated user's saved tracks.
//
// Client resolution is a single polymorphic step with two variants that both
// produce the same per-request library handle: a bearer token presented
// directly (app path, stateless, no refresh) or the browser session's bound
// user identity (web path, refresh-on-demand). The two paths are mutually
// exclusive per request; a request carrying an Authorization header never
// falls back to session resolution.
type LibraryHandler struct {
	engine   FlowEngine
	sessions *session.Manager
	library  services.LibraryFactory
	logger   *log.Logger
}

// LibraryOpts contains configuration options for creating a LibraryHandler.
type LibraryOpts struct {
	Engine   FlowEngine
	Sessions *session.Manager
	Library  services.LibraryFactory
	Logger   *log.Logger
}

// NewLibraryHandler creates the saved-tracks handler.
func NewLibraryHandler(opts LibraryOpts) *LibraryHandler {
	if opts.Library == nil {
		opts.Library = func(accessToken string) services.Library {
			return services.NewSpotifyClient(accessToken)
		}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &LibraryHandler{
		engine:   opts.Engine,
		sessions: opts.Sessions,
		library:  opts.Library,
		logger:   opts.Logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *LibraryHandler) Routes() []string {
	return []string{"/liked"}
}

func (h *LibraryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if authz := r.Header.Get("Authorization"); authz != "" {
		h.serveBearer(w, r, authz)
		return
	}
	h.serveSession(w, r)
}

// serveBearer handles the app path: the token came over the deep-link handoff
// and the app owns its lifecycle, so no refresh is attempted here.
func (h *LibraryHandler) serveBearer(w http.ResponseWriter, r *http.Request, authz string) {
	token, ok := strings.CutPrefix(authz, "Bearer ")
	if !ok || token == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid authorization header"})
		return
	}

	tracks, err := h.library(token).AllSavedTracks(r.Context())
	if err != nil {
		if errors.Is(err, shared.ErrInvalidGrant) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid or expired token"})
			return
		}
		h.logger.Warn("library request failed", "path", "bearer", "err", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "upstream unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, tracks)
}

// serveSession handles the web path: the browser session's bound user locates
// the token record and refresh happens transparently in ValidToken.
func (h *LibraryHandler) serveSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, err := h.sessions.FromRequest(r)
	if err != nil {
		h.logger.Error("failed to load session", "err", err)
		http.Error(w, "Session unavailable", http.StatusInternalServerError)
		return
	}
	if sess == nil || sess.UserID == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	token, err := h.engine.ValidToken(ctx, sess.UserID)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNoSession):
			h.logger.Info("no token record for session user", "user_id", sess.UserID)
		case errors.Is(err, shared.ErrReauthRequired):
			// Was logged in, credential revoked: downgrade to unauthenticated
			h.logger.Warn("reauthorization required", "user_id", sess.UserID)
			h.sessions.UnbindUser(ctx, sess)
		default:
			h.logger.Error("token resolution failed", "user_id", sess.UserID, "err", err)
			http.Error(w, "Upstream unavailable", http.StatusBadGateway)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	tracks, err := h.library(token).AllSavedTracks(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidGrant) {
			// Token went stale between refresh and use; force a fresh login
			h.sessions.UnbindUser(ctx, sess)
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		h.logger.Warn("library request failed", "path", "session", "err", err)
		http.Error(w, "Upstream unavailable", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, tracks)
}
