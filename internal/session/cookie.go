package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const CookieName = "tunebridge_session"

// sign computes the URL-safe HMAC-SHA256 signature of a session ID.
func sign(sessionID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// SetCookie issues the signed session cookie to the client.
// The cookie value is "<id>.<signature>"; HttpOnly keeps it away from scripts.
func (m *Manager) SetCookie(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID + "." + sign(s.ID, m.secret),
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie from the client.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest loads the session referenced by the request cookie.
//
// Returns (nil, nil) when no cookie is present, the signature does not verify,
// or the session is unknown or expired. A forged cookie is indistinguishable
// from no cookie.
func (m *Manager) FromRequest(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, nil
	}

	id, signature, ok := strings.Cut(cookie.Value, ".")
	if !ok || id == "" {
		return nil, nil
	}
	if !hmac.Equal([]byte(signature), []byte(sign(id, m.secret))) {
		return nil, nil
	}

	return m.store.Get(r.Context(), id)
}

// Ensure returns the request's session, creating one and setting the cookie
// when the request carries none.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) (*Session, error) {
	s, err := m.FromRequest(r)
	if err != nil {
		return nil, err
	}
	if s != nil && time.Now().Before(s.ExpiresAt) {
		return s, nil
	}

	s, err = m.Create(r.Context())
	if err != nil {
		return nil, err
	}
	m.SetCookie(w, s)
	return s, nil
}
