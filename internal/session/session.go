// package session implements per-browser-session state for the auth gateway
//
// A session maps a transient browser identity to a durable user identity and
// carries the pending delivery-channel intent for one login round trip. Token
// material never lives here, only pointers into the token store.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/apolloyr/tunebridge/internal/shared"
)

// Channel identifies which client surface initiated login and must receive the auth result.
type Channel string

const (
	ChannelWeb Channel = "web"
	ChannelApp Channel = "app"
)

// ParseChannel normalizes a raw redirect parameter into a Channel.
// Unknown or empty values resolve to the web channel.
func ParseChannel(raw string) Channel {
	if raw == string(ChannelApp) {
		return ChannelApp
	}
	return ChannelWeb
}

// Session represents one browser session.
//
// PendingChannel and PendingState are read-once login state: set at login
// time and cleared when the callback consumes them, so they never outlive one
// login round trip.
type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	PendingChannel Channel   `json:"pending_channel,omitempty"`
	PendingState   string    `json:"pending_state,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Store defines how sessions are stored and retrieved.
//
// Get returns (nil, nil) for unknown or expired session IDs.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Create(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) Update(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// Manager couples a Store with cookie issuance and implements the session
// operations the gateway sequences: pending-intent bookkeeping and user binding.
type Manager struct {
	store  Store
	secret string
	ttl    time.Duration
}

// NewManager creates a session manager over the given store.
// The secret signs session cookies; ttl bounds session lifetime.
func NewManager(store Store, secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{store: store, secret: secret, ttl: ttl}
}

// Create mints a new session and persists it.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := Session{
		ID:        shared.GenerateID(),
		ExpiresAt: time.Now().Add(m.ttl),
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Get loads a session by ID, returning (nil, nil) when absent or expired.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	return m.store.Get(ctx, sessionID)
}

// SetPendingIntent records the delivery channel and state token for an in-flight login.
func (m *Manager) SetPendingIntent(ctx context.Context, s *Session, channel Channel, state string) error {
	s.PendingChannel = channel
	s.PendingState = state
	return m.store.Update(ctx, *s)
}

// TakePendingIntent returns the pending delivery channel and clears the login state.
//
// Read-once semantics: a second consecutive call, or a call on a session that
// never had an intent set, returns the web channel. An unsolicited callback
// must still resolve to some behavior.
func (m *Manager) TakePendingIntent(ctx context.Context, s *Session) (Channel, error) {
	channel := s.PendingChannel
	if channel == "" && s.PendingState == "" {
		return ChannelWeb, nil
	}
	if channel == "" {
		channel = ChannelWeb
	}

	s.PendingChannel = ""
	s.PendingState = ""
	if err := m.store.Update(ctx, *s); err != nil {
		return ChannelWeb, err
	}
	return channel, nil
}

// BindUser attaches the resolved user identity to the session so subsequent
// web requests can locate the token record without repeating OAuth.
func (m *Manager) BindUser(ctx context.Context, s *Session, userID string) error {
	s.UserID = userID
	return m.store.Update(ctx, *s)
}

// UnbindUser detaches the user identity, downgrading the session to unauthenticated.
func (m *Manager) UnbindUser(ctx context.Context, s *Session) error {
	s.UserID = ""
	return m.store.Update(ctx, *s)
}
