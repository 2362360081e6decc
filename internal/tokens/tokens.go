// package tokens implements the keyed store of per-user OAuth token records
package tokens

import (
	"context"
	"sync"
	"time"
)

// Record holds the durable credential state for one authenticated user identity.
// Created on the first successful code exchange and overwritten in place on refresh.
type Record struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the record should be treated as expired at the given time.
// The margin treats tokens as expired slightly before their literal expiry so a
// token cannot lapse mid-flight on a downstream call.
func (r Record) Expired(now time.Time, margin time.Duration) bool {
	return !now.Before(r.ExpiresAt.Add(-margin))
}

// Store defines keyed access to token records.
//
// Get returns (nil, nil) when no record exists for the user. Writers for the
// same user must be serialized by the caller, see [KeyedMutex].
type Store interface {
	Put(ctx context.Context, record Record) error
	Get(ctx context.Context, userID string) (*Record, error)
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Put(ctx context.Context, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.UserID] = record
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// KeyedMutex serializes critical sections per string key without a global lock.
// Used to keep the read-refresh-write window for one user atomic while refreshes
// for different users proceed concurrently.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the given key and returns its unlock function.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
