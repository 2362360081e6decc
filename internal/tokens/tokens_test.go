package tokens

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/apolloyr/tunebridge/internal/shared"
)

func TestRecordExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tc := []struct {
		name      string
		expiresAt time.Time
		margin    time.Duration
		want      bool
	}{
		{
			name:      "fresh token",
			expiresAt: now.Add(time.Hour),
			margin:    30 * time.Second,
			want:      false,
		},
		{
			name:      "literally expired",
			expiresAt: now.Add(-time.Minute),
			margin:    30 * time.Second,
			want:      true,
		},
		{
			name:      "inside safety margin",
			expiresAt: now.Add(10 * time.Second),
			margin:    30 * time.Second,
			want:      true,
		},
		{
			name:      "expires exactly now",
			expiresAt: now,
			margin:    0,
			want:      true,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			r := Record{ExpiresAt: tt.expiresAt}
			if got := r.Expired(now, tt.margin); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		store := NewMemoryStore()
		record := Record{
			UserID:       "user1",
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour).UTC(),
		}

		if err := store.Put(ctx, record); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, err := store.Get(ctx, "user1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got == nil {
			t.Fatal("expected record, got nil")
		}
		if *got != record {
			t.Errorf("Get() = %+v, want %+v", *got, record)
		}
	})

	t.Run("Absent", func(t *testing.T) {
		store := NewMemoryStore()
		got, err := store.Get(ctx, "nobody")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != nil {
			t.Errorf("expected nil record, got %+v", got)
		}
	})

	t.Run("OverwriteInPlace", func(t *testing.T) {
		store := NewMemoryStore()
		store.Put(ctx, Record{UserID: "user1", AccessToken: "old"})
		store.Put(ctx, Record{UserID: "user1", AccessToken: "new"})

		got, _ := store.Get(ctx, "user1")
		if got.AccessToken != "new" {
			t.Errorf("expected overwritten token, got %s", got.AccessToken)
		}
	})
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	store := NewSQLiteStore(db)

	t.Run("RoundTrip", func(t *testing.T) {
		record := Record{
			UserID:       "user1",
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		}

		if err := store.Put(ctx, record); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, err := store.Get(ctx, "user1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got == nil {
			t.Fatal("expected record, got nil")
		}
		if got.AccessToken != record.AccessToken || got.RefreshToken != record.RefreshToken {
			t.Errorf("Get() = %+v, want %+v", *got, record)
		}
		if !got.ExpiresAt.Equal(record.ExpiresAt) {
			t.Errorf("expires_at = %v, want %v", got.ExpiresAt, record.ExpiresAt)
		}
	})

	t.Run("Absent", func(t *testing.T) {
		got, err := store.Get(ctx, "nobody")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != nil {
			t.Errorf("expected nil record, got %+v", got)
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		base := Record{
			UserID:       "user2",
			AccessToken:  "first",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().UTC(),
		}
		store.Put(ctx, base)

		base.AccessToken = "second"
		if err := store.Put(ctx, base); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, _ := store.Get(ctx, "user2")
		if got.AccessToken != "second" {
			t.Errorf("expected upserted token, got %s", got.AccessToken)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM tokens WHERE user_id = 'user2'").Scan(&count); err != nil {
			t.Fatalf("count query failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected single row per user, got %d", count)
		}
	})
}

func TestKeyedMutex(t *testing.T) {
	t.Run("SerializesPerKey", func(t *testing.T) {
		km := NewKeyedMutex()
		var inSection int
		var wg sync.WaitGroup

		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := km.Lock("user1")
				defer unlock()

				inSection++
				if inSection != 1 {
					t.Error("critical section entered concurrently")
				}
				inSection--
			}()
		}

		wg.Wait()
	})

	t.Run("IndependentKeys", func(t *testing.T) {
		km := NewKeyedMutex()
		unlockA := km.Lock("a")
		defer unlockA()

		done := make(chan struct{})
		go func() {
			unlockB := km.Lock("b")
			unlockB()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("lock on independent key blocked")
		}
	})
}
