package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseChannel(t *testing.T) {
	tc := []struct {
		raw  string
		want Channel
	}{
		{"web", ChannelWeb},
		{"app", ChannelApp},
		{"", ChannelWeb},
		{"desktop", ChannelWeb},
	}

	for _, tt := range tc {
		t.Run("raw "+tt.raw, func(t *testing.T) {
			if got := ParseChannel(tt.raw); got != tt.want {
				t.Errorf("ParseChannel(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestPendingIntent(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(NewMemoryStore(), "secret", time.Hour)

	t.Run("DefaultsToWeb", func(t *testing.T) {
		s, err := manager.Create(ctx)
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		channel, err := manager.TakePendingIntent(ctx, s)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if channel != ChannelWeb {
			t.Errorf("expected web default, got %v", channel)
		}
	})

	t.Run("ReadOnce", func(t *testing.T) {
		s, _ := manager.Create(ctx)

		if err := manager.SetPendingIntent(ctx, s, ChannelApp, "state123"); err != nil {
			t.Fatalf("failed to set intent: %v", err)
		}

		first, _ := manager.TakePendingIntent(ctx, s)
		if first != ChannelApp {
			t.Errorf("expected app on first take, got %v", first)
		}

		second, _ := manager.TakePendingIntent(ctx, s)
		if second != ChannelWeb {
			t.Errorf("expected web default on second take, got %v", second)
		}

		// The cleared intent must also be gone from the store, not just the local copy
		stored, _ := manager.Get(ctx, s.ID)
		if stored.PendingChannel != "" || stored.PendingState != "" {
			t.Errorf("expected cleared login state in store, got %+v", stored)
		}
	})
}

func TestBindUser(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(NewMemoryStore(), "secret", time.Hour)

	s, _ := manager.Create(ctx)
	if err := manager.BindUser(ctx, s, "spotify_user"); err != nil {
		t.Fatalf("failed to bind user: %v", err)
	}

	stored, _ := manager.Get(ctx, s.ID)
	if stored.UserID != "spotify_user" {
		t.Errorf("expected bound user, got %q", stored.UserID)
	}

	if err := manager.UnbindUser(ctx, s); err != nil {
		t.Fatalf("failed to unbind user: %v", err)
	}

	stored, _ = manager.Get(ctx, s.ID)
	if stored.UserID != "" {
		t.Errorf("expected unbound user, got %q", stored.UserID)
	}
}

func TestCookies(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(NewMemoryStore(), "secret", time.Hour)

	t.Run("RoundTrip", func(t *testing.T) {
		s, _ := manager.Create(ctx)

		rec := httptest.NewRecorder()
		manager.SetCookie(rec, s)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range rec.Result().Cookies() {
			req.AddCookie(c)
		}

		loaded, err := manager.FromRequest(req)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if loaded == nil || loaded.ID != s.ID {
			t.Errorf("expected session %q, got %+v", s.ID, loaded)
		}
	})

	t.Run("TamperedSignature", func(t *testing.T) {
		s, _ := manager.Create(ctx)

		rec := httptest.NewRecorder()
		manager.SetCookie(rec, s)

		cookie := rec.Result().Cookies()[0]
		id, _, _ := strings.Cut(cookie.Value, ".")
		cookie.Value = id + ".forged"

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)

		loaded, err := manager.FromRequest(req)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if loaded != nil {
			t.Error("expected tampered cookie to be ignored")
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		s, _ := manager.Create(ctx)

		rec := httptest.NewRecorder()
		manager.SetCookie(rec, s)

		other := NewManager(NewMemoryStore(), "different", time.Hour)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range rec.Result().Cookies() {
			req.AddCookie(c)
		}

		loaded, _ := other.FromRequest(req)
		if loaded != nil {
			t.Error("expected cookie signed with another secret to be ignored")
		}
	})

	t.Run("EnsureCreates", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		s, err := manager.Ensure(rec, req)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if s == nil {
			t.Fatal("expected session to be created")
		}

		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != CookieName {
			t.Fatalf("expected session cookie to be set, got %v", cookies)
		}
		if !cookies[0].HttpOnly {
			t.Error("expected HttpOnly cookie")
		}
	})

	t.Run("EnsureReuses", func(t *testing.T) {
		rec := httptest.NewRecorder()
		first, _ := manager.Ensure(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range rec.Result().Cookies() {
			req.AddCookie(c)
		}

		second, _ := manager.Ensure(httptest.NewRecorder(), req)
		if second.ID != first.ID {
			t.Errorf("expected reused session %q, got %q", first.ID, second.ID)
		}
	})
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	store.Create(ctx, Session{ID: "stale", ExpiresAt: time.Now().Add(-time.Minute)})

	got, err := store.Get(ctx, "stale")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != nil {
		t.Error("expected expired session to be treated as absent")
	}
}
