package shared

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("LoadConfig", func(t *testing.T) {
		t.Run("Valid File", func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.toml")
			content := `
[credentials.spotify]
client_id = "abc"
client_secret = "def"
redirect_uri = "http://localhost:8888/callback"
scope = "user-library-read"

[server]
host = "127.0.0.1"
port = 9999
session_secret = "s3cret"
deep_link_scheme = "tunebridge"
`
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			config, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if config.Credentials.Spotify.ClientID != "abc" {
				t.Errorf("expected client_id 'abc', got %s", config.Credentials.Spotify.ClientID)
			}
			if config.Server.Port != 9999 {
				t.Errorf("expected port 9999, got %d", config.Server.Port)
			}
			if config.Server.DeepLinkScheme != "tunebridge" {
				t.Errorf("expected deep_link_scheme 'tunebridge', got %s", config.Server.DeepLinkScheme)
			}
		})

		t.Run("Missing File", func(t *testing.T) {
			if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
				t.Error("expected error for missing file")
			}
		})

		t.Run("Invalid TOML", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			if err := os.WriteFile(path, []byte("not [valid"), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected error for invalid TOML")
			}
		})
	})

	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Server.Port != 8888 {
			t.Errorf("expected default port 8888, got %d", config.Server.Port)
		}
		if config.Credentials.Spotify.Scope != "user-library-read" {
			t.Errorf("expected default scope 'user-library-read', got %s", config.Credentials.Spotify.Scope)
		}
		if config.Session.Backend != "memory" {
			t.Errorf("expected default session backend 'memory', got %s", config.Session.Backend)
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Credentials.Spotify.ClientID = "roundtrip"

		if err := SaveConfig(path, config); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		loaded, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if loaded.Credentials.Spotify.ClientID != "roundtrip" {
			t.Errorf("expected client_id 'roundtrip', got %s", loaded.Credentials.Spotify.ClientID)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if err := CreateConfigFile(path); err == nil {
			t.Error("expected error when file already exists")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name    string
			mutate  func(*Config)
			wantErr string
		}{
			{
				name: "missing client credentials",
				mutate: func(c *Config) {
					c.Credentials.Spotify.ClientID = ""
				},
				wantErr: "missing credentials",
			},
			{
				name: "missing redirect uri",
				mutate: func(c *Config) {
					c.Credentials.Spotify.RedirectURI = ""
				},
				wantErr: "invalid configuration",
			},
			{
				name: "missing session secret",
				mutate: func(c *Config) {
					c.Server.SessionSecret = ""
				},
				wantErr: "invalid configuration",
			},
			{
				name:   "complete",
				mutate: func(c *Config) {},
			},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				config.Credentials.Spotify.ClientID = "id"
				config.Credentials.Spotify.ClientSecret = "secret"
				config.Server.SessionSecret = "signing-key"
				tt.mutate(config)

				err := config.Validate()
				if tt.wantErr == "" {
					if err != nil {
						t.Errorf("expected no error, got %v", err)
					}
					return
				}
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
				}
			})
		}
	})
}
