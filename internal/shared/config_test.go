package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./openbeats.db" {
			t.Errorf("expected database path ./openbeats.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if got := config.Resolver.CacheTTL(); got != 5*time.Minute {
			t.Errorf("expected cache ttl 5m, got %v", got)
		}

		if !config.Resolver.DegradedFallback {
			t.Error("expected degraded fallback enabled by default")
		}

		if len(config.Resolver.Mirrors) < 2 {
			t.Fatalf("expected default mirrors, got %d", len(config.Resolver.Mirrors))
		}

		if config.Resolver.Mirrors[0].Kind != "invidious" {
			t.Errorf("expected first mirror kind invidious, got %s", config.Resolver.Mirrors[0].Kind)
		}

		if config.Audius.FallbackHost != "https://discoveryprovider.audius.co" {
			t.Errorf("unexpected audius fallback host %s", config.Audius.FallbackHost)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
port = 8080

[credentials.jamendo]
client_id = "test_client_id"

[resolver]
mirror_timeout_sec = 30

[[resolver.mirrors]]
url = "https://mirror.example"
kind = "piped"
batch = 1
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 || config.Server.Host != "127.0.0.1" {
			t.Errorf("expected 127.0.0.1:8080, got %s", config.Server.Addr())
		}

		if config.Credentials.Jamendo.ClientID != "test_client_id" {
			t.Errorf("expected jamendo client_id test_client_id, got %s", config.Credentials.Jamendo.ClientID)
		}

		if len(config.Resolver.Mirrors) != 1 || config.Resolver.Mirrors[0].URL != "https://mirror.example" {
			t.Errorf("expected mirrors to be replaced, got %+v", config.Resolver.Mirrors)
		}

		if got := config.Resolver.MirrorTimeout(); got != 6*time.Second {
			t.Errorf("expected mirror timeout clamped to 6s, got %v", got)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("JAMENDO_CLIENT_ID", "env-client")
		t.Setenv("YOUTUBE_API_KEY", "env-key")

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Credentials.Jamendo.ClientID != "env-client" {
			t.Errorf("expected env client id, got %s", config.Credentials.Jamendo.ClientID)
		}
		if config.Credentials.YouTube.APIKey != "env-key" {
			t.Errorf("expected env api key, got %s", config.Credentials.YouTube.APIKey)
		}
	})
}
