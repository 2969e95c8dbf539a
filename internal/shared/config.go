package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Sources     SourcesConfig     `toml:"sources"`
	Search      SearchConfig      `toml:"search"`
	Audius      AudiusConfig      `toml:"audius"`
	Resolver    ResolverConfig    `toml:"resolver"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Player      PlayerConfig      `toml:"player"`
	MPRIS       MPRISConfig       `toml:"mpris"`
}

// CredentialsConfig contains provider credentials.
type CredentialsConfig struct {
	Jamendo JamendoConfig `toml:"jamendo"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// JamendoConfig contains Jamendo API credentials.
type JamendoConfig struct {
	ClientID string `toml:"client_id"`
}

// YouTubeConfig contains YouTube Data API credentials.
type YouTubeConfig struct {
	APIKey       string `toml:"api_key"`
	AccessToken  string `toml:"access_token"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenFile    string `toml:"token_file"`
}

// SourcesConfig selects which catalogs are wired.
type SourcesConfig struct {
	Enabled []string `toml:"enabled"`
}

// SearchConfig contains aggregated search settings.
type SearchConfig struct {
	DefaultLimit int     `toml:"default_limit"`
	RateLimit    float64 `toml:"rate_limit"`
	TimeoutSec   int     `toml:"timeout_sec"`
}

// AudiusConfig contains discovery settings for the decentralized catalog.
type AudiusConfig struct {
	DiscoveryURL string `toml:"discovery_url"`
	FallbackHost string `toml:"fallback_host"`
}

// ResolverConfig contains stream resolution settings.
type ResolverConfig struct {
	CacheTTLSec      int            `toml:"cache_ttl_sec"`
	MirrorTimeoutSec int            `toml:"mirror_timeout_sec"`
	DegradedFallback bool           `toml:"degraded_fallback"`
	RetryUnreachable bool           `toml:"retry_unreachable"`
	Mirrors          []MirrorConfig `toml:"mirrors"`
}

// MirrorConfig describes one video-platform mirror backend.
type MirrorConfig struct {
	URL   string `toml:"url"`
	Kind  string `toml:"kind"`
	Batch int    `toml:"batch"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains remote-control HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// PlayerConfig contains audio output settings.
type PlayerConfig struct {
	Volume     int `toml:"volume"`
	SampleRate int `toml:"sample_rate"`
	// FFmpeg is the transcoder binary for WebM and MP4 streams. Empty searches PATH.
	FFmpeg string `toml:"ffmpeg"`
}

// MPRISConfig controls the D-Bus media integration.
type MPRISConfig struct {
	Enabled bool   `toml:"enabled"`
	Name    string `toml:"name"`
}

// CacheTTL returns the stream cache TTL, defaulting to five minutes.
func (c ResolverConfig) CacheTTL() time.Duration {
	if c.CacheTTLSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.CacheTTLSec) * time.Second
}

// MirrorTimeout returns the per-mirror timeout clamped to [3s, 6s].
func (c ResolverConfig) MirrorTimeout() time.Duration {
	switch {
	case c.MirrorTimeoutSec < 3:
		return 3 * time.Second
	case c.MirrorTimeoutSec > 6:
		return 6 * time.Second
	default:
		return time.Duration(c.MirrorTimeoutSec) * time.Second
	}
}

// Timeout returns the per-provider search timeout.
func (c SearchConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// Addr returns host:port for the remote-control server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys absent from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	config.Resolver.Mirrors = nil
	if _, err := toml.Decode(string(data), config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(config.Resolver.Mirrors) == 0 {
		config.Resolver.Mirrors = DefaultConfig().Resolver.Mirrors
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ApplyEnv overrides secrets from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("JAMENDO_CLIENT_ID"); v != "" {
		c.Credentials.Jamendo.ClientID = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		c.Credentials.YouTube.APIKey = v
	}
	if v := os.Getenv("YOUTUBE_ACCESS_TOKEN"); v != "" {
		c.Credentials.YouTube.AccessToken = v
	}
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidArgument)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
