package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/desertthunder/openbeats/internal/models"
	"golang.org/x/time/rate"
)

const userAgent = "openbeats/1.0 (+https://github.com/desertthunder/openbeats)"

var (
	// ErrNotConfigured means the adapter lacks the credentials it needs.
	ErrNotConfigured = errors.New("source not configured")
	// ErrProviderUnavailable covers transport failures, timeouts and 5xx responses.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrNotFound means the provider does not know the requested track.
	ErrNotFound = errors.New("track not found at provider")
	// ErrNoAudio means the track exists but exposes no playable audio.
	ErrNoAudio = errors.New("no audio available")
	// ErrMalformedResponse means the provider answered with a payload that could not be decoded.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// Adapter searches one catalog and normalizes its results.
type Adapter interface {
	Source() models.Source
	Search(ctx context.Context, query string, limit int) ([]models.Track, error)
}

// AudioLocator returns a directly playable URL for a provider-native track id.
type AudioLocator interface {
	Source() models.Source
	AudioURL(ctx context.Context, sourceTrackID string) (string, error)
}

// Client is the rate-limited HTTP client shared by adapters.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient wraps hc with a token bucket allowing perSecond requests. A nil hc uses a client with a 10s timeout;
// a non-positive perSecond disables limiting.
func NewClient(hc *http.Client, perSecond float64) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Client{http: hc, limiter: rate.NewLimiter(limit, max(1, int(perSecond)))}
}

// WithHTTPClient returns a copy of c sending requests through hc but sharing the limiter.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	return &Client{http: hc, limiter: c.limiter}
}

// GetJSON performs a GET request and decodes a 2xx JSON body into result.
func (c *Client) GetJSON(ctx context.Context, provider, endpoint string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, provider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, provider)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s rejected credentials (status %d)", ErrNotConfigured, provider, resp.StatusCode)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s: status %d", ErrProviderUnavailable, provider, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s API error (status %d): %s", provider, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, provider, err)
	}
	return nil
}

// stringList decodes a JSON value that providers send as either a string or an array of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}

	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = stringList{one}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

func (s stringList) first() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 10
	case limit > 50:
		return 50
	default:
		return limit
	}
}
