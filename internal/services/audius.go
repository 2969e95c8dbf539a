package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/openbeats/internal/models"
)

const (
	defaultAudiusDiscoveryURL = "https://api.audius.co"
	defaultAudiusFallbackHost = "https://discoveryprovider.audius.co"
	audiusAppName             = "openbeats"
	audiusLicense             = "Creative Commons"
)

type audiusHosts struct {
	Data []string `json:"data"`
}

type audiusUser struct {
	Name string `json:"name"`
}

type audiusTrack struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Duration     int               `json:"duration"`
	Genre        string            `json:"genre"`
	IsStreamable *bool             `json:"is_streamable"`
	User         audiusUser        `json:"user"`
	Artwork      map[string]string `json:"artwork"`
}

type audiusSearchResponse struct {
	Data []audiusTrack `json:"data"`
}

type audiusTrackResponse struct {
	Data *audiusTrack `json:"data"`
}

// Audius searches the Audius network. Requests go to a discovery node picked from the discovery endpoint.
type Audius struct {
	client       *Client
	discoveryURL string
	fallbackHost string

	mu   sync.Mutex
	host string
}

// NewAudius creates an Audius adapter. Empty arguments fall back to the public discovery endpoint and node.
func NewAudius(client *Client, discoveryURL, fallbackHost string) *Audius {
	if discoveryURL == "" {
		discoveryURL = defaultAudiusDiscoveryURL
	}
	if fallbackHost == "" {
		fallbackHost = defaultAudiusFallbackHost
	}
	return &Audius{client: client, discoveryURL: discoveryURL, fallbackHost: strings.TrimSuffix(fallbackHost, "/")}
}

func (a *Audius) Source() models.Source { return models.SourceAudius }

// Host returns the active discovery node, asking the discovery endpoint once and remembering the answer.
// Discovery failures yield the fallback host without being remembered.
func (a *Audius) Host(ctx context.Context) string {
	a.mu.Lock()
	host := a.host
	a.mu.Unlock()
	if host != "" {
		return host
	}

	var hosts audiusHosts
	if err := a.client.GetJSON(ctx, "audius", a.discoveryURL, &hosts); err != nil || len(hosts.Data) == 0 {
		return a.fallbackHost
	}

	host = strings.TrimSuffix(hosts.Data[0], "/")
	a.mu.Lock()
	a.host = host
	a.mu.Unlock()
	return host
}

// forgetHost drops the remembered node so the next call rediscovers one.
func (a *Audius) forgetHost() {
	a.mu.Lock()
	a.host = ""
	a.mu.Unlock()
}

// Search calls /v1/tracks/search on the active node.
func (a *Audius) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(clampLimit(limit)))
	params.Set("app_name", audiusAppName)

	var resp audiusSearchResponse
	if err := a.client.GetJSON(ctx, "audius", a.Host(ctx)+"/v1/tracks/search?"+params.Encode(), &resp); err != nil {
		a.forgetHost()
		return nil, err
	}

	tracks := make([]models.Track, 0, len(resp.Data))
	for _, t := range resp.Data {
		if t.ID == "" {
			continue
		}
		tracks = append(tracks, t.toTrack())
	}
	return tracks, nil
}

// AudioURL confirms the track on the active node and returns the node's stream path for it.
func (a *Audius) AudioURL(ctx context.Context, sourceTrackID string) (string, error) {
	host := a.Host(ctx)
	id := url.PathEscape(sourceTrackID)

	var resp audiusTrackResponse
	if err := a.client.GetJSON(ctx, "audius", fmt.Sprintf("%s/v1/tracks/%s?app_name=%s", host, id, audiusAppName), &resp); err != nil {
		a.forgetHost()
		return "", err
	}
	if resp.Data == nil {
		return "", fmt.Errorf("%w: audius %s", ErrNotFound, sourceTrackID)
	}
	if resp.Data.IsStreamable != nil && !*resp.Data.IsStreamable {
		return "", fmt.Errorf("%w: audius %s is not streamable", ErrNoAudio, sourceTrackID)
	}

	return fmt.Sprintf("%s/v1/tracks/%s/stream?app_name=%s", host, id, audiusAppName), nil
}

func (t audiusTrack) toTrack() models.Track {
	artwork := t.Artwork["480x480"]
	if artwork == "" {
		artwork = t.Artwork["150x150"]
	}

	var artists []string
	if t.User.Name != "" {
		artists = []string{t.User.Name}
	}

	return models.NewTrack(models.SourceAudius, t.ID, models.TrackOpts{
		Title:       t.Title,
		Artists:     artists,
		DurationSec: t.Duration,
		ArtworkURL:  artwork,
		License:     audiusLicense,
	})
}
