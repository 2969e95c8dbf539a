package services

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/desertthunder/openbeats/internal/models"
	"golang.org/x/oauth2"
)

const (
	defaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"
	youTubeMusicCategory  = "10"
	youTubeLicense        = "YouTube Standard License"
)

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

type youTubeThumbnail struct {
	URL string `json:"url"`
}

type youTubeSnippet struct {
	Title        string                      `json:"title"`
	ChannelTitle string                      `json:"channelTitle"`
	Thumbnails   map[string]youTubeThumbnail `json:"thumbnails"`
}

type youTubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet youTubeSnippet `json:"snippet"`
	} `json:"items"`
}

type youTubeVideosResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Snippet youTubeSnippet `json:"snippet"`
	} `json:"items"`
}

// YouTube searches music videos through the YouTube Data API v3.
//
// The Data API only describes videos. Playable audio comes from mirror backends in package resolver.
type YouTube struct {
	client  *Client
	apiKey  string
	authed  bool
	baseURL string
}

// NewYouTube creates a YouTube adapter. A non-nil ts sends requests with its bearer token
// through an [oauth2] client; otherwise apiKey is passed as the key parameter.
func NewYouTube(ctx context.Context, client *Client, apiKey string, ts oauth2.TokenSource) *YouTube {
	y := &YouTube{client: client, apiKey: apiKey, baseURL: defaultYouTubeBaseURL}
	if ts != nil {
		base := client.http
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
		hc := oauth2.NewClient(ctx, ts)
		hc.Timeout = base.Timeout
		y.client = client.WithHTTPClient(hc)
		y.authed = true
	}
	return y
}

// SetBaseURL points the adapter at a different API root.
func (y *YouTube) SetBaseURL(u string) { y.baseURL = u }

func (y *YouTube) Source() models.Source { return models.SourceYouTube }

// Configured reports whether the adapter has credentials.
func (y *YouTube) Configured() bool { return y.apiKey != "" || y.authed }

func (y *YouTube) endpoint(path string, params url.Values) string {
	if !y.authed {
		params.Set("key", y.apiKey)
	}
	return y.baseURL + path + "?" + params.Encode()
}

// Search finds music-category videos, then fetches their details for durations.
// A failed details call still returns the search hits with unknown durations.
func (y *YouTube) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if !y.Configured() {
		return nil, fmt.Errorf("%w: youtube api_key is empty", ErrNotConfigured)
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query+" music")
	params.Set("type", "video")
	params.Set("videoCategoryId", youTubeMusicCategory)
	params.Set("maxResults", strconv.Itoa(clampLimit(limit)))

	var search youTubeSearchResponse
	if err := y.client.GetJSON(ctx, "youtube", y.endpoint("/search", params), &search); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(search.Items))
	snippets := make(map[string]youTubeSnippet, len(search.Items))
	for _, item := range search.Items {
		if item.ID.VideoID == "" {
			continue
		}
		ids = append(ids, item.ID.VideoID)
		snippets[item.ID.VideoID] = item.Snippet
	}
	if len(ids) == 0 {
		return []models.Track{}, nil
	}

	durations := make(map[string]int, len(ids))
	details := url.Values{}
	details.Set("part", "contentDetails,snippet")
	details.Set("id", strings.Join(ids, ","))

	var videos youTubeVideosResponse
	if err := y.client.GetJSON(ctx, "youtube", y.endpoint("/videos", details), &videos); err == nil {
		for _, v := range videos.Items {
			durations[v.ID] = ParseISODuration(v.ContentDetails.Duration)
			if v.Snippet.Title != "" {
				snippets[v.ID] = v.Snippet
			}
		}
	}

	tracks := make([]models.Track, 0, len(ids))
	for _, id := range ids {
		tracks = append(tracks, youTubeTrack(id, snippets[id], durations[id]))
	}
	return tracks, nil
}

func youTubeTrack(id string, s youTubeSnippet, duration int) models.Track {
	artwork := s.Thumbnails["high"].URL
	if artwork == "" {
		artwork = s.Thumbnails["default"].URL
	}

	var artists []string
	if s.ChannelTitle != "" {
		artists = []string{html.UnescapeString(s.ChannelTitle)}
	}

	return models.NewTrack(models.SourceYouTube, id, models.TrackOpts{
		Title:       html.UnescapeString(s.Title),
		Artists:     artists,
		DurationSec: duration,
		ArtworkURL:  artwork,
		License:     youTubeLicense,
	})
}

// ParseISODuration converts an ISO-8601 duration such as PT1H2M3S to seconds. Unparseable input yields 0.
func ParseISODuration(d string) int {
	m := isoDurationPattern.FindStringSubmatch(d)
	if m == nil {
		return 0
	}

	total := 0
	for i, unit := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0
		}
		total += n * unit
	}
	return total
}
