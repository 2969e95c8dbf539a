package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/desertthunder/openbeats/internal/models"
)

const defaultJamendoBaseURL = "https://api.jamendo.com/v3.0"

type jamendoResponse struct {
	Headers struct {
		Status       string `json:"status"`
		Code         int    `json:"code"`
		ErrorMessage string `json:"error_message"`
	} `json:"headers"`
	Results []jamendoTrack `json:"results"`
}

type jamendoTrack struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Duration     int    `json:"duration"`
	ArtistName   string `json:"artist_name"`
	AlbumName    string `json:"album_name"`
	Image        string `json:"image"`
	AlbumImage   string `json:"album_image"`
	LicenseCCURL string `json:"license_ccurl"`
	Audio        string `json:"audio"`
}

// Jamendo searches the Jamendo catalog. Every track is Creative Commons licensed and streams as MP3.
type Jamendo struct {
	client   *Client
	clientID string
	baseURL  string
}

// NewJamendo creates a Jamendo adapter. An empty clientID makes every call return [ErrNotConfigured].
func NewJamendo(client *Client, clientID string) *Jamendo {
	return &Jamendo{client: client, clientID: clientID, baseURL: defaultJamendoBaseURL}
}

// SetBaseURL points the adapter at a different API root.
func (j *Jamendo) SetBaseURL(u string) { j.baseURL = u }

func (j *Jamendo) Source() models.Source { return models.SourceJamendo }

func (j *Jamendo) tracks(ctx context.Context, params url.Values) ([]jamendoTrack, error) {
	if j.clientID == "" {
		return nil, fmt.Errorf("%w: jamendo client_id is empty", ErrNotConfigured)
	}

	params.Set("client_id", j.clientID)
	params.Set("format", "json")
	params.Set("audioformat", "mp32")

	var resp jamendoResponse
	if err := j.client.GetJSON(ctx, "jamendo", j.baseURL+"/tracks/?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Headers.Status != "" && resp.Headers.Status != "success" {
		return nil, fmt.Errorf("%w: jamendo: %s", ErrProviderUnavailable, resp.Headers.ErrorMessage)
	}
	return resp.Results, nil
}

// Search calls /tracks with a free-text search.
func (j *Jamendo) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	params := url.Values{}
	params.Set("search", query)
	params.Set("limit", strconv.Itoa(clampLimit(limit)))
	params.Set("include", "musicinfo")

	results, err := j.tracks(ctx, params)
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(results))
	for _, r := range results {
		if r.ID == "" {
			continue
		}
		tracks = append(tracks, r.toTrack())
	}
	return tracks, nil
}

// AudioURL looks the track up by id and returns its MP3 stream URL unmodified.
func (j *Jamendo) AudioURL(ctx context.Context, sourceTrackID string) (string, error) {
	params := url.Values{}
	params.Set("id", sourceTrackID)

	results, err := j.tracks(ctx, params)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("%w: jamendo %s", ErrNotFound, sourceTrackID)
	}
	if results[0].Audio == "" {
		return "", fmt.Errorf("%w: jamendo %s", ErrNoAudio, sourceTrackID)
	}
	return results[0].Audio, nil
}

func (r jamendoTrack) toTrack() models.Track {
	artwork := r.AlbumImage
	if artwork == "" {
		artwork = r.Image
	}

	var artists []string
	if r.ArtistName != "" {
		artists = []string{r.ArtistName}
	}

	return models.NewTrack(models.SourceJamendo, r.ID, models.TrackOpts{
		Title:       r.Name,
		Artists:     artists,
		AlbumTitle:  r.AlbumName,
		DurationSec: r.Duration,
		ArtworkURL:  artwork,
		License:     r.LicenseCCURL,
	})
}
