package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/openbeats/internal/models"
)

const (
	defaultArchiveBaseURL = "https://archive.org"
	archiveMP3Format      = "VBR MP3"
	archiveLicense        = "Creative Commons"
)

type archiveSearchResponse struct {
	Response struct {
		Docs []archiveDoc `json:"docs"`
	} `json:"response"`
}

type archiveDoc struct {
	Identifier string     `json:"identifier"`
	Title      stringList `json:"title"`
	Creator    stringList `json:"creator"`
	Format     stringList `json:"format"`
}

type archiveMetadata struct {
	Files []archiveFile `json:"files"`
}

type archiveFile struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Length string `json:"length"`
}

// Archive searches the Free Music Archive collection mirrored on the Internet Archive.
type Archive struct {
	client  *Client
	baseURL string
}

// NewArchive creates an Internet Archive adapter. No credentials are needed.
func NewArchive(client *Client) *Archive {
	return &Archive{client: client, baseURL: defaultArchiveBaseURL}
}

// SetBaseURL points the adapter at a different archive host.
func (a *Archive) SetBaseURL(u string) { a.baseURL = strings.TrimSuffix(u, "/") }

func (a *Archive) Source() models.Source { return models.SourceFMA }

// Search runs an advanced search scoped to the freemusicarchive collection and keeps items carrying an MP3 derivative.
func (a *Archive) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%s AND collection:(freemusicarchive)", query))
	for _, f := range []string{"identifier", "title", "creator", "date", "format"} {
		params.Add("fl[]", f)
	}
	params.Set("rows", strconv.Itoa(clampLimit(limit)))
	params.Set("output", "json")

	var resp archiveSearchResponse
	if err := a.client.GetJSON(ctx, "archive", a.baseURL+"/advancedsearch.php?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(resp.Response.Docs))
	for _, doc := range resp.Response.Docs {
		if doc.Identifier == "" || !doc.hasMP3() {
			continue
		}
		tracks = append(tracks, a.toTrack(doc))
	}
	return tracks, nil
}

// AudioURL reads the item's file listing and returns the download URL of its first MP3 file.
func (a *Archive) AudioURL(ctx context.Context, sourceTrackID string) (string, error) {
	var meta archiveMetadata
	if err := a.client.GetJSON(ctx, "archive", a.baseURL+"/metadata/"+url.PathEscape(sourceTrackID), &meta); err != nil {
		return "", err
	}
	if len(meta.Files) == 0 {
		return "", fmt.Errorf("%w: archive item %s", ErrNotFound, sourceTrackID)
	}

	for _, f := range meta.Files {
		if f.Format == archiveMP3Format || strings.HasSuffix(strings.ToLower(f.Name), ".mp3") {
			return fmt.Sprintf("%s/download/%s/%s", a.baseURL, url.PathEscape(sourceTrackID), escapePath(f.Name)), nil
		}
	}
	return "", fmt.Errorf("%w: archive item %s has no mp3 file", ErrNoAudio, sourceTrackID)
}

func (d archiveDoc) hasMP3() bool {
	for _, f := range d.Format {
		if strings.Contains(f, archiveMP3Format) {
			return true
		}
	}
	return false
}

func (a *Archive) toTrack(d archiveDoc) models.Track {
	var artists []string
	if c := d.Creator.first(); c != "" {
		artists = []string{c}
	}

	return models.NewTrack(models.SourceFMA, d.Identifier, models.TrackOpts{
		Title:      d.Title.first(),
		Artists:    artists,
		ArtworkURL: fmt.Sprintf("%s/services/img/%s", a.baseURL, url.PathEscape(d.Identifier)),
		License:    archiveLicense,
	})
}

// escapePath escapes each segment of a file path inside an archive item.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
