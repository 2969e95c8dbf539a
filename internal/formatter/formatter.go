// Package formatter renders track lists (search results, history, favorites, playlists) as JSON, CSV, Markdown or plain text.
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/shared"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// Formats lists every supported format, for flag help.
var Formats = []Format{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// ParseFormat accepts a format name or its common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text", "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: format %q", shared.ErrInvalidArgument, s)
	}
}

// Ext is the file extension written for f.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return "." + string(f)
	}
}

// TrackList is a titled list of tracks.
type TrackList struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Tracks      []models.Track `json:"tracks"`
}

// PlaylistList builds a [TrackList] from a stored playlist.
func PlaylistList(p *models.Playlist) TrackList {
	return TrackList{Title: p.Title(), Description: p.Description(), Tracks: p.Tracks()}
}

// Render encodes list in format f.
func Render(list TrackList, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return ToJSON(list)
	case FormatCSV:
		return ToCSV(list.Tracks)
	case FormatMarkdown:
		return ToMarkdown(list, ""), nil
	case FormatText:
		return ToText(list), nil
	default:
		return nil, fmt.Errorf("%w: format %q", shared.ErrInvalidArgument, f)
	}
}

// ToJSON is indented JSON with a trailing newline.
func ToJSON(list TrackList) ([]byte, error) {
	if list.Tracks == nil {
		list.Tracks = []models.Track{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal track list: %w", err)
	}
	return append(data, '\n'), nil
}

// ToCSV writes columns: ID, Source, Source Track ID, Title, Artists, Album, Duration, License.
func ToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Source", "Source Track ID", "Title", "Artists", "Album", "Duration", "License"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, t := range tracks {
		record := []string{
			t.ID,
			string(t.Source),
			t.SourceTrackID,
			t.Title,
			t.ArtistLine(),
			t.AlbumTitle,
			strconv.Itoa(t.DurationSec),
			t.License,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ToMarkdown renders a heading, an optional cover image and a numbered track list.
func ToMarkdown(list TrackList, coverFile string) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", list.Title)
	if coverFile != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", coverFile)
	}
	if list.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", list.Description)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(list.Tracks))

	buf.WriteString("## Tracks\n\n")
	for i, t := range list.Tracks {
		album := ""
		if t.AlbumTitle != "" {
			album = fmt.Sprintf(" (%s)", t.AlbumTitle)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s] _%s_\n", i+1, t.ArtistLine(), t.Title, album, shared.FormatDuration(t.DurationSec), t.Source.Label())
	}
	return buf.Bytes()
}

// ToText is one "n. Artist - Title (m:ss)" line per track under a short header.
func ToText(list TrackList) []byte {
	var buf bytes.Buffer

	if list.Title != "" {
		fmt.Fprintf(&buf, "%s\n", list.Title)
	}
	if list.Description != "" {
		fmt.Fprintf(&buf, "%s\n", list.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(list.Tracks))

	for i, t := range list.Tracks {
		fmt.Fprintf(&buf, "%d. %s (%s)\n", i+1, t.Label(), shared.FormatDuration(t.DurationSec))
	}
	return buf.Bytes()
}

// DownloadImage fetches artwork bytes.
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty image URL", shared.ErrInvalidArgument)
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// ExportResult lists the files an export wrote.
type ExportResult struct {
	Files      []string
	CoverImage string
}

// Exporter writes track lists to disk.
type Exporter struct {
	Client *http.Client
	// Warn receives non-fatal problems such as a cover that failed to download.
	Warn func(msg string, kv ...any)
}

// Export writes list to base+ext. Markdown exports go in a directory named base holding README.md
// and, when coverURL is set and downloads, cover.jpg.
func (e Exporter) Export(ctx context.Context, list TrackList, f Format, base, coverURL string) (*ExportResult, error) {
	if base == "" {
		return nil, fmt.Errorf("%w: export path is required", shared.ErrInvalidArgument)
	}
	if f == FormatMarkdown {
		return e.exportMarkdown(ctx, list, base, coverURL)
	}

	data, err := Render(list, f)
	if err != nil {
		return nil, err
	}

	path := base
	if filepath.Ext(path) == "" {
		path += f.Ext()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return &ExportResult{Files: []string{path}}, nil
}

func (e Exporter) exportMarkdown(ctx context.Context, list TrackList, dir, coverURL string) (*ExportResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ExportResult{}
	cover := ""
	if coverURL != "" {
		if data, err := DownloadImage(ctx, e.Client, coverURL); err != nil {
			e.warn("failed to download cover image", "error", err)
		} else {
			path := filepath.Join(dir, "cover.jpg")
			if err := os.WriteFile(path, data, 0o644); err != nil {
				e.warn("failed to save cover image", "error", err)
			} else {
				cover = "cover.jpg"
				result.CoverImage = path
				result.Files = append(result.Files, path)
			}
		}
	}

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, ToMarkdown(list, cover), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, readme)
	return result, nil
}

func (e Exporter) warn(msg string, kv ...any) {
	if e.Warn != nil {
		e.Warn(msg, kv...)
	}
}
