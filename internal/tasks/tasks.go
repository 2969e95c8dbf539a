package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/openbeats/internal/formatter"
	"github.com/desertthunder/openbeats/internal/models"
)

// PlaylistStore loads stored playlists with their tracks.
type PlaylistStore interface {
	Get(ctx context.Context, id string) (*models.Playlist, error)
}

// PlaylistExportResult is the outcome of exporting one playlist.
type PlaylistExportResult struct {
	PlaylistID string   `json:"playlistId"`
	Title      string   `json:"title"`
	TrackCount int      `json:"trackCount"`
	Files      []string `json:"files"`
	Success    bool     `json:"success"`
	Error      string   `json:"error,omitempty"`
	Err        error    `json:"-"`
}

// BulkExportResult summarizes a bulk export run.
type BulkExportResult struct {
	Format            formatter.Format       `json:"format"`
	OutputDirectory   string                 `json:"outputDirectory"`
	TotalPlaylists    int                    `json:"totalPlaylists"`
	SuccessfulExports int                    `json:"successfulExports"`
	FailedExports     int                    `json:"failedExports"`
	ExportedAt        time.Time              `json:"exportedAt"`
	Results           []PlaylistExportResult `json:"results"`
	ManifestPath      string                 `json:"-"`
}

func (r *BulkExportResult) add(res PlaylistExportResult) {
	if res.Err != nil {
		res.Error = res.Err.Error()
		r.FailedExports++
	} else {
		res.Success = true
		r.SuccessfulExports++
	}
	r.Results = append(r.Results, res)
}

// writeManifest stores result as indented JSON at path.
func writeManifest(result *BulkExportResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
