package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/openbeats/internal/formatter"
	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers = 4
	maxWorkers     = 10
	manifestName   = "export_manifest.json"
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format     formatter.Format // Export format
	OutputDir  string           // Base output directory (default: openbeats_export_{epoch})
	NumWorkers int              // Concurrent workers (default: 4, at most 10)
	RateLimit  float64          // Playlists started per second; covers are fetched over the network (default: 5)
	Now        func() time.Time
}

// BulkExporter exports many playlists concurrently.
type BulkExporter struct {
	store    PlaylistStore
	exporter formatter.Exporter
	logger   *log.Logger
}

// NewBulkExporter creates a [BulkExporter] reading from store and writing with exporter.
func NewBulkExporter(store PlaylistStore, exporter formatter.Exporter, logger *log.Logger) *BulkExporter {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &BulkExporter{store: store, exporter: exporter, logger: logger}
}

type exportJob struct {
	index    int
	playlist *models.Playlist
}

type indexedResult struct {
	index int
	PlaylistExportResult
}

// Export writes each playlist in ids into opts.OutputDir and then a manifest.
//
// Results keep the order of ids. Failures are recorded per playlist; the returned error is reserved for
// problems with the run itself (output directory, cancellation, manifest).
func (b *BulkExporter) Export(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if b.store == nil {
		return nil, fmt.Errorf("%w: playlist store not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("openbeats_export_%d", opts.Now().Unix())
	}
	opts.NumWorkers = shared.ClampInt(cmp.Or(opts.NumWorkers, defaultWorkers), 1, maxWorkers)
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		Format:          opts.Format,
		OutputDirectory: opts.OutputDir,
		TotalPlaylists:  len(ids),
		ExportedAt:      opts.Now().UTC(),
		Results:         make([]PlaylistExportResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan exportJob, len(ids))
	results := make(chan indexedResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go b.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		sendProgress(prog, loadingPlaylistsUpdate(len(ids)))
		for i, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			p, err := b.store.Get(ctx, id)
			if err != nil {
				results <- indexedResult{i, PlaylistExportResult{
					PlaylistID: id,
					Title:      fmt.Sprintf("Unknown (%s)", id),
					Err:        fmt.Errorf("failed to load playlist: %w", err),
				}}
				continue
			}

			jobs <- exportJob{index: i, playlist: p}
			sendProgress(prog, exportingPlaylistUpdate(i+1, len(ids), p.Title()))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]indexedResult, 0, len(ids))
	for res := range results {
		collected = append(collected, res)
		if res.Err == nil {
			sendProgress(prog, exportCompletedUpdate(len(collected), len(ids), res.PlaylistExportResult))
		} else {
			b.logger.Warn("playlist export failed", "playlist", res.PlaylistID, "error", res.Err)
			sendProgress(prog, exportFailedUpdate(len(collected), len(ids), res.PlaylistExportResult))
		}
	}

	slices.SortFunc(collected, func(x, y indexedResult) int { return cmp.Compare(x.index, y.index) })
	for _, res := range collected {
		result.add(res.PlaylistExportResult)
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("export interrupted after %d of %d playlists: %w", len(collected), len(ids), err)
	}

	manifestPath := filepath.Join(opts.OutputDir, manifestName)
	if err := writeManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but %w", err)
	}
	result.ManifestPath = manifestPath
	sendProgress(prog, manifestUpdate(manifestPath))
	return result, nil
}

// exportWorker exports playlists from the jobs channel until it closes.
func (b *BulkExporter) exportWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan exportJob, results chan<- indexedResult, opts BulkExportOpts) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			results <- indexedResult{job.index, PlaylistExportResult{
				PlaylistID: job.playlist.ID(),
				Title:      job.playlist.Title(),
				Err:        ctx.Err(),
			}}
			continue
		}
		results <- indexedResult{job.index, b.exportSinglePlaylist(ctx, job.playlist, opts)}
	}
}

// exportSinglePlaylist writes one playlist named after its id. Markdown exports use the first track's artwork as cover.
func (b *BulkExporter) exportSinglePlaylist(ctx context.Context, p *models.Playlist, opts BulkExportOpts) PlaylistExportResult {
	res := PlaylistExportResult{
		PlaylistID: p.ID(),
		Title:      p.Title(),
		TrackCount: len(p.Tracks()),
		Files:      []string{},
	}

	cover := ""
	if opts.Format == formatter.FormatMarkdown && len(p.Tracks()) > 0 {
		cover = p.Tracks()[0].ArtworkURL
	}

	out, err := b.exporter.Export(ctx, formatter.PlaylistList(p), opts.Format, filepath.Join(opts.OutputDir, p.ID()), cover)
	if err != nil {
		res.Err = fmt.Errorf("%s export failed: %w", opts.Format, err)
		return res
	}
	if out == nil {
		res.Err = errors.New("exporter returned no result")
		return res
	}
	res.Files = out.Files
	return res
}
