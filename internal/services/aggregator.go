package services

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/openbeats/internal/models"
	"golang.org/x/sync/errgroup"
)

// SourceResult reports how one provider fared in an aggregated search.
type SourceResult struct {
	Source models.Source
	Count  int
	Err    error
}

// Aggregator fans a search out to every selected adapter concurrently and concatenates the results.
type Aggregator struct {
	adapters map[models.Source]Adapter
	timeout  time.Duration
	logger   *log.Logger
}

// NewAggregator registers adapters by their source tag. A later adapter for the same tag replaces an earlier one.
func NewAggregator(logger *log.Logger, timeout time.Duration, adapters ...Adapter) *Aggregator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	a := &Aggregator{adapters: make(map[models.Source]Adapter, len(adapters)), timeout: timeout, logger: logger}
	for _, ad := range adapters {
		a.adapters[ad.Source()] = ad
	}
	return a
}

// Sources lists registered sources in canonical order.
func (a *Aggregator) Sources() []models.Source {
	var out []models.Source
	for _, s := range models.Sources {
		if _, ok := a.adapters[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Search queries the given sources, or [models.DefaultSearchSources] when none are given.
//
// Provider failures never fail the search: that provider contributes nothing.
// Results keep the order of sources and the provider's own order within each source. No de-duplication is done.
func (a *Aggregator) Search(ctx context.Context, query string, limit int, sources ...models.Source) []models.Track {
	tracks, _ := a.SearchDetailed(ctx, query, limit, sources...)
	return tracks
}

// SearchDetailed is [Aggregator.Search] plus a per-source report.
func (a *Aggregator) SearchDetailed(ctx context.Context, query string, limit int, sources ...models.Source) ([]models.Track, []SourceResult) {
	if len(sources) == 0 {
		sources = models.DefaultSearchSources
	}

	results := make([][]models.Track, len(sources))
	report := make([]SourceResult, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		report[i].Source = src

		adapter, ok := a.adapters[src]
		if !ok {
			report[i].Err = ErrNotConfigured
			continue
		}

		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			start := time.Now()
			tracks, err := adapter.Search(sctx, query, limit)
			if err != nil {
				report[i].Err = err
				if errors.Is(err, ErrNotConfigured) {
					a.logger.Debug("source skipped", "source", src, "reason", err)
				} else {
					a.logger.Warn("source search failed", "source", src, "error", err)
				}
				return nil
			}

			results[i] = tracks
			report[i].Count = len(tracks)
			a.logger.Debug("source search finished", "source", src, "count", len(tracks), "took", time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]models.Track, 0)
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged, report
}
