package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/openbeats/internal/formatter"
	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/resolver"
	"github.com/desertthunder/openbeats/internal/shared"
	"github.com/urfave/cli/v3"
)

// Search runs an aggregated search and prints or exports the merged results.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: query is required", shared.ErrMissingArgument)
	}
	if r.search == nil {
		return fmt.Errorf("%w: search is not configured", shared.ErrServiceUnavailable)
	}

	limit := cmd.Int("limit")
	if limit <= 0 {
		limit = r.config.Search.DefaultLimit
	}

	sources, err := models.ParseSources(cmd.String("sources"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	r.logger.Info("searching", "query", query, "limit", limit, "sources", sources)
	tracks, results := r.search.SearchDetailed(ctx, query, limit, sources...)
	for _, res := range results {
		if res.Err != nil {
			r.logger.Warn("source failed", "source", res.Source, "error", res.Err)
		}
	}

	if cmd.Bool("save") && len(tracks) > 0 {
		if err := r.saveTracks(ctx, tracks); err != nil {
			return err
		}
	}

	list := formatter.TrackList{Title: fmt.Sprintf("Search: %s", query), Tracks: tracks}
	if done, err := r.export(ctx, cmd, list, ""); done || err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	if len(tracks) == 0 {
		return r.writePlain("No results for %q\n", query)
	}

	r.writePlain("Found %d tracks for %q:\n\n", len(tracks), query)
	r.writeTracks(tracks)
	return nil
}

func (r *Runner) writeTracks(tracks []models.Track) {
	for i, t := range tracks {
		r.writePlain("%d. %s\n", i+1, t.Label())
		r.writePlain("   ID: %s\n", t.ID)
		if t.AlbumTitle != "" {
			r.writePlain("   Album: %s\n", t.AlbumTitle)
		}
		r.writePlain("   Duration: %s • %s", shared.FormatDuration(t.DurationSec), t.Source.Label())
		if t.License != "" {
			r.writePlain(" • %s", t.License)
		}
		r.writePlain("\n\n")
	}
}

// saveTracks stores track metadata so later commands can refer to tracks by id.
func (r *Runner) saveTracks(ctx context.Context, tracks []models.Track) error {
	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	for _, t := range tracks {
		if err := store.Tracks.Save(ctx, t); err != nil {
			return fmt.Errorf("failed to save %s: %w", t.ID, err)
		}
	}
	r.logger.Info("saved track metadata", "count", len(tracks))
	return nil
}

// export writes list when --format or --output is given and reports whether it did.
func (r *Runner) export(ctx context.Context, cmd *cli.Command, list formatter.TrackList, cover string) (bool, error) {
	path := cmd.String("output")
	name := cmd.String("format")
	if path == "" && name == "" {
		return false, nil
	}
	return true, r.exportList(ctx, list, name, path, cover)
}

// exportList writes list in the named format. An empty path derives one from the list title.
func (r *Runner) exportList(ctx context.Context, list formatter.TrackList, name, path, cover string) error {
	format, err := formatter.ParseFormat(name)
	if err != nil {
		return err
	}
	if path == "" {
		path = slug(list.Title)
	}

	exporter := formatter.Exporter{
		Client: r.httpClient,
		Warn:   func(msg string, kv ...any) { r.logger.Warn(msg, kv...) },
	}
	result, err := exporter.Export(ctx, list, format, path, cover)
	if err != nil {
		return err
	}

	r.writePlain("✓ Exported %d tracks\n", len(list.Tracks))
	for _, f := range result.Files {
		r.writePlain("  %s\n", f)
	}
	return nil
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	dash := false
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "tracks"
	}
	return out
}

// parseTrackRef accepts a track id ("audius-D7KyD") or "source:id".
func parseTrackRef(ref string) (models.Source, string, error) {
	ref = strings.TrimSpace(ref)
	sep := strings.IndexAny(ref, "-:")
	if sep <= 0 || sep == len(ref)-1 {
		return "", "", fmt.Errorf("%w: track id %q, expected <source>-<id>", shared.ErrInvalidArgument, ref)
	}
	src, err := models.ParseSource(ref[:sep])
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return src, ref[sep+1:], nil
}

// Resolve resolves one track and prints the stream or the degraded link.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("track")
	if ref == "" {
		return fmt.Errorf("%w: track id is required", shared.ErrMissingArgument)
	}
	src, id, err := parseTrackRef(ref)
	if err != nil {
		return err
	}
	if r.resolver == nil {
		return fmt.Errorf("%w: resolver is not configured", shared.ErrServiceUnavailable)
	}

	res, err := r.resolver.ResolveTrack(ctx, models.NewTrack(src, id, models.TrackOpts{}))
	if err != nil {
		if resolver.IsRetryable(err) {
			return fmt.Errorf("%w (try again shortly)", err)
		}
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(res, cmd.Bool("pretty"))
	}

	if res.Degraded() {
		r.writePlain("⚠ No direct stream available: %s\n", res.Reason)
		r.writePlain("Link: %s\n", res.URL)
		if cmd.Bool("open") {
			if err := shared.OpenBrowser(res.URL); err != nil {
				return fmt.Errorf("failed to open browser: %w", err)
			}
		}
		return nil
	}

	r.writePlain("✓ %s\n", res.URL)
	details := []string{string(res.Source)}
	if res.Mirror != "" {
		details = append(details, "via "+res.Mirror)
	}
	if res.Codec != "" {
		details = append(details, res.Codec)
	}
	if res.Bitrate > 0 {
		details = append(details, fmt.Sprintf("%d kbps", res.Bitrate/1000))
	}
	if res.Cached {
		details = append(details, "cached")
	}
	r.writePlain("  %s\n", strings.Join(details, " • "))
	return nil
}
