package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/openbeats/internal/formatter"
	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/repositories"
	"github.com/desertthunder/openbeats/internal/shared"
	"github.com/desertthunder/openbeats/internal/tasks"
	"github.com/urfave/cli/v3"
)

type playView struct {
	Track             models.Track `json:"track"`
	DurationPlayedSec int          `json:"durationPlayedSec"`
	PlayedAt          string       `json:"playedAt"`
}

// HistoryList prints recent plays.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	plays, err := store.History.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	tracks := make([]models.Track, len(plays))
	views := make([]playView, len(plays))
	for i, p := range plays {
		tracks[i] = p.Track()
		views[i] = playView{p.Track(), p.DurationPlayedSec(), p.CreatedAt().Format("2006-01-02 15:04")}
	}

	if done, err := r.export(ctx, cmd, formatter.TrackList{Title: "Listening history", Tracks: tracks}, ""); done || err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(plays) == 0 {
		return r.writePlain("No plays recorded yet\n")
	}
	for _, v := range views {
		r.writePlain("%s  %s (%s)\n", v.PlayedAt, v.Track.Label(), shared.FormatDuration(v.DurationPlayedSec))
	}
	return nil
}

// HistoryStats prints total listening time.
func (r *Runner) HistoryStats(ctx context.Context, cmd *cli.Command) error {
	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	total, err := store.History.TotalListened(ctx)
	if err != nil {
		return err
	}
	plays, err := store.History.List(ctx, 0)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]int{"plays": len(plays), "listenedSec": int(total.Seconds())}, cmd.Bool("pretty"))
	}
	r.writePlainHeader("Listening stats")
	r.writePlain("Plays: %d\n", len(plays))
	r.writePlain("Listened: %s\n", total)
	return nil
}

// HistoryClear deletes every play.
func (r *Runner) HistoryClear(ctx context.Context, cmd *cli.Command) error {
	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := store.History.Clear(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Removed %d plays\n", n)
}

// FavoritesList prints favorites.
func (r *Runner) FavoritesList(ctx context.Context, cmd *cli.Command) error {
	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	tracks, err := favoriteTracks(ctx, store)
	if err != nil {
		return err
	}

	if done, err := r.export(ctx, cmd, formatter.TrackList{Title: "Favorites", Tracks: tracks}, ""); done || err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}
	if len(tracks) == 0 {
		return r.writePlain("No favorites yet\n")
	}
	r.writeTracks(tracks)
	return nil
}

func favoriteTracks(ctx context.Context, store *repositories.Store) ([]models.Track, error) {
	favs, err := store.Favorites.List(ctx)
	if err != nil {
		return nil, err
	}
	tracks := make([]models.Track, len(favs))
	for i, f := range favs {
		tracks[i] = f.Track()
	}
	return tracks, nil
}

// lookupTrack finds stored metadata for a track reference.
func lookupTrack(ctx context.Context, store *repositories.Store, ref string) (models.Track, error) {
	src, id, err := parseTrackRef(ref)
	if err != nil {
		return models.Track{}, err
	}
	t, err := store.Tracks.GetByKey(ctx, models.TrackKey{Source: src, SourceTrackID: id})
	if errors.Is(err, shared.ErrTrackNotFound) {
		return models.Track{}, fmt.Errorf("%w (run `search --save` or play it first)", err)
	}
	return t, err
}

// FavoritesAdd favorites a stored track.
func (r *Runner) FavoritesAdd(ctx context.Context, cmd *cli.Command) error {
	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	t, err := lookupTrack(ctx, store, cmd.StringArg("track"))
	if err != nil {
		return err
	}
	if _, err := store.Favorites.Add(ctx, t); err != nil {
		return err
	}
	return r.writePlain("✓ Favorited %s\n", t.Label())
}

// FavoritesRemove removes a favorite.
func (r *Runner) FavoritesRemove(ctx context.Context, cmd *cli.Command) error {
	src, id, err := parseTrackRef(cmd.StringArg("track"))
	if err != nil {
		return err
	}

	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Favorites.Remove(ctx, models.TrackID(src, id)); err != nil {
		return err
	}
	return r.writePlain("✓ Removed %s from favorites\n", models.TrackID(src, id))
}

type playlistView struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Public      bool           `json:"public"`
	UpdatedAt   string         `json:"updatedAt"`
	Tracks      []models.Track `json:"tracks"`
}

func newPlaylistView(p *models.Playlist) playlistView {
	tracks := p.Tracks()
	if tracks == nil {
		tracks = []models.Track{}
	}
	return playlistView{p.ID(), p.Title(), p.Description(), p.Public(), p.UpdatedAt().Format("2006-01-02 15:04"), tracks}
}

// PlaylistsList prints every playlist.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	playlists, err := store.Playlists.List(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]playlistView, len(playlists))
		for i, p := range playlists {
			views[i] = newPlaylistView(p)
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(playlists) == 0 {
		return r.writePlain("No playlists yet\n")
	}
	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Title())
		if p.Description() != "" {
			r.writePlain("   Description: %s\n", p.Description())
		}
		r.writePlain("   ID: %s\n", p.ID())
		r.writePlain("   Tracks: %d\n\n", len(p.Tracks()))
	}
	return nil
}

// PlaylistsShow prints one playlist.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	p, err := store.Playlists.Get(ctx, cmd.StringArg("id"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(newPlaylistView(p), cmd.Bool("pretty"))
	}

	r.writePlainHeader(p.Title())
	if p.Description() != "" {
		r.writePlain("%s\n", p.Description())
	}
	r.writePlain("Tracks: %d\n\n", len(p.Tracks()))
	r.writeTracks(p.Tracks())
	return nil
}

// PlaylistsCreate creates a playlist, optionally seeded with favorites.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	title := strings.TrimSpace(cmd.StringArg("title"))
	if title == "" {
		return fmt.Errorf("%w: title is required", shared.ErrMissingArgument)
	}

	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	p := models.NewPlaylist(title, cmd.String("description"), cmd.Bool("public"))
	if cmd.Bool("from-favorites") {
		tracks, err := favoriteTracks(ctx, store)
		if err != nil {
			return err
		}
		p.SetTracks(tracks)
	}

	if err := store.Playlists.Create(ctx, p); err != nil {
		return err
	}
	r.logger.Info("playlist created", "id", p.ID(), "tracks", len(p.Tracks()))
	return r.writePlain("✓ Created %q (%d tracks)\n  ID: %s\n", p.Title(), len(p.Tracks()), p.ID())
}

// PlaylistsAdd appends a stored track.
func (r *Runner) PlaylistsAdd(ctx context.Context, cmd *cli.Command) error {
	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	t, err := lookupTrack(ctx, store, cmd.StringArg("track"))
	if err != nil {
		return err
	}
	id := cmd.StringArg("id")
	if err := store.Playlists.AddTrack(ctx, id, t); err != nil {
		return err
	}
	return r.writePlain("✓ Added %s\n", t.Label())
}

// PlaylistsRemove removes the track at a 1-based position.
func (r *Runner) PlaylistsRemove(ctx context.Context, cmd *cli.Command) error {
	pos, err := strconv.Atoi(cmd.StringArg("position"))
	if err != nil || pos < 1 {
		return fmt.Errorf("%w: position must be a positive integer", shared.ErrInvalidArgument)
	}

	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Playlists.RemoveTrack(ctx, cmd.StringArg("id"), pos-1); err != nil {
		return err
	}
	return r.writePlain("✓ Removed track %d\n", pos)
}

// PlaylistsDelete deletes a playlist.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	id := cmd.StringArg("id")
	if err := store.Playlists.Delete(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted playlist %s\n", id)
}

// PlaylistsExport writes a playlist to disk.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	p, err := store.Playlists.Get(ctx, cmd.StringArg("id"))
	if err != nil {
		return err
	}

	cover := cmd.String("cover")
	if cover == "" && len(p.Tracks()) > 0 {
		cover = p.Tracks()[0].ArtworkURL
	}

	name := cmd.String("format")
	if name == "" {
		name = string(formatter.FormatMarkdown)
	}
	return r.exportList(ctx, formatter.PlaylistList(p), name, cmd.String("output"), cover)
}

// PlaylistsExportAll exports many playlists concurrently, printing progress as it goes.
func (r *Runner) PlaylistsExportAll(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		playlists, err := store.Playlists.List(ctx)
		if err != nil {
			return err
		}
		for _, p := range playlists {
			ids = append(ids, p.ID())
		}
	}
	if len(ids) == 0 {
		return r.writePlain("No playlists to export\n")
	}

	exporter := tasks.NewBulkExporter(store.Playlists, formatter.Exporter{
		Client: r.httpClient,
		Warn:   func(msg string, kv ...any) { r.logger.Warn(msg, kv...) },
	}, r.logger)

	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := exporter.Export(ctx, progress, ids, tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  r.config.Search.RateLimit,
	})
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlain("\n✓ Exported %d of %d playlists to %s\n", result.SuccessfulExports, result.TotalPlaylists, result.OutputDirectory)
	if result.FailedExports > 0 {
		r.writePlain("⚠ %d failed, see %s\n", result.FailedExports, result.ManifestPath)
	}
	return nil
}
