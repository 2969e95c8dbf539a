package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/openbeats/internal/audio"
	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/mpris"
	"github.com/desertthunder/openbeats/internal/player"
	"github.com/desertthunder/openbeats/internal/repositories"
	"github.com/desertthunder/openbeats/internal/shared"
	"github.com/desertthunder/openbeats/internal/ui"
	"github.com/urfave/cli/v3"
)

const sweepInterval = time.Minute

// playback bundles a session with the desktop integration attached to it.
type playback struct {
	session *player.Session
	mpris   *mpris.Server
	logger  *log.Logger
}

// newPlayback wires the audio output, the resolver and history into one session.
//
// MPRIS failures are logged and playback continues without media keys.
func (r *Runner) newPlayback(ctx context.Context, store *repositories.Store, useMPRIS bool) *playback {
	cfg := r.config
	aopts := audio.Options{
		SampleRate: cfg.Player.SampleRate,
		Logger:     shared.WithLogger(r.logger, "component", "audio"),
	}
	if ff, err := audio.NewFFmpeg(cfg.Player.FFmpeg, cfg.Player.SampleRate); err != nil {
		r.logger.Warn("webm and mp4 streams will be offered as links", "error", err)
	} else {
		aopts.Transcoder = ff
	}
	out := audio.NewOutput(aopts)

	opts := player.Options{
		Output:           out,
		Resolver:         r.resolver,
		Logger:           shared.WithLogger(r.logger, "component", "player"),
		Volume:           cfg.Player.Volume,
		RetryUnreachable: cfg.Resolver.RetryUnreachable,
	}
	if store != nil {
		opts.History = store.History
	}

	pb := &playback{session: player.New(opts), logger: r.logger}

	if sweeper, ok := r.resolver.(interface {
		Run(ctx context.Context, interval time.Duration)
	}); ok {
		go sweeper.Run(ctx, sweepInterval)
	}

	if useMPRIS && cfg.MPRIS.Enabled {
		srv := mpris.New(cfg.MPRIS.Name, pb.session, shared.WithLogger(r.logger, "component", "mpris"))
		if err := srv.Start(); err != nil {
			r.logger.Warn("media controls unavailable", "error", err)
		} else {
			pb.mpris = srv
		}
	}
	return pb
}

// sinks returns the event consumers every front end shares, followed by extra.
func (pb *playback) sinks(extra ...func(player.Event)) []func(player.Event) {
	sinks := []func(player.Event){}
	if pb.mpris != nil {
		sinks = append(sinks, func(player.Event) { pb.mpris.Sync() })
	}
	return append(sinks, extra...)
}

func (pb *playback) Close() {
	if pb.mpris != nil {
		if err := pb.mpris.Close(); err != nil {
			pb.logger.Warn("failed to release media controls", "error", err)
		}
	}
	if err := pb.session.Close(); err != nil {
		pb.logger.Warn("failed to close player", "error", err)
	}
}

// forwardEvents hands every event to each sink in order until events is closed.
func forwardEvents(events <-chan player.Event, sinks ...func(player.Event)) {
	for ev := range events {
		for _, sink := range sinks {
			sink(ev)
		}
	}
}

// startingTracks returns the tracks selected by --playlist or --favorites, if any.
func startingTracks(ctx context.Context, cmd *cli.Command, store *repositories.Store) ([]models.Track, error) {
	switch {
	case cmd.String("playlist") != "":
		p, err := store.Playlists.Get(ctx, cmd.String("playlist"))
		if err != nil {
			return nil, err
		}
		return p.Tracks(), nil
	case cmd.Bool("favorites"):
		return favoriteTracks(ctx, store)
	default:
		return nil, nil
	}
}

// Play launches the interactive terminal player.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	if r.search == nil || r.resolver == nil {
		return fmt.Errorf("%w: no sources configured", shared.ErrServiceUnavailable)
	}

	sources, err := models.ParseSources(cmd.String("sources"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	initial, err := startingTracks(ctx, cmd, store)
	if err != nil {
		return err
	}

	pb := r.newPlayback(ctx, store, !cmd.Bool("no-mpris"))
	defer pb.Close()

	if len(initial) > 0 {
		if err := pb.session.PlayFrom(ctx, initial[0], initial); err != nil {
			r.logger.Warn("failed to start playback", "track", initial[0].ID, "error", err)
		}
	}

	model := ui.NewModel(ctx, ui.Options{
		Player:    pb.session,
		Searcher:  r.search,
		Favorites: store.Favorites,
		OpenLink:  shared.OpenBrowser,
		Limit:     r.config.Search.DefaultLimit,
		Sources:   sources,
		Query:     cmd.StringArg("query"),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	go forwardEvents(pb.session.Events(), pb.sinks(func(ev player.Event) {
		p.Send(ui.EventMsg(ev))
	})...)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
