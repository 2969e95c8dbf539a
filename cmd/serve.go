package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/desertthunder/openbeats/internal/player"
	"github.com/desertthunder/openbeats/internal/server"
	"github.com/desertthunder/openbeats/internal/shared"
	"github.com/urfave/cli/v3"
)

// listenAddr applies the --host and --port overrides to the configured address.
func (r *Runner) listenAddr(cmd *cli.Command) string {
	host, port := r.config.Server.Host, r.config.Server.Port
	if h := cmd.String("host"); h != "" {
		host = h
	}
	if p := cmd.Int("port"); p > 0 {
		port = p
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// newRouter builds the remote-control router. Loopback listeners also reject foreign Host headers.
func (r *Runner) newRouter(ctrl server.Controller, addr string) *server.BasicRouter {
	logger := shared.WithLogger(r.logger, "component", "api")

	router := server.NewBasicRouter()
	router.Use(server.Recover(logger), server.Logging(logger))
	if server.IsLoopbackHost(addr) {
		router.Use(server.LocalOnly)
	}
	server.NewAPI(ctrl, r.search, logger, r.config.Search.DefaultLimit).Register(router)
	return router
}

// Serve runs a headless player controlled through the HTTP API and media keys until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	pb := r.newPlayback(ctx, store, !cmd.Bool("no-mpris"))
	defer pb.Close()

	go forwardEvents(pb.session.Events(), pb.sinks(r.logEvent)...)

	addr := r.listenAddr(cmd)
	r.logger.Info("remote control ready", "addr", addr, "mpris", pb.mpris != nil)
	return server.Serve(ctx, addr, r.newRouter(pb.session, addr), r.logger)
}

func (r *Runner) logEvent(ev player.Event) {
	switch ev.Kind {
	case player.EventFailed:
		r.logger.Warn("playback failed", "track", ev.Track.ID, "error", ev.Err)
	case player.EventDegraded:
		r.logger.Warn("stream unavailable", "track", ev.Track.ID, "link", ev.Link)
	case player.EventVolume:
		r.logger.Debug("volume", "percent", ev.Volume)
	case player.EventSeeked:
		r.logger.Debug("seeked", "position", ev.Position)
	default:
		r.logger.Info(ev.Kind.String(), "track", ev.Track.Label())
	}
}
