package mpris

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/openbeats/internal/player"
	"github.com/desertthunder/openbeats/internal/queue"
	"github.com/desertthunder/openbeats/internal/shared"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

var ErrNameTaken = errors.New("mpris bus name already taken")

// Controller is the part of a playback session media keys drive.
type Controller interface {
	Toggle() error
	Pause() error
	Resume() error
	Stop() error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(pos time.Duration) error
	SeekBy(delta time.Duration) error
	SetVolume(percent int) error
	NowPlaying() player.NowPlaying
	Queue() *queue.Engine
}

// Server owns one bus connection and the exported MediaPlayer2 object.
type Server struct {
	mu     sync.Mutex
	name   string
	ctrl   Controller
	logger *log.Logger
	conn   *dbus.Conn
	props  *prop.Properties
	last   player.NowPlaying
}

// New prepares a server that will claim org.mpris.MediaPlayer2.<name>.
func New(name string, ctrl Controller, logger *log.Logger) *Server {
	if name == "" {
		name = "openbeats"
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Server{name: name, ctrl: ctrl, logger: logger}
}

// BusName is the well-known name the server requests.
func (s *Server) BusName() string { return busPrefix + s.name }

// Start connects to the session bus and exports the player.
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("session bus connection failed: %w", err)
	}
	if err := s.export(conn); err != nil {
		conn.Close()
		return err
	}

	reply, err := conn.RequestName(s.BusName(), dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to request %s: %w", s.BusName(), err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return fmt.Errorf("%w: %s", ErrNameTaken, s.BusName())
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("MPRIS player registered", "name", s.BusName())
	return nil
}

func (s *Server) export(conn *dbus.Conn) error {
	root := &mediaPlayer{identity: s.name}
	pl := &playerObject{ctrl: s.ctrl, sync: s.Sync, seeked: s.emitSeeked}

	if err := conn.Export(root, objectPath, rootIface); err != nil {
		return fmt.Errorf("failed to export %s: %w", rootIface, err)
	}
	if err := conn.Export(pl, objectPath, playerIface); err != nil {
		return fmt.Errorf("failed to export %s: %w", playerIface, err)
	}

	props, err := prop.Export(conn, objectPath, s.propMap())
	if err != nil {
		return fmt.Errorf("failed to export properties: %w", err)
	}

	node := &introspect.Node{
		Name: string(objectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{Name: rootIface, Methods: introspect.Methods(root), Properties: props.Introspection(rootIface)},
			{Name: playerIface, Methods: introspect.Methods(pl), Properties: props.Introspection(playerIface)},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), objectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection: %w", err)
	}

	s.mu.Lock()
	s.props = props
	s.mu.Unlock()
	return nil
}

func (s *Server) propMap() prop.Map {
	np := s.ctrl.NowPlaying()
	q := s.ctrl.Queue().Snapshot()
	s.last = np

	return prop.Map{
		rootIface: {
			"CanQuit":             {Value: false, Emit: prop.EmitConst},
			"CanRaise":            {Value: false, Emit: prop.EmitConst},
			"HasTrackList":        {Value: false, Emit: prop.EmitConst},
			"Identity":            {Value: s.name, Emit: prop.EmitConst},
			"SupportedUriSchemes": {Value: []string{}, Emit: prop.EmitConst},
			"SupportedMimeTypes":  {Value: []string{}, Emit: prop.EmitConst},
		},
		playerIface: {
			"PlaybackStatus": {Value: playbackStatus(np.Status), Emit: prop.EmitTrue},
			"LoopStatus":     {Value: loopStatus(q.Repeat), Writable: true, Emit: prop.EmitTrue, Callback: s.setLoopStatus},
			"Shuffle":        {Value: q.Shuffle, Writable: true, Emit: prop.EmitTrue, Callback: s.setShuffle},
			"Volume":         {Value: volumeFraction(np.Volume), Writable: true, Emit: prop.EmitTrue, Callback: s.setVolume},
			"Metadata":       {Value: metadata(np), Emit: prop.EmitTrue},
			"Position":       {Value: int64(np.Position) * usPerSecond, Emit: prop.EmitFalse},
			"Rate":           {Value: 1.0, Emit: prop.EmitConst},
			"MinimumRate":    {Value: 1.0, Emit: prop.EmitConst},
			"MaximumRate":    {Value: 1.0, Emit: prop.EmitConst},
			"CanGoNext":      {Value: true, Emit: prop.EmitConst},
			"CanGoPrevious":  {Value: true, Emit: prop.EmitConst},
			"CanPlay":        {Value: true, Emit: prop.EmitConst},
			"CanPause":       {Value: true, Emit: prop.EmitConst},
			"CanSeek":        {Value: true, Emit: prop.EmitConst},
			"CanControl":     {Value: true, Emit: prop.EmitConst},
		},
	}
}

func (s *Server) setLoopStatus(c *prop.Change) *dbus.Error {
	v, _ := c.Value.(string)
	m, ok := parseLoopStatus(v)
	if !ok {
		return prop.ErrInvalidArg
	}
	s.ctrl.Queue().SetRepeat(m)
	return nil
}

func (s *Server) setShuffle(c *prop.Change) *dbus.Error {
	want, ok := c.Value.(bool)
	if !ok {
		return prop.ErrInvalidArg
	}
	if s.ctrl.Queue().Snapshot().Shuffle != want {
		s.ctrl.Queue().ToggleShuffle()
	}
	return nil
}

func (s *Server) setVolume(c *prop.Change) *dbus.Error {
	f, ok := c.Value.(float64)
	if !ok {
		return prop.ErrInvalidArg
	}
	if err := s.ctrl.SetVolume(volumePercent(f)); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Sync pushes the session's current state to the bus. Call it after every session event.
func (s *Server) Sync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.props == nil {
		return
	}

	np := s.ctrl.NowPlaying()
	q := s.ctrl.Queue().Snapshot()

	s.props.SetMust(playerIface, "PlaybackStatus", playbackStatus(np.Status))
	s.props.SetMust(playerIface, "LoopStatus", loopStatus(q.Repeat))
	s.props.SetMust(playerIface, "Shuffle", q.Shuffle)
	s.props.SetMust(playerIface, "Volume", volumeFraction(np.Volume))
	s.props.SetMust(playerIface, "Position", int64(np.Position)*usPerSecond)
	if trackChanged(s.last, np) {
		s.props.SetMust(playerIface, "Metadata", metadata(np))
	}
	s.last = np
}

func trackChanged(prev, cur player.NowPlaying) bool {
	if prev.Track == nil || cur.Track == nil {
		return prev.Track != cur.Track
	}
	return prev.Track.ID != cur.Track.ID || prev.Duration != cur.Duration
}

func (s *Server) emitSeeked() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return
	}
	pos := int64(s.ctrl.NowPlaying().Position) * usPerSecond
	if err := conn.Emit(objectPath, playerIface+".Seeked", pos); err != nil {
		s.logger.Debug("failed to emit Seeked", "error", err)
	}
}

// Close releases the bus name and connection.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.ReleaseName(s.BusName()); err != nil {
		s.logger.Debug("failed to release bus name", "error", err)
	}
	err := s.conn.Close()
	s.conn, s.props = nil, nil
	return err
}
