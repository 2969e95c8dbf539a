package mpris

import (
	"context"
	"errors"
	"time"

	"github.com/desertthunder/openbeats/internal/player"
	"github.com/godbus/dbus/v5"
)

// mediaPlayer implements org.mpris.MediaPlayer2. The application cannot be raised or quit remotely.
type mediaPlayer struct {
	identity string
}

func (m *mediaPlayer) Raise() *dbus.Error { return nil }
func (m *mediaPlayer) Quit() *dbus.Error  { return nil }

// playerObject implements org.mpris.MediaPlayer2.Player.
type playerObject struct {
	ctrl   Controller
	sync   func()
	seeked func()
}

func (p *playerObject) done(err error) *dbus.Error {
	if p.sync != nil {
		p.sync()
	}
	if err == nil || errors.Is(err, player.ErrNoTrack) {
		return nil
	}
	return dbus.MakeFailedError(err)
}

func (p *playerObject) Next() *dbus.Error {
	return p.done(p.ctrl.Next(context.Background()))
}

func (p *playerObject) Previous() *dbus.Error {
	return p.done(p.ctrl.Previous(context.Background()))
}

func (p *playerObject) Pause() *dbus.Error     { return p.done(p.ctrl.Pause()) }
func (p *playerObject) PlayPause() *dbus.Error { return p.done(p.ctrl.Toggle()) }
func (p *playerObject) Stop() *dbus.Error      { return p.done(p.ctrl.Stop()) }
func (p *playerObject) Play() *dbus.Error      { return p.done(p.ctrl.Resume()) }

// Seek moves by offset microseconds.
func (p *playerObject) Seek(offset int64) *dbus.Error {
	err := p.ctrl.SeekBy(time.Duration(offset) * time.Microsecond)
	if err == nil && p.seeked != nil {
		p.seeked()
	}
	return p.done(err)
}

// SetPosition is ignored unless trackID names the loaded track.
func (p *playerObject) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	np := p.ctrl.NowPlaying()
	if np.Track == nil || trackPath(np.Track.ID) != trackID || position < 0 {
		return nil
	}
	if int64(np.Duration) > 0 && position > int64(np.Duration)*usPerSecond {
		return nil
	}

	err := p.ctrl.Seek(time.Duration(position) * time.Microsecond)
	if err == nil && p.seeked != nil {
		p.seeked()
	}
	return p.done(err)
}

// OpenUri is unsupported; tracks are chosen through search.
func (p *playerObject) OpenUri(string) *dbus.Error {
	return dbus.MakeFailedError(errors.New("opening URIs is not supported"))
}
