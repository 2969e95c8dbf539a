package mpris

import (
	"math"
	"strings"

	"github.com/desertthunder/openbeats/internal/player"
	"github.com/desertthunder/openbeats/internal/queue"
	"github.com/godbus/dbus/v5"
)

const (
	objectPath  = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	rootIface   = "org.mpris.MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"
	busPrefix   = "org.mpris.MediaPlayer2."
	noTrack     = dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")
	trackPrefix = "/org/openbeats/track/"
	usPerSecond = 1_000_000
)

func playbackStatus(s player.Status) string {
	switch s {
	case player.StatusPlaying:
		return "Playing"
	case player.StatusPaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

func loopStatus(m queue.RepeatMode) string {
	switch m {
	case queue.RepeatOne:
		return "Track"
	case queue.RepeatAll:
		return "Playlist"
	default:
		return "None"
	}
}

func parseLoopStatus(s string) (queue.RepeatMode, bool) {
	switch s {
	case "None":
		return queue.RepeatOff, true
	case "Track":
		return queue.RepeatOne, true
	case "Playlist":
		return queue.RepeatAll, true
	default:
		return queue.RepeatOff, false
	}
}

// trackPath turns a track id into a valid object path element.
func trackPath(id string) dbus.ObjectPath {
	var b strings.Builder
	b.WriteString(trackPrefix)
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return dbus.ObjectPath(b.String())
}

// metadata maps the loaded track onto xesam/mpris keys.
func metadata(np player.NowPlaying) map[string]dbus.Variant {
	if np.Track == nil {
		return map[string]dbus.Variant{"mpris:trackid": dbus.MakeVariant(noTrack)}
	}

	t := np.Track
	m := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(trackPath(t.ID)),
		"mpris:length":  dbus.MakeVariant(int64(np.Duration) * usPerSecond),
		"xesam:title":   dbus.MakeVariant(t.Title),
		"xesam:artist":  dbus.MakeVariant(t.Artists),
	}
	if t.AlbumTitle != "" {
		m["xesam:album"] = dbus.MakeVariant(t.AlbumTitle)
	}
	if t.ArtworkURL != "" {
		m["mpris:artUrl"] = dbus.MakeVariant(t.ArtworkURL)
	}
	return m
}

// volumeFraction converts percent to the 0..1 scale MPRIS uses.
func volumeFraction(percent int) float64 { return float64(percent) / 100 }

func volumePercent(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(1, f)) * 100))
}
