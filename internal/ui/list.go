package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/shared"
)

var (
	_ list.Item = trackItem{}
)

// trackItem wraps [models.Track] to implement [list.Item].
type trackItem struct {
	track   models.Track
	current bool
}

func (i trackItem) FilterValue() string { return i.track.Title + " " + i.track.ArtistLine() }

func (i trackItem) Title() string {
	if i.current {
		return "▶ " + i.track.Title
	}
	return i.track.Title
}

func (i trackItem) Description() string {
	desc := i.track.ArtistLine()
	if i.track.AlbumTitle != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.AlbumTitle)
	}
	return fmt.Sprintf("%s • %s • %s", desc, shared.FormatDuration(i.track.DurationSec), i.track.Source.Label())
}

func trackItems(tracks []models.Track, current int) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = trackItem{track: t, current: i == current}
	}
	return items
}
