package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/player"
	"github.com/desertthunder/openbeats/internal/services"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSearchDone MsgKind = iota
	MsgPlayDone
	MsgPlayerEvent
	MsgTick
	MsgNotice
)

type searchResult struct {
	query   string
	tracks  []models.Track
	sources []services.SourceResult
}

// searchDoneMsg is the constructor for [MsgSearchDone]
func searchDoneMsg(query string, tracks []models.Track, sources []services.SourceResult) Msg {
	return Msg{kind: MsgSearchDone, data: searchResult{query, tracks, sources}}
}

// playDoneMsg is the constructor for [MsgPlayDone]; err is nil on success.
func playDoneMsg(err error) Msg {
	return Msg{kind: MsgPlayDone, data: err}
}

// EventMsg is the constructor for [MsgPlayerEvent], used to forward session events into the program.
func EventMsg(ev player.Event) Msg {
	return Msg{kind: MsgPlayerEvent, data: ev}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}

type notice struct {
	text string
	err  error
}

// noticeMsg is the constructor for [MsgNotice], a one-line status update.
func noticeMsg(text string, err error) Msg {
	return Msg{kind: MsgNotice, data: notice{text, err}}
}
