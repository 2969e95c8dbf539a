package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/player"
	"github.com/desertthunder/openbeats/internal/queue"
	"github.com/desertthunder/openbeats/internal/services"
)

// ViewState represents the focused pane.
type ViewState int

const (
	SearchView ViewState = iota
	QueueView
)

const (
	seekStep   = 5 * time.Second
	volumeStep = 5
)

// Player is the part of [player.Session] the TUI drives.
type Player interface {
	NowPlaying() player.NowPlaying
	Queue() *queue.Engine
	PlayFrom(ctx context.Context, t models.Track, set []models.Track) error
	PlayIndex(ctx context.Context, i int) error
	Toggle() error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SeekBy(delta time.Duration) error
	SetVolume(percent int) error
	Volume() int
}

// Searcher fans a query out to the catalogs.
type Searcher interface {
	SearchDetailed(ctx context.Context, query string, limit int, sources ...models.Source) ([]models.Track, []services.SourceResult)
}

// Favorites stores liked tracks.
type Favorites interface {
	Add(ctx context.Context, t models.Track) (*models.Favorite, error)
}

// Options configures a [Model]. Favorites and OpenLink are optional.
type Options struct {
	Player    Player
	Searcher  Searcher
	Favorites Favorites
	OpenLink  func(url string) error
	Limit     int
	Sources   []models.Source
	// Query runs a search on start when set.
	Query string
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	opts      Options
	view      ViewState
	width     int
	height    int
	input     textinput.Model
	results   list.Model
	queueList list.Model
	bar       progress.Model
	help      help.Model
	keys      keyMap
	tracks    []models.Track
	np        player.NowPlaying
	searching bool
	status    string
	statusErr bool
	link      string
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	input := textinput.New()
	input.Placeholder = "search free music"
	input.Prompt = "/ "
	input.CharLimit = 200
	input.SetValue(opts.Query)

	results := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	results.Title = "Results"
	results.SetShowHelp(false)
	results.SetFilteringEnabled(false)

	queueList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	queueList.Title = "Queue"
	queueList.SetShowHelp(false)
	queueList.SetFilteringEnabled(false)

	m := &Model{
		ctx:       ctx,
		opts:      opts,
		view:      SearchView,
		input:     input,
		results:   results,
		queueList: queueList,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:      help.New(),
		keys:      newKeyMap(),
	}
	m.np = opts.Player.NowPlaying()
	if opts.Query == "" {
		m.input.Focus()
	}
	return m
}

// Init starts the progress ticker and the initial search, if any.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tick(), textinput.Blink}
	if q := strings.TrimSpace(m.opts.Query); q != "" {
		m.searching = true
		cmds = append(cmds, m.runSearch(q))
	}
	return tea.Batch(cmds...)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		if m.input.Focused() {
			return m.handleInputKeys(msg)
		}
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSearchDone:
		res := msg.data.(searchResult)
		m.searching = false
		m.tracks = res.tracks
		m.results.SetItems(trackItems(res.tracks, -1))
		m.results.Title = fmt.Sprintf("Results for %q", res.query)
		m.results.ResetSelected()
		m.setNotice(summarizeSources(res.sources), false)

	case MsgPlayDone:
		err, _ := msg.data.(error)
		if err != nil {
			m.showError(err)
		}
		m.refresh()

	case MsgPlayerEvent:
		m.handleEvent(msg.data.(player.Event))

	case MsgTick:
		m.refresh()
		return m, tick()

	case MsgNotice:
		n := msg.data.(notice)
		if n.err != nil {
			m.showError(n.err)
		} else {
			m.setNotice(n.text, false)
		}
	}
	return m, nil
}

func (m *Model) handleEvent(ev player.Event) {
	switch ev.Kind {
	case player.EventLoading:
		m.setNotice("Loading "+ev.Track.Label()+"…", false)
	case player.EventPlaying:
		m.setNotice("", false)
		m.link = ""
	case player.EventFailed:
		m.showError(ev.Err)
	case player.EventDegraded:
		m.link = ev.Link
		m.setNotice(fmt.Sprintf("%s can't be streamed here. Press o to open it in the browser.", ev.Track.Label()), true)
	}
	m.refresh()
}

func (m *Model) showError(err error) {
	var terr *player.TrackError
	if errors.As(err, &terr) && terr.Link != "" {
		m.link = terr.Link
		m.setNotice(fmt.Sprintf("%s can't be streamed here. Press o to open it in the browser.", terr.Track.Label()), true)
		return
	}
	if errors.Is(err, player.ErrSuperseded) {
		return
	}
	m.setNotice(err.Error(), true)
}

func (m *Model) setNotice(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

// refresh re-reads now-playing and the queue from the session.
func (m *Model) refresh() {
	m.np = m.opts.Player.NowPlaying()
	snap := m.opts.Player.Queue().Snapshot()
	sel := m.queueList.Index()
	m.queueList.SetItems(trackItems(snap.Tracks, snap.Index))
	if sel < len(snap.Tracks) {
		m.queueList.Select(sel)
	}
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		q := strings.TrimSpace(m.input.Value())
		if q == "" {
			return m, nil
		}
		m.input.Blur()
		m.view = SearchView
		m.searching = true
		m.setNotice("Searching…", false)
		return m, m.runSearch(q)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.opts.Player

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.search):
		m.input.SetValue("")
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.tab):
		if m.view == SearchView {
			m.view = QueueView
		} else {
			m.view = SearchView
		}
		return m, nil
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return m, nil
	case key.Matches(msg, m.keys.enter):
		return m, m.playSelected()
	case key.Matches(msg, m.keys.enqueue):
		if t, ok := m.selectedResult(); ok && m.view == SearchView {
			p.Queue().Add(t)
			m.setNotice("Queued "+t.Label(), false)
			m.refresh()
		}
		return m, nil
	case key.Matches(msg, m.keys.remove):
		if m.view == QueueView && p.Queue().Remove(m.queueList.Index()) {
			m.refresh()
		}
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		return m, m.control(p.Toggle)
	case key.Matches(msg, m.keys.next):
		return m, m.async(p.Next)
	case key.Matches(msg, m.keys.previous):
		return m, m.async(p.Previous)
	case key.Matches(msg, m.keys.forward):
		return m, m.control(func() error { return p.SeekBy(seekStep) })
	case key.Matches(msg, m.keys.rewind):
		return m, m.control(func() error { return p.SeekBy(-seekStep) })
	case key.Matches(msg, m.keys.louder):
		return m, m.control(func() error { return p.SetVolume(p.Volume() + volumeStep) })
	case key.Matches(msg, m.keys.quieter):
		return m, m.control(func() error { return p.SetVolume(p.Volume() - volumeStep) })
	case key.Matches(msg, m.keys.shuffle):
		on := p.Queue().ToggleShuffle()
		m.setNotice(fmt.Sprintf("Shuffle %s", onOff(on)), false)
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.repeat):
		mode := p.Queue().ToggleRepeat()
		m.setNotice(fmt.Sprintf("Repeat %s", mode), false)
		return m, nil
	case key.Matches(msg, m.keys.favorite):
		return m, m.favorite()
	case key.Matches(msg, m.keys.open):
		return m, m.openLink()
	}

	return m.updateLists(msg)
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case SearchView:
		m.results, cmd = m.results.Update(msg)
	case QueueView:
		m.queueList, cmd = m.queueList.Update(msg)
	}
	return m, cmd
}

func (m *Model) selectedResult() (models.Track, bool) {
	if item, ok := m.results.SelectedItem().(trackItem); ok {
		return item.track, true
	}
	return models.Track{}, false
}

// playSelected plays the highlighted result with the whole result list as context,
// or jumps to the highlighted queue entry.
func (m *Model) playSelected() tea.Cmd {
	p := m.opts.Player
	switch m.view {
	case SearchView:
		t, ok := m.selectedResult()
		if !ok {
			return nil
		}
		set := append([]models.Track(nil), m.tracks...)
		return m.async(func(ctx context.Context) error { return p.PlayFrom(ctx, t, set) })
	case QueueView:
		i := m.queueList.Index()
		return m.async(func(ctx context.Context) error { return p.PlayIndex(ctx, i) })
	}
	return nil
}

func (m *Model) runSearch(q string) tea.Cmd {
	return func() tea.Msg {
		tracks, sources := m.opts.Searcher.SearchDetailed(m.ctx, q, m.opts.Limit, m.opts.Sources...)
		return searchDoneMsg(q, tracks, sources)
	}
}

// async runs a blocking session call off the update loop.
func (m *Model) async(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return playDoneMsg(fn(m.ctx))
	}
}

// control runs a non-blocking session call and reports only failures.
func (m *Model) control(fn func() error) tea.Cmd {
	if err := fn(); err != nil {
		if errors.Is(err, player.ErrNoTrack) {
			m.setNotice("Nothing is playing", true)
			return nil
		}
		m.showError(err)
		return nil
	}
	m.refresh()
	return nil
}

func (m *Model) favorite() tea.Cmd {
	if m.opts.Favorites == nil {
		return nil
	}

	var t models.Track
	if m.view == SearchView {
		sel, ok := m.selectedResult()
		if !ok {
			return nil
		}
		t = sel
	} else if m.np.Track != nil {
		t = *m.np.Track
	} else {
		return nil
	}

	return func() tea.Msg {
		if _, err := m.opts.Favorites.Add(m.ctx, t); err != nil {
			return noticeMsg("", fmt.Errorf("failed to save favorite: %w", err))
		}
		return noticeMsg("Saved "+t.Label()+" to favorites", nil)
	}
}

func (m *Model) openLink() tea.Cmd {
	if m.link == "" || m.opts.OpenLink == nil {
		return nil
	}
	link := m.opts.OpenLink
	url := m.link
	return func() tea.Msg {
		if err := link(url); err != nil {
			return noticeMsg("", fmt.Errorf("failed to open browser: %w", err))
		}
		return noticeMsg("Opened "+url, nil)
	}
}

func (m *Model) resize() {
	footer := 6
	if m.help.ShowAll {
		footer += 4
	}
	h := max(m.height-footer-2, 3)
	w := max(m.width-4, 20)
	m.results.SetSize(w, h)
	m.queueList.SetSize(w, h)
	m.input.Width = w - 4
	m.bar.Width = max(w-20, 10)
	m.help.Width = w
}

// View renders the focused pane over the now-playing footer.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch m.view {
	case SearchView:
		if m.searching {
			b.WriteString(styles.help.Render("Searching…"))
		} else if len(m.tracks) == 0 {
			b.WriteString(styles.help.Render("No results. Press / to search."))
		} else {
			b.WriteString(m.results.View())
		}
	case QueueView:
		if len(m.queueList.Items()) == 0 {
			b.WriteString(styles.help.Render("The queue is empty."))
		} else {
			b.WriteString(m.queueList.View())
		}
	}

	b.WriteString("\n")
	b.WriteString(styles.footer.Render(m.renderNowPlaying()))
	b.WriteString("\n")
	if m.status != "" {
		if m.statusErr {
			b.WriteString(styles.err.Render(m.status))
		} else {
			b.WriteString(styles.ok.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderNowPlaying() string {
	np := m.np
	if np.Track == nil {
		return styles.help.Render("Nothing playing")
	}

	icon := "▶"
	switch np.Status {
	case player.StatusPaused:
		icon = "⏸"
	case player.StatusStopped:
		icon = "⏹"
	}

	ratio := 0.0
	if np.Duration > 0 {
		ratio = min(float64(np.Position)/float64(np.Duration), 1)
	}

	snap := m.opts.Player.Queue().Snapshot()
	flags := fmt.Sprintf("vol %d%%  shuffle %s  repeat %s", np.Volume, onOff(snap.Shuffle), snap.Repeat)

	return fmt.Sprintf("%s %s\n%s %s\n%s",
		icon, styles.current.Render(np.Track.Label()),
		m.bar.ViewAs(ratio), np.Progress(),
		styles.help.Render(flags),
	)
}

func summarizeSources(results []services.SourceResult) string {
	var parts, failed []string
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Source.Label())
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %d", r.Source.Label(), r.Count))
	}
	out := strings.Join(parts, " • ")
	if len(failed) > 0 {
		out += " (unavailable: " + strings.Join(failed, ", ") + ")"
	}
	return out
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
