package queue

import (
	"math/rand/v2"
	"sync"

	"github.com/desertthunder/openbeats/internal/models"
)

// Snapshot is a read-only view of the queue for callers outside the session.
type Snapshot struct {
	Tracks  []models.Track `json:"tracks"`
	Index   int            `json:"index"`
	Shuffle bool           `json:"shuffle"`
	Repeat  RepeatMode     `json:"repeat"`
}

// Snapshot captures s.
func (s State) Snapshot() Snapshot {
	return Snapshot{Tracks: s.Tracks(), Index: s.current, Shuffle: s.shuffle, Repeat: s.repeat}
}

// Engine is the single writer of a [State]. Each method applies one transition atomically.
type Engine struct {
	mu    sync.Mutex
	state State
	rng   *rand.Rand
}

// NewEngine creates an empty queue. A nil rng seeds one from the runtime.
func NewEngine(rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Engine{state: Empty(), rng: rng}
}

// State returns the current value.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns a view of the current value.
func (e *Engine) Snapshot() Snapshot {
	return e.State().Snapshot()
}

// Current returns the now-playing track.
func (e *Engine) Current() (models.Track, bool) {
	return e.State().Current()
}

func (e *Engine) apply(fn func(State) State) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = fn(e.state)
	return e.state
}

// PlayTrack selects t, replacing the queue with set when set is non-nil.
func (e *Engine) PlayTrack(t models.Track, set []models.Track) models.Track {
	s := e.apply(func(s State) State { return s.PlayTrack(t, set, e.rng) })
	cur, _ := s.Current()
	return cur
}

// Next advances and returns the track to play, or false when playback should stop.
func (e *Engine) Next() (models.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, t, ok := e.state.Next()
	e.state = n
	return t, ok
}

// Previous steps back and returns the track to play, or false at the start with repeat off.
func (e *Engine) Previous() (models.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, t, ok := e.state.Previous()
	e.state = n
	return t, ok
}

// Select makes the entry at i current.
func (e *Engine) Select(i int) (models.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.state.At(i)
	if !ok {
		return models.Track{}, false
	}
	n := e.state.clone()
	n.current = i
	e.state = n
	return t, true
}

// ToggleShuffle flips shuffle and reports the new setting.
func (e *Engine) ToggleShuffle() bool {
	return e.apply(func(s State) State { return s.ToggleShuffle(e.rng) }).Shuffled()
}

// ToggleRepeat cycles the repeat mode and returns the new one.
func (e *Engine) ToggleRepeat() RepeatMode {
	return e.apply(State.ToggleRepeat).Repeat()
}

// SetRepeat sets the repeat mode.
func (e *Engine) SetRepeat(m RepeatMode) {
	e.apply(func(s State) State { return s.WithRepeat(m) })
}

// Add appends t.
func (e *Engine) Add(t models.Track) {
	e.apply(func(s State) State { return s.Add(t) })
}

// PlayNext inserts t after the current entry.
func (e *Engine) PlayNext(t models.Track) {
	e.apply(func(s State) State { return s.PlayNext(t) })
}

// Remove drops the entry at i and reports whether i was valid.
func (e *Engine) Remove(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.state.Remove(i)
	e.state = n
	return ok
}

// Clear empties the queue.
func (e *Engine) Clear() {
	e.apply(State.Clear)
}
