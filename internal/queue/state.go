package queue

import (
	"math/rand/v2"
	"slices"

	"github.com/desertthunder/openbeats/internal/models"
)

// Entry is one slot in the queue. Seq tells apart duplicates of the same track.
type Entry struct {
	Track models.Track
	Seq   uint64
}

// State is the queue value. The zero value is not valid; start from [Empty].
type State struct {
	entries  []Entry
	current  int
	shuffle  bool
	original []Entry
	repeat   RepeatMode
	seq      uint64
}

// Empty returns a queue with no entries.
func Empty() State {
	return State{current: -1}
}

// Len is the number of entries.
func (s State) Len() int { return len(s.entries) }

// Index is the position of the current entry, or -1 when the queue is empty.
func (s State) Index() int { return s.current }

// Shuffled reports whether shuffle is on.
func (s State) Shuffled() bool { return s.shuffle }

// Repeat returns the repeat mode.
func (s State) Repeat() RepeatMode { return s.repeat }

// Tracks returns the entries in play order.
func (s State) Tracks() []models.Track { return tracksOf(s.entries) }

// OriginalOrder returns the pre-shuffle order while shuffle is on, otherwise nil.
func (s State) OriginalOrder() []models.Track {
	if !s.shuffle {
		return nil
	}
	return tracksOf(s.original)
}

// Current returns the now-playing track.
func (s State) Current() (models.Track, bool) {
	if s.current < 0 || s.current >= len(s.entries) {
		return models.Track{}, false
	}
	return s.entries[s.current].Track, true
}

// At returns the track at index i.
func (s State) At(i int) (models.Track, bool) {
	if i < 0 || i >= len(s.entries) {
		return models.Track{}, false
	}
	return s.entries[i].Track, true
}

// PlayTrack selects t. With a non-nil set the queue is replaced by set and t is selected in it,
// appended first when set does not contain it. With a nil set t is selected where it already is,
// or appended and selected.
//
// While shuffle is on a replacement set becomes the new original order and is reshuffled with t pinned first.
func (s State) PlayTrack(t models.Track, set []models.Track, rng *rand.Rand) State {
	n := s.clone()

	if set == nil {
		if i := n.indexOfTrack(t); i >= 0 {
			n.current = i
			return n
		}
		e := n.newEntry(t)
		n.entries = append(n.entries, e)
		if n.shuffle {
			n.original = append(n.original, e)
		}
		n.current = len(n.entries) - 1
		return n
	}

	n.entries = make([]Entry, 0, len(set)+1)
	for _, tr := range set {
		n.entries = append(n.entries, n.newEntry(tr))
	}
	n.current = n.indexOfTrack(t)
	if n.current < 0 {
		n.entries = append(n.entries, n.newEntry(t))
		n.current = len(n.entries) - 1
	}

	n.original = nil
	if n.shuffle {
		n.original = slices.Clone(n.entries)
		n.entries = shuffled(n.entries, n.current, rng)
		n.current = 0
	}
	return n
}

// Next advances. RepeatOne returns the current track without moving; at the end RepeatAll wraps to 0
// and RepeatOff reports no next track, leaving the index alone.
func (s State) Next() (State, models.Track, bool) {
	return s.step(1)
}

// Previous is [State.Next] in the other direction.
func (s State) Previous() (State, models.Track, bool) {
	return s.step(-1)
}

func (s State) step(dir int) (State, models.Track, bool) {
	if len(s.entries) == 0 {
		return s, models.Track{}, false
	}
	if s.repeat == RepeatOne {
		t, ok := s.Current()
		return s, t, ok
	}

	i := s.current + dir
	if i < 0 || i >= len(s.entries) {
		if s.repeat != RepeatAll {
			return s, models.Track{}, false
		}
		i = (i + len(s.entries)) % len(s.entries)
	}

	n := s.clone()
	n.current = i
	return n, n.entries[i].Track, true
}

// ToggleShuffle turns shuffle on or off.
//
// On: the current order is saved, then the current entry is pinned first and the rest are
// Fisher–Yates shuffled with rng; the index becomes 0.
// Off: the saved order is restored and the index follows the current entry, or 0 when it is gone.
func (s State) ToggleShuffle(rng *rand.Rand) State {
	n := s.clone()

	if !n.shuffle {
		n.shuffle = true
		n.original = slices.Clone(n.entries)
		if len(n.entries) > 0 {
			n.entries = shuffled(n.entries, n.current, rng)
			n.current = 0
		}
		return n
	}

	var cur *Entry
	if n.current >= 0 && n.current < len(n.entries) {
		e := n.entries[n.current]
		cur = &e
	}

	n.shuffle = false
	n.entries = n.original
	n.original = nil

	switch {
	case len(n.entries) == 0:
		n.current = -1
	case cur == nil:
		n.current = 0
	default:
		n.current = indexOfSeq(n.entries, cur.Seq)
		if n.current < 0 {
			n.current = max(indexOfID(n.entries, cur.Track.ID), 0)
		}
	}
	return n
}

// ToggleRepeat cycles off, all, one.
func (s State) ToggleRepeat() State {
	n := s.clone()
	n.repeat = n.repeat.Cycle()
	return n
}

// WithRepeat sets the repeat mode directly.
func (s State) WithRepeat(m RepeatMode) State {
	n := s.clone()
	n.repeat = m
	return n
}

// Add appends t without moving the index. On an empty queue t becomes current.
func (s State) Add(t models.Track) State {
	n := s.clone()
	e := n.newEntry(t)
	n.entries = append(n.entries, e)
	if n.shuffle {
		n.original = append(n.original, e)
	}
	if n.current < 0 {
		n.current = 0
	}
	return n
}

// PlayNext inserts t right after the current entry without moving the index. On an empty queue t becomes current.
func (s State) PlayNext(t models.Track) State {
	n := s.clone()
	e := n.newEntry(t)

	if n.current < 0 {
		n.entries = append(n.entries, e)
		if n.shuffle {
			n.original = append(n.original, e)
		}
		n.current = 0
		return n
	}

	if n.shuffle {
		at := indexOfSeq(n.original, n.entries[n.current].Seq)
		if at < 0 {
			n.original = append(n.original, e)
		} else {
			n.original = slices.Insert(n.original, at+1, e)
		}
	}
	n.entries = slices.Insert(n.entries, n.current+1, e)
	return n
}

// Remove drops the entry at i. Removing before the current entry shifts the index down by one so it
// keeps pointing at the same track. Removing the current entry leaves the index on whatever now fills
// the slot, or on the new last entry when the old last one was removed. Out-of-range i is a no-op.
func (s State) Remove(i int) (State, bool) {
	if i < 0 || i >= len(s.entries) {
		return s, false
	}

	n := s.clone()
	removed := n.entries[i]
	n.entries = slices.Delete(n.entries, i, i+1)
	if n.shuffle {
		if j := indexOfSeq(n.original, removed.Seq); j >= 0 {
			n.original = slices.Delete(n.original, j, j+1)
		}
	}

	switch {
	case len(n.entries) == 0:
		n.current = -1
	case i < n.current:
		n.current--
	case n.current >= len(n.entries):
		n.current = len(n.entries) - 1
	}
	return n, true
}

// Clear empties the queue and forgets the saved order. Shuffle and repeat modes are kept.
func (s State) Clear() State {
	n := s.clone()
	n.entries = nil
	n.original = nil
	n.current = -1
	return n
}

func (s State) clone() State {
	n := s
	n.entries = slices.Clone(s.entries)
	n.original = slices.Clone(s.original)
	return n
}

func (s *State) newEntry(t models.Track) Entry {
	s.seq++
	return Entry{Track: t, Seq: s.seq}
}

func (s State) indexOfTrack(t models.Track) int {
	return slices.IndexFunc(s.entries, func(e Entry) bool { return e.Track.Same(t) })
}

func indexOfSeq(entries []Entry, seq uint64) int {
	return slices.IndexFunc(entries, func(e Entry) bool { return e.Seq == seq })
}

func indexOfID(entries []Entry, id string) int {
	return slices.IndexFunc(entries, func(e Entry) bool { return e.Track.ID == id })
}

// shuffled returns entries with entries[pin] first and the rest in Fisher–Yates order.
func shuffled(entries []Entry, pin int, rng *rand.Rand) []Entry {
	if pin < 0 || pin >= len(entries) {
		pin = 0
	}

	rest := make([]Entry, 0, len(entries)-1)
	rest = append(rest, entries[:pin]...)
	rest = append(rest, entries[pin+1:]...)

	for i := len(rest) - 1; i > 0; i-- {
		j := intn(rng, i+1)
		rest[i], rest[j] = rest[j], rest[i]
	}
	return append([]Entry{entries[pin]}, rest...)
}

func intn(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}

func tracksOf(entries []Entry) []models.Track {
	tracks := make([]models.Track, len(entries))
	for i, e := range entries {
		tracks[i] = e.Track
	}
	return tracks
}
