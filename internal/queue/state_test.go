package queue

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/desertthunder/openbeats/internal/models"
	tu "github.com/desertthunder/openbeats/internal/testing"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// queueOf builds a state holding tracks with index at current.
func queueOf(tracks []models.Track, current int) State {
	return Empty().PlayTrack(tracks[current], tracks, nil)
}

func assertOrder(t *testing.T, s State, want ...string) {
	t.Helper()
	got := tu.IDs(s.Tracks())
	if !slices.Equal(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
}

func TestScenarios(t *testing.T) {
	tracks := tu.MakeTracks(models.SourceJamendo, 4)
	t1, t2, t3, t4 := tracks[0], tracks[1], tracks[2], tracks[3]

	t.Run("next walks to the end then stops", func(t *testing.T) {
		s := queueOf([]models.Track{t1, t2, t3}, 0)

		s, got, ok := s.Next()
		if !ok || got.ID != t2.ID || s.Index() != 1 {
			t.Fatalf("expected T2 at 1, got %s at %d", got.ID, s.Index())
		}
		s, got, ok = s.Next()
		if !ok || got.ID != t3.ID || s.Index() != 2 {
			t.Fatalf("expected T3 at 2, got %s at %d", got.ID, s.Index())
		}
		s, _, ok = s.Next()
		if ok || s.Index() != 2 {
			t.Errorf("expected no next with index 2, got ok=%v index=%d", ok, s.Index())
		}
	})

	t.Run("shuffle pins current then restores", func(t *testing.T) {
		s := queueOf([]models.Track{t1, t2, t3}, 0)

		s = s.ToggleShuffle(seeded(1))
		if cur, _ := s.Current(); cur.ID != t1.ID || s.Index() != 0 || !s.Shuffled() {
			t.Fatalf("expected T1 pinned at 0, got %s at %d", cur.ID, s.Index())
		}
		assertOrderSet(t, s, t1.ID, t2.ID, t3.ID)

		s = s.ToggleShuffle(seeded(1))
		assertOrder(t, s, t1.ID, t2.ID, t3.ID)
		if s.Index() != 0 || s.Shuffled() {
			t.Errorf("expected index 0 unshuffled, got %d %v", s.Index(), s.Shuffled())
		}
	})

	t.Run("playNext inserts after current", func(t *testing.T) {
		s := queueOf([]models.Track{t1, t2, t3}, 1)
		s = s.PlayNext(t4)

		assertOrder(t, s, t1.ID, t2.ID, t4.ID, t3.ID)
		if s.Index() != 1 {
			t.Errorf("expected index 1, got %d", s.Index())
		}
	})
}

func assertOrderSet(t *testing.T, s State, want ...string) {
	t.Helper()
	got := tu.IDs(s.Tracks())
	slices.Sort(got)
	w := slices.Clone(want)
	slices.Sort(w)
	if !slices.Equal(got, w) {
		t.Errorf("expected permutation of %v, got %v", want, s.Tracks())
	}
}

func TestProperties(t *testing.T) {
	rng := seeded(42)

	for trial := range 200 {
		n := 1 + rng.IntN(12)
		tracks := tu.MakeTracks(models.SourceAudius, n)
		start := rng.IntN(n)
		base := queueOf(tracks, start)

		t.Run("repeat off reaches the end then stops", func(t *testing.T) {
			s := base
			var ok bool
			for range n - 1 - start {
				s, _, ok = s.Next()
				if !ok {
					t.Fatalf("trial %d: unexpected stop", trial)
				}
			}
			if s.Index() != n-1 {
				t.Fatalf("trial %d: expected last index %d, got %d", trial, n-1, s.Index())
			}
			s, _, ok = s.Next()
			if ok || s.Index() != n-1 {
				t.Errorf("trial %d: expected no next at %d, got ok=%v index=%d", trial, n-1, ok, s.Index())
			}
		})

		t.Run("repeat all returns to start after len steps", func(t *testing.T) {
			s := base.WithRepeat(RepeatAll)
			for range n {
				s, _, _ = s.Next()
			}
			if s.Index() != start {
				t.Errorf("trial %d: expected %d, got %d", trial, start, s.Index())
			}
		})

		t.Run("repeat one is a fixed point", func(t *testing.T) {
			s := base.WithRepeat(RepeatOne)
			cur, _ := s.Current()

			s, next, ok := s.Next()
			if !ok || next.ID != cur.ID || s.Index() != start {
				t.Errorf("trial %d: next moved under repeat one", trial)
			}
			s, prev, ok := s.Previous()
			if !ok || prev.ID != cur.ID || s.Index() != start {
				t.Errorf("trial %d: previous moved under repeat one", trial)
			}
		})

		t.Run("shuffle round trip", func(t *testing.T) {
			before := tu.IDs(base.Tracks())
			cur, _ := base.Current()

			s := base.ToggleShuffle(rng).ToggleShuffle(rng)
			if !slices.Equal(tu.IDs(s.Tracks()), before) {
				t.Errorf("trial %d: order not restored", trial)
			}
			if after, _ := s.Current(); after.ID != cur.ID {
				t.Errorf("trial %d: current moved from %s to %s", trial, cur.ID, after.ID)
			}
		})

		t.Run("remove before current keeps the current track", func(t *testing.T) {
			if start == 0 {
				return
			}
			i := rng.IntN(start)
			cur, _ := base.Current()

			s, ok := base.Remove(i)
			if !ok || s.Index() != start-1 {
				t.Errorf("trial %d: expected index %d, got %d", trial, start-1, s.Index())
			}
			if after, _ := s.Current(); after.ID != cur.ID {
				t.Errorf("trial %d: current changed from %s to %s", trial, cur.ID, after.ID)
			}
		})
	}
}

func TestPlayTrack(t *testing.T) {
	tracks := tu.MakeTracks(models.SourceFMA, 4)
	t1, t2, t3, t4 := tracks[0], tracks[1], tracks[2], tracks[3]

	t.Run("set replaces entries and selects", func(t *testing.T) {
		s := queueOf([]models.Track{t4}, 0)
		s = s.PlayTrack(t2, []models.Track{t1, t2, t3}, nil)

		assertOrder(t, s, t1.ID, t2.ID, t3.ID)
		if s.Index() != 1 {
			t.Errorf("expected index 1, got %d", s.Index())
		}
	})

	t.Run("track missing from set is appended and selected", func(t *testing.T) {
		s := Empty().PlayTrack(t4, []models.Track{t1, t2}, nil)
		assertOrder(t, s, t1.ID, t2.ID, t4.ID)
		if s.Index() != 2 {
			t.Errorf("expected index 2, got %d", s.Index())
		}
	})

	t.Run("existing track is selected in place", func(t *testing.T) {
		s := queueOf([]models.Track{t1, t2, t3}, 0).PlayTrack(t3, nil, nil)
		if s.Index() != 2 || s.Len() != 3 {
			t.Errorf("expected index 2 of 3, got %d of %d", s.Index(), s.Len())
		}
	})

	t.Run("new track is appended and selected", func(t *testing.T) {
		s := queueOf([]models.Track{t1, t2}, 0).PlayTrack(t3, nil, nil)
		assertOrder(t, s, t1.ID, t2.ID, t3.ID)
		if s.Index() != 2 {
			t.Errorf("expected index 2, got %d", s.Index())
		}
	})

	t.Run("replacement while shuffled reshuffles the new set", func(t *testing.T) {
		s := queueOf([]models.Track{t1}, 0).ToggleShuffle(seeded(3))
		s = s.PlayTrack(t3, []models.Track{t1, t2, t3, t4}, seeded(3))

		if cur, _ := s.Current(); cur.ID != t3.ID || s.Index() != 0 {
			t.Errorf("expected T3 pinned first, got %s at %d", cur.ID, s.Index())
		}
		s = s.ToggleShuffle(seeded(3))
		assertOrder(t, s, t1.ID, t2.ID, t3.ID, t4.ID)
		if s.Index() != 2 {
			t.Errorf("expected index 2 after unshuffle, got %d", s.Index())
		}
	})

	t.Run("receiver is not mutated", func(t *testing.T) {
		base := queueOf([]models.Track{t1, t2}, 0)
		_ = base.PlayTrack(t3, nil, nil)
		_, _, _ = base.Next()
		_, _ = base.Remove(0)

		assertOrder(t, base, t1.ID, t2.ID)
		if base.Index() != 0 {
			t.Errorf("expected base index 0, got %d", base.Index())
		}
	})
}

func TestNavigation(t *testing.T) {
	tracks := tu.MakeTracks(models.SourceJamendo, 3)

	t.Run("empty queue has no next or previous", func(t *testing.T) {
		s := Empty()
		if _, _, ok := s.Next(); ok {
			t.Error("expected no next")
		}
		if _, _, ok := s.Previous(); ok {
			t.Error("expected no previous")
		}
		if _, ok := s.Current(); ok || s.Index() != -1 {
			t.Error("expected no current track")
		}
	})

	t.Run("previous at start", func(t *testing.T) {
		s := queueOf(tracks, 0)
		if s2, _, ok := s.Previous(); ok || s2.Index() != 0 {
			t.Errorf("expected no previous with repeat off")
		}

		s = s.WithRepeat(RepeatAll)
		s, got, ok := s.Previous()
		if !ok || got.ID != tracks[2].ID || s.Index() != 2 {
			t.Errorf("expected wrap to last, got %s at %d", got.ID, s.Index())
		}
	})

	t.Run("repeat cycle", func(t *testing.T) {
		s := Empty()
		want := []RepeatMode{RepeatAll, RepeatOne, RepeatOff}
		for _, w := range want {
			s = s.ToggleRepeat()
			if s.Repeat() != w {
				t.Errorf("expected %s, got %s", w, s.Repeat())
			}
		}
	})
}

func TestMutations(t *testing.T) {
	tracks := tu.MakeTracks(models.SourceJamendo, 5)
	t1, t2, t3, t4, t5 := tracks[0], tracks[1], tracks[2], tracks[3], tracks[4]

	t.Run("Add keeps index", func(t *testing.T) {
		s := queueOf([]models.Track{t1, t2}, 1).Add(t3)
		assertOrder(t, s, t1.ID, t2.ID, t3.ID)
		if s.Index() != 1 {
			t.Errorf("expected index 1, got %d", s.Index())
		}
	})

	t.Run("Add and PlayNext on empty queue select the entry", func(t *testing.T) {
		if s := Empty().Add(t1); s.Index() != 0 {
			t.Errorf("expected index 0, got %d", s.Index())
		}
		if s := Empty().PlayNext(t1); s.Index() != 0 || s.Len() != 1 {
			t.Errorf("expected single selected entry, got %d of %d", s.Index(), s.Len())
		}
	})

	t.Run("duplicates are allowed", func(t *testing.T) {
		s := queueOf([]models.Track{t1}, 0).Add(t1)
		assertOrder(t, s, t1.ID, t1.ID)
	})

	t.Run("Remove current leaves index on the next occupant", func(t *testing.T) {
		s, ok := queueOf([]models.Track{t1, t2, t3}, 1).Remove(1)
		if !ok {
			t.Fatal("expected remove to succeed")
		}
		if cur, _ := s.Current(); cur.ID != t3.ID || s.Index() != 1 {
			t.Errorf("expected T3 at 1, got %s at %d", cur.ID, s.Index())
		}
	})

	t.Run("Remove last current clamps", func(t *testing.T) {
		s, _ := queueOf([]models.Track{t1, t2, t3}, 2).Remove(2)
		if s.Index() != 1 {
			t.Errorf("expected clamp to 1, got %d", s.Index())
		}
	})

	t.Run("Remove after current keeps index", func(t *testing.T) {
		s, _ := queueOf([]models.Track{t1, t2, t3}, 0).Remove(2)
		if s.Index() != 0 || s.Len() != 2 {
			t.Errorf("expected index 0 of 2, got %d of %d", s.Index(), s.Len())
		}
	})

	t.Run("Remove only entry empties", func(t *testing.T) {
		s, _ := queueOf([]models.Track{t1}, 0).Remove(0)
		if s.Index() != -1 || s.Len() != 0 {
			t.Errorf("expected empty queue, got %d of %d", s.Index(), s.Len())
		}
	})

	t.Run("Remove out of range is a no-op", func(t *testing.T) {
		base := queueOf([]models.Track{t1}, 0)
		for _, i := range []int{-1, 1, 99} {
			if s, ok := base.Remove(i); ok || s.Len() != 1 {
				t.Errorf("expected no-op for %d", i)
			}
		}
	})

	t.Run("mutations while shuffled survive unshuffle", func(t *testing.T) {
		s := queueOf([]models.Track{t1, t2, t3}, 1).ToggleShuffle(seeded(9))
		s = s.Add(t4)
		s = s.PlayNext(t5)

		idx := slices.IndexFunc(s.Tracks(), func(tr models.Track) bool { return tr.ID == t3.ID })
		s, _ = s.Remove(idx)

		orig := tu.IDs(s.OriginalOrder())
		if !slices.Equal(orig, []string{t1.ID, t2.ID, t5.ID, t4.ID}) {
			t.Errorf("unexpected original order %v", orig)
		}

		s = s.ToggleShuffle(seeded(9))
		assertOrder(t, s, t1.ID, t2.ID, t5.ID, t4.ID)
		if cur, _ := s.Current(); cur.ID != t2.ID {
			t.Errorf("expected T2 current after unshuffle, got %s", cur.ID)
		}
	})

	t.Run("shuffle keeps duplicates distinct", func(t *testing.T) {
		s := queueOf([]models.Track{t1, t2, t1, t3}, 0)
		s, _, _ = s.Next()
		s, _, _ = s.Next()
		s = s.ToggleShuffle(seeded(5)).ToggleShuffle(seeded(5))
		if s.Index() != 2 {
			t.Errorf("expected the second T1 to stay current, got index %d", s.Index())
		}
	})

	t.Run("Clear", func(t *testing.T) {
		s := queueOf([]models.Track{t1, t2}, 1).ToggleShuffle(seeded(1)).WithRepeat(RepeatAll).Clear()
		if s.Len() != 0 || s.Index() != -1 || len(s.OriginalOrder()) != 0 {
			t.Errorf("expected cleared queue, got %+v", s.Snapshot())
		}
		if s.Repeat() != RepeatAll {
			t.Error("expected repeat mode to survive clear")
		}
	})

	t.Run("shuffle on empty queue", func(t *testing.T) {
		s := Empty().ToggleShuffle(nil)
		if !s.Shuffled() || s.Index() != -1 {
			t.Error("expected shuffle on with empty queue")
		}
		s = s.Add(t1).ToggleShuffle(nil)
		if s.Index() != 0 || s.Shuffled() {
			t.Errorf("expected T1 current unshuffled, got %d", s.Index())
		}
	})
}

func TestShuffleDistribution(t *testing.T) {
	tracks := tu.MakeTracks(models.SourceJamendo, 4)
	base := queueOf(tracks, 0)
	rng := seeded(7)

	counts := map[string]int{}
	for range 2400 {
		s := base.ToggleShuffle(rng)
		second, _ := s.At(1)
		counts[second.ID]++
	}

	for _, tr := range tracks[1:] {
		if c := counts[tr.ID]; c < 650 || c > 950 {
			t.Errorf("expected roughly uniform placement of %s, got %d/2400", tr.ID, c)
		}
	}
	if counts[tracks[0].ID] != 0 {
		t.Error("pinned track must never leave position 0")
	}
}

func TestParseRepeatMode(t *testing.T) {
	for _, m := range []RepeatMode{RepeatOff, RepeatAll, RepeatOne} {
		got, err := ParseRepeatMode(m.String())
		if err != nil || got != m {
			t.Errorf("round trip failed for %s", m)
		}
	}
	if _, err := ParseRepeatMode("sometimes"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
