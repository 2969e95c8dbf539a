package queue

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/desertthunder/openbeats/internal/models"
	tu "github.com/desertthunder/openbeats/internal/testing"
)

func TestEngine(t *testing.T) {
	tracks := tu.MakeTracks(models.SourceJamendo, 3)

	t.Run("drives transitions", func(t *testing.T) {
		e := NewEngine(seeded(1))
		if cur := e.PlayTrack(tracks[0], tracks); cur.ID != tracks[0].ID {
			t.Fatalf("expected T1, got %s", cur.ID)
		}

		if next, ok := e.Next(); !ok || next.ID != tracks[1].ID {
			t.Errorf("expected T2, got %s", next.ID)
		}
		if prev, ok := e.Previous(); !ok || prev.ID != tracks[0].ID {
			t.Errorf("expected T1, got %s", prev.ID)
		}
		if got, ok := e.Select(2); !ok || got.ID != tracks[2].ID {
			t.Errorf("expected T3, got %s", got.ID)
		}
		if _, ok := e.Select(7); ok {
			t.Error("expected out of range select to fail")
		}

		if !e.ToggleShuffle() || e.ToggleShuffle() {
			t.Error("expected shuffle to toggle on then off")
		}
		if e.ToggleRepeat() != RepeatAll {
			t.Error("expected repeat all")
		}
		e.SetRepeat(RepeatOff)

		e.Add(tracks[0])
		e.PlayNext(tracks[1])
		if !e.Remove(0) || e.Remove(42) {
			t.Error("unexpected remove results")
		}

		if cur, ok := e.Current(); !ok || cur.ID != tracks[2].ID {
			t.Errorf("expected T3 current, got %s", cur.ID)
		}

		e.Clear()
		if e.State().Len() != 0 {
			t.Error("expected empty queue")
		}
	})

	t.Run("concurrent mutations stay consistent", func(t *testing.T) {
		e := NewEngine(nil)
		e.PlayTrack(tracks[0], tracks)

		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				switch i % 5 {
				case 0:
					e.Add(tracks[i%3])
				case 1:
					e.Next()
				case 2:
					e.ToggleShuffle()
				case 3:
					e.Remove(0)
				default:
					e.PlayNext(tracks[1])
				}
			}()
		}
		wg.Wait()

		s := e.State()
		if s.Len() > 0 && (s.Index() < 0 || s.Index() >= s.Len()) {
			t.Errorf("index %d out of range for %d entries", s.Index(), s.Len())
		}
	})

	t.Run("snapshot json", func(t *testing.T) {
		e := NewEngine(nil)
		e.PlayTrack(tracks[1], tracks)
		e.SetRepeat(RepeatOne)

		data, err := json.Marshal(e.Snapshot())
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		var got struct {
			Index  int    `json:"index"`
			Repeat string `json:"repeat"`
		}
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if got.Index != 1 || got.Repeat != "one" {
			t.Errorf("unexpected snapshot %s", data)
		}
	})
}
