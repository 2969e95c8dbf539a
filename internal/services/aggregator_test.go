package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/shared"
	tu "github.com/desertthunder/openbeats/internal/testing"
)

func TestAggregator(t *testing.T) {
	ctx := context.Background()
	logger := shared.DiscardLogger()

	jamendo := &tu.FakeAdapter{Src: models.SourceJamendo, Tracks: tu.MakeTracks(models.SourceJamendo, 3)}
	archive := &tu.FakeAdapter{Src: models.SourceFMA, Err: ErrProviderUnavailable}
	audius := &tu.FakeAdapter{Src: models.SourceAudius, Tracks: tu.MakeTracks(models.SourceAudius, 2)}
	youtube := &tu.FakeAdapter{Src: models.SourceYouTube, Err: ErrNotConfigured}

	t.Run("partial results are not an error", func(t *testing.T) {
		agg := NewAggregator(logger, time.Second, jamendo, archive, audius, youtube)

		tracks, report := agg.SearchDetailed(ctx, "q", 10)
		if len(tracks) != 5 {
			t.Fatalf("expected 5 tracks, got %d", len(tracks))
		}

		want := []string{"jamendo-t1", "jamendo-t2", "jamendo-t3", "audius-t1", "audius-t2"}
		for i, id := range tu.IDs(tracks) {
			if id != want[i] {
				t.Errorf("position %d: expected %s, got %s", i, want[i], id)
			}
		}

		if len(report) != 3 {
			t.Fatalf("expected report for 3 default sources, got %d", len(report))
		}
		if !errors.Is(report[1].Err, ErrProviderUnavailable) || report[0].Count != 3 {
			t.Errorf("unexpected report %+v", report)
		}
	})

	t.Run("explicit sources", func(t *testing.T) {
		agg := NewAggregator(logger, time.Second, jamendo, youtube)

		tracks := agg.Search(ctx, "q", 10, models.SourceYouTube)
		if len(tracks) != 0 {
			t.Errorf("expected unconfigured source to contribute nothing, got %d", len(tracks))
		}
		if tracks == nil {
			t.Error("expected empty, non-nil slice")
		}
	})

	t.Run("unregistered source", func(t *testing.T) {
		agg := NewAggregator(logger, time.Second, jamendo)

		_, report := agg.SearchDetailed(ctx, "q", 10, models.SourceAudius)
		if !errors.Is(report[0].Err, ErrNotConfigured) {
			t.Errorf("expected ErrNotConfigured, got %v", report[0].Err)
		}
	})

	t.Run("no de-duplication across sources", func(t *testing.T) {
		dup := &tu.FakeAdapter{Src: models.SourceFMA, Tracks: tu.MakeTracks(models.SourceFMA, 1)}
		agg := NewAggregator(logger, time.Second, jamendo, dup)

		tracks := agg.Search(ctx, "q", 1, models.SourceJamendo, models.SourceFMA)
		if len(tracks) != 2 {
			t.Errorf("expected one track per source, got %d", len(tracks))
		}
	})

	t.Run("slow provider is cut off", func(t *testing.T) {
		slow := &tu.FakeAdapter{Src: models.SourceAudius, Tracks: tu.MakeTracks(models.SourceAudius, 1), Delay: time.Second}
		agg := NewAggregator(logger, 20*time.Millisecond, jamendo, slow)

		start := time.Now()
		tracks := agg.Search(ctx, "q", 10, models.SourceJamendo, models.SourceAudius)
		if time.Since(start) > 500*time.Millisecond {
			t.Error("expected search to return after the per-provider timeout")
		}
		if len(tracks) != 3 {
			t.Errorf("expected only the fast provider's tracks, got %d", len(tracks))
		}
	})

	t.Run("Sources", func(t *testing.T) {
		agg := NewAggregator(logger, 0, youtube, jamendo)
		got := agg.Sources()
		if len(got) != 2 || got[0] != models.SourceJamendo || got[1] != models.SourceYouTube {
			t.Errorf("expected canonical order, got %v", got)
		}
	})
}
