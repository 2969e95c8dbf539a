package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestAudius(t *testing.T) {
	ctx := context.Background()

	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("app_name") != audiusAppName {
			t.Errorf("expected app_name, got %s", r.URL.RawQuery)
		}
		switch r.URL.Path {
		case "/v1/tracks/search":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{
						"id": "D7KyD", "title": "Echoes", "duration": 245,
						"user":    map[string]any{"name": "Wavy"},
						"artwork": map[string]string{"150x150": "https://art/150", "480x480": "https://art/480"},
					},
					{"id": "Q9x", "title": "Bare", "duration": 100, "artwork": map[string]string{"150x150": "https://art/small"}},
				},
			})
		case "/v1/tracks/D7KyD":
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "D7KyD", "is_streamable": true}})
		case "/v1/tracks/locked":
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "locked", "is_streamable": false}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer node.Close()

	var discoveryHits atomic.Int32
	discovery := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		discoveryHits.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"data": []string{node.URL + "/"}})
	}))
	defer discovery.Close()

	t.Run("Host is discovered once", func(t *testing.T) {
		a := NewAudius(NewClient(nil, 0), discovery.URL, "")
		before := discoveryHits.Load()

		if got := a.Host(ctx); got != node.URL {
			t.Errorf("expected %s, got %s", node.URL, got)
		}
		a.Host(ctx)

		if hits := discoveryHits.Load() - before; hits != 1 {
			t.Errorf("expected 1 discovery call, got %d", hits)
		}
	})

	t.Run("Host falls back when discovery fails", func(t *testing.T) {
		broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer broken.Close()

		a := NewAudius(NewClient(nil, 0), broken.URL, node.URL)
		if got := a.Host(ctx); got != node.URL {
			t.Errorf("expected fallback %s, got %s", node.URL, got)
		}
	})

	t.Run("Search", func(t *testing.T) {
		a := NewAudius(NewClient(nil, 0), discovery.URL, "")

		tracks, err := a.Search(ctx, "echo", 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}
		if tracks[0].ID != "audius-D7KyD" || tracks[0].ArtworkURL != "https://art/480" || tracks[0].ArtistLine() != "Wavy" {
			t.Errorf("unexpected first track %+v", tracks[0])
		}
		if tracks[1].ArtworkURL != "https://art/small" || tracks[1].ArtistLine() != "Unknown Artist" {
			t.Errorf("unexpected second track %+v", tracks[1])
		}
	})

	t.Run("AudioURL", func(t *testing.T) {
		a := NewAudius(NewClient(nil, 0), discovery.URL, "")

		got, err := a.AudioURL(ctx, "D7KyD")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if want := node.URL + "/v1/tracks/D7KyD/stream?app_name=openbeats"; got != want {
			t.Errorf("expected %s, got %s", want, got)
		}

		if _, err := a.AudioURL(ctx, "locked"); !errors.Is(err, ErrNoAudio) {
			t.Errorf("expected ErrNoAudio, got %v", err)
		}
		if _, err := a.AudioURL(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
