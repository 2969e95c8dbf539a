package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestArchive(t *testing.T) {
	ctx := context.Background()

	t.Run("Search keeps items with mp3 derivatives", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/advancedsearch.php" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			q := r.URL.Query().Get("q")
			if !strings.Contains(q, "collection:(freemusicarchive)") || !strings.HasPrefix(q, "ambient") {
				t.Errorf("unexpected q %q", q)
			}

			json.NewEncoder(w).Encode(map[string]any{
				"response": map[string]any{
					"docs": []map[string]any{
						{"identifier": "fma-1", "title": "Drift", "creator": "Sol", "format": []string{"VBR MP3", "Ogg Vorbis"}},
						{"identifier": "fma-2", "title": []string{"Only Flac"}, "format": []string{"Flac"}},
						{"identifier": "fma-3", "title": []string{"Listed"}, "creator": []string{"A", "B"}, "format": "VBR MP3"},
					},
				},
			})
		}))
		defer server.Close()

		a := NewArchive(NewClient(nil, 0))
		a.SetBaseURL(server.URL)

		tracks, err := a.Search(ctx, "ambient", 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}
		if tracks[0].ID != "fma-fma-1" || tracks[0].Title != "Drift" || tracks[0].ArtistLine() != "Sol" {
			t.Errorf("unexpected first track %+v", tracks[0])
		}
		if tracks[0].ArtworkURL != server.URL+"/services/img/fma-1" {
			t.Errorf("unexpected artwork %s", tracks[0].ArtworkURL)
		}
		if tracks[1].Title != "Listed" || tracks[1].ArtistLine() != "A" {
			t.Errorf("unexpected second track %+v", tracks[1])
		}
		if tracks[0].DurationSec != 0 {
			t.Errorf("expected unknown duration, got %d", tracks[0].DurationSec)
		}
	})

	t.Run("AudioURL", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/metadata/item-1":
				json.NewEncoder(w).Encode(map[string]any{
					"files": []map[string]any{
						{"name": "cover.jpg", "format": "JPEG"},
						{"name": "01 - First Song.mp3", "format": "VBR MP3"},
					},
				})
			case "/metadata/item-2":
				json.NewEncoder(w).Encode(map[string]any{
					"files": []map[string]any{{"name": "a.flac", "format": "Flac"}},
				})
			default:
				json.NewEncoder(w).Encode(map[string]any{})
			}
		}))
		defer server.Close()

		a := NewArchive(NewClient(nil, 0))
		a.SetBaseURL(server.URL)

		got, err := a.AudioURL(ctx, "item-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if want := server.URL + "/download/item-1/01%20-%20First%20Song.mp3"; got != want {
			t.Errorf("expected %s, got %s", want, got)
		}

		if _, err := a.AudioURL(ctx, "item-2"); !errors.Is(err, ErrNoAudio) {
			t.Errorf("expected ErrNoAudio, got %v", err)
		}
		if _, err := a.AudioURL(ctx, "item-3"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
