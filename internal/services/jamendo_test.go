package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/openbeats/internal/models"
)

func TestJamendo(t *testing.T) {
	ctx := context.Background()

	t.Run("Search", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if r.URL.Path != "/tracks/" {
				t.Errorf("expected path /tracks/, got %s", r.URL.Path)
			}
			if q.Get("client_id") != "cid" || q.Get("search") != "lofi" || q.Get("audioformat") != "mp32" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			if q.Get("limit") != "5" {
				t.Errorf("expected limit 5, got %s", q.Get("limit"))
			}

			json.NewEncoder(w).Encode(map[string]any{
				"headers": map[string]any{"status": "success", "code": 0},
				"results": []map[string]any{
					{
						"id": "1532771", "name": "Night Drive", "duration": 214,
						"artist_name": "Kazu", "album_name": "Roads",
						"image": "https://img/track.jpg", "album_image": "https://img/album.jpg",
						"license_ccurl": "http://creativecommons.org/licenses/by/3.0/",
						"audio":         "https://mp3l.jamendo.com/?trackid=1532771",
					},
					{"id": "99", "name": "", "duration": 0},
				},
			})
		}))
		defer server.Close()

		j := NewJamendo(NewClient(nil, 0), "cid")
		j.SetBaseURL(server.URL)

		tracks, err := j.Search(ctx, "lofi", 5)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}

		got := tracks[0]
		if got.ID != "jamendo-1532771" || got.Source != models.SourceJamendo {
			t.Errorf("unexpected identity %s/%s", got.ID, got.Source)
		}
		if got.ArtworkURL != "https://img/album.jpg" {
			t.Errorf("expected album artwork preferred, got %s", got.ArtworkURL)
		}
		if got.DurationSec != 214 || got.AlbumTitle != "Roads" || got.ArtistLine() != "Kazu" {
			t.Errorf("unexpected normalization %+v", got)
		}

		if tracks[1].Title != "Unknown" || tracks[1].ArtistLine() != "Unknown Artist" {
			t.Errorf("expected defaults for sparse result, got %+v", tracks[1])
		}
	})

	t.Run("Search without client id", func(t *testing.T) {
		j := NewJamendo(NewClient(nil, 0), "")
		if _, err := j.Search(ctx, "x", 5); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("expected ErrNotConfigured, got %v", err)
		}
	})

	t.Run("Search with failed header", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"headers": map[string]any{"status": "failed", "code": 5, "error_message": "bad client"},
			})
		}))
		defer server.Close()

		j := NewJamendo(NewClient(nil, 0), "cid")
		j.SetBaseURL(server.URL)
		if _, err := j.Search(ctx, "x", 5); !errors.Is(err, ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("AudioURL", func(t *testing.T) {
		tt := []struct {
			name    string
			results []map[string]any
			want    string
			wantErr error
		}{
			{name: "found", results: []map[string]any{{"id": "7", "audio": "https://audio/7.mp3"}}, want: "https://audio/7.mp3"},
			{name: "missing", results: []map[string]any{}, wantErr: ErrNotFound},
			{name: "no audio", results: []map[string]any{{"id": "7", "audio": ""}}, wantErr: ErrNoAudio},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if r.URL.Query().Get("id") != "7" {
						t.Errorf("expected id=7, got %s", r.URL.RawQuery)
					}
					json.NewEncoder(w).Encode(map[string]any{
						"headers": map[string]any{"status": "success"},
						"results": tc.results,
					})
				}))
				defer server.Close()

				j := NewJamendo(NewClient(nil, 0), "cid")
				j.SetBaseURL(server.URL)

				got, err := j.AudioURL(ctx, "7")
				if tc.wantErr != nil {
					if !errors.Is(err, tc.wantErr) {
						t.Errorf("expected %v, got %v", tc.wantErr, err)
					}
					return
				}
				if err != nil || got != tc.want {
					t.Errorf("expected %s, got %s (%v)", tc.want, got, err)
				}
			})
		}
	})
}
