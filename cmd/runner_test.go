package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/player"
	"github.com/desertthunder/openbeats/internal/resolver"
	"github.com/desertthunder/openbeats/internal/services"
	"github.com/desertthunder/openbeats/internal/shared"
	tu "github.com/desertthunder/openbeats/internal/testing"
	"github.com/urfave/cli/v3"
)

type fakeSearcher struct {
	tracks  []models.Track
	results []services.SourceResult
	query   string
	limit   int
	sources []models.Source
}

func (f *fakeSearcher) SearchDetailed(_ context.Context, query string, limit int, sources ...models.Source) ([]models.Track, []services.SourceResult) {
	f.query, f.limit, f.sources = query, limit, sources
	return f.tracks, f.results
}

type fakeResolver struct {
	result resolver.Result
	err    error
	calls  int
}

func (f *fakeResolver) ResolveTrack(_ context.Context, t models.Track) (resolver.Result, error) {
	f.calls++
	if f.err != nil {
		return resolver.Result{}, f.err
	}
	res := f.result
	res.Source = t.Source
	return res, nil
}

// newTestRunner returns a runner backed by fakes and a database in a temp dir.
func newTestRunner(t *testing.T, search *fakeSearcher, res *fakeResolver) (*Runner, *bytes.Buffer) {
	t.Helper()
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "openbeats.db")

	output := &bytes.Buffer{}
	if search == nil {
		search = &fakeSearcher{}
	}
	if res == nil {
		res = &fakeResolver{}
	}
	return NewRunner(RunnerOpts{
		Config:   config,
		Output:   output,
		Logger:   shared.DiscardLogger(),
		Search:   search,
		Resolver: res,
	}), output
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			search := &fakeSearcher{}
			res := &fakeResolver{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Search:     search,
				Resolver:   res,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.search != search {
				t.Error("expected search to be set")
			}
			if runner.resolver != res {
				t.Error("expected resolver to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil, Logger: shared.DiscardLogger()})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil, Logger: shared.DiscardLogger()})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil, Logger: shared.DiscardLogger()})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("builds search and resolver from config", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger()})

			if runner.search == nil {
				t.Error("expected search to be built")
			}
			if runner.resolver == nil {
				t.Error("expected resolver to be built")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml", Logger: shared.DiscardLogger()})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("buildSources", func(t *testing.T) {
		t.Run("reports unknown sources", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Sources.Enabled = []string{"jamendo", "napster"}

			agg, res, err := buildSources(context.Background(), config, shared.DiscardLogger())
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if agg == nil || res == nil {
				t.Fatal("expected aggregator and resolver despite config errors")
			}
			if got := agg.Sources(); len(got) != 1 || got[0] != models.SourceJamendo {
				t.Errorf("expected only jamendo, got %v", got)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output, Search: &fakeSearcher{}, Resolver: &fakeResolver{}})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output, Search: &fakeSearcher{}, Resolver: &fakeResolver{}})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Search: &fakeSearcher{}, Resolver: &fakeResolver{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}, Search: &fakeSearcher{}, Resolver: &fakeResolver{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter, Search: &fakeSearcher{}, Resolver: &fakeResolver{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output, Search: &fakeSearcher{}, Resolver: &fakeResolver{}})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}, Search: &fakeSearcher{}, Resolver: &fakeResolver{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner, _ := newTestRunner(t, nil, nil)
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"search", "resolve", "play", "serve", "history", "favorites", "playlists", "setup", "auth"} {
			if !names[want] {
				t.Errorf("expected %q to be registered", want)
			}
		}
	})
}

func TestParseTrackRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		source  models.Source
		id      string
		wantErr bool
	}{
		{name: "dash form", ref: "audius-D7KyD", source: models.SourceAudius, id: "D7KyD"},
		{name: "colon form", ref: "jamendo:1234", source: models.SourceJamendo, id: "1234"},
		{name: "id containing dashes", ref: "ytmusic-a-b_c", source: models.SourceYouTube, id: "a-b_c"},
		{name: "trims whitespace", ref: "  fma-item  ", source: models.SourceFMA, id: "item"},
		{name: "missing id", ref: "audius-", wantErr: true},
		{name: "missing source", ref: "-abc", wantErr: true},
		{name: "no separator", ref: "audius", wantErr: true},
		{name: "unknown source", ref: "napster-1", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src, id, err := parseTrackRef(tc.ref)
			if tc.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if src != tc.source || id != tc.id {
				t.Errorf("got (%s, %s), want (%s, %s)", src, id, tc.source, tc.id)
			}
		})
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Search: lofi beats", "search-lofi-beats"},
		{"  Road Trip!!  ", "road-trip"},
		{"Listening history", "listening-history"},
		{"???", "tracks"},
		{"", "tracks"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := slug(tc.input); got != tc.want {
				t.Errorf("slug(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	tracks := tu.MakeTracks(models.SourceJamendo, 2)

	t.Run("prints merged results", func(t *testing.T) {
		search := &fakeSearcher{tracks: tracks}
		runner, output := newTestRunner(t, search, nil)

		if err := searchCommand(runner).Run(ctx, []string{"search", "--limit", "5", "lofi"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if search.query != "lofi" || search.limit != 5 {
			t.Errorf("expected query lofi with limit 5, got %q %d", search.query, search.limit)
		}
		if len(search.sources) != len(models.DefaultSearchSources) {
			t.Errorf("expected default sources, got %v", search.sources)
		}
		out := output.String()
		if !strings.Contains(out, `Found 2 tracks for "lofi"`) {
			t.Errorf("expected summary line, got %q", out)
		}
		if !strings.Contains(out, "ID: jamendo-t1") {
			t.Errorf("expected track ids in output, got %q", out)
		}
	})

	t.Run("uses the configured default limit", func(t *testing.T) {
		search := &fakeSearcher{}
		runner, output := newTestRunner(t, search, nil)

		if err := searchCommand(runner).Run(ctx, []string{"search", "nothing"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if search.limit != runner.config.Search.DefaultLimit {
			t.Errorf("expected default limit %d, got %d", runner.config.Search.DefaultLimit, search.limit)
		}
		if !strings.Contains(output.String(), "No results") {
			t.Errorf("expected empty result message, got %q", output.String())
		}
	})

	t.Run("writes JSON", func(t *testing.T) {
		runner, output := newTestRunner(t, &fakeSearcher{tracks: tracks}, nil)

		if err := searchCommand(runner).Run(ctx, []string{"search", "--json", "--sources", "jamendo", "lofi"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got []models.Track
		if err := json.Unmarshal(output.Bytes(), &got); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if len(got) != 2 || got[0].ID != "jamendo-t1" {
			t.Errorf("unexpected tracks %+v", got)
		}
	})

	t.Run("saves results for later lookups", func(t *testing.T) {
		runner, _ := newTestRunner(t, &fakeSearcher{tracks: tracks}, nil)

		if err := searchCommand(runner).Run(ctx, []string{"search", "--save", "lofi"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		store, closeStore, err := runner.openStore(ctx)
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		defer closeStore()

		if _, err := store.Tracks.Get(ctx, "jamendo-t2"); err != nil {
			t.Errorf("expected saved track, got %v", err)
		}
	})

	t.Run("exports to a file", func(t *testing.T) {
		runner, _ := newTestRunner(t, &fakeSearcher{tracks: tracks}, nil)
		path := filepath.Join(t.TempDir(), "results.csv")

		if err := searchCommand(runner).Run(ctx, []string{"search", "--format", "csv", "--output", path, "lofi"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected export file: %v", err)
		}
		if !strings.Contains(string(data), "Track 1") {
			t.Errorf("expected track rows, got %q", data)
		}
	})

	t.Run("requires a query", func(t *testing.T) {
		runner, _ := newTestRunner(t, nil, nil)

		err := searchCommand(runner).Run(ctx, []string{"search"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("rejects unknown sources", func(t *testing.T) {
		runner, _ := newTestRunner(t, nil, nil)

		err := searchCommand(runner).Run(ctx, []string{"search", "--sources", "napster", "lofi"})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("prints a direct stream", func(t *testing.T) {
		res := &fakeResolver{result: resolver.Result{
			Kind:    resolver.KindDirect,
			URL:     "https://cdn.example/a.opus",
			Mirror:  "https://mirror.example",
			Codec:   "opus",
			Bitrate: 160000,
		}}
		runner, output := newTestRunner(t, nil, res)

		if err := resolveCommand(runner).Run(ctx, []string{"resolve", "ytmusic-abc"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := output.String()
		for _, want := range []string{"✓ https://cdn.example/a.opus", "via https://mirror.example", "opus", "160 kbps"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in %q", want, out)
			}
		}
	})

	t.Run("prints the link for degraded results", func(t *testing.T) {
		res := &fakeResolver{result: resolver.Result{
			Kind:   resolver.KindDegraded,
			URL:    resolver.WatchURL("abc"),
			Reason: "all backends unreachable",
		}}
		runner, output := newTestRunner(t, nil, res)

		if err := resolveCommand(runner).Run(ctx, []string{"resolve", "ytmusic:abc"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := output.String()
		if !strings.Contains(out, "No direct stream available") || !strings.Contains(out, "watch?v=abc") {
			t.Errorf("expected degraded link, got %q", out)
		}
	})

	t.Run("writes JSON", func(t *testing.T) {
		res := &fakeResolver{result: resolver.Result{Kind: resolver.KindDirect, URL: "https://cdn.example/b.mp3"}}
		runner, output := newTestRunner(t, nil, res)

		if err := resolveCommand(runner).Run(ctx, []string{"resolve", "--json", "audius-xyz"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got map[string]any
		if err := json.Unmarshal(output.Bytes(), &got); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if got["kind"] != "direct" || got["source"] != "audius" {
			t.Errorf("unexpected result %v", got)
		}
	})

	t.Run("marks transient failures", func(t *testing.T) {
		res := &fakeResolver{err: resolver.ErrAllBackendsUnreachable}
		runner, _ := newTestRunner(t, nil, res)

		err := resolveCommand(runner).Run(ctx, []string{"resolve", "ytmusic-abc"})
		if !errors.Is(err, resolver.ErrAllBackendsUnreachable) {
			t.Fatalf("expected ErrAllBackendsUnreachable, got %v", err)
		}
		if !strings.Contains(err.Error(), "try again") {
			t.Errorf("expected retry hint, got %v", err)
		}
	})

	t.Run("rejects malformed ids before resolving", func(t *testing.T) {
		res := &fakeResolver{}
		runner, _ := newTestRunner(t, nil, res)

		err := resolveCommand(runner).Run(ctx, []string{"resolve", "nodash"})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if res.calls != 0 {
			t.Errorf("expected resolver not to be called, got %d calls", res.calls)
		}
	})
}

func TestLibraryCommands(t *testing.T) {
	ctx := context.Background()
	tracks := tu.MakeTracks(models.SourceJamendo, 3)
	runner, output := newTestRunner(t, nil, nil)

	run := func(t *testing.T, cmd *cli.Command, args ...string) string {
		t.Helper()
		output.Reset()
		if err := cmd.Run(ctx, args); err != nil {
			t.Fatalf("%v failed: %v", args, err)
		}
		return output.String()
	}

	t.Run("favorites add requires stored metadata", func(t *testing.T) {
		err := favoritesCommand(runner).Run(ctx, []string{"favorites", "add", "jamendo-t1"})
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	if err := runner.saveTracks(ctx, tracks); err != nil {
		t.Fatalf("failed to save tracks: %v", err)
	}

	t.Run("favorites add and list", func(t *testing.T) {
		out := run(t, favoritesCommand(runner), "favorites", "add", "jamendo-t1")
		if !strings.Contains(out, "Favorited Test Artist - Track 1") {
			t.Errorf("unexpected output %q", out)
		}
		run(t, favoritesCommand(runner), "favorites", "add", "jamendo:t2")

		out = run(t, favoritesCommand(runner), "favorites", "list", "--json")
		var got []models.Track
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 favorites, got %d", len(got))
		}
	})

	t.Run("favorites remove", func(t *testing.T) {
		out := run(t, favoritesCommand(runner), "favorites", "remove", "jamendo-t2")
		if !strings.Contains(out, "Removed jamendo-t2") {
			t.Errorf("unexpected output %q", out)
		}
	})

	var playlistID string
	t.Run("playlists create from favorites", func(t *testing.T) {
		out := run(t, playlistsCommand(runner), "playlists", "create", "--description", "for the car", "--from-favorites", "Road Trip")
		if !strings.Contains(out, `Created "Road Trip" (1 tracks)`) {
			t.Errorf("unexpected output %q", out)
		}

		out = run(t, playlistsCommand(runner), "playlists", "list", "--json")
		var views []playlistView
		if err := json.Unmarshal([]byte(out), &views); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if len(views) != 1 || views[0].Description != "for the car" {
			t.Fatalf("unexpected playlists %+v", views)
		}
		playlistID = views[0].ID
	})

	t.Run("playlists add and remove", func(t *testing.T) {
		run(t, playlistsCommand(runner), "playlists", "add", playlistID, "jamendo-t3")

		out := run(t, playlistsCommand(runner), "playlists", "show", "--json", playlistID)
		var view playlistView
		if err := json.Unmarshal([]byte(out), &view); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if got := tu.IDs(view.Tracks); len(got) != 2 || got[1] != "jamendo-t3" {
			t.Fatalf("unexpected tracks %v", got)
		}

		run(t, playlistsCommand(runner), "playlists", "remove", playlistID, "1")
		out = run(t, playlistsCommand(runner), "playlists", "show", "--json", playlistID)
		if err := json.Unmarshal([]byte(out), &view); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if got := tu.IDs(view.Tracks); len(got) != 1 || got[0] != "jamendo-t3" {
			t.Errorf("unexpected tracks after removal %v", got)
		}
	})

	t.Run("playlists remove rejects bad positions", func(t *testing.T) {
		for _, pos := range []string{"0", "first"} {
			err := playlistsCommand(runner).Run(ctx, []string{"playlists", "remove", playlistID, pos})
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("position %q: expected ErrInvalidArgument, got %v", pos, err)
			}
		}
	})

	t.Run("playlists export", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "road-trip.json")
		run(t, playlistsCommand(runner), "playlists", "export", "--format", "json", "--output", path, playlistID)

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected export file: %v", err)
		}
		if !strings.Contains(string(data), "Road Trip") {
			t.Errorf("expected playlist title in export, got %q", data)
		}
	})

	t.Run("playlists export-all", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "backup")
		out := run(t, playlistsCommand(runner), "playlists", "export-all", "--format", "csv", "--output", dir)
		if !strings.Contains(out, "Exported 1 of 1 playlists") {
			t.Errorf("unexpected output %q", out)
		}
		for _, name := range []string{playlistID + ".csv", "export_manifest.json"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
				t.Errorf("expected %s: %v", name, err)
			}
		}
	})

	t.Run("playlists delete", func(t *testing.T) {
		run(t, playlistsCommand(runner), "playlists", "delete", playlistID)
		out := run(t, playlistsCommand(runner), "playlists", "list")
		if !strings.Contains(out, "No playlists yet") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("history", func(t *testing.T) {
		out := run(t, historyCommand(runner), "history", "list")
		if !strings.Contains(out, "No plays recorded yet") {
			t.Errorf("unexpected output %q", out)
		}

		store, closeStore, err := runner.openStore(ctx)
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		if err := store.History.RecordPlay(ctx, tracks[0], 90); err != nil {
			t.Fatalf("failed to record play: %v", err)
		}
		closeStore()

		out = run(t, historyCommand(runner), "history", "list")
		if !strings.Contains(out, "Test Artist - Track 1") {
			t.Errorf("expected recorded play, got %q", out)
		}

		out = run(t, historyCommand(runner), "history", "stats", "--json")
		var stats map[string]int
		if err := json.Unmarshal([]byte(out), &stats); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if stats["plays"] != 1 || stats["listenedSec"] != 90 {
			t.Errorf("unexpected stats %v", stats)
		}

		run(t, historyCommand(runner), "history", "clear")
		out = run(t, historyCommand(runner), "history", "list")
		if !strings.Contains(out, "No plays recorded yet") {
			t.Errorf("expected cleared history, got %q", out)
		}
	})
}

func TestSourceStatuses(t *testing.T) {
	config := shared.DefaultConfig()
	config.Sources.Enabled = []string{"jamendo", "audius"}
	config.Credentials.Jamendo.ClientID = ""
	config.Credentials.YouTube = shared.YouTubeConfig{}

	statuses := sourceStatuses(config)
	if len(statuses) != len(models.Sources) {
		t.Fatalf("expected one status per source, got %d", len(statuses))
	}

	bySource := map[models.Source]sourceStatus{}
	for _, st := range statuses {
		bySource[st.Source] = st
	}

	if st := bySource[models.SourceJamendo]; !st.Enabled || st.Configured {
		t.Errorf("jamendo: expected enabled and unconfigured, got %+v", st)
	}
	if st := bySource[models.SourceAudius]; !st.Enabled || !st.Configured {
		t.Errorf("audius: expected enabled and configured, got %+v", st)
	}
	if st := bySource[models.SourceFMA]; st.Enabled {
		t.Errorf("fma: expected disabled, got %+v", st)
	}
	if st := bySource[models.SourceYouTube]; st.Configured {
		t.Errorf("ytmusic: expected unconfigured without credentials, got %+v", st)
	}

	t.Run("api key configures youtube", func(t *testing.T) {
		config.Credentials.YouTube.APIKey = "key"
		for _, st := range sourceStatuses(config) {
			if st.Source == models.SourceYouTube && !st.Configured {
				t.Errorf("expected ytmusic configured, got %+v", st)
			}
		}
	})
}

func TestAuthYouTube(t *testing.T) {
	t.Run("requires client credentials", func(t *testing.T) {
		runner, _ := newTestRunner(t, nil, nil)
		runner.config.Credentials.YouTube.ClientID = ""

		err := authCommand(runner).Run(context.Background(), []string{"auth", "youtube"})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestForwardEvents(t *testing.T) {
	events := make(chan player.Event, 3)
	for _, kind := range []player.EventKind{player.EventLoading, player.EventPlaying, player.EventPaused} {
		events <- player.Event{Kind: kind}
	}
	close(events)

	var first, second []string
	forwardEvents(events,
		func(ev player.Event) { first = append(first, ev.Kind.String()) },
		func(ev player.Event) { second = append(second, fmt.Sprintf("%s:%d", ev.Kind, len(first))) },
	)

	if strings.Join(first, ",") != "loading,playing,paused" {
		t.Errorf("unexpected first sink order %v", first)
	}
	if strings.Join(second, ",") != "loading:1,playing:2,paused:3" {
		t.Errorf("expected sinks to run in order per event, got %v", second)
	}
}

func TestNewRouter(t *testing.T) {
	runner, _ := newTestRunner(t, nil, nil)
	session := player.New(player.Options{Output: tu.NewFakeOutput(), Resolver: &fakeResolver{}})
	defer session.Close()

	t.Run("loopback listener rejects foreign hosts", func(t *testing.T) {
		router := runner.newRouter(session, "127.0.0.1:8765")

		tests := []struct {
			host string
			want int
		}{
			{"127.0.0.1:8765", http.StatusOK},
			{"localhost:8765", http.StatusOK},
			{"attacker.example:8765", http.StatusForbidden},
		}
		for _, tc := range tests {
			t.Run(tc.host, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
				req.Host = tc.host
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)
				if rec.Code != tc.want {
					t.Errorf("expected %d, got %d", tc.want, rec.Code)
				}
			})
		}
	})

	t.Run("non-loopback listener accepts any host", func(t *testing.T) {
		router := runner.newRouter(session, "0.0.0.0:8765")

		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Host = "player.lan:8765"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

func TestSourceClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := shared.DefaultConfig()
	cfg.Search.RateLimit = 1
	jamendo, archive := sourceClient(cfg), sourceClient(cfg)

	get := func(c *services.Client) error {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		var out map[string]any
		return c.GetJSON(ctx, "test", srv.URL, &out)
	}

	if err := get(jamendo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := get(jamendo); !errors.Is(err, services.ErrProviderUnavailable) {
		t.Errorf("expected the second jamendo request to be rate limited, got %v", err)
	}
	if err := get(archive); err != nil {
		t.Errorf("expected archive to have its own limiter, got %v", err)
	}
}
