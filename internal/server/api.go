package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/player"
	"github.com/desertthunder/openbeats/internal/queue"
	"github.com/desertthunder/openbeats/internal/resolver"
	"github.com/desertthunder/openbeats/internal/services"
	"github.com/desertthunder/openbeats/internal/shared"
)

// Controller is the playback surface the API drives.
type Controller interface {
	NowPlaying() player.NowPlaying
	Queue() *queue.Engine
	PlayFrom(ctx context.Context, t models.Track, set []models.Track) error
	PlayIndex(ctx context.Context, i int) error
	Toggle() error
	Pause() error
	Resume() error
	Stop() error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(pos time.Duration) error
	SeekBy(delta time.Duration) error
	SetVolume(percent int) error
}

// Searcher fans a query out to the catalogs.
type Searcher interface {
	SearchDetailed(ctx context.Context, query string, limit int, sources ...models.Source) ([]models.Track, []services.SourceResult)
}

// API serves the remote control endpoints.
type API struct {
	ctrl         Controller
	search       Searcher
	logger       *log.Logger
	defaultLimit int
}

func NewAPI(ctrl Controller, search Searcher, logger *log.Logger, defaultLimit int) *API {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &API{ctrl: ctrl, search: search, logger: logger, defaultLimit: defaultLimit}
}

// Register mounts every endpoint on r.
func (a *API) Register(r *BasicRouter) {
	r.HandleFunc(http.MethodGet, "/api/health", a.health)
	r.HandleFunc(http.MethodGet, "/api/now-playing", a.nowPlaying)
	r.HandleFunc(http.MethodGet, "/api/queue", a.queue)
	r.HandleFunc(http.MethodPost, "/api/queue", a.enqueue)
	r.HandleFunc(http.MethodDelete, "/api/queue/{index}", a.remove)
	r.HandleFunc(http.MethodPost, "/api/queue/shuffle", a.shuffle)
	r.HandleFunc(http.MethodPost, "/api/queue/repeat", a.repeat)
	r.HandleFunc(http.MethodPost, "/api/play", a.play)
	r.HandleFunc(http.MethodPost, "/api/play/{index}", a.playIndex)
	r.HandleFunc(http.MethodPost, "/api/player/seek", a.seek)
	r.HandleFunc(http.MethodPost, "/api/player/volume", a.volume)
	r.HandleFunc(http.MethodPost, "/api/player/{action}", a.control)
	r.HandleFunc(http.MethodGet, "/api/search", a.searchTracks)
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) nowPlaying(w http.ResponseWriter, _ *http.Request) {
	np := a.ctrl.NowPlaying()
	writeJSON(w, http.StatusOK, struct {
		player.NowPlaying
		Progress string `json:"progress"`
	}{np, np.Progress()})
}

func (a *API) queue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.ctrl.Queue().Snapshot())
}

type enqueueRequest struct {
	Track models.Track `json:"track"`
	Next  bool         `json:"next"`
}

func (a *API) enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, ok := normalizeTrack(req.Track)
	if !ok {
		writeError(w, http.StatusBadRequest, "track requires source and sourceTrackId", "")
		return
	}

	if req.Next {
		a.ctrl.Queue().PlayNext(t)
	} else {
		a.ctrl.Queue().Add(t)
	}
	writeJSON(w, http.StatusOK, a.ctrl.Queue().Snapshot())
}

func (a *API) remove(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer", "")
		return
	}
	if !a.ctrl.Queue().Remove(i) {
		writeError(w, http.StatusNotFound, "no queue entry at that index", "")
		return
	}
	writeJSON(w, http.StatusOK, a.ctrl.Queue().Snapshot())
}

func (a *API) shuffle(w http.ResponseWriter, _ *http.Request) {
	on := a.ctrl.Queue().ToggleShuffle()
	writeJSON(w, http.StatusOK, map[string]bool{"shuffle": on})
}

func (a *API) repeat(w http.ResponseWriter, r *http.Request) {
	q := a.ctrl.Queue()
	if v := r.URL.Query().Get("mode"); v != "" {
		m, err := queue.ParseRepeatMode(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "")
			return
		}
		q.SetRepeat(m)
		writeJSON(w, http.StatusOK, map[string]queue.RepeatMode{"repeat": m})
		return
	}
	writeJSON(w, http.StatusOK, map[string]queue.RepeatMode{"repeat": q.ToggleRepeat()})
}

type playRequest struct {
	Track models.Track   `json:"track"`
	Set   []models.Track `json:"set"`
}

func (a *API) play(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, ok := normalizeTrack(req.Track)
	if !ok {
		writeError(w, http.StatusBadRequest, "track requires source and sourceTrackId", "")
		return
	}

	var set []models.Track
	for _, s := range req.Set {
		if n, ok := normalizeTrack(s); ok {
			set = append(set, n)
		}
	}

	a.respond(w, a.ctrl.PlayFrom(r.Context(), t, set))
}

func (a *API) playIndex(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer", "")
		return
	}
	a.respond(w, a.ctrl.PlayIndex(r.Context(), i))
}

func (a *API) control(w http.ResponseWriter, r *http.Request) {
	var err error
	switch r.PathValue("action") {
	case "toggle":
		err = a.ctrl.Toggle()
	case "pause":
		err = a.ctrl.Pause()
	case "resume", "play":
		err = a.ctrl.Resume()
	case "stop":
		err = a.ctrl.Stop()
	case "next":
		err = a.ctrl.Next(r.Context())
	case "previous":
		err = a.ctrl.Previous(r.Context())
	default:
		writeError(w, http.StatusNotFound, "unknown player action", "")
		return
	}
	a.respond(w, err)
}

func (a *API) seek(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if v := q.Get("delta"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "delta must be a number of seconds", "")
			return
		}
		a.respond(w, a.ctrl.SeekBy(time.Duration(secs*float64(time.Second))))
		return
	}

	secs, err := strconv.ParseFloat(q.Get("seconds"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "seconds must be a number", "")
		return
	}
	a.respond(w, a.ctrl.Seek(time.Duration(secs*float64(time.Second))))
}

func (a *API) volume(w http.ResponseWriter, r *http.Request) {
	p, err := strconv.Atoi(r.URL.Query().Get("percent"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "percent must be an integer", "")
		return
	}
	a.respond(w, a.ctrl.SetVolume(p))
}

type sourceStatus struct {
	Source models.Source `json:"source"`
	Count  int           `json:"count"`
	Error  string        `json:"error,omitempty"`
}

func (a *API) searchTracks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required", "")
		return
	}

	limit := a.defaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", "")
			return
		}
		limit = n
	}

	sources, err := models.ParseSources(q.Get("sources"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	tracks, results := a.search.SearchDetailed(r.Context(), query, limit, sources...)
	statuses := make([]sourceStatus, len(results))
	for i, res := range results {
		statuses[i] = sourceStatus{Source: res.Source, Count: res.Count}
		if res.Err != nil {
			statuses[i].Error = res.Err.Error()
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks, "sources": statuses})
}

// respond writes the now-playing state on success or maps err onto a status code.
func (a *API) respond(w http.ResponseWriter, err error) {
	if err == nil {
		a.nowPlaying(w, nil)
		return
	}

	status, link := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Warn("player request failed", "error", err)
	}
	writeError(w, status, err.Error(), link)
}

func statusFor(err error) (int, string) {
	var terr *player.TrackError
	link := ""
	if errors.As(err, &terr) {
		link = terr.Link
	}

	switch {
	case errors.Is(err, player.ErrNoTrack), errors.Is(err, player.ErrDegraded):
		return http.StatusConflict, link
	case errors.Is(err, player.ErrSuperseded):
		return http.StatusConflict, link
	case errors.Is(err, player.ErrPlaybackRejected), errors.Is(err, resolver.ErrNoAudioAvailable):
		return http.StatusUnprocessableEntity, link
	case errors.Is(err, resolver.ErrNotConfigured), errors.Is(err, resolver.ErrUnknownSource):
		return http.StatusNotImplemented, link
	case errors.Is(err, resolver.ErrAllBackendsUnreachable):
		return http.StatusServiceUnavailable, link
	case errors.Is(err, player.ErrClosed):
		return http.StatusGone, link
	default:
		return http.StatusBadGateway, link
	}
}

// normalizeTrack rebuilds a client supplied track so its id is derived, not trusted.
func normalizeTrack(t models.Track) (models.Track, bool) {
	src, err := models.ParseSource(string(t.Source))
	if err != nil || strings.TrimSpace(t.SourceTrackID) == "" {
		return models.Track{}, false
	}
	return models.NewTrack(src, t.SourceTrackID, models.TrackOpts{
		Title:       t.Title,
		Artists:     t.Artists,
		AlbumTitle:  t.AlbumTitle,
		DurationSec: t.DurationSec,
		ArtworkURL:  t.ArtworkURL,
		License:     t.License,
	}), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), "")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, link string) {
	body := map[string]string{"error": msg}
	if link != "" {
		body["link"] = link
	}
	writeJSON(w, status, body)
}

// IsLoopbackHost reports whether the host part of hostport is localhost or a loopback IP.
func IsLoopbackHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}
