package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/queue"
	"github.com/desertthunder/openbeats/internal/resolver"
	"github.com/desertthunder/openbeats/internal/shared"
)

// Output is the audio sink a [Session] drives.
//
// Load prepares url paused at position 0. A failed Load must leave whatever was playing untouched,
// and once ctx is done Load must not replace the current stream. Other methods may be called
// while a Load is in progress.
// The callback given to OnFinished fires when the loaded stream reaches its end on its own.
type Output interface {
	Load(ctx context.Context, url string) error
	Play() error
	Pause() error
	Resume() error
	Stop() error
	Seek(pos time.Duration) error
	SetVolume(percent int) error
	Position() time.Duration
	Duration() time.Duration
	OnFinished(fn func())
	Close() error
}

// StreamResolver turns a track into something playable.
type StreamResolver interface {
	ResolveTrack(ctx context.Context, t models.Track) (resolver.Result, error)
}

// HistoryRecorder receives elapsed play time for tracks the session switches away from.
type HistoryRecorder interface {
	RecordPlay(ctx context.Context, t models.Track, durationPlayedSec int) error
}

// Status is the playback state of the output.
type Status int

const (
	StatusStopped Status = iota
	StatusPlaying
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "stopped"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// NowPlaying describes the session at one instant.
type NowPlaying struct {
	Track    *models.Track `json:"track"`
	Status   Status        `json:"status"`
	Position int           `json:"positionSec"`
	Duration int           `json:"durationSec"`
	Volume   int           `json:"volume"`
}

// Progress renders position and duration as m:ss / m:ss.
func (n NowPlaying) Progress() string {
	return shared.FormatDuration(n.Position) + " / " + shared.FormatDuration(n.Duration)
}

// Options configures a [Session].
type Options struct {
	Output   Output
	Resolver StreamResolver
	Queue    *queue.Engine
	// History is optional.
	History HistoryRecorder
	Logger  *log.Logger
	// Volume is the starting volume in percent.
	Volume int
	// RetryUnreachable retries a resolution once when every backend was unreachable.
	RetryUnreachable bool
	HistoryTimeout   time.Duration
	EventBuffer      int
}

// Session plays one track at a time through a single output.
type Session struct {
	mu        sync.Mutex
	out       Output
	resolver  StreamResolver
	queue     *queue.Engine
	history   HistoryRecorder
	logger    *log.Logger
	retry     bool
	histTTL   time.Duration
	events    chan Event
	ctx       context.Context
	cancel    context.CancelFunc
	reporting sync.WaitGroup

	// gen numbers Play calls; committed is the last one that settled, so the output holds its outcome.
	gen       uint64
	committed uint64
	abort     context.CancelFunc
	track     *models.Track
	status    Status
	volume    int
	closed    bool
}

// New creates a session that owns opts.Output until [Session.Close].
func New(opts Options) *Session {
	if opts.Queue == nil {
		opts.Queue = queue.NewEngine(nil)
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.HistoryTimeout <= 0 {
		opts.HistoryTimeout = 5 * time.Second
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 32
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		out:      opts.Output,
		resolver: opts.Resolver,
		queue:    opts.Queue,
		history:  opts.History,
		logger:   opts.Logger,
		retry:    opts.RetryUnreachable,
		histTTL:  opts.HistoryTimeout,
		events:   make(chan Event, opts.EventBuffer),
		ctx:      ctx,
		cancel:   cancel,
		volume:   shared.ClampInt(opts.Volume, 0, 100),
	}

	if err := s.out.SetVolume(s.volume); err != nil {
		s.logger.Warn("failed to set initial volume", "error", err)
	}
	s.out.OnFinished(func() { go s.handleFinished() })
	return s
}

// Queue returns the engine deciding what plays next.
func (s *Session) Queue() *queue.Engine { return s.queue }

// Events returns the event stream. It is closed by [Session.Close].
func (s *Session) Events() <-chan Event { return s.events }

// PlayFrom establishes a listening context: t is selected in set (or in the current queue when set is nil) and played.
func (s *Session) PlayFrom(ctx context.Context, t models.Track, set []models.Track) error {
	cur := s.queue.PlayTrack(t, set)
	return s.Play(ctx, cur)
}

// PlayIndex selects the queue entry at i and plays it.
func (s *Session) PlayIndex(ctx context.Context, i int) error {
	t, ok := s.queue.Select(i)
	if !ok {
		return ErrNoTrack
	}
	return s.Play(ctx, t)
}

// Play resolves t and switches the output to it, starting at position 0.
//
// The session lock is not held while resolving or loading, so controls and NowPlaying keep
// answering for the previous track. A newer Play cancels this one's context and wins.
//
// On failure the previous track keeps playing and a [*TrackError] is returned. A degraded
// resolution is reported as [ErrDegraded] carrying the external link.
func (s *Session) Play(ctx context.Context, t models.Track) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.abort != nil {
		s.abort()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.abort = cancel
	s.gen++
	gen := s.gen
	s.emit(Event{Kind: EventLoading, Track: t})
	s.mu.Unlock()

	res, err := s.resolve(ctx, t)

	s.mu.Lock()
	if cerr := s.stale(gen); cerr != nil {
		s.mu.Unlock()
		return cerr
	}
	if err != nil {
		defer s.mu.Unlock()
		s.committed = gen
		terr := &TrackError{Track: t, Op: "resolve", Err: err}
		s.logger.Warn("resolution failed", "track", t.ID, "error", err)
		s.emit(Event{Kind: EventFailed, Track: t, Err: terr})
		return terr
	}
	if res.Degraded() {
		defer s.mu.Unlock()
		s.committed = gen
		return s.degraded(t, "resolve", ErrDegraded, res.URL, res.Reason)
	}
	prev, elapsed := s.track, s.out.Position()
	s.mu.Unlock()

	loadErr := s.out.Load(ctx, res.URL)

	s.mu.Lock()
	defer s.mu.Unlock()

	if cerr := s.stale(gen); cerr != nil {
		if loadErr == nil {
			s.orphaned(t, prev, elapsed)
		}
		return cerr
	}
	if loadErr != nil {
		s.committed = gen
		return s.rejected(t, "load", loadErr)
	}
	if err := s.out.SetVolume(s.volume); err != nil {
		s.logger.Warn("failed to apply volume", "error", err)
	}
	if err := s.out.Seek(0); err != nil {
		s.logger.Debug("seek to start failed", "error", err)
	}
	if err := s.out.Play(); err != nil {
		s.committed = gen
		s.orphaned(t, prev, elapsed)
		return s.rejected(t, "start", err)
	}

	if prev != nil && s.track == prev {
		s.report(*prev, elapsed)
	}

	s.track = &t
	s.status = StatusPlaying
	s.committed = gen
	s.logger.Info("playing", "track", t.ID, "title", t.Label(), "source", t.Source)
	s.emit(Event{Kind: EventPlaying, Track: t})
	return nil
}

// stale reports whether the Play numbered gen has been overtaken. Callers hold s.mu.
func (s *Session) stale(gen uint64) error {
	if s.closed {
		return ErrClosed
	}
	if gen != s.gen {
		return ErrSuperseded
	}
	return nil
}

// orphaned records that t was swapped into the output without starting, either because a newer
// Play overtook it after the swap or because the output would not start it. The output now holds
// t paused at 0. Callers hold s.mu.
func (s *Session) orphaned(t models.Track, prev *models.Track, elapsed time.Duration) {
	if s.closed {
		return
	}
	if prev != nil && s.track == prev {
		s.report(*prev, elapsed)
	}
	s.track = &t
	s.status = StatusStopped
	s.logger.Debug("track left loaded without playing", "track", t.ID)
}

// degraded reports that only an external link can play t. Callers hold s.mu.
func (s *Session) degraded(t models.Track, op string, err error, link, reason string) error {
	terr := &TrackError{Track: t, Op: op, Err: err, Link: link}
	s.logger.Info("degraded link only", "track", t.ID, "link", link, "reason", reason)
	s.emit(Event{Kind: EventDegraded, Track: t, Link: link, Err: terr})
	return terr
}

// rejected reports an output failure. Mirror streams the output cannot play fall back to the
// video's public page. Callers hold s.mu.
func (s *Session) rejected(t models.Track, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		terr := &TrackError{Track: t, Op: op, Err: err}
		s.emit(Event{Kind: EventFailed, Track: t, Err: terr})
		return terr
	}
	if !errors.Is(err, ErrPlaybackRejected) {
		err = fmt.Errorf("%w: %v", ErrPlaybackRejected, err)
	}
	if t.Source == models.SourceYouTube && op == "load" {
		return s.degraded(t, op, fmt.Errorf("%w: %w", ErrDegraded, err), resolver.WatchURL(t.SourceTrackID), err.Error())
	}

	terr := &TrackError{Track: t, Op: op, Err: err}
	s.logger.Warn("output rejected track", "track", t.ID, "op", op, "error", err)
	s.emit(Event{Kind: EventFailed, Track: t, Err: terr})
	return terr
}

// resolve asks the resolver, retrying once when every backend was unreachable.
func (s *Session) resolve(ctx context.Context, t models.Track) (resolver.Result, error) {
	res, err := s.resolver.ResolveTrack(ctx, t)
	if err != nil && s.retry && resolver.IsRetryable(err) && ctx.Err() == nil {
		s.logger.Debug("retrying resolution", "track", t.ID, "error", err)
		res, err = s.resolver.ResolveTrack(ctx, t)
	}
	return res, err
}

// Next plays the queue's next track. [ErrNoTrack] means the queue has nothing after the current entry.
func (s *Session) Next(ctx context.Context) error {
	t, ok := s.queue.Next()
	if !ok {
		return ErrNoTrack
	}
	return s.Play(ctx, t)
}

// Previous plays the queue's previous track.
func (s *Session) Previous(ctx context.Context) error {
	t, ok := s.queue.Previous()
	if !ok {
		return ErrNoTrack
	}
	return s.Play(ctx, t)
}

// handleFinished runs when the output reaches the end of the loaded stream.
//
// The queue advances; when there is nothing next, or the next track cannot be played, playback
// stops on the finished track rewound to 0.
func (s *Session) handleFinished() {
	s.mu.Lock()
	if s.closed || s.track == nil || s.gen != s.committed {
		s.mu.Unlock()
		return
	}
	finished := s.track
	s.mu.Unlock()

	if next, ok := s.queue.Next(); ok {
		err := s.Play(s.ctx, next)
		if err == nil || errors.Is(err, ErrSuperseded) || errors.Is(err, ErrClosed) {
			return
		}
		s.logger.Warn("auto-advance failed", "track", next.ID, "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.track != finished || s.gen != s.committed {
		return
	}

	s.report(*finished, s.out.Duration())
	if err := s.out.Stop(); err != nil {
		s.logger.Warn("failed to stop output", "error", err)
	}
	if err := s.out.Seek(0); err != nil {
		s.logger.Debug("rewind failed", "error", err)
	}
	s.status = StatusStopped
	s.emit(Event{Kind: EventStopped, Track: *finished})
}

// Pause halts output without unloading.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.track == nil {
		return ErrNoTrack
	}
	if s.status != StatusPlaying {
		return nil
	}
	if err := s.out.Pause(); err != nil {
		return err
	}
	s.status = StatusPaused
	s.emit(Event{Kind: EventPaused, Track: *s.track})
	return nil
}

// Resume continues a paused or stopped track from its position.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.track == nil {
		return ErrNoTrack
	}
	if s.status == StatusPlaying {
		return nil
	}

	var err error
	if s.status == StatusStopped {
		err = s.out.Play()
	} else {
		err = s.out.Resume()
	}
	if err != nil {
		return err
	}
	s.status = StatusPlaying
	s.emit(Event{Kind: EventResumed, Track: *s.track})
	return nil
}

// Toggle pauses when playing and resumes otherwise.
func (s *Session) Toggle() error {
	s.mu.Lock()
	playing := s.status == StatusPlaying
	s.mu.Unlock()

	if playing {
		return s.Pause()
	}
	return s.Resume()
}

// Stop halts playback and rewinds to 0, keeping the track loaded.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.track == nil {
		return ErrNoTrack
	}
	s.report(*s.track, s.out.Position())
	if err := s.out.Stop(); err != nil {
		return err
	}
	if err := s.out.Seek(0); err != nil {
		s.logger.Debug("rewind failed", "error", err)
	}
	s.status = StatusStopped
	s.emit(Event{Kind: EventStopped, Track: *s.track})
	return nil
}

// Seek moves to pos clamped to [0, duration].
func (s *Session) Seek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seekLocked(pos)
}

// SeekBy moves relative to the current position.
func (s *Session) SeekBy(delta time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seekLocked(s.out.Position() + delta)
}

func (s *Session) seekLocked(pos time.Duration) error {
	if s.track == nil {
		return ErrNoTrack
	}

	dur := s.out.Duration()
	if dur <= 0 && s.track.DurationSec > 0 {
		dur = time.Duration(s.track.DurationSec) * time.Second
	}
	pos = max(pos, 0)
	if dur > 0 {
		pos = min(pos, dur)
	}

	if err := s.out.Seek(pos); err != nil {
		return err
	}
	s.emit(Event{Kind: EventSeeked, Track: *s.track, Position: pos})
	return nil
}

// SetVolume clamps percent to [0, 100], applies it now and keeps it for later tracks.
func (s *Session) SetVolume(percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.volume = shared.ClampInt(percent, 0, 100)
	if err := s.out.SetVolume(s.volume); err != nil {
		return err
	}
	e := Event{Kind: EventVolume, Volume: s.volume}
	if s.track != nil {
		e.Track = *s.track
	}
	s.emit(e)
	return nil
}

// Volume returns the volume in percent.
func (s *Session) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// NowPlaying returns the loaded track and progress.
func (s *Session) NowPlaying() NowPlaying {
	s.mu.Lock()
	defer s.mu.Unlock()

	np := NowPlaying{Status: s.status, Volume: s.volume}
	if s.track == nil {
		return np
	}

	t := *s.track
	np.Track = &t
	np.Position = int(s.out.Position() / time.Second)
	np.Duration = int(s.out.Duration() / time.Second)
	if np.Duration == 0 {
		np.Duration = t.DurationSec
	}
	return np
}

// report hands elapsed play time to the history recorder in the background. Callers hold s.mu.
func (s *Session) report(t models.Track, elapsed time.Duration) {
	if s.history == nil || elapsed < time.Second {
		return
	}

	secs := int(elapsed / time.Second)
	s.reporting.Add(1)
	go func() {
		defer s.reporting.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.histTTL)
		defer cancel()

		if err := s.history.RecordPlay(ctx, t, secs); err != nil {
			s.logger.Warn("failed to record play", "track", t.ID, "error", err)
		}
	}()
}

// Close reports the current track, releases the output and closes the event stream.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.track != nil && s.status != StatusStopped {
		s.report(*s.track, s.out.Position())
	}
	s.gen++
	s.closed = true
	if s.abort != nil {
		s.abort()
	}
	s.cancel()
	close(s.events)
	s.mu.Unlock()

	s.reporting.Wait()
	return s.out.Close()
}
