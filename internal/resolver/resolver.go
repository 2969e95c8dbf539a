package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/services"
	"golang.org/x/sync/singleflight"
)

// Kind distinguishes embeddable audio from a fallback link.
type Kind int

const (
	// KindDirect is a URL the audio output can load.
	KindDirect Kind = iota
	// KindDegraded is an external page to open outside the player.
	KindDegraded
)

func (k Kind) String() string {
	if k == KindDegraded {
		return "degraded"
	}
	return "direct"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Result is a successful resolution.
type Result struct {
	Kind    Kind          `json:"kind"`
	URL     string        `json:"url"`
	Source  models.Source `json:"source"`
	Mirror  string        `json:"mirror,omitempty"`
	Bitrate int           `json:"bitrate,omitempty"`
	Codec   string        `json:"codec,omitempty"`
	Cached  bool          `json:"cached"`
	// Reason explains why a degraded link was returned.
	Reason string `json:"reason,omitempty"`
}

// Degraded reports whether the result is a fallback link.
func (r Result) Degraded() bool { return r.Kind == KindDegraded }

// WatchURL is the public page of a video, used as the degraded link.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// Options configures a [Resolver].
type Options struct {
	Locators         []services.AudioLocator
	Backends         []Backend
	MirrorTimeout    time.Duration
	CacheTTL         time.Duration
	DegradedFallback bool
	// Budget bounds one shared resolution regardless of who is waiting on it.
	Budget time.Duration
	Now    func() time.Time
}

// Resolver resolves tracks to playable URLs. It is safe for concurrent use.
type Resolver struct {
	locators map[models.Source]services.AudioLocator
	batches  [][]Backend
	timeout  time.Duration
	degraded bool
	budget   time.Duration
	cache    *Cache
	flight   singleflight.Group
	logger   *log.Logger
}

// New creates a Resolver.
func New(logger *log.Logger, opts Options) *Resolver {
	timeout := opts.MirrorTimeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}

	r := &Resolver{
		locators: make(map[models.Source]services.AudioLocator, len(opts.Locators)),
		batches:  batches(opts.Backends),
		timeout:  timeout,
		degraded: opts.DegradedFallback,
		cache:    NewCache(opts.CacheTTL, opts.Now),
		logger:   logger,
	}
	for _, l := range opts.Locators {
		r.locators[l.Source()] = l
	}

	r.budget = opts.Budget
	if r.budget <= 0 {
		r.budget = time.Duration(len(r.batches)+1)*timeout + 10*time.Second
	}
	return r
}

// Cache exposes the URL cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// ResolveTrack resolves t by its source and provider id.
func (r *Resolver) ResolveTrack(ctx context.Context, t models.Track) (Result, error) {
	return r.Resolve(ctx, t.Source, t.SourceTrackID)
}

// Resolve returns a playable URL for the track, from cache when fresh.
//
// A resolution already in flight for the same key is awaited rather than repeated. The caller's
// ctx only bounds its own wait; the shared work is bounded by the resolver budget.
func (r *Resolver) Resolve(ctx context.Context, source models.Source, sourceTrackID string) (Result, error) {
	key := models.TrackKey{Source: source, SourceTrackID: sourceTrackID}
	if res, ok := r.cache.Get(key); ok {
		res.Cached = true
		return res, nil
	}

	ch := r.flight.DoChan(key.String(), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.budget)
		defer cancel()

		res, err := r.resolve(fctx, key)
		if err == nil && res.Kind == KindDirect {
			r.cache.Put(key, res)
		}
		return res, err
	})

	select {
	case out := <-ch:
		if out.Err != nil {
			return Result{}, out.Err
		}
		return out.Val.(Result), nil
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %v", ErrAllBackendsUnreachable, ctx.Err())
	}
}

func (r *Resolver) resolve(ctx context.Context, key models.TrackKey) (Result, error) {
	if key.SourceTrackID == "" {
		return Result{}, fmt.Errorf("%w: empty track id", ErrNoAudioAvailable)
	}

	if key.Source == models.SourceYouTube {
		return r.resolveVideo(ctx, key.SourceTrackID)
	}

	locator, ok := r.locators[key.Source]
	if !ok {
		if _, err := models.ParseSource(string(key.Source)); err != nil {
			return Result{}, fmt.Errorf("%w: %q", ErrUnknownSource, key.Source)
		}
		return Result{}, fmt.Errorf("%w: %s", ErrNotConfigured, key.Source)
	}

	u, err := locator.AudioURL(ctx, key.SourceTrackID)
	if err != nil {
		return Result{}, classify(key, err)
	}
	return Result{Kind: KindDirect, URL: u, Source: key.Source}, nil
}

// classify maps a provider error onto the resolver taxonomy.
func classify(key models.TrackKey, err error) error {
	switch {
	case errors.Is(err, services.ErrNotConfigured):
		return fmt.Errorf("%w: %s: %v", ErrNotConfigured, key, err)
	case errors.Is(err, services.ErrNoAudio), errors.Is(err, services.ErrNotFound):
		return fmt.Errorf("%w: %s: %v", ErrNoAudioAvailable, key, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrAllBackendsUnreachable, key, err)
	}
}

// resolveVideo races each mirror batch in turn. The next batch starts only after the whole previous batch failed.
func (r *Resolver) resolveVideo(ctx context.Context, videoID string) (Result, error) {
	answered := false
	for i, batch := range r.batches {
		win, failures, ok := race(ctx, batch, videoID, r.timeout)
		if ok {
			r.logger.Debug("mirror won", "video", videoID, "mirror", win.backend.Name(), "bitrate", win.format.Bitrate, "codec", win.format.Codec)
			return Result{
				Kind:    KindDirect,
				URL:     win.format.URL,
				Source:  models.SourceYouTube,
				Mirror:  win.backend.Name(),
				Bitrate: win.format.Bitrate,
				Codec:   win.format.Codec,
			}, nil
		}

		for _, f := range failures {
			answered = answered || f.answered()
			r.logger.Debug("mirror failed", "video", videoID, "mirror", f.backend.Name(), "error", f.err)
		}
		r.logger.Warn("mirror batch exhausted", "video", videoID, "batch", i+1, "mirrors", len(batch))

		if ctx.Err() != nil {
			break
		}
	}

	var cause error
	switch {
	case len(r.batches) == 0:
		cause = fmt.Errorf("%w: no mirrors configured", ErrNotConfigured)
	case answered:
		cause = fmt.Errorf("%w: ytmusic:%s", ErrNoAudioAvailable, videoID)
	default:
		cause = fmt.Errorf("%w: ytmusic:%s", ErrAllBackendsUnreachable, videoID)
	}

	if r.degraded {
		return Result{Kind: KindDegraded, URL: WatchURL(videoID), Source: models.SourceYouTube, Reason: cause.Error()}, nil
	}
	return Result{}, cause
}

// Run sweeps expired cache entries every interval until ctx is done.
func (r *Resolver) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.cache.Sweep(); n > 0 {
				r.logger.Debug("swept stream cache", "removed", n)
			}
		}
	}
}
