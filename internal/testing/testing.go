// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desertthunder/openbeats/internal/models"
)

// MakeTracks builds n distinct tracks for source, ids "t1".."tN".
func MakeTracks(source models.Source, n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range n {
		id := fmt.Sprintf("t%d", i+1)
		tracks[i] = models.NewTrack(source, id, models.TrackOpts{
			Title:       fmt.Sprintf("Track %d", i+1),
			Artists:     []string{"Test Artist"},
			DurationSec: 180,
		})
	}
	return tracks
}

// IDs returns the ids of tracks in order.
func IDs(tracks []models.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

// FakeAdapter is a test double for services.Adapter and services.AudioLocator
type FakeAdapter struct {
	Src    models.Source
	Tracks []models.Track
	URL    string
	Err    error
	Delay  time.Duration

	calls atomic.Int32
}

func (f *FakeAdapter) Source() models.Source { return f.Src }

func (f *FakeAdapter) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	f.calls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if limit > 0 && limit < len(f.Tracks) {
		return f.Tracks[:limit], nil
	}
	return f.Tracks, nil
}

func (f *FakeAdapter) AudioURL(ctx context.Context, sourceTrackID string) (string, error) {
	f.calls.Add(1)
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.URL + "/" + sourceTrackID, nil
}

// Calls reports how many times Search or AudioURL ran.
func (f *FakeAdapter) Calls() int { return int(f.calls.Load()) }

func (f *FakeAdapter) wait(ctx context.Context) error {
	if f.Delay == 0 {
		return nil
	}
	select {
	case <-time.After(f.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock { return &Clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}
