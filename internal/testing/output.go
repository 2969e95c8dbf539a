package testing

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/openbeats/internal/models"
)

// FakeOutput is an in-memory audio output. Position only moves through Seek or SetPosition.
type FakeOutput struct {
	mu       sync.Mutex
	gate     chan struct{}
	waiting  int
	loaded   string
	loads    []string
	playing  bool
	pos      time.Duration
	dur      time.Duration
	volume   int
	closed   bool
	finished func()

	// LoadErr, when set, is returned by Load for any URL it returns true for.
	LoadErr func(url string) error
	PlayErr error
	// Length is the duration reported for every loaded stream.
	Length time.Duration
}

func NewFakeOutput() *FakeOutput { return &FakeOutput{Length: 3 * time.Minute} }

func (o *FakeOutput) Load(ctx context.Context, url string) error {
	o.mu.Lock()
	gate := o.gate
	if gate != nil {
		o.waiting++
	}
	o.mu.Unlock()
	if gate != nil {
		var err error
		select {
		case <-gate:
		case <-ctx.Done():
			err = ctx.Err()
		}
		o.mu.Lock()
		o.waiting--
		o.mu.Unlock()
		if err != nil {
			return err
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.LoadErr != nil {
		if err := o.LoadErr(url); err != nil {
			return err
		}
	}
	o.loaded = url
	o.loads = append(o.loads, url)
	o.playing = false
	o.pos = 0
	o.dur = o.Length
	return nil
}

func (o *FakeOutput) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.PlayErr != nil {
		return o.PlayErr
	}
	o.playing = true
	return nil
}

func (o *FakeOutput) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.playing = false
	return nil
}

func (o *FakeOutput) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.playing = true
	return nil
}

func (o *FakeOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.playing = false
	return nil
}

func (o *FakeOutput) Seek(pos time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pos = pos
	return nil
}

func (o *FakeOutput) SetVolume(percent int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = percent
	return nil
}

func (o *FakeOutput) Position() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pos
}

func (o *FakeOutput) Duration() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dur
}

func (o *FakeOutput) OnFinished(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = fn
}

func (o *FakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.playing = false
	return nil
}

// SetPosition simulates playback progress.
func (o *FakeOutput) SetPosition(pos time.Duration) { _ = o.Seek(pos) }

// Finish simulates the loaded stream ending on its own.
func (o *FakeOutput) Finish() {
	o.mu.Lock()
	fn := o.finished
	o.pos = o.dur
	o.playing = false
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SetGate makes Load wait until gate is closed or the load context is done. nil clears it.
func (o *FakeOutput) SetGate(gate chan struct{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gate = gate
}

// Waiting returns how many Loads are blocked on the gate.
func (o *FakeOutput) Waiting() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.waiting
}

func (o *FakeOutput) Loaded() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loaded
}

// Loads returns every URL successfully loaded, in order.
func (o *FakeOutput) Loads() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.loads...)
}

func (o *FakeOutput) Playing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.playing
}

func (o *FakeOutput) Volume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

func (o *FakeOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Play is one recorded history entry.
type Play struct {
	Track   models.Track
	Seconds int
}

// FakeRecorder collects plays reported to a history recorder.
type FakeRecorder struct {
	mu    sync.Mutex
	plays []Play
	Err   error
}

func (r *FakeRecorder) RecordPlay(_ context.Context, t models.Track, secs int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.plays = append(r.plays, Play{Track: t, Seconds: secs})
	return nil
}

func (r *FakeRecorder) Plays() []Play {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Play(nil), r.plays...)
}
