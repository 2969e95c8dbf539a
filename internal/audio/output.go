package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/openbeats/internal/shared"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

const (
	DefaultSampleRate = 44100
	// DefaultMaxBytes bounds how much of one stream is held in memory.
	DefaultMaxBytes = 256 << 20
	resampleQuality = 4
	sniffLen        = 512
)

var (
	ErrNothingLoaded = errors.New("nothing loaded")
	ErrTooLarge      = errors.New("stream too large")
)

// Speaker is the device the decoded samples are pushed to.
type Speaker interface {
	Init(sr beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	Clear()
	Lock()
	Unlock()
	Close()
}

// SystemSpeaker is the default sound card through beep's speaker package.
type SystemSpeaker struct{}

func (SystemSpeaker) Init(sr beep.SampleRate, bufferSize int) error { return speaker.Init(sr, bufferSize) }
func (SystemSpeaker) Play(s ...beep.Streamer)                      { speaker.Play(s...) }
func (SystemSpeaker) Clear()                                       { speaker.Clear() }
func (SystemSpeaker) Lock()                                        { speaker.Lock() }
func (SystemSpeaker) Unlock()                                      { speaker.Unlock() }
func (SystemSpeaker) Close()                                       { speaker.Close() }

type Options struct {
	Client     *http.Client
	Speaker    Speaker
	SampleRate int
	MaxBytes   int64
	// Transcoder handles WebM, MP4 and Opus. Without one those streams are refused.
	Transcoder Transcoder
	Logger     *log.Logger
}

// Output holds at most one decoded track and plays it through a [Speaker].
type Output struct {
	mu       sync.Mutex
	client   *http.Client
	spk      Speaker
	rate     beep.SampleRate
	maxBytes int64
	tc       Transcoder
	logger   *log.Logger
	ready    bool

	stream  beep.StreamSeekCloser
	format  beep.Format
	ctrl    *beep.Ctrl
	volume  *effects.Volume
	percent int

	// gen, ended and finished are read from the speaker goroutine.
	gen      atomic.Uint64
	ended    atomic.Bool
	finished atomic.Pointer[func()]
}

func NewOutput(opts Options) *Output {
	if opts.Client == nil {
		// Streams can be long; the request context bounds the download instead.
		opts.Client = &http.Client{}
	}
	if opts.Speaker == nil {
		opts.Speaker = SystemSpeaker{}
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	return &Output{
		client:   opts.Client,
		spk:      opts.Speaker,
		rate:     beep.SampleRate(opts.SampleRate),
		maxBytes: opts.MaxBytes,
		tc:       opts.Transcoder,
		logger:   opts.Logger,
		percent:  100,
	}
}

func (o *Output) init() error {
	if o.ready {
		return nil
	}
	if err := o.spk.Init(o.rate, o.rate.N(time.Second/10)); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	o.ready = true
	o.logger.Debug("speaker initialized", "sample_rate", int(o.rate))
	return nil
}

// Load downloads and decodes url, replacing the current track paused at position 0.
// Nothing changes if any step fails or ctx is done before the swap. The current track keeps
// playing while the download runs.
func (o *Output) Load(ctx context.Context, url string) error {
	body, contentType, err := o.fetch(ctx, url)
	if err != nil {
		return err
	}

	f, err := Sniff(body[:min(len(body), sniffLen)], contentType, url)
	if err != nil {
		return err
	}
	if !f.Native() {
		if body, err = o.transcode(ctx, f, body); err != nil {
			return err
		}
		f = FormatWAV
	}
	s, format, err := Decode(f, body)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		s.Close()
		return err
	}
	if err := o.init(); err != nil {
		s.Close()
		return err
	}

	o.spk.Clear()
	if o.stream != nil {
		o.stream.Close()
	}

	o.gen.Add(1)
	o.ended.Store(false)
	o.stream, o.format = s, format
	o.spk.Play(o.chain())

	o.logger.Debug("loaded stream", "format", f, "sample_rate", int(format.SampleRate), "bytes", len(body))
	return nil
}

func (o *Output) transcode(ctx context.Context, f Format, body []byte) ([]byte, error) {
	if o.tc == nil {
		return nil, fmt.Errorf("%w: %s needs ffmpeg", ErrUnsupportedFormat, f)
	}
	wav, err := o.tc.Transcode(ctx, f, body)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("transcoded stream", "format", f, "in", len(body), "out", len(wav))
	return wav, nil
}

func (o *Output) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, o.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read stream: %w", err)
	}
	if int64(len(body)) > o.maxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, o.maxBytes)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// chain builds the speaker pipeline for the loaded stream. Callers hold o.mu.
func (o *Output) chain() beep.Streamer {
	var s beep.Streamer = o.stream
	if o.format.SampleRate != o.rate {
		s = beep.Resample(resampleQuality, o.format.SampleRate, o.rate, s)
	}

	o.ctrl = &beep.Ctrl{Streamer: s, Paused: true}
	o.volume = &effects.Volume{Streamer: o.ctrl, Base: 2}
	applyVolume(o.volume, o.percent)

	gen := o.gen.Load()
	return beep.Seq(o.volume, beep.Callback(func() { o.end(gen) }))
}

// end runs on the speaker goroutine with the speaker locked.
func (o *Output) end(gen uint64) {
	if gen != o.gen.Load() {
		return
	}
	o.ended.Store(true)
	if fn := o.finished.Load(); fn != nil {
		go (*fn)()
	}
}

// OnFinished registers fn to run when a loaded stream plays through to its end.
func (o *Output) OnFinished(fn func()) { o.finished.Store(&fn) }

func (o *Output) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.setPaused(false)
}

func (o *Output) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.setPaused(true)
}

func (o *Output) Resume() error { return o.Play() }

// Stop pauses without unloading.
func (o *Output) Stop() error { return o.Pause() }

func (o *Output) setPaused(paused bool) error {
	if o.stream == nil {
		return ErrNothingLoaded
	}
	if !paused && o.ended.Swap(false) {
		o.spk.Play(o.chain())
	}

	o.spk.Lock()
	o.ctrl.Paused = paused
	o.spk.Unlock()
	return nil
}

// Seek moves to pos clamped to the stream.
func (o *Output) Seek(pos time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stream == nil {
		return ErrNothingLoaded
	}

	o.spk.Lock()
	defer o.spk.Unlock()

	n := shared.ClampInt(o.format.SampleRate.N(pos), 0, o.stream.Len())
	if err := o.stream.Seek(n); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	return nil
}

func (o *Output) Position() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stream == nil {
		return 0
	}
	o.spk.Lock()
	defer o.spk.Unlock()
	return o.format.SampleRate.D(o.stream.Position())
}

func (o *Output) Duration() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stream == nil {
		return 0
	}
	o.spk.Lock()
	defer o.spk.Unlock()
	return o.format.SampleRate.D(o.stream.Len())
}

// SetVolume sets loudness in percent. 0 mutes.
func (o *Output) SetVolume(percent int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.percent = shared.ClampInt(percent, 0, 100)
	if o.volume == nil {
		return nil
	}
	o.spk.Lock()
	applyVolume(o.volume, o.percent)
	o.spk.Unlock()
	return nil
}

// applyVolume maps percent onto a base-2 gain so each halving of percent is one step quieter.
func applyVolume(v *effects.Volume, percent int) {
	v.Silent = percent <= 0
	if v.Silent {
		return
	}
	v.Volume = math.Log2(float64(percent) / 100)
}

// Close releases the stream and the speaker.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.gen.Add(1)
	if !o.ready {
		return nil
	}

	o.spk.Clear()
	if o.stream != nil {
		o.stream.Close()
		o.stream = nil
	}
	o.spk.Close()
	o.ready = false
	return nil
}
