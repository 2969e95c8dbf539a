package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

const (
	FFmpegCommand  = "ffmpeg"
	FFmpegLogLevel = "error"
	pcmChannels    = 2
	pcmSampleBytes = 2
)

// Transcoder turns a container beep cannot decode into WAV.
type Transcoder interface {
	Transcode(ctx context.Context, f Format, body []byte) ([]byte, error)
}

// FFmpeg transcodes through an ffmpeg subprocess into 16-bit stereo PCM at SampleRate.
type FFmpeg struct {
	Path       string
	SampleRate int
}

// NewFFmpeg locates ffmpeg at path, or on PATH when path is empty.
func NewFFmpeg(path string, sampleRate int) (*FFmpeg, error) {
	if path == "" {
		path = FFmpegCommand
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not available: %w", err)
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &FFmpeg{Path: resolved, SampleRate: sampleRate}, nil
}

// Transcode writes body to a temporary file so ffmpeg can seek in containers that keep their
// index at the end, and reads raw PCM back from stdout.
func (f *FFmpeg) Transcode(ctx context.Context, format Format, body []byte) ([]byte, error) {
	in, err := os.CreateTemp("", "openbeats-*."+string(format))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(in.Name())

	if _, err := in.Write(body); err != nil {
		in.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	cmd := exec.CommandContext(ctx, f.Path, f.args(in.Name())...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: ffmpeg failed on %s: %v: %s", ErrUnsupportedFormat, format, err, strings.TrimSpace(stderr.String()))
	}

	pcm := stdout.Bytes()
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: ffmpeg produced no audio from %s", ErrUnsupportedFormat, format)
	}
	return PCMToWAV(pcm, f.SampleRate), nil
}

func (f *FFmpeg) args(input string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", FFmpegLogLevel,
		"-i", input,
		"-vn",
		"-ac", strconv.Itoa(pcmChannels),
		"-ar", strconv.Itoa(f.SampleRate),
		"-f", "s16le", "-acodec", "pcm_s16le",
		"pipe:1",
	}
}

// PCMToWAV wraps interleaved 16-bit little-endian stereo samples in a WAV header.
// A trailing partial frame is dropped.
func PCMToWAV(pcm []byte, sampleRate int) []byte {
	frame := pcmChannels * pcmSampleBytes
	pcm = pcm[:len(pcm)-len(pcm)%frame]

	var b bytes.Buffer
	b.Grow(44 + len(pcm))
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+len(pcm)))
	b.WriteString("WAVEfmt ")
	for _, v := range []any{
		uint32(16),
		uint16(1), // PCM
		uint16(pcmChannels),
		uint32(sampleRate),
		uint32(sampleRate * frame),
		uint16(frame),
		uint16(pcmSampleBytes * 8),
	} {
		_ = binary.Write(&b, binary.LittleEndian, v)
	}
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}
