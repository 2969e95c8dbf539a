package audio

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// ErrUnsupportedFormat means the stream is in a container or codec the output cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Format is a decodable container.
type Format string

const (
	FormatMP3    Format = "mp3"
	FormatWAV    Format = "wav"
	FormatFLAC   Format = "flac"
	FormatVorbis Format = "ogg"

	// Containers below have no pure Go decoder and go through a [Transcoder] first.
	FormatWebM Format = "webm"
	FormatMP4  Format = "mp4"
	FormatOpus Format = "opus"
)

// Native reports whether f decodes without a [Transcoder].
func (f Format) Native() bool {
	switch f {
	case FormatMP3, FormatWAV, FormatFLAC, FormatVorbis:
		return true
	}
	return false
}

// Sniff identifies the container from its leading bytes, falling back to the content type and
// then the URL's extension.
func Sniff(head []byte, contentType, url string) (Format, error) {
	switch {
	case bytes.HasPrefix(head, []byte("ID3")):
		return FormatMP3, nil
	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return FormatWAV, nil
	case bytes.HasPrefix(head, []byte("fLaC")):
		return FormatFLAC, nil
	case bytes.HasPrefix(head, []byte("OggS")):
		if bytes.Contains(head, []byte("OpusHead")) {
			return FormatOpus, nil
		}
		return FormatVorbis, nil
	case bytes.HasPrefix(head, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return FormatWebM, nil
	case len(head) >= 8 && bytes.Equal(head[4:8], []byte("ftyp")):
		return FormatMP4, nil
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return FormatMP3, nil
	}

	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "audio/mpeg", "audio/mp3":
			return FormatMP3, nil
		case "audio/wav", "audio/x-wav", "audio/wave":
			return FormatWAV, nil
		case "audio/flac", "audio/x-flac":
			return FormatFLAC, nil
		case "audio/ogg", "audio/vorbis":
			return FormatVorbis, nil
		case "audio/webm", "video/webm":
			return FormatWebM, nil
		case "audio/mp4", "audio/x-m4a", "audio/aac", "video/mp4":
			return FormatMP4, nil
		case "audio/opus":
			return FormatOpus, nil
		}
	}

	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	switch strings.ToLower(path.Ext(url)) {
	case ".mp3":
		return FormatMP3, nil
	case ".wav":
		return FormatWAV, nil
	case ".flac":
		return FormatFLAC, nil
	case ".ogg", ".oga":
		return FormatVorbis, nil
	case ".webm":
		return FormatWebM, nil
	case ".m4a", ".mp4", ".aac":
		return FormatMP4, nil
	case ".opus":
		return FormatOpus, nil
	}

	return "", fmt.Errorf("%w: unrecognised stream (%s)", ErrUnsupportedFormat, contentType)
}

// seekCloser makes an in-memory body seekable for decoders that take an io.ReadCloser.
type seekCloser struct{ *bytes.Reader }

func (seekCloser) Close() error { return nil }

// Decode decodes an in-memory body of the given format.
func Decode(f Format, body []byte) (beep.StreamSeekCloser, beep.Format, error) {
	rc := seekCloser{bytes.NewReader(body)}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch f {
	case FormatMP3:
		s, format, err = mp3.Decode(rc)
	case FormatWAV:
		s, format, err = wav.Decode(rc)
	case FormatFLAC:
		s, format, err = flac.Decode(rc)
	case FormatVorbis:
		s, format, err = vorbis.Decode(rc)
	case FormatWebM, FormatMP4, FormatOpus:
		return nil, beep.Format{}, fmt.Errorf("%w: %s needs transcoding", ErrUnsupportedFormat, f)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	return s, format, nil
}
