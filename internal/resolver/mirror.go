package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/desertthunder/openbeats/internal/services"
	"github.com/desertthunder/openbeats/internal/shared"
)

// MirrorKind names the API dialect a mirror speaks.
type MirrorKind string

const (
	MirrorInvidious MirrorKind = "invidious"
	MirrorPiped     MirrorKind = "piped"
)

// preferredCodec wins bitrate ties.
const preferredCodec = "opus"

// AudioFormat is one audio-only stream offered by a mirror.
type AudioFormat struct {
	URL      string `json:"url"`
	Bitrate  int    `json:"bitrate"`
	Codec    string `json:"codec"`
	MimeType string `json:"mimeType"`
}

// Backend fetches the audio streams of a video from one mirror.
type Backend interface {
	Name() string
	Batch() int
	AudioFormats(ctx context.Context, videoID string) ([]AudioFormat, error)
}

// BestFormat picks the highest-bitrate stream with a URL, preferring opus when bitrates tie.
func BestFormat(formats []AudioFormat) (AudioFormat, bool) {
	var best AudioFormat
	found := false
	for _, f := range formats {
		if f.URL == "" {
			continue
		}
		switch {
		case !found, f.Bitrate > best.Bitrate:
			best, found = f, true
		case f.Bitrate == best.Bitrate && isPreferred(f) && !isPreferred(best):
			best = f
		}
	}
	return best, found
}

func isPreferred(f AudioFormat) bool {
	return strings.Contains(strings.ToLower(f.Codec), preferredCodec)
}

// NewBackends builds mirror backends from configuration, sharing client for every request.
func NewBackends(mirrors []shared.MirrorConfig, client *services.Client) ([]Backend, error) {
	backends := make([]Backend, 0, len(mirrors))
	for _, m := range mirrors {
		u, err := url.Parse(m.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: mirror url %q", shared.ErrInvalidConfig, m.URL)
		}
		base := strings.TrimSuffix(m.URL, "/")
		batch := max(m.Batch, 1)

		switch MirrorKind(strings.ToLower(m.Kind)) {
		case MirrorInvidious, "":
			backends = append(backends, &Invidious{BaseURL: base, BatchNum: batch, client: client})
		case MirrorPiped:
			backends = append(backends, &Piped{BaseURL: base, BatchNum: batch, client: client})
		default:
			return nil, fmt.Errorf("%w: mirror kind %q", shared.ErrInvalidConfig, m.Kind)
		}
	}
	return backends, nil
}

// batches groups backends by batch number in ascending order, keeping configuration order within a batch.
func batches(backends []Backend) [][]Backend {
	byNum := make(map[int][]Backend)
	var nums []int
	for _, b := range backends {
		n := b.Batch()
		if _, ok := byNum[n]; !ok {
			nums = append(nums, n)
		}
		byNum[n] = append(byNum[n], b)
	}
	sort.Ints(nums)

	out := make([][]Backend, len(nums))
	for i, n := range nums {
		out[i] = byNum[n]
	}
	return out
}

// flexInt decodes numbers that some APIs send as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type invidiousVideo struct {
	Error           string `json:"error"`
	AdaptiveFormats []struct {
		URL      string  `json:"url"`
		Bitrate  flexInt `json:"bitrate"`
		Type     string  `json:"type"`
		Encoding string  `json:"encoding"`
	} `json:"adaptiveFormats"`
}

// Invidious speaks the Invidious /api/v1/videos API.
type Invidious struct {
	BaseURL  string
	BatchNum int
	client   *services.Client
}

func (i *Invidious) Name() string { return i.BaseURL }
func (i *Invidious) Batch() int   { return i.BatchNum }

func (i *Invidious) AudioFormats(ctx context.Context, videoID string) ([]AudioFormat, error) {
	var video invidiousVideo
	endpoint := fmt.Sprintf("%s/api/v1/videos/%s", i.BaseURL, url.PathEscape(videoID))
	if err := i.client.GetJSON(ctx, "invidious", endpoint, &video); err != nil {
		return nil, err
	}
	if video.Error != "" {
		return nil, fmt.Errorf("%w: %s", services.ErrNoAudio, video.Error)
	}

	var formats []AudioFormat
	for _, f := range video.AdaptiveFormats {
		mime, params, _ := strings.Cut(f.Type, ";")
		if !strings.HasPrefix(mime, "audio/") || f.URL == "" {
			continue
		}
		codec := f.Encoding
		if codec == "" {
			codec = codecParam(params)
		}
		formats = append(formats, AudioFormat{URL: f.URL, Bitrate: int(f.Bitrate), Codec: codec, MimeType: mime})
	}
	return formats, nil
}

// codecParam extracts the value of codecs="..." from a MIME parameter list.
func codecParam(params string) string {
	_, after, ok := strings.Cut(params, "codecs=")
	if !ok {
		return ""
	}
	return strings.Trim(strings.TrimSpace(after), `"`)
}

type pipedStreams struct {
	Error        string `json:"error"`
	AudioStreams []struct {
		URL      string  `json:"url"`
		Bitrate  flexInt `json:"bitrate"`
		Codec    string  `json:"codec"`
		MimeType string  `json:"mimeType"`
	} `json:"audioStreams"`
}

// Piped speaks the Piped /streams API.
type Piped struct {
	BaseURL  string
	BatchNum int
	client   *services.Client
}

func (p *Piped) Name() string { return p.BaseURL }
func (p *Piped) Batch() int   { return p.BatchNum }

func (p *Piped) AudioFormats(ctx context.Context, videoID string) ([]AudioFormat, error) {
	var streams pipedStreams
	endpoint := fmt.Sprintf("%s/streams/%s", p.BaseURL, url.PathEscape(videoID))
	if err := p.client.GetJSON(ctx, "piped", endpoint, &streams); err != nil {
		return nil, err
	}
	if streams.Error != "" {
		return nil, fmt.Errorf("%w: %s", services.ErrNoAudio, streams.Error)
	}

	formats := make([]AudioFormat, 0, len(streams.AudioStreams))
	for _, s := range streams.AudioStreams {
		if s.URL == "" {
			continue
		}
		formats = append(formats, AudioFormat{URL: s.URL, Bitrate: int(s.Bitrate), Codec: s.Codec, MimeType: s.MimeType})
	}
	return formats, nil
}

var _ json.Unmarshaler = (*flexInt)(nil)
