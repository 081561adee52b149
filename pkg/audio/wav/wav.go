// Package wav decodes RIFF/WAVE files into 16-bit PCM and prepares them for
// speaker models (mono, fixed sample rate).
//
// Integer PCM at 8, 16, 24 and 32 bits is supported, including
// WAVE_FORMAT_EXTENSIBLE headers that carry integer PCM. Floating point and
// compressed encodings are rejected with [ErrUnsupportedFormat].
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/haivivi/spkembed/pkg/audio/resampler"
)

// Sentinel errors.
var (
	// ErrInvalidWAV is returned when the input is not a RIFF/WAVE file.
	ErrInvalidWAV = errors.New("wav: invalid file")

	// ErrUnsupportedFormat is returned for non-integer or unusual encodings.
	ErrUnsupportedFormat = errors.New("wav: unsupported format")
)

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// Audio is decoded PCM audio with interleaved int16 samples.
type Audio struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Frames returns the number of sample frames.
func (a *Audio) Frames() int {
	if a.Channels == 0 {
		return 0
	}
	return len(a.Samples) / a.Channels
}

// Duration returns the playback duration.
func (a *Audio) Duration() time.Duration {
	if a.SampleRate == 0 {
		return 0
	}
	return time.Duration(a.Frames()) * time.Second / time.Duration(a.SampleRate)
}

// Mono returns a single-channel copy, averaging all channels.
func (a *Audio) Mono() *Audio {
	if a.Channels <= 1 {
		return &Audio{SampleRate: a.SampleRate, Channels: 1, Samples: append([]int16(nil), a.Samples...)}
	}
	n := a.Frames()
	out := make([]int16, n)
	for i := range n {
		var sum int32
		for c := 0; c < a.Channels; c++ {
			sum += int32(a.Samples[i*a.Channels+c])
		}
		out[i] = int16(sum / int32(a.Channels))
	}
	return &Audio{SampleRate: a.SampleRate, Channels: 1, Samples: out}
}

// PCM16 returns the samples as little-endian bytes.
func (a *Audio) PCM16() []byte {
	b := make([]byte, len(a.Samples)*2)
	for i, s := range a.Samples {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// Decode reads a complete WAV stream.
func Decode(r io.ReadSeeker) (*Audio, error) {
	d := gowav.NewDecoder(r)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return nil, ErrInvalidWAV
	}
	if d.WavAudioFormat != formatPCM && d.WavAudioFormat != formatExtensible {
		return nil, fmt.Errorf("%w: audio format %d", ErrUnsupportedFormat, d.WavAudioFormat)
	}
	if d.NumChans == 0 {
		return nil, fmt.Errorf("%w: zero channels", ErrInvalidWAV)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: decode: %w", err)
	}
	samples, err := toInt16(buf.Data, int(d.BitDepth))
	if err != nil {
		return nil, err
	}
	return &Audio{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		Samples:    samples,
	}, nil
}

// ReadFile decodes the WAV file at path.
func ReadFile(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	defer f.Close()

	a, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return a, nil
}

// WriteFile encodes a as 16-bit PCM WAV at path.
func WriteFile(path string, a *Audio) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	enc := gowav.NewEncoder(f, a.SampleRate, 16, a.Channels, formatPCM)
	data := make([]int, len(a.Samples))
	for i, s := range a.Samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: a.Channels, SampleRate: a.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("wav: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("wav: encode: %w", err)
	}
	return f.Close()
}

func toInt16(data []int, bitDepth int) ([]int16, error) {
	out := make([]int16, len(data))
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned with a 128 midpoint.
		for i, v := range data {
			out[i] = int16((v - 128) << 8)
		}
	case 16:
		for i, v := range data {
			out[i] = int16(v)
		}
	case 24:
		for i, v := range data {
			out[i] = int16(v >> 8)
		}
	case 32:
		for i, v := range data {
			out[i] = int16(v >> 16)
		}
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, bitDepth)
	}
	return out, nil
}

// Loader turns audio files into mono PCM16 at a fixed sample rate.
type Loader struct {
	// SampleRate is the output rate in Hz (16000 for most speaker models).
	SampleRate int
}

// Load decodes path, downmixes to mono and resamples to l.SampleRate.
// The result is PCM16 little-endian bytes.
func (l Loader) Load(path string) ([]byte, error) {
	a, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if a.Frames() == 0 {
		return nil, fmt.Errorf("wav: no samples in %s", path)
	}
	mono := a.Mono()
	rate := l.SampleRate
	if rate == 0 {
		rate = mono.SampleRate
	}
	pcm, err := resampler.Convert(mono.PCM16(),
		resampler.Format{SampleRate: mono.SampleRate},
		resampler.Format{SampleRate: rate},
	)
	if err != nil {
		return nil, fmt.Errorf("wav: %s: %w", path, err)
	}
	return pcm, nil
}
