package resampler

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// tailMillis is the amount of silence appended before rate conversion so the
// filter's internal delay line is drained into the output.
const tailMillis = 50

// Convert returns pcm converted from src to dst. Trailing bytes that do not
// form a whole frame are dropped.
func Convert(pcm []byte, src, dst Format) ([]byte, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	if err := dst.validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, src.Frames(len(pcm))*src.sampleBytes())
	copy(buf, pcm)

	// Downmix before resampling so the filter runs on fewer channels.
	switch {
	case src.Stereo && !dst.Stereo:
		buf = buf[:stereoToMono(buf)]
	case !src.Stereo && dst.Stereo:
		out := make([]byte, len(buf)*2)
		copy(out, buf)
		buf = out[:monoToStereo(out)]
	}

	if src.SampleRate == dst.SampleRate || len(buf) == 0 {
		return buf, nil
	}
	return resample(buf, src.SampleRate, dst)
}

func resample(buf []byte, srcRate int, dst Format) ([]byte, error) {
	ch := dst.channels()
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dst.SampleRate),
		Channels:   ch,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}

	n := len(buf) / 2
	tail := srcRate * tailMillis / 1000 * ch
	input := make([]float64, n+tail)
	for i := 0; i < n; i++ {
		s := int16(buf[i*2]) | int16(buf[i*2+1])<<8
		input[i] = float64(s) / 32768.0
	}

	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}

	frames := n / ch
	want := int(math.Round(float64(frames)*float64(dst.SampleRate)/float64(srcRate))) * ch
	if len(output) > want {
		output = output[:want]
	}
	output = output[:len(output)/ch*ch]

	out := make([]byte, len(output)*2)
	for i, s := range output {
		var sample int16
		switch {
		case s >= 1.0:
			sample = math.MaxInt16
		case s < -1.0:
			sample = math.MinInt16
		default:
			sample = int16(s * 32767.0)
		}
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	return out, nil
}

// stereoToMono converts stereo 16-bit samples to mono in-place by averaging L
// and R channels. It returns the mono length in bytes.
func stereoToMono(b []byte) int {
	numFrames := len(b) / 4
	for i := range numFrames {
		j := i * 4
		k := i * 2
		l := int16(b[j]) | int16(b[j+1])<<8
		r := int16(b[j+2]) | int16(b[j+3])<<8
		m := int16((int32(l) + int32(r)) / 2)
		b[k] = byte(m)
		b[k+1] = byte(m >> 8)
	}
	return numFrames * 2
}

// monoToStereo expands mono samples stored in the first half of b to stereo
// in-place by duplicating each sample. It returns len(b).
func monoToStereo(b []byte) int {
	stereoLen := len(b)
	numSamples := stereoLen / 4
	for i := numSamples - 1; i >= 0; i-- {
		s0, s1 := b[i*2], b[i*2+1]
		j := i * 4
		b[j], b[j+1] = s0, s1
		b[j+2], b[j+3] = s0, s1
	}
	return stereoLen
}
