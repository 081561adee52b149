package resampler

import "fmt"

// Format describes a 16-bit signed little-endian PCM layout.
type Format struct {
	// SampleRate is the sample rate in Hz (e.g., 16000, 44100).
	SampleRate int

	// Stereo indicates stereo (2 channels) if true, mono (1 channel) if false.
	Stereo bool
}

func (f Format) channels() int {
	if f.Stereo {
		return 2
	}
	return 1
}

// sampleBytes is the size of one frame (all channels) in bytes.
func (f Format) sampleBytes() int {
	if f.Stereo {
		return 4
	}
	return 2
}

// Frames returns the number of whole frames in n bytes.
func (f Format) Frames(n int) int {
	return n / f.sampleBytes()
}

func (f Format) validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("resampler: invalid sample rate %d", f.SampleRate)
	}
	return nil
}
