// Package resampler converts 16-bit PCM buffers between sample rates and
// channel layouts.
//
// Rate conversion uses the pure Go port of the SoX resampler
// (github.com/tphakala/go-audio-resampling), so no CGO is required.
// Channel conversion (mono to stereo or stereo to mono) is done directly on
// the int16 samples.
//
// Example usage:
//
//	src := resampler.Format{SampleRate: 44100, Stereo: true}
//	dst := resampler.Format{SampleRate: 16000, Stereo: false}
//	out, err := resampler.Convert(pcm, src, dst)
//	if err != nil {
//	    return err
//	}
package resampler
