// Package fbank computes log mel filterbank features from PCM audio.
//
// This is the front-end expected by Kaldi-trained speaker encoders such as
// WeSpeaker ResNet and 3D-Speaker ERes2Net. The output is a [T, numMels]
// float32 matrix suitable for direct input to ONNX inference.
//
// Default parameters follow Kaldi's compute-fbank-feats with dither off:
//
//	SampleRate:  16000
//	WindowSize:  400 (25 ms)
//	HopSize:     160 (10 ms)
//	FFTSize:     512
//	NumMels:     80
//	LowFreq:     20
//	HighFreq:    0 (Nyquist)
//	PreEmphasis: 0.97
//	Window:      hamming
//	ScaleInt16:  true
//	CMN:         mean
package fbank

import (
	"fmt"
	"math"
)

// Window selects the analysis window.
type Window string

const (
	// WindowHamming is the classic 0.54/0.46 Hamming window.
	WindowHamming Window = "hamming"
	// WindowPovey is Kaldi's default: a Hann window raised to the power 0.85.
	WindowPovey Window = "povey"
)

// CMN selects per-utterance cepstral mean (and variance) normalization.
type CMN string

const (
	CMNNone    CMN = "none"
	CMNMean    CMN = "mean"
	CMNMeanVar CMN = "meanvar"
)

// logFloor matches Kaldi's use of FLT_EPSILON before taking the log.
const logFloor = 1.1920929e-07

// Config controls mel filterbank extraction parameters.
type Config struct {
	SampleRate  int     `yaml:"sample_rate"`  // audio sample rate in Hz (default 16000)
	WindowSize  int     `yaml:"window_size"`  // window length in samples (default 400 = 25ms)
	HopSize     int     `yaml:"hop_size"`     // hop length in samples (default 160 = 10ms)
	FFTSize     int     `yaml:"fft_size"`     // FFT size (default 512)
	NumMels     int     `yaml:"num_mels"`     // number of mel bins (default 80)
	LowFreq     float64 `yaml:"low_freq"`     // lowest mel frequency (default 20)
	HighFreq    float64 `yaml:"high_freq"`    // highest mel frequency; <= 0 is an offset from Nyquist
	PreEmphasis float64 `yaml:"pre_emphasis"` // pre-emphasis coefficient (default 0.97)
	Window      Window  `yaml:"window"`
	// ScaleInt16 feeds samples in int16 range instead of [-1, 1], as Kaldi
	// and torchaudio.compliance.kaldi do on 16-bit audio.
	ScaleInt16 bool `yaml:"scale_int16"`
	CMN        CMN  `yaml:"cmn"`
}

// DefaultConfig returns the standard 16 kHz, 80-bin configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		WindowSize:  400,
		HopSize:     160,
		FFTSize:     512,
		NumMels:     80,
		LowFreq:     20,
		HighFreq:    0,
		PreEmphasis: 0.97,
		Window:      WindowHamming,
		ScaleInt16:  true,
		CMN:         CMNMean,
	}
}

// UnmarshalYAML starts from DefaultConfig so a partial YAML block only
// overrides the keys it names.
func (c *Config) UnmarshalYAML(unmarshal func(any) error) error {
	type plain Config
	p := plain(DefaultConfig())
	if err := unmarshal(&p); err != nil {
		return err
	}
	*c = Config(p)
	return nil
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("fbank: invalid sample rate %d", c.SampleRate)
	case c.WindowSize <= 1 || c.HopSize <= 0:
		return fmt.Errorf("fbank: invalid window %d / hop %d", c.WindowSize, c.HopSize)
	case c.FFTSize < c.WindowSize || c.FFTSize&(c.FFTSize-1) != 0:
		return fmt.Errorf("fbank: fft size %d must be a power of two >= window", c.FFTSize)
	case c.NumMels <= 0:
		return fmt.Errorf("fbank: invalid mel count %d", c.NumMels)
	}
	switch c.Window {
	case WindowHamming, WindowPovey, "":
	default:
		return fmt.Errorf("fbank: unknown window %q", c.Window)
	}
	switch c.CMN {
	case CMNNone, CMNMean, CMNMeanVar, "":
	default:
		return fmt.Errorf("fbank: unknown cmn %q", c.CMN)
	}
	return nil
}

// Extractor computes mel filterbank features from PCM samples.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64
	plan    *fftPlan
}

// New creates a new fbank Extractor with the given config.
func New(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	high := cfg.HighFreq
	if high <= 0 {
		high += float64(cfg.SampleRate) / 2
	}
	e := &Extractor{cfg: cfg, plan: newFFTPlan(cfg.FFTSize)}
	if cfg.Window == WindowPovey {
		e.window = poveyWindow(cfg.WindowSize)
	} else {
		e.window = hammingWindow(cfg.WindowSize)
	}
	e.melBank = melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, high)
	return e, nil
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// NumFrames returns the number of frames produced for n samples.
func (e *Extractor) NumFrames(n int) int {
	if n < e.cfg.WindowSize {
		return 0
	}
	return (n-e.cfg.WindowSize)/e.cfg.HopSize + 1
}

// Extract computes log mel filterbank features from normalized samples in
// [-1, 1]. It returns nil when the input is shorter than one window.
func (e *Extractor) Extract(pcm []float32) [][]float32 {
	cfg := e.cfg
	numFrames := e.NumFrames(len(pcm))
	if numFrames == 0 {
		return nil
	}

	scale := 1.0
	if cfg.ScaleInt16 {
		scale = 32768.0
	}

	nfft := cfg.FFTSize
	halfFFT := nfft/2 + 1
	features := make([][]float32, numFrames)
	frame := make([]float64, cfg.WindowSize)
	re := make([]float64, nfft)
	im := make([]float64, nfft)
	power := make([]float64, halfFFT)

	for t := 0; t < numFrames; t++ {
		start := t * cfg.HopSize

		// Remove DC offset.
		mean := 0.0
		for i := range frame {
			frame[i] = float64(pcm[start+i]) * scale
			mean += frame[i]
		}
		mean /= float64(len(frame))
		for i := range frame {
			frame[i] -= mean
		}

		// Pre-emphasis within the frame, Kaldi style.
		for i := len(frame) - 1; i > 0; i-- {
			frame[i] -= cfg.PreEmphasis * frame[i-1]
		}
		frame[0] -= cfg.PreEmphasis * frame[0]

		for i := range re {
			if i < len(frame) {
				re[i] = frame[i] * e.window[i]
			} else {
				re[i] = 0
			}
			im[i] = 0
		}
		e.plan.transform(re, im)

		for i := 0; i < halfFFT; i++ {
			power[i] = re[i]*re[i] + im[i]*im[i]
		}

		mel := make([]float32, cfg.NumMels)
		for m := 0; m < cfg.NumMels; m++ {
			sum := 0.0
			for k, w := range e.melBank[m] {
				if w != 0 {
					sum += w * power[k]
				}
			}
			if sum < logFloor {
				sum = logFloor
			}
			mel[m] = float32(math.Log(sum))
		}
		features[t] = mel
	}

	switch cfg.CMN {
	case CMNMean:
		Normalize(features, false)
	case CMNMeanVar:
		Normalize(features, true)
	}
	return features
}

// ExtractFromInt16 converts little-endian int16 PCM bytes to float32 and
// extracts features.
func (e *Extractor) ExtractFromInt16(pcm []byte) [][]float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return e.Extract(samples)
}

// Normalize applies per-utterance mean normalization in place, and
// variance normalization as well when withVar is set.
func Normalize(features [][]float32, withVar bool) {
	if len(features) == 0 {
		return
	}
	numMels := len(features[0])
	T := float64(len(features))

	for m := 0; m < numMels; m++ {
		sum := float64(0)
		for _, f := range features {
			sum += float64(f[m])
		}
		mean := sum / T

		std := 1.0
		if withVar {
			varSum := float64(0)
			for _, f := range features {
				d := float64(f[m]) - mean
				varSum += d * d
			}
			std = math.Sqrt(varSum / T)
			if std < 1e-10 {
				std = 1e-10
			}
		}

		for _, f := range features {
			f[m] = float32((float64(f[m]) - mean) / std)
		}
	}
}

// Flatten converts [T][numMels] to a flat row-major [T*numMels] slice.
func Flatten(features [][]float32) []float32 {
	if len(features) == 0 {
		return nil
	}
	cols := len(features[0])
	flat := make([]float32, len(features)*cols)
	for t, row := range features {
		copy(flat[t*cols:], row)
	}
	return flat
}
