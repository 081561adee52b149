// Package speaker defines the speaker embedding capability used by the
// extraction pipeline, plus the model-independent pieces around it:
// compute device selection and segment pooling.
//
// # Pipeline
//
//  1. PCM16 16kHz mono audio → log mel filterbank (see pkg/audio/fbank)
//  2. Features → encoder inference → embedding (one call per segment)
//  3. Segment embeddings → average → optional L2 normalization ([Pool])
//
// Concrete encoders live in sub-packages (onnxspeaker).
package speaker

import (
	"context"
	"errors"
)

// Sentinel errors.
var (
	// ErrTooShort is returned when the audio yields fewer feature frames
	// than the model needs.
	ErrTooShort = errors.New("speaker: audio too short")

	// ErrClosed is returned by Embed after Close.
	ErrClosed = errors.New("speaker: model is closed")

	// ErrInvalidDevice is returned by ParseDevice for unknown device strings.
	ErrInvalidDevice = errors.New("speaker: invalid device")
)

// Model extracts speaker embedding vectors from raw audio.
//
// The input audio must be PCM16 signed little-endian, 16kHz, mono. The
// output is a dense float32 vector whose dimensionality is returned by
// Dimension(). A Model is created once per run and reused for every
// utterance.
type Model interface {
	// Embed computes a speaker embedding from raw PCM16 audio.
	Embed(ctx context.Context, pcm []byte) ([]float32, error)

	// Dimension returns the length of vectors produced by Embed.
	Dimension() int

	// Close releases any resources held by the model (e.g., ONNX session).
	Close() error
}
