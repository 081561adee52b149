// Package onnxspeaker implements [speaker.Model] on top of ONNX Runtime.
//
// The default configuration matches the WeSpeaker ResNet34 export
// (voxceleb_resnet34_LM.onnx): input "feats" shaped [1, T, 80] of
// mean-normalized Kaldi fbank, output "embs" shaped [1, 256].
package onnxspeaker

import (
	"context"
	"fmt"
	"sync"

	"github.com/haivivi/spkembed/pkg/audio/fbank"
	"github.com/haivivi/spkembed/pkg/onnx"
	"github.com/haivivi/spkembed/pkg/speaker"
)

// probeFrames is the dummy input length used to discover the output size.
const probeFrames = 200

// Config describes the model interface and its front-end.
type Config struct {
	InputName  string             `yaml:"input"`
	OutputName string             `yaml:"output"`
	Fbank      fbank.Config       `yaml:"fbank"`
	Pool       speaker.PoolConfig `yaml:"pool"`
	Device     speaker.Device     `yaml:"-"`
	Threads    int                `yaml:"threads"`
}

// DefaultConfig returns the WeSpeaker ResNet34 layout on CPU.
func DefaultConfig() Config {
	return Config{
		InputName:  "feats",
		OutputName: "embs",
		Fbank:      fbank.DefaultConfig(),
		Pool:       speaker.PoolConfig{MinFrames: 1},
		Device:     speaker.CPU,
	}
}

// Model is a speaker encoder backed by an ONNX Runtime session.
//
// Embed may be called concurrently; Close waits for in-flight calls.
type Model struct {
	mu      sync.RWMutex
	closed  bool
	env     *onnx.Env
	session *onnx.Session
	fbank   *fbank.Extractor
	cfg     Config
	dim     int
}

var _ speaker.Model = (*Model)(nil)

// New loads the .onnx file at path on cfg.Device. One dummy inference is
// run to learn the embedding size, so an unusable device or a model with
// the wrong input layout fails here rather than on the first utterance.
func New(path string, cfg Config) (*Model, error) {
	fe, err := fbank.New(cfg.Fbank)
	if err != nil {
		return nil, fmt.Errorf("onnxspeaker: %w", err)
	}
	env, err := onnx.NewEnv("spkembed")
	if err != nil {
		return nil, fmt.Errorf("onnxspeaker: %w", err)
	}
	session, err := env.LoadSession(path, onnx.SessionOptions{
		CUDA:           cfg.Device.IsGPU(),
		DeviceID:       cfg.Device.Index,
		IntraOpThreads: cfg.Threads,
	})
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("onnxspeaker: load %s on %s: %w", path, cfg.Device, err)
	}

	m := &Model{env: env, session: session, fbank: fe, cfg: cfg}
	probe := make([][]float32, probeFrames)
	for i := range probe {
		probe[i] = make([]float32, cfg.Fbank.NumMels)
	}
	emb, err := m.runSegment(context.Background(), probe)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("onnxspeaker: probe: %w", err)
	}
	m.dim = len(emb)
	return m, nil
}

// Embed implements [speaker.Model].
func (m *Model) Embed(ctx context.Context, pcm []byte) ([]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, speaker.ErrClosed
	}

	features := m.fbank.ExtractFromInt16(pcm)
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: %d samples, need %d", speaker.ErrTooShort, len(pcm)/2, m.cfg.Fbank.WindowSize)
	}
	emb, err := speaker.Pool(ctx, features, m.cfg.Pool, m.runSegment)
	if err != nil {
		return nil, err
	}
	if len(emb) != m.dim {
		return nil, fmt.Errorf("onnxspeaker: embedding size %d, want %d", len(emb), m.dim)
	}
	return emb, nil
}

// Dimension implements [speaker.Model].
func (m *Model) Dimension() int {
	return m.dim
}

// Close implements [speaker.Model].
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.session.Close()
	return m.env.Close()
}

func (m *Model) runSegment(ctx context.Context, features [][]float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mels := m.cfg.Fbank.NumMels
	input, err := onnx.NewTensor([]int64{1, int64(len(features)), int64(mels)}, fbank.Flatten(features))
	if err != nil {
		return nil, err
	}
	defer input.Close()

	outputs, err := m.session.Run([]string{m.cfg.InputName}, []*onnx.Tensor{input}, []string{m.cfg.OutputName})
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, o := range outputs {
			o.Close()
		}
	}()
	// [1, D] and [D] outputs both flatten to D values.
	return outputs[0].FloatData()
}
