package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/haivivi/spkembed/pkg/audio/fbank"
	"github.com/haivivi/spkembed/pkg/cli"
	"github.com/haivivi/spkembed/pkg/modelhub"
	"github.com/haivivi/spkembed/pkg/speaker"
	"github.com/haivivi/spkembed/pkg/speaker/onnxspeaker"
)

// Built-in model defaults: WeSpeaker ResNet34 (VoxCeleb, large-margin
// fine-tuned) exported to ONNX.
const (
	defaultSource    = "Wespeaker/wespeaker-voxceleb-resnet34-LM"
	defaultSaveDir   = "pretrained_models/wespeaker-voxceleb-resnet34-LM"
	defaultModelFile = "voxceleb_resnet34_LM.onnx"
	defaultDevice    = "cuda:0"
)

// modelOptions holds the model flags. Each one overrides the profile only
// when given on the command line.
type modelOptions struct {
	flags *pflag.FlagSet

	source    string
	savedir   string
	modelFile string
	device    string
	input     string
	output    string
	threads   int
}

func (o *modelOptions) register(fs *pflag.FlagSet) {
	o.flags = fs
	fs.StringVar(&o.source, "source", defaultSource, "model: .onnx file, s3://bucket/key, URL, or Hugging Face org/repo[/file]")
	fs.StringVar(&o.savedir, "savedir", defaultSaveDir, "local cache directory for the pretrained model")
	fs.StringVar(&o.modelFile, "model_file", defaultModelFile, "file to fetch when --source names a repo or prefix")
	fs.StringVar(&o.device, "device", defaultDevice, "compute device: cpu, cuda, cuda:N")
	fs.StringVar(&o.input, "input_name", "feats", "ONNX input tensor name")
	fs.StringVar(&o.output, "output_name", "embs", "ONNX output tensor name")
	fs.IntVar(&o.threads, "threads", 0, "ONNX Runtime intra-op threads (0 = runtime default)")
}

// modelSettings is the merged view of defaults, profile, and flags.
type modelSettings struct {
	Source    string             `yaml:"source" json:"source"`
	SaveDir   string             `yaml:"savedir" json:"savedir"`
	ModelFile string             `yaml:"model_file" json:"model_file"`
	Device    string             `yaml:"device" json:"device"`
	Input     string             `yaml:"input" json:"input"`
	Output    string             `yaml:"output" json:"output"`
	Threads   int                `yaml:"threads" json:"threads"`
	Fbank     fbank.Config       `yaml:"fbank" json:"fbank"`
	Pool      speaker.PoolConfig `yaml:"pool" json:"pool"`

	hfToken string
}

// merge layers flags over p over built-in defaults.
func (o *modelOptions) merge(p *cli.Profile) modelSettings {
	s := modelSettings{
		Source:    defaultSource,
		SaveDir:   defaultSaveDir,
		ModelFile: defaultModelFile,
		Device:    defaultDevice,
		Input:     "feats",
		Output:    "embs",
		Fbank:     fbank.DefaultConfig(),
		Pool:      speaker.PoolConfig{MinFrames: 1},
	}
	if p != nil {
		setString(&s.Source, p.Source)
		setString(&s.SaveDir, p.SaveDir)
		setString(&s.ModelFile, p.ModelFile)
		setString(&s.Device, p.Device)
		setString(&s.Input, p.Input)
		setString(&s.Output, p.Output)
		if p.Threads > 0 {
			s.Threads = p.Threads
		}
		if p.Fbank != nil {
			s.Fbank = *p.Fbank
		}
		if p.Pool != nil {
			s.Pool = *p.Pool
		}
		s.hfToken = p.HFToken
	}

	changed := func(name string) bool { return o.flags != nil && o.flags.Changed(name) }
	if changed("source") {
		s.Source = o.source
	}
	if changed("savedir") {
		s.SaveDir = o.savedir
	}
	if changed("model_file") {
		s.ModelFile = o.modelFile
	}
	if changed("device") {
		s.Device = o.device
	}
	if changed("input_name") {
		s.Input = o.input
	}
	if changed("output_name") {
		s.Output = o.output
	}
	if changed("threads") {
		s.Threads = o.threads
	}
	return s
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// currentSettings merges the selected profile with the command line.
func currentSettings() (modelSettings, error) {
	p, err := getProfile()
	if err != nil {
		return modelSettings{}, err
	}
	return modelFlags.merge(p), nil
}

// newHub opens the model cache for s.
func newHub(s modelSettings) (*modelhub.Hub, error) {
	opts := []modelhub.Option{modelhub.WithLogger(slog.Default())}
	if s.hfToken != "" {
		opts = append(opts, modelhub.WithHFToken(s.hfToken))
	}
	return modelhub.New(s.SaveDir, opts...)
}

// resolveModel returns a local .onnx path for s, fetching it if needed.
func resolveModel(ctx context.Context, s modelSettings) (string, error) {
	src, err := modelhub.ParseSource(s.Source, s.ModelFile)
	if err != nil {
		return "", err
	}
	hub, err := newHub(s)
	if err != nil {
		return "", err
	}
	return hub.Resolve(ctx, src)
}

// loadModel resolves, fetches, and opens the speaker encoder on its device.
func loadModel(ctx context.Context, s modelSettings) (*onnxspeaker.Model, error) {
	device, err := speaker.ParseDevice(s.Device)
	if err != nil {
		return nil, err
	}
	path, err := resolveModel(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	cfg := onnxspeaker.DefaultConfig()
	cfg.InputName = s.Input
	cfg.OutputName = s.Output
	cfg.Fbank = s.Fbank
	cfg.Pool = s.Pool
	cfg.Device = device
	cfg.Threads = s.Threads

	slog.Info("loading model", "path", path, "device", device.String())
	m, err := onnxspeaker.New(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	slog.Info("model ready", "dim", m.Dimension())
	return m, nil
}
