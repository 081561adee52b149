package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/spkembed/pkg/audio/fbank"
	"github.com/haivivi/spkembed/pkg/speaker"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".giztoy"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// ErrProfileNotFound is returned when a named profile does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// Config is the profile file of a CLI app, kubectl style: a set of named
// profiles and the one currently in use.
type Config struct {
	// AppName is the application name (e.g., "spkembed")
	AppName string `yaml:"-"`

	// CurrentProfile is the name of the profile used when none is given
	CurrentProfile string `yaml:"current_profile,omitempty"`

	// Profiles maps profile names to model settings
	Profiles map[string]*Profile `yaml:"profiles,omitempty"`

	configPath string
}

// Profile bundles everything needed to load one speaker model. Zero values
// mean "use the built-in default".
type Profile struct {
	Name string `yaml:"name"`

	// Source is the model identifier (file, s3://, URL, or org/repo)
	Source string `yaml:"source,omitempty"`

	// SaveDir is the local model cache directory
	SaveDir string `yaml:"savedir,omitempty"`

	// ModelFile is the file fetched when Source names only a repo or prefix
	ModelFile string `yaml:"model_file,omitempty"`

	// Device is "cpu", "cuda" or "cuda:N"
	Device string `yaml:"device,omitempty"`

	// Input and Output are the ONNX tensor names
	Input  string `yaml:"input,omitempty"`
	Output string `yaml:"output,omitempty"`

	// Threads bounds ONNX Runtime intra-op parallelism
	Threads int `yaml:"threads,omitempty"`

	// HFToken authenticates hub downloads (falls back to $HF_TOKEN)
	HFToken string `yaml:"hf_token,omitempty"`

	Fbank *fbank.Config       `yaml:"fbank,omitempty"`
	Pool  *speaker.PoolConfig `yaml:"pool,omitempty"`
}

// LoadConfig loads the configuration for the specified app from
// ~/.giztoy/<app>/config.yaml.
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path. A missing file
// yields an empty configuration; nothing is written until Save.
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		paths, err := NewPaths(appName)
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = paths.ConfigFile()
	}

	cfg := &Config{
		AppName:    appName,
		Profiles:   make(map[string]*Profile),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}

	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}
	for name, p := range cfg.Profiles {
		if p == nil {
			p = &Profile{}
			cfg.Profiles[name] = p
		}
		p.Name = name
	}

	cfg.AppName = appName
	cfg.configPath = configPath

	return cfg, nil
}

// Save writes the configuration to disk, creating the directory if needed.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// AddProfile adds or replaces a profile and saves.
func (c *Config) AddProfile(name string, p *Profile) error {
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("invalid profile name %q", name)
	}
	p.Name = name
	c.Profiles[name] = p
	return c.Save()
}

// DeleteProfile removes a profile and saves.
func (c *Config) DeleteProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	delete(c.Profiles, name)
	if c.CurrentProfile == name {
		c.CurrentProfile = ""
	}
	return c.Save()
}

// UseProfile sets the current profile and saves.
func (c *Config) UseProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	c.CurrentProfile = name
	return c.Save()
}

// GetProfile returns a specific profile
func (c *Config) GetProfile(name string) (*Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	return p, nil
}

// ResolveProfile returns the named profile, else the current one. With no
// name and no current profile it returns an empty profile, so callers fall
// through to defaults.
func (c *Config) ResolveProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.CurrentProfile
	}
	if name == "" {
		return &Profile{}, nil
	}
	return c.GetProfile(name)
}

// ListProfiles returns all profile names, sorted.
func (c *Config) ListProfiles() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Masked returns a copy safe for display.
func (p *Profile) Masked() *Profile {
	cp := *p
	cp.HFToken = MaskAPIKey(p.HFToken)
	return &cp
}

// MaskAPIKey masks the API key for display
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
