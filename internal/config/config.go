package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"slices"
	"time"

	"github.com/cruciblehq/fishbowl/internal/fault"
	"github.com/cruciblehq/fishbowl/internal/paths"
	"github.com/cruciblehq/fishbowl/internal/pipeline"
	"github.com/cruciblehq/fishbowl/internal/publish"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultAddress       = "/run/containerd/containerd.sock"
	DefaultNamespace     = "fishbowl"
	DefaultContainerName = "stockfish-engine"
	DefaultEngineVersion = "17"
	DefaultSourceURL     = "https://github.com/official-stockfish/Stockfish/archive/refs/tags/sf_17.tar.gz"
	DefaultEngineTimeout = 2 * time.Minute
)

// Top-level configuration.
type Config struct {
	Containerd Containerd     `yaml:"containerd"`
	Engine     Engine         `yaml:"engine"`
	Images     Images         `yaml:"images"`
	Container  Container      `yaml:"container"`
	Output     string         `yaml:"output"` // Directory for exported images.
	Verify     bool           `yaml:"verify"` // Check the runtime image after every build.
	Publish    publish.Config `yaml:"publish"`
}

// Connection to the containerd daemon.
type Containerd struct {
	Address     string `yaml:"address"`
	Namespace   string `yaml:"namespace"`
	Snapshotter string `yaml:"snapshotter,omitempty"`
}

// The engine being built and driven.
type Engine struct {
	SourceURL  string        `yaml:"source_url"`
	SourceDir  string        `yaml:"source_dir,omitempty"`
	Version    string        `yaml:"version"`
	Executable string        `yaml:"executable"`
	BinaryPath string        `yaml:"binary_path"`
	Arch       string        `yaml:"arch"`
	Timeout    time.Duration `yaml:"timeout"` // Limit for a single engine invocation.
}

// Base images and packages of the two stages.
type Images struct {
	BuildBase       string   `yaml:"build_base"`
	RuntimeBase     string   `yaml:"runtime_base"`
	BuildPackages   []string `yaml:"build_packages"`
	RuntimePackages []string `yaml:"runtime_packages"`
}

// The idle runtime container.
type Container struct {
	Name string `yaml:"name"`
}

// Returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Containerd: Containerd{
			Address:   DefaultAddress,
			Namespace: DefaultNamespace,
		},
		Engine: Engine{
			SourceURL:  DefaultSourceURL,
			Version:    DefaultEngineVersion,
			Executable: pipeline.DefaultExecutable,
			BinaryPath: pipeline.DefaultBinaryDir + "/" + pipeline.DefaultExecutable,
			Arch:       pipeline.DefaultArch,
			Timeout:    DefaultEngineTimeout,
		},
		Images: Images{
			BuildBase:       pipeline.DefaultBase,
			RuntimeBase:     pipeline.DefaultBase,
			BuildPackages:   slices.Clone(pipeline.DefaultBuildPackages),
			RuntimePackages: slices.Clone(pipeline.DefaultRuntimePackages),
		},
		Container: Container{Name: DefaultContainerName},
		Output:    paths.Images(),
		Verify:    true,
	}
}

// Reads the configuration file at path.
//
// A missing file yields [Default]. An empty path reads the default location.
func Load(path string) (*Config, error) {
	if path == "" {
		path = paths.ConfigFile()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fault.Wrap(ErrInvalidConfig, err)
	}

	return Parse(data)
}

// Decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fault.Wrap(ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Checks the fields that have no usable fallback.
func (c *Config) Validate() error {
	switch {
	case c.Containerd.Address == "":
		return fault.Wrapf(ErrInvalidConfig, "containerd.address is required")
	case c.Containerd.Namespace == "":
		return fault.Wrapf(ErrInvalidConfig, "containerd.namespace is required")
	case c.Container.Name == "":
		return fault.Wrapf(ErrInvalidConfig, "container.name is required")
	case c.Output == "":
		return fault.Wrapf(ErrInvalidConfig, "output is required")
	case c.Engine.Timeout < 0:
		return fault.Wrapf(ErrInvalidConfig, "engine.timeout must not be negative")
	}

	if err := c.Pipeline().Validate(); err != nil {
		return fault.Wrap(ErrInvalidConfig, err)
	}
	if err := c.Publish.Validate(); err != nil {
		return fault.Wrap(ErrInvalidConfig, err)
	}
	return nil
}

// Returns the pipeline options described by the configuration.
func (c *Config) Pipeline() pipeline.Options {
	return pipeline.Options{
		Arch:            c.Engine.Arch,
		Version:         c.Engine.Version,
		SourceURL:       c.Engine.SourceURL,
		SourceDir:       c.Engine.SourceDir,
		Executable:      c.Engine.Executable,
		BinaryPath:      c.Engine.BinaryPath,
		BuildBase:       c.Images.BuildBase,
		RuntimeBase:     c.Images.RuntimeBase,
		BuildPackages:   c.Images.BuildPackages,
		RuntimePackages: c.Images.RuntimePackages,
	}
}

// Encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
