package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/hostdata/pkg/data"
	"github.com/openfroyo/hostdata/pkg/telemetry"
)

// Config is the complete hostdata configuration.
type Config struct {
	// Loader controls how documents are read.
	Loader LoaderConfig `yaml:"loader"`

	// Script controls the Starlark boundary.
	Script ScriptConfig `yaml:"script"`

	// Telemetry holds logging, tracing and metrics settings.
	Telemetry telemetry.Config `yaml:",inline"`
}

// LoaderConfig configures document loading.
type LoaderConfig struct {
	// MaxDocumentBytes is the largest document that may be opened.
	MaxDocumentBytes int64 `yaml:"max_document_bytes" validate:"gt=0"`

	// Formats lists the encodings that may be opened.
	Formats []string `yaml:"formats" validate:"min=1,dive,oneof=json yaml cue"`
}

// ScriptConfig configures script evaluation.
type ScriptConfig struct {
	// Timeout bounds a single script run.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Loader: LoaderConfig{
			MaxDocumentBytes: data.DefaultMaxDocumentBytes,
			Formats:          []string{"json", "yaml", "cue"},
		},
		Script: ScriptConfig{
			Timeout: 30 * time.Second,
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// Load reads the file at path over Default. An empty path returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML content over Default and validates the result.
// Unknown keys are rejected.
func Parse(content []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags, then the telemetry rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return c.Telemetry.Validate()
}

// DataLoaderConfig converts the loader section for data.NewLoader.
func (c *Config) DataLoaderConfig(logger *telemetry.Logger, tracer *telemetry.Tracer) (*data.LoaderConfig, error) {
	formats := make([]data.Format, 0, len(c.Loader.Formats))
	for _, name := range c.Loader.Formats {
		f, err := data.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return &data.LoaderConfig{
		MaxBytes: c.Loader.MaxDocumentBytes,
		Formats:  formats,
		Logger:   logger,
		Tracer:   tracer,
	}, nil
}
