// Package config loads mqcomet defaults from an optional YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oukeidos/mqcomet/internal/auth"
	"github.com/oukeidos/mqcomet/internal/metadata"
	"github.com/oukeidos/mqcomet/internal/report"
)

const (
	DefaultBatchSize    = 8
	DefaultWebBatchSize = 4
	DefaultWebAddr      = "127.0.0.1:8501"
	DefaultMaxUploadMB  = 200
)

// Config is the file-level configuration. Zero values are filled by
// applyDefaults.
type Config struct {
	Backend       string   `yaml:"backend"`
	Model         string   `yaml:"model"`
	Endpoint      string   `yaml:"endpoint"`
	BatchSize     int      `yaml:"batch_size"`
	MaxSegments   int      `yaml:"max_segments"`
	ScoreColumn   string   `yaml:"score_column"`
	ReferenceFree bool     `yaml:"reference_free"`
	TokenSources  []string `yaml:"token_sources"`
	Dotenv        string   `yaml:"dotenv"`
	LogFile       string   `yaml:"log_file"`
	Web           Web      `yaml:"web"`
}

// Web configures the upload form server.
type Web struct {
	Addr         string   `yaml:"addr"`
	BatchSize    int      `yaml:"batch_size"`
	MaxUploadMB  int64    `yaml:"max_upload_mb"`
	TokenSources []string `yaml:"token_sources"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultPath is ~/.mqcomet/config.yaml, or "" when the home directory is
// unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".mqcomet", "config.yaml")
}

// Load reads path. An empty path means DefaultPath, which may be absent; an
// explicitly named file must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		if path == "" {
			return Default(), nil
		}
	}
	cfg, err := LoadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML configuration file. Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = metadata.BackendComet
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.ScoreColumn == "" {
		c.ScoreColumn = report.DefaultScoreColumn
	}
	if len(c.TokenSources) == 0 {
		c.TokenSources = append([]string(nil), auth.DefaultCLISources...)
	}
	if c.Dotenv == "" {
		c.Dotenv = ".env"
	}
	if c.Web.Addr == "" {
		c.Web.Addr = DefaultWebAddr
	}
	if c.Web.BatchSize <= 0 {
		c.Web.BatchSize = DefaultWebBatchSize
	}
	if c.Web.MaxUploadMB <= 0 {
		c.Web.MaxUploadMB = DefaultMaxUploadMB
	}
	if len(c.Web.TokenSources) == 0 {
		c.Web.TokenSources = append([]string(nil), auth.DefaultWebSources...)
	}
}

// Validate checks values a file could get wrong.
func (c *Config) Validate() error {
	if !metadata.IsBackend(c.Backend) {
		return fmt.Errorf("unknown backend %q (use one of %s)", c.Backend, strings.Join(metadata.Backends(), ", "))
	}
	if c.MaxSegments < 0 {
		return fmt.Errorf("max_segments must not be negative")
	}
	if err := auth.ValidateSources(c.TokenSources); err != nil {
		return fmt.Errorf("token_sources: %w", err)
	}
	if err := auth.ValidateSources(c.Web.TokenSources); err != nil {
		return fmt.Errorf("web.token_sources: %w", err)
	}
	for _, s := range c.Web.TokenSources {
		if s == auth.SourcePrompt {
			return fmt.Errorf("web.token_sources: %q is not available to the web server", s)
		}
	}
	return nil
}
