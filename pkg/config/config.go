// Package config loads annomerge project files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/praetorian-inc/annomerge/pkg/annotation"
	"github.com/praetorian-inc/annomerge/pkg/loader"
	"github.com/praetorian-inc/annomerge/pkg/xmlanno"
)

// DefaultFile is the project file looked up when no path is given.
const DefaultFile = "annomerge.yaml"

// Output formats.
const (
	FormatXML  = "xml"
	FormatJSON = "json"
)

// Environment variables that override file settings.
const (
	EnvOutput = "ANNOMERGE_OUTPUT"
	EnvFormat = "ANNOMERGE_FORMAT"
	EnvStore  = "ANNOMERGE_STORE"
)

// Config is an annomerge project.
type Config struct {
	// Sources are annotation files or directories, lowest priority first.
	Sources   []string                `yaml:"sources"`
	Output    string                  `yaml:"output"`
	Format    string                  `yaml:"format"`
	Namespace string                  `yaml:"namespace"`
	Targets   annotation.FilterConfig `yaml:"targets"`
	CacheSize int                     `yaml:"cache_size"`
	Store     string                  `yaml:"store"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Sources:   []string{},
		Format:    FormatXML,
		Namespace: xmlanno.DefaultNamespace,
		CacheSize: loader.DefaultCacheSize,
	}
}

// Load reads a project file. Relative paths in the file are resolved against
// the file's directory. Values from a .env file next to it and from the
// environment then override the file and stay relative to the working
// directory.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	cfg.resolvePaths(dir)

	// A missing .env is fine; variables already set in the process win.
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv applies environment variable overrides.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvOutput)); v != "" {
		c.Output = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvFormat)); v != "" {
		c.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStore)); v != "" {
		c.Store = v
	}
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatXML, FormatJSON:
	default:
		return fmt.Errorf("unsupported format %q (want xml or json)", c.Format)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative")
	}
	for _, s := range c.Sources {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("sources must not contain empty entries")
		}
	}
	return nil
}

func (c *Config) resolvePaths(dir string) {
	for i, s := range c.Sources {
		c.Sources[i] = resolve(dir, s)
	}
	if c.Output != "" && c.Output != "-" {
		c.Output = resolve(dir, c.Output)
	}
	if c.Store != "" && c.Store != ":memory:" && !strings.Contains(c.Store, "://") {
		c.Store = resolve(dir, c.Store)
	}
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
