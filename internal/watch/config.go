// Package watch resolves a list of competitions on a bounded worker pool,
// persists each result and reports which events are nearly full.
package watch

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ramkansal/capwatch/internal/extractor"
)

// Platform selects the entry point used for a competition.
type Platform string

const (
	PlatformAuto   Platform = ""
	PlatformMetrix Platform = "metrix"
	PlatformTjing  Platform = "tjing"
)

// Competition is one entry of the watch list.
type Competition struct {
	Name     string   `yaml:"name" json:"name"`
	URL      string   `yaml:"url" json:"url"`
	Platform Platform `yaml:"platform,omitempty" json:"platform,omitempty"`
}

// Detect returns the platform to use, inferring it from the host when unset.
func (c Competition) Detect() Platform {
	if c.Platform != PlatformAuto {
		return c.Platform
	}
	if extractor.IsTjingURL(c.URL) {
		return PlatformTjing
	}
	return PlatformMetrix
}

// Config is the watch file.
type Config struct {
	Concurrency   int           `yaml:"concurrency"`
	Timeout       time.Duration `yaml:"timeout"`
	RenderTimeout time.Duration `yaml:"renderTimeout"`
	// Threshold is the remaining-spot count at or below which an event counts
	// as nearly full. Nil means the default.
	Threshold    *int          `yaml:"threshold"`
	Database     string        `yaml:"database"`
	Report       string        `yaml:"report"`
	UserAgent    string        `yaml:"userAgent"`
	Competitions []Competition `yaml:"competitions"`
}

const (
	DefaultConcurrency = 4
	DefaultThreshold   = 5
	DefaultDatabase    = "capwatch.db"
	DefaultTimeout     = 15 * time.Second
)

// LoadConfig reads and validates the YAML watch file at path.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watch file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse watch file %s: %w", path, err)
	}
	ApplyEnvToConfig(&cfg)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnvToConfig fills unset fields of cfg from CAPWATCH_* environment
// variables. Values already present in the file win.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Database == "" {
		cfg.Database = os.Getenv("CAPWATCH_DB")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = os.Getenv("CAPWATCH_USER_AGENT")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = envDuration("CAPWATCH_TIMEOUT")
	}
}

// envDuration accepts either a Go duration ("20s") or whole seconds ("20").
func envDuration(key string) time.Duration {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return 0
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Threshold == nil {
		t := DefaultThreshold
		c.Threshold = &t
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	for i := range c.Competitions {
		if c.Competitions[i].Name == "" {
			c.Competitions[i].Name = c.Competitions[i].URL
		}
	}
}

// Validate reports the first malformed entry.
func (c *Config) Validate() error {
	if len(c.Competitions) == 0 {
		return errors.New("watch file lists no competitions")
	}
	seen := make(map[string]bool, len(c.Competitions))
	for i, comp := range c.Competitions {
		if strings.TrimSpace(comp.URL) == "" {
			return fmt.Errorf("competition %d: url is required", i+1)
		}
		switch comp.Platform {
		case PlatformAuto, PlatformMetrix, PlatformTjing:
		default:
			return fmt.Errorf("competition %q: unknown platform %q", comp.Name, comp.Platform)
		}
		if seen[comp.Name] {
			return fmt.Errorf("competition %q listed twice", comp.Name)
		}
		seen[comp.Name] = true
	}
	return nil
}

// ThresholdOrDefault returns the configured nearly-full threshold.
func (c *Config) ThresholdOrDefault() int {
	if c.Threshold == nil {
		return DefaultThreshold
	}
	return *c.Threshold
}
