package resolver

import (
	"time"

	"github.com/ramkansal/capwatch/internal/fetcher"
)

// Config holds all configuration for a resolution engine.
type Config struct {
	// Request options
	UserAgent       string
	Timeout         time.Duration
	MaxResponseSize int
	Proxy           string
	CustomHeaders   []string

	// Render fallback
	DisableRender bool
	RenderTimeout time.Duration
	RenderSettle  time.Duration
	ChromeBin     string

	// Location interprets registration dates printed on pages.
	Location *time.Location
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		UserAgent:       fetcher.DefaultUserAgent,
		Timeout:         15 * time.Second,
		MaxResponseSize: 4194304, // 4MB
		RenderTimeout:   45 * time.Second,
		RenderSettle:    5 * time.Second,
		Location:        time.Local,
	}
}
