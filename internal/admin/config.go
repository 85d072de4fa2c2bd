package admin

import "time"

// Config holds admin HTTP server configuration.
type Config struct {
	Listen          string        `yaml:"listen"`
	Token           string        `yaml:"token"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// ClassifyPerMinute caps POST /v1/classify. Zero uses the default;
	// negative disables the limit.
	ClassifyPerMinute int `yaml:"classify_per_minute"`
}

// Defaults for Config.
const (
	DefaultListen            = "127.0.0.1:8080"
	DefaultClassifyPerMinute = 60
)

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		// Long enough for one classifier round trip.
		c.WriteTimeout = 45 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.ClassifyPerMinute == 0 {
		c.ClassifyPerMinute = DefaultClassifyPerMinute
	}
}
