// Package config handles YAML configuration loading, environment variable
// expansion, defaults and structural validation for toolguard.
package config

import (
	"time"

	"github.com/flemzord/toolguard/internal/admin"
	"github.com/flemzord/toolguard/internal/security"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Moderation ModerationConfig `yaml:"moderation"`
	Classifier ClassifierConfig `yaml:"classifier"`

	// Provider is the agent's own LLM endpoint. When no classifier key is
	// configured the classifier borrows it.
	Provider *ProviderConfig `yaml:"provider,omitempty"`

	Audit     AuditConfig     `yaml:"audit"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Admin     admin.Config    `yaml:"admin"`
	Tools     ToolsConfig     `yaml:"tools"`
}

// ModerationConfig configures the tool wrapper.
type ModerationConfig struct {
	// Enabled turns moderation on. When unset, the TOOLGUARD_MODERATION
	// environment variable decides.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Threshold and MinTextLength are pointers so an explicit 0 can be
	// told apart from an omitted key.
	Threshold        *int   `yaml:"threshold,omitempty"`
	MinTextLength    *int   `yaml:"min_text_length,omitempty"`
	Policy           string `yaml:"policy"`
	Instruction      string `yaml:"instruction,omitempty"`
	BindCancellation bool   `yaml:"bind_cancellation"`
}

// ClassifierConfig configures the OpenAI-compatible classifier endpoint.
type ClassifierConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key,omitempty"`
	APIKeyEnv string        `yaml:"api_key_env,omitempty"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ProviderConfig configures an OpenAI-compatible chat completions endpoint.
type ProviderConfig struct {
	BaseURL   string            `yaml:"base_url"`
	APIKey    string            `yaml:"api_key"`
	Model     string            `yaml:"model"`
	MaxTokens int               `yaml:"max_tokens,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Timeout   time.Duration     `yaml:"timeout,omitempty"`
}

// AuditConfig configures the JSONL audit log. An empty Path disables it.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig configures the sqlite decision ledger. An empty Path
// disables it.
type LedgerConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
	Schedule  string        `yaml:"schedule"`
}

// TelemetryConfig configures tracing export.
type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig configures OTLP/HTTP trace export. An empty Endpoint
// disables export.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// ToolsConfig selects the built-in tools.
type ToolsConfig struct {
	// Workspace enables read_file rooted at this directory.
	Workspace   string `yaml:"workspace"`
	ReadMaxSize int64  `yaml:"read_max_size"`

	WebFetch WebFetchConfig `yaml:"web_fetch"`
}

// WebFetchConfig configures the web_fetch tool.
type WebFetchConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxBodySize int64         `yaml:"max_body_size"`
	MaxLines    int           `yaml:"max_lines"`

	security.URLFilterConfig `yaml:",inline"`
}
