package moderation

import (
	"net/http"
	"strings"

	"github.com/flemzord/toolguard/internal/provider"
)

// Environment variables read by Enabled and ResolveCredentials.
const (
	EnvEnabled = "TOOLGUARD_MODERATION"
	EnvAPIKey  = "TOOLGUARD_MODERATION_API_KEY"
	EnvModel   = "TOOLGUARD_MODERATION_MODEL"
	EnvBaseURL = "TOOLGUARD_MODERATION_BASE_URL"
)

// Enabled resolves the enablement flag. A non-nil flag wins; otherwise
// EnvEnabled must be "1" or "true" in any case.
func Enabled(flag *bool, getenv func(string) string) bool {
	if flag != nil {
		return *flag
	}
	if getenv == nil {
		return false
	}
	v := getenv(EnvEnabled)
	return v == "1" || strings.EqualFold(v, "true")
}

// CredentialSource names where credentials came from.
type CredentialSource string

// CredentialSource values.
const (
	SourceEnv    CredentialSource = "env"
	SourceConfig CredentialSource = "config"
	SourceHost   CredentialSource = "host"
)

// ClassifierSettings is the configured classifier endpoint.
type ClassifierSettings struct {
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	Model     string
}

// Credentials is a resolved classifier endpoint. For SourceHost, the host
// provider supplies the key and model.
type Credentials struct {
	Source  CredentialSource
	APIKey  string
	Model   string
	BaseURL string
	Host    provider.Provider
}

// ResolveCredentials picks, in order: the environment overrides, the
// configured key (inline or via api_key_env), then the host provider.
func ResolveCredentials(cfg ClassifierSettings, getenv func(string) string, host provider.Provider) (Credentials, error) {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	model := firstNonEmpty(getenv(EnvModel), cfg.Model)
	baseURL := firstNonEmpty(getenv(EnvBaseURL), cfg.BaseURL)

	if key := strings.TrimSpace(getenv(EnvAPIKey)); key != "" {
		return Credentials{Source: SourceEnv, APIKey: key, Model: model, BaseURL: baseURL}, nil
	}

	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = getenv(cfg.APIKeyEnv)
	}
	if key = strings.TrimSpace(key); key != "" {
		return Credentials{Source: SourceConfig, APIKey: key, Model: model, BaseURL: baseURL}, nil
	}

	if host != nil {
		return Credentials{Source: SourceHost, Model: host.ModelName(), Host: host}, nil
	}
	return Credentials{}, ErrMissingCredentials
}

// Transport builds the transport matching the credentials. httpClient may
// be nil.
func (c Credentials) Transport(httpClient *http.Client) (Transport, error) {
	if c.Source == SourceHost {
		if c.Host == nil {
			return nil, ErrMissingCredentials
		}
		return NewProviderTransport(c.Host), nil
	}
	return NewOpenAITransport(OpenAIConfig{
		APIKey:     c.APIKey,
		BaseURL:    c.BaseURL,
		Model:      c.Model,
		HTTPClient: httpClient,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
