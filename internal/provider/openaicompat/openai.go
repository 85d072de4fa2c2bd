// Package openaicompat provides a provider.Provider for any API that
// implements the OpenAI chat completions interface (LiteLLM, vLLM, Groq,
// Mistral, local gateways, etc.) via a configurable base_url. Hosts use it
// to route classifier calls through their own gateway with extra headers.
package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/flemzord/toolguard/internal/provider"
)

// Provider is an OpenAI-compatible LLM provider.
type Provider struct {
	config Config
	client *http.Client
}

// New validates cfg and returns a ready provider.
func New(cfg Config) (*Provider, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Provider{
		config: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: cfg.Timeout,
			},
		},
	}, nil
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	oaiReq := buildRequest(p.config.Model, p.config.MaxTokens, req)

	resp, err := p.doRequest(ctx, oaiReq)
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		return provider.CompletionResponse{}, handleErrorResponse(resp)
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("decode response: %w", err)
	}

	return parseResponse(oaiResp), nil
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

var _ provider.Provider = (*Provider)(nil)
