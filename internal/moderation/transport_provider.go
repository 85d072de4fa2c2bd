package moderation

import (
	"context"
	"errors"
	"fmt"

	"github.com/flemzord/toolguard/internal/provider"
)

// ProviderTransport routes classifier calls through a host-managed
// provider, which owns model and credential resolution.
type ProviderTransport struct {
	provider provider.Provider
}

var _ Transport = (*ProviderTransport)(nil)

// NewProviderTransport wraps p. A nil provider yields ErrMissingCredentials
// on every call.
func NewProviderTransport(p provider.Provider) *ProviderTransport {
	return &ProviderTransport{provider: p}
}

// Complete implements Transport.
func (t *ProviderTransport) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if t.provider == nil {
		return "", ErrMissingCredentials
	}

	msgs := make([]provider.LLMMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = provider.LLMMessage{Role: provider.MessageRole(m.Role), Content: m.Content}
	}

	creq := provider.CompletionRequest{Messages: msgs}
	if req.JSONObject {
		creq.ResponseFormat = provider.ResponseFormatJSONObject
	}

	resp, err := t.provider.Complete(ctx, creq)
	if err != nil {
		return "", mapProviderError(err)
	}
	return resp.Content, nil
}

func mapProviderError(err error) error {
	switch {
	case errors.Is(err, provider.ErrAuthentication), errors.Is(err, provider.ErrNoProvider):
		return fmt.Errorf("%w: %w", ErrMissingCredentials, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}
