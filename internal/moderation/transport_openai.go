package moderation

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when credentials carry no model.
const DefaultModel = "gpt-4o-mini"

// OpenAIConfig configures a direct chat-completions transport.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty uses the OpenAI default
	Model   string

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// OpenAITransport posts chat completions directly with go-openai.
type OpenAITransport struct {
	client *openai.Client
	model  string
}

var _ Transport = (*OpenAITransport)(nil)

// NewOpenAITransport returns ErrMissingCredentials when cfg has no API key.
func NewOpenAITransport(cfg OpenAIConfig) (*OpenAITransport, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &OpenAITransport{
		client: openai.NewClientWithConfig(oc),
		model:  model,
	}, nil
}

// Model returns the model the transport requests.
func (t *OpenAITransport) Model() string { return t.model }

// Complete implements Transport.
func (t *OpenAITransport) Complete(ctx context.Context, req ChatRequest) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	creq := openai.ChatCompletionRequest{
		Model:    t.model,
		Messages: msgs,
	}
	if req.JSONObject {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := t.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %w: HTTP %d: %s", ErrUpstreamStatus, ErrMissingCredentials, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return fmt.Errorf("%w: HTTP %d: %s", ErrUpstreamStatus, apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: HTTP %d: %w", ErrUpstreamStatus, reqErr.HTTPStatusCode, reqErr.Err)
	}

	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
