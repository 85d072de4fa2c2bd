// Package provider defines the host-side LLM abstraction toolguard can route
// classifier calls through. Concrete implementations live in sub-packages
// (e.g. provider/openaicompat) or in the host application.
package provider

import "context"

// Provider is the interface for communicating with an LLM.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}
