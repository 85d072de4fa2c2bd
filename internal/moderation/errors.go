package moderation

import "errors"

// Sentinel errors for classification. Each failure mode is distinct so
// reporters can tell them apart; the wrapper treats all of them the same.
var (
	// ErrMissingCredentials indicates no usable API key or host provider.
	ErrMissingCredentials = errors.New("moderation: missing classifier credentials")

	// ErrUpstreamStatus indicates the classifier endpoint returned a non-2xx status.
	ErrUpstreamStatus = errors.New("moderation: classifier returned error status")

	// ErrEmptyResponse indicates the classifier reply had no content.
	ErrEmptyResponse = errors.New("moderation: classifier returned empty content")

	// ErrInvalidJSON indicates the classifier content is not a JSON object.
	ErrInvalidJSON = errors.New("moderation: classifier returned invalid JSON")

	// ErrUnavailable indicates a network, timeout or provider failure.
	ErrUnavailable = errors.New("moderation: classifier unavailable")
)
