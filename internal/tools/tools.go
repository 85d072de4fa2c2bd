// Package tools provides the built-in tools toolguard exposes when it runs
// standalone. Every tool here returns plain text and is meant to be wrapped
// by a moderation.Monitor before it reaches a model.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flemzord/toolguard/internal/security"
	"github.com/flemzord/toolguard/internal/tool"
)

// ErrInvalidArguments is returned when a call's arguments cannot be decoded.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// maxArgumentsSize caps the raw argument payload of built-in tools.
const maxArgumentsSize = 64 * 1024

// Config selects and configures the built-in tools.
type Config struct {
	// Workspace enables read_file rooted at this directory when non-empty.
	Workspace   string
	ReadMaxSize int64

	// WebFetch enables web_fetch when non-nil.
	WebFetch *WebFetchConfig
}

// Builtin returns the enabled built-in tools.
func Builtin(cfg Config) []tool.Tool {
	var out []tool.Tool
	if cfg.WebFetch != nil {
		out = append(out, WebFetch(*cfg.WebFetch))
	}
	if cfg.Workspace != "" {
		out = append(out, ReadFile(ReadFileConfig{Root: cfg.Workspace, MaxSize: cfg.ReadMaxSize}))
	}
	return out
}

// decodeArgs validates and unmarshals call arguments into v.
func decodeArgs(raw json.RawMessage, v any) error {
	if err := security.ValidatePayload(raw, maxArgumentsSize, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return nil
}
