// Package tool defines the tool model shared by toolguard and its hosts.
// A Tool is a plain value: wrapping one means building a new value with a
// different Execute func, never mutating the original.
package tool

import (
	"context"
	"encoding/json"
)

// ExecuteFunc runs a tool. ctx carries cancellation from the agent and must
// be honored by long-running implementations. progress may be nil.
type ExecuteFunc func(ctx context.Context, call Call, progress ProgressFunc) (Result, error)

// ProgressFunc receives partial results while a tool is still running.
type ProgressFunc func(partial Result)

// Call identifies a single invocation of a tool.
type Call struct {
	// ID is the provider-assigned tool call identifier.
	ID string

	// Arguments is the raw JSON object sent by the model.
	Arguments json.RawMessage
}

// Tool is a named capability an agent can invoke.
type Tool struct {
	// Name is the unique identifier the model uses to call the tool.
	Name string

	// Description tells the model what the tool does.
	Description string

	// Parameters is the JSON Schema of the tool's arguments.
	Parameters json.RawMessage

	// Execute runs the tool. A nil Execute marks a declaration-only tool.
	Execute ExecuteFunc
}

// Executable reports whether the tool carries an execution capability.
func (t Tool) Executable() bool {
	return t.Execute != nil
}

// EmptyParameters is the schema of a tool that takes no arguments.
var EmptyParameters = json.RawMessage(`{"type":"object","properties":{}}`)
