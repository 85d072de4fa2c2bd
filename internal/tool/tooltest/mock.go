// Package tooltest provides test helpers for the tool package.
package tooltest

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"

	"github.com/flemzord/toolguard/internal/tool"
)

// Recorder is an execute function double that returns a fixed result and
// records every call it receives. Safe for concurrent use.
type Recorder struct {
	Result tool.Result
	Err    error

	// ExecuteFunc, when set, overrides Result and Err.
	ExecuteFunc func(ctx context.Context, call tool.Call, progress tool.ProgressFunc) (tool.Result, error)

	mu    sync.Mutex
	calls []tool.Call
	ctxs  []context.Context
}

// Execute implements tool.ExecuteFunc.
func (r *Recorder) Execute(ctx context.Context, call tool.Call, progress tool.ProgressFunc) (tool.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.ctxs = append(r.ctxs, ctx)
	r.mu.Unlock()

	if r.ExecuteFunc != nil {
		return r.ExecuteFunc(ctx, call, progress)
	}
	return r.Result, r.Err
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []tool.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tool.Call(nil), r.calls...)
}

// Contexts returns the contexts passed to Execute, in call order.
func (r *Recorder) Contexts() []context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]context.Context(nil), r.ctxs...)
}

// TextTool returns a tool named name whose execution always yields text.
// The returned Recorder observes its calls.
func TextTool(name, text string) (tool.Tool, *Recorder) {
	rec := &Recorder{Result: tool.TextResult(text)}
	return tool.Tool{
		Name:        name,
		Description: "test tool: " + name,
		Parameters:  json.RawMessage(`{"type":"object"}`),
		Execute:     rec.Execute,
	}, rec
}

// SameExecute reports whether a and b carry the same execute function.
// It compares code pointers, so two method values of the same method on
// different receivers compare equal; use it to tell a wrapped tool from the
// original, not to tell two tools apart.
func SameExecute(a, b tool.Tool) bool {
	if a.Execute == nil || b.Execute == nil {
		return a.Execute == nil && b.Execute == nil
	}
	return reflect.ValueOf(a.Execute).Pointer() == reflect.ValueOf(b.Execute).Pointer()
}
