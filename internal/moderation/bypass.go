package moderation

import (
	"context"
	"sync"

	"github.com/flemzord/toolguard/internal/tool"
)

// BypassToolName is reserved: tools with this name are never wrapped.
const BypassToolName = "moderation_skip_next"

const bypassAck = `{"status":"armed","scope":"next_tool_call"}`

// BypassState is a per-session skip-once flag. The zero value is disarmed.
// Share one state between the bypass tool and every tool wrapped for the
// same session; never share it across sessions.
type BypassState struct {
	mu    sync.Mutex
	armed bool
}

// NewBypassState returns a disarmed state.
func NewBypassState() *BypassState {
	return &BypassState{}
}

// Arm sets the flag. Arming an armed state is a no-op.
func (s *BypassState) Arm() {
	s.mu.Lock()
	s.armed = true
	s.mu.Unlock()
}

// Consume reports whether the state was armed and disarms it in the same
// critical section, so concurrent callers see true at most once per Arm.
// A nil state is never armed.
func (s *BypassState) Consume() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	armed := s.armed
	s.armed = false
	return armed
}

// Armed reports the current flag without changing it.
func (s *BypassState) Armed() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// BypassTool returns the tool that arms state. It takes no parameters.
func BypassTool(state *BypassState) tool.Tool {
	return tool.Tool{
		Name: BypassToolName,
		Description: "Skip content moderation for the next tool call only. " +
			"Use this only after the user has confirmed that a redacted tool response is safe.",
		Parameters: tool.EmptyParameters,
		Execute: func(_ context.Context, _ tool.Call, _ tool.ProgressFunc) (tool.Result, error) {
			state.Arm()
			return tool.Result{
				Content: []tool.Block{{Type: tool.BlockText, Text: bypassAck}},
				Details: map[string]any{
					"status": "armed",
					"scope":  "next_tool_call",
				},
			}, nil
		},
	}
}
