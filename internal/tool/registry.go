package tool

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/flemzord/toolguard/internal/security"
)

// Registry holds the tools exposed to one agent session and dispatches
// calls to them by name. It is instance-based (not global).
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]Tool
	auditLogger *security.AuditLogger
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// SetAuditLogger configures audit logging for tool executions.
func (r *Registry) SetAuditLogger(logger *security.AuditLogger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auditLogger = logger
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return ErrEmptyToolName
	}
	if !t.Executable() {
		return fmt.Errorf("%w: %s", ErrNotExecutable, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	t.Name = name
	r.tools[name] = t
	return nil
}

// Get returns the tool with the given name, or ErrToolNotFound.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Names returns all registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Tools returns all registered tools sorted by name.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	slices.SortFunc(tools, func(a, b Tool) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return tools
}

// Apply replaces every registered tool with fn(tool). The name of the
// returned tool must not change; entries whose name changes are skipped.
func (r *Registry) Apply(fn func(Tool) Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, t := range r.tools {
		next := fn(t)
		if next.Name != name || !next.Executable() {
			continue
		}
		r.tools[name] = next
	}
}

// Execute looks up a tool by name and runs it, emitting audit events around
// the call.
func (r *Registry) Execute(ctx context.Context, name string, call Call, progress ProgressFunc) (Result, error) {
	t, err := r.Get(name)
	if err != nil {
		return Result{}, err
	}

	r.mu.RLock()
	al := r.auditLogger
	r.mu.RUnlock()

	if al != nil {
		al.Log(security.AuditEvent{
			Type:     security.EventToolCall,
			ToolName: name,
			CallID:   call.ID,
			Detail:   truncateForAudit(string(call.Arguments)),
		})
	}

	result, err := t.Execute(ctx, call, progress)

	if al != nil {
		detail := ""
		if text, ok := ExtractText(result); ok {
			detail = truncateForAudit(text)
		}
		if err != nil {
			detail = "error: " + err.Error()
		}
		al.Log(security.AuditEvent{
			Type:     security.EventToolResult,
			ToolName: name,
			CallID:   call.ID,
			Detail:   detail,
			Metadata: map[string]string{
				"is_error": fmt.Sprintf("%v", result.IsError || err != nil),
			},
		})
	}

	return result, err
}

// maxAuditDetailLen is the maximum length of audit detail strings.
const maxAuditDetailLen = 4096

// truncateForAudit cuts s to maxAuditDetailLen on a rune boundary.
func truncateForAudit(s string) string {
	if len(s) <= maxAuditDetailLen {
		return s
	}
	i := maxAuditDetailLen
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i] + "...(truncated)"
}
