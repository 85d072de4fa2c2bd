// Package moderation intercepts tool results, scores them with an external
// classifier and replaces suspected prompt injections with a redaction.
//
// A Monitor wraps tools; a BypassState, shared per session between the
// wrapped tools and the bypass tool, lets one call skip moderation after
// the user has confirmed a redaction was a false positive.
package moderation

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/flemzord/toolguard/internal/security"
	"github.com/flemzord/toolguard/internal/tool"
)

// Defaults for Config.
const (
	DefaultThreshold     = 20
	DefaultMinTextLength = 50
)

// FailedScore is the score reported when the classifier could not answer.
const FailedScore = -1

// Config controls a Monitor.
type Config struct {
	// Enabled gates wrapping. A disabled monitor returns tools unchanged.
	Enabled bool
	// Threshold is the lowest score that redacts.
	Threshold int
	// MinTextLength is the rune count below which text is not classified.
	MinTextLength int
	// Policy and Instruction configure the redaction wording.
	Policy      Policy
	Instruction string
	// BindCancellation ties the classifier call to the tool call context.
	// By default the classifier runs on a detached context so a cancelled
	// agent cannot skip moderation; the gateway timeout still applies.
	BindCancellation bool
}

func (c *Config) defaults() {
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.MinTextLength == 0 {
		c.MinTextLength = DefaultMinTextLength
	}
	if c.Policy == "" {
		c.Policy = PolicyOfferBypass
	}
}

// Option configures optional Monitor behavior.
type Option func(*Monitor)

// WithLogger injects a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithReporter adds decision reporters. Reporters are called in order.
func WithReporter(r ...Reporter) Option {
	return func(m *Monitor) { m.reporters = append(m.reporters, r...) }
}

// WithAudit records bypass activations in the audit log.
func WithAudit(a *security.AuditLogger) Option {
	return func(m *Monitor) { m.audit = a }
}

// Monitor wraps tools with moderation. It is safe for concurrent use; all
// per-session state lives in the BypassState passed to Wrap.
type Monitor struct {
	cfg        Config
	classifier Classifier
	formatter  Formatter
	reporters  MultiReporter
	audit      *security.AuditLogger
	logger     *slog.Logger
}

// NewMonitor returns a monitor. It is disabled when cfg.Enabled is false or
// classifier is nil.
func NewMonitor(cfg Config, classifier Classifier, opts ...Option) *Monitor {
	cfg.defaults()
	m := &Monitor{
		cfg:        cfg,
		classifier: classifier,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if classifier == nil {
		m.cfg.Enabled = false
	}
	m.formatter = Formatter{Policy: m.cfg.Policy, Instruction: m.cfg.Instruction}
	return m
}

// Enabled reports whether Wrap installs moderation.
func (m *Monitor) Enabled() bool {
	return m != nil && m.cfg.Enabled
}

// Config returns the effective configuration.
func (m *Monitor) Config() Config {
	return m.cfg
}

// Wrap returns t with its Execute replaced by a moderated version. t is
// returned unchanged when the monitor is disabled, t is the bypass tool or
// t cannot execute. The input tool is never modified.
func (m *Monitor) Wrap(t tool.Tool, state *BypassState) tool.Tool {
	if !m.Enabled() || t.Name == BypassToolName || t.Execute == nil {
		return t
	}

	inner := t.Execute
	name := t.Name
	wrapped := t
	wrapped.Execute = func(ctx context.Context, call tool.Call, progress tool.ProgressFunc) (tool.Result, error) {
		result, err := inner(ctx, call, progress)
		if err != nil {
			return result, err
		}
		return m.moderate(ctx, name, call.ID, result, state), nil
	}
	return wrapped
}

// WrapAll wraps every tool with the same state.
func (m *Monitor) WrapAll(tools []tool.Tool, state *BypassState) []tool.Tool {
	out := make([]tool.Tool, len(tools))
	for i, t := range tools {
		out[i] = m.Wrap(t, state)
	}
	return out
}

// Tools wraps tools and, when the monitor is enabled, appends the bypass
// tool bound to state.
func (m *Monitor) Tools(tools []tool.Tool, state *BypassState) []tool.Tool {
	out := m.WrapAll(tools, state)
	if bt, ok := m.Bypass(state); ok {
		out = append(out, bt)
	}
	return out
}

func (m *Monitor) moderate(ctx context.Context, toolName, callID string, result tool.Result, state *BypassState) tool.Result {
	start := time.Now()
	d := Decision{
		SessionID: SessionIDFromContext(ctx),
		Tool:      toolName,
		CallID:    callID,
		Time:      start,
	}

	if state.Consume() {
		d.Outcome = OutcomeBypassed
		m.report(ctx, d)
		return result
	}

	text, ok := tool.ExtractText(result)
	if !ok {
		d.Outcome = OutcomeSkippedNoText
		m.report(ctx, d)
		return result
	}

	classifyCtx := ctx
	if !m.cfg.BindCancellation {
		classifyCtx = context.WithoutCancel(ctx)
	}
	d = m.evaluate(classifyCtx, d, text)
	d.Duration = time.Since(start)
	m.report(ctx, d)

	switch d.Outcome {
	case OutcomeRedacted, OutcomeFailedClosed:
		return m.formatter.Redact(toolName, d.Score)
	default:
		return result
	}
}

// Evaluate runs the length floor and the classifier on text as if it were
// the output of toolName, and reports the decision. No tool is called and no
// bypass state is consulted.
func (m *Monitor) Evaluate(ctx context.Context, toolName, text string) Decision {
	start := time.Now()
	d := m.evaluate(ctx, Decision{
		SessionID: SessionIDFromContext(ctx),
		Tool:      toolName,
		Time:      start,
	}, text)
	d.Duration = time.Since(start)
	m.report(ctx, d)
	return d
}

// Redaction returns what the agent would receive for d, and whether d redacts.
func (m *Monitor) Redaction(d Decision) (tool.Result, bool) {
	if d.Outcome != OutcomeRedacted && d.Outcome != OutcomeFailedClosed {
		return tool.Result{}, false
	}
	return m.formatter.Redact(d.Tool, d.Score), true
}

func (m *Monitor) evaluate(ctx context.Context, d Decision, text string) Decision {
	if utf8.RuneCountInString(text) < m.cfg.MinTextLength {
		d.Outcome = OutcomeSkippedShort
		return d
	}
	if m.classifier == nil {
		d.Outcome = OutcomeFailedClosed
		d.Score = FailedScore
		d.Err = ErrMissingCredentials
		return d
	}

	v, err := m.classifier.Classify(ctx, text, d.Tool)
	if err != nil {
		d.Outcome = OutcomeFailedClosed
		d.Score = FailedScore
		d.Err = err
		return d
	}

	d.Score = v.Score
	d.Reasoning = v.Reasoning
	if v.Score >= m.cfg.Threshold {
		d.Outcome = OutcomeRedacted
	} else {
		d.Outcome = OutcomePassed
	}
	return d
}

func (m *Monitor) report(ctx context.Context, d Decision) {
	if len(m.reporters) > 0 {
		m.reporters.Report(ctx, d)
	}
}

// Bypass returns BypassTool(state) with arming recorded in the audit log and
// the logger. It reports false when the monitor is disabled, in which case
// no bypass tool should be offered.
func (m *Monitor) Bypass(state *BypassState) (tool.Tool, bool) {
	if !m.Enabled() {
		return tool.Tool{}, false
	}
	t := BypassTool(state)
	arm := t.Execute
	t.Execute = func(ctx context.Context, call tool.Call, progress tool.ProgressFunc) (tool.Result, error) {
		result, err := arm(ctx, call, progress)
		if err != nil {
			return result, err
		}
		m.logger.InfoContext(ctx, "moderation bypass armed for next tool call", "call_id", call.ID)
		m.audit.Log(security.AuditEvent{
			Type:      security.EventBypassArmed,
			SessionID: SessionIDFromContext(ctx),
			ToolName:  BypassToolName,
			CallID:    call.ID,
			Detail:    "next_tool_call",
		})
		return result, nil
	}
	return t, true
}
