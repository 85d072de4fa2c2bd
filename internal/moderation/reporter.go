package moderation

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/flemzord/toolguard/internal/security"
)

// Outcome is what the wrapper did with one tool result.
type Outcome string

// Outcome values.
const (
	OutcomePassed        Outcome = "passed"
	OutcomeRedacted      Outcome = "redacted"
	OutcomeFailedClosed  Outcome = "failed_closed"
	OutcomeBypassed      Outcome = "bypassed"
	OutcomeSkippedShort  Outcome = "skipped_short"
	OutcomeSkippedNoText Outcome = "skipped_no_text"
)

// Decision describes one moderated invocation. Score is -1 for
// failed_closed and 0 when no classifier call was made.
type Decision struct {
	SessionID string
	Tool      string
	CallID    string
	Outcome   Outcome
	Score     int
	Reasoning string
	Err       error
	Duration  time.Duration
	Time      time.Time
}

// Classified reports whether the classifier was called for this decision.
func (d Decision) Classified() bool {
	switch d.Outcome {
	case OutcomePassed, OutcomeRedacted, OutcomeFailedClosed:
		return true
	default:
		return false
	}
}

// Reporter receives every decision. Implementations must not block for long;
// Report runs on the tool call path.
type Reporter interface {
	Report(ctx context.Context, d Decision)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, d Decision)

// Report implements Reporter.
func (f ReporterFunc) Report(ctx context.Context, d Decision) { f(ctx, d) }

// MultiReporter fans a decision out to every non-nil reporter, in order.
type MultiReporter []Reporter

// Report implements Reporter.
func (m MultiReporter) Report(ctx context.Context, d Decision) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, d)
		}
	}
}

// LogReporter logs decisions. Failures log at warn, redactions at info and
// everything else at debug.
type LogReporter struct {
	Logger *slog.Logger
}

// Report implements Reporter.
func (r LogReporter) Report(ctx context.Context, d Decision) {
	if r.Logger == nil {
		return
	}
	attrs := []any{
		"tool", d.Tool,
		"outcome", string(d.Outcome),
		"score", d.Score,
		"duration", d.Duration,
	}
	if d.CallID != "" {
		attrs = append(attrs, "call_id", d.CallID)
	}
	if d.SessionID != "" {
		attrs = append(attrs, "session_id", d.SessionID)
	}

	switch d.Outcome {
	case OutcomeFailedClosed:
		r.Logger.WarnContext(ctx, "classifier failed, redacting tool response", append(attrs, "error", d.Err)...)
	case OutcomeRedacted:
		r.Logger.InfoContext(ctx, "tool response redacted", append(attrs, "reasoning", d.Reasoning)...)
	default:
		r.Logger.DebugContext(ctx, "tool response passed", attrs...)
	}
}

// AuditReporter writes decisions to the audit log.
type AuditReporter struct {
	Audit *security.AuditLogger
}

// Report implements Reporter.
func (r AuditReporter) Report(_ context.Context, d Decision) {
	if r.Audit == nil {
		return
	}

	event := security.AuditEvent{
		Type:      security.EventModerationDecision,
		SessionID: d.SessionID,
		ToolName:  d.Tool,
		CallID:    d.CallID,
		Detail:    string(d.Outcome),
		Metadata: map[string]string{
			"score":       strconv.Itoa(d.Score),
			"duration_ms": strconv.FormatInt(d.Duration.Milliseconds(), 10),
		},
	}
	switch d.Outcome {
	case OutcomeFailedClosed:
		event.Type = security.EventModerationFailure
		if d.Err != nil {
			event.Metadata["error"] = d.Err.Error()
		}
	case OutcomeBypassed:
		event.Type = security.EventBypassConsumed
	case OutcomeRedacted, OutcomePassed:
		if d.Reasoning != "" {
			event.Metadata["reasoning"] = d.Reasoning
		}
	}
	r.Audit.Log(event)
}

var (
	_ Reporter = MultiReporter(nil)
	_ Reporter = LogReporter{}
	_ Reporter = AuditReporter{}
	_ Reporter = ReporterFunc(nil)
)
