// Package moderationtest provides test helpers for the moderation package.
package moderationtest

import (
	"context"
	"sync"

	"github.com/flemzord/toolguard/internal/moderation"
)

// Classification is one recorded Classify call.
type Classification struct {
	Text     string
	ToolName string
}

// MockClassifier is a configurable test double for moderation.Classifier.
// When ClassifyFunc is nil it returns Verdict and Err.
type MockClassifier struct {
	ClassifyFunc func(ctx context.Context, text, toolName string) (moderation.Verdict, error)
	Verdict      moderation.Verdict
	Err          error

	mu    sync.Mutex
	calls []Classification
}

// Score returns a classifier that always answers score.
func Score(score int) *MockClassifier {
	return &MockClassifier{Verdict: moderation.Verdict{Score: score}}
}

// Fail returns a classifier that always fails with err.
func Fail(err error) *MockClassifier {
	return &MockClassifier{Err: err}
}

// Classify implements moderation.Classifier.
func (m *MockClassifier) Classify(ctx context.Context, text, toolName string) (moderation.Verdict, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Classification{Text: text, ToolName: toolName})
	m.mu.Unlock()

	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, text, toolName)
	}
	return m.Verdict, m.Err
}

// Calls returns a copy of the recorded calls.
func (m *MockClassifier) Calls() []Classification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Classification(nil), m.calls...)
}

// TransportFunc adapts a function to moderation.Transport.
type TransportFunc func(ctx context.Context, req moderation.ChatRequest) (string, error)

// Complete implements moderation.Transport.
func (f TransportFunc) Complete(ctx context.Context, req moderation.ChatRequest) (string, error) {
	return f(ctx, req)
}

// Recorder collects reported decisions.
type Recorder struct {
	mu        sync.Mutex
	decisions []moderation.Decision
}

// Report implements moderation.Reporter.
func (r *Recorder) Report(_ context.Context, d moderation.Decision) {
	r.mu.Lock()
	r.decisions = append(r.decisions, d)
	r.mu.Unlock()
}

// Decisions returns a copy of the recorded decisions.
func (r *Recorder) Decisions() []moderation.Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]moderation.Decision(nil), r.decisions...)
}

var (
	_ moderation.Classifier = (*MockClassifier)(nil)
	_ moderation.Transport  = TransportFunc(nil)
	_ moderation.Reporter   = (*Recorder)(nil)
)
