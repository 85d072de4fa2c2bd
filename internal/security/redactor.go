package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// minLiteralLen is the shortest runtime secret worth redacting; shorter
// values produce false positives on ordinary words.
const minLiteralLen = 8

// Redactor replaces secret values in strings with RedactPlaceholder.
// It matches known API key formats by pattern and runtime credentials
// (such as the classifier API key) by literal value.
// All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: DefaultPatterns(),
	}
}

// AddLiteral registers a secret value that should be redacted on sight.
// Values shorter than eight bytes are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if len(secret) < minLiteralLen {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// SyncCredentials replaces all literal values with the current contents
// of the credential store.
func (r *Redactor) SyncCredentials(store *CredentialStore) {
	var values []string
	for _, v := range store.Values() {
		if len(v) >= minLiteralLen {
			values = append(values, v)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = values
}

// Redact returns s with every known secret replaced.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	// Literals first: a runtime key may be longer than what a pattern matches.
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// DefaultPatterns returns compiled regex patterns for API key formats
// commonly used with chat-completion endpoints.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Anthropic before OpenAI so the longer prefix wins.
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-_]{20,}`),
		// OpenAI, OpenRouter (sk-or-), project keys (sk-proj-).
		regexp.MustCompile(`sk-[a-zA-Z0-9\-_]{20,}`),
		// Groq.
		regexp.MustCompile(`gsk_[a-zA-Z0-9]{20,}`),
		// Bearer tokens in echoed headers.
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-_.=]{20,}`),
	}
}
