package tool

import "strings"

// BlockType tags a content block inside a Result.
type BlockType string

// BlockType values understood by toolguard.
const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
)

// Block is one piece of tool output.
type Block struct {
	Type BlockType `json:"type"`

	// Text is set for text blocks.
	Text string `json:"text,omitempty"`

	// Data and MimeType are set for binary blocks (base64 payload).
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Result is the outcome of a tool execution.
type Result struct {
	Content []Block `json:"content"`

	// IsError indicates the content describes a tool-level error
	// (the call itself completed).
	IsError bool `json:"is_error,omitempty"`

	// Details carries structured data for the host; it is not shown to the model.
	Details map[string]any `json:"details,omitempty"`
}

// TextResult returns a result holding a single text block.
func TextResult(text string) Result {
	return Result{Content: []Block{{Type: BlockText, Text: text}}}
}

// ErrorResult returns a single-text-block result flagged as an error.
func ErrorResult(text string) Result {
	r := TextResult(text)
	r.IsError = true
	return r
}

// ExtractText returns the text payload of r. Multiple text blocks are joined
// with a newline. The boolean is false when r holds no text block at all,
// which is distinct from a text block with an empty payload.
func ExtractText(r Result) (string, bool) {
	var (
		parts []string
		found bool
	)
	for _, b := range r.Content {
		if b.Type != BlockText {
			continue
		}
		found = true
		parts = append(parts, b.Text)
	}
	if !found {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}
