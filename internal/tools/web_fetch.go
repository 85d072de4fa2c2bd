package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/flemzord/toolguard/internal/security"
	"github.com/flemzord/toolguard/internal/tool"
)

// WebFetchName is the tool name of web_fetch.
const WebFetchName = "web_fetch"

// web_fetch limits.
const (
	DefaultFetchTimeout     = 30 * time.Second
	DefaultFetchMaxBodySize = 5 * 1024 * 1024
	DefaultFetchMaxLines    = 2000
	fetchUserAgent          = "toolguard/1.0 (+web_fetch)"
	maxRedirects            = 10
)

// WebFetchConfig configures the web_fetch tool.
type WebFetchConfig struct {
	// Filter validates the initial URL and every redirect target. Nil
	// allows any public http(s) URL.
	Filter *security.URLFilter

	// Client overrides the HTTP client. Its CheckRedirect is replaced.
	Client *http.Client

	Timeout     time.Duration
	MaxBodySize int64
	MaxLines    int
}

func (c *WebFetchConfig) defaults() {
	if c.Filter == nil {
		c.Filter = security.NewURLFilter(security.URLFilterConfig{})
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultFetchTimeout
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = DefaultFetchMaxBodySize
	}
	if c.MaxLines <= 0 {
		c.MaxLines = DefaultFetchMaxLines
	}
}

var webFetchParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "url": {"type": "string", "description": "The URL to fetch (http or https)"}
  },
  "required": ["url"]
}`)

// WebFetch returns a tool that fetches a URL and converts HTML to markdown.
func WebFetch(cfg WebFetchConfig) tool.Tool {
	cfg.defaults()

	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.Client != nil {
		c := *cfg.Client
		client = &c
		if client.Timeout == 0 {
			client.Timeout = cfg.Timeout
		}
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errors.New("too many redirects")
		}
		return cfg.Filter.Check(req.URL.String())
	}

	f := &fetcher{cfg: cfg, client: client}
	return tool.Tool{
		Name: WebFetchName,
		Description: "Fetch a web page and return its content as markdown. " +
			"Only http and https URLs are supported; long pages are truncated.",
		Parameters: webFetchParameters,
		Execute:    f.execute,
	}
}

type fetcher struct {
	cfg    WebFetchConfig
	client *http.Client
}

func (f *fetcher) execute(ctx context.Context, call tool.Call, _ tool.ProgressFunc) (tool.Result, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := decodeArgs(call.Arguments, &args); err != nil {
		return tool.ErrorResult(err.Error()), nil
	}
	args.URL = strings.TrimSpace(args.URL)
	if args.URL == "" {
		return tool.ErrorResult("url is required"), nil
	}
	if err := f.cfg.Filter.Check(args.URL); err != nil {
		return tool.ErrorResult(err.Error()), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
	if err != nil {
		return tool.ErrorResult(fmt.Sprintf("failed to create request: %v", err)), nil
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,text/plain,text/markdown,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return tool.Result{}, ctx.Err()
		}
		return tool.ErrorResult(fmt.Sprintf("HTTP request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return tool.ErrorResult(fmt.Sprintf("HTTP %d %s for %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), args.URL)), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodySize+1))
	if err != nil {
		return tool.ErrorResult(fmt.Sprintf("failed to read response: %v", err)), nil
	}
	truncated := int64(len(body)) > f.cfg.MaxBodySize
	if truncated {
		body = body[:f.cfg.MaxBodySize]
	}

	content, ok := convertBody(resp.Header.Get("Content-Type"), body)
	if !ok {
		return tool.ErrorResult("unsupported content type: " + resp.Header.Get("Content-Type")), nil
	}
	content = truncateLines(content, f.cfg.MaxLines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\n\n", resp.Request.URL)
	sb.WriteString(content)
	if truncated {
		sb.WriteString("\n\n[content truncated due to size limit]")
	}

	r := tool.TextResult(sb.String())
	r.Details = map[string]any{
		"url":       resp.Request.URL.String(),
		"status":    resp.StatusCode,
		"truncated": truncated,
	}
	return r, nil
}

// convertBody turns a response body into text. HTML becomes markdown; the
// raw body is used when conversion fails.
func convertBody(contentType string, body []byte) (string, bool) {
	switch {
	case strings.Contains(contentType, "text/html"),
		strings.Contains(contentType, "application/xhtml"):
		md, err := htmltomarkdown.ConvertString(string(body))
		if err != nil {
			return string(body), true
		}
		return md, true
	case strings.HasPrefix(contentType, "text/"),
		strings.Contains(contentType, "json"):
		return string(body), true
	default:
		if isLikelyText(body) {
			return string(body), true
		}
		return "", false
	}
}

// truncateLines keeps only the first maxLines lines.
func truncateLines(s string, maxLines int) string {
	idx := 0
	for range maxLines {
		next := strings.IndexByte(s[idx:], '\n')
		if next == -1 {
			return s
		}
		idx += next + 1
	}
	if idx == len(s) {
		return s
	}
	return s[:idx] + fmt.Sprintf("[content truncated to first %d lines]", maxLines)
}

// isLikelyText reports whether data looks like text (no NUL in the first
// 512 bytes). Empty data is not text.
func isLikelyText(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	check := data
	if len(check) > 512 {
		check = check[:512]
	}
	for _, b := range check {
		if b == 0 {
			return false
		}
	}
	return true
}
