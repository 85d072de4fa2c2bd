// Package mcpserver exposes a moderated tool set over the Model Context
// Protocol. One Server is one agent session: it owns a single BypassState
// shared by every tool it serves.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/toolguard/internal/moderation"
	"github.com/flemzord/toolguard/internal/security"
	"github.com/flemzord/toolguard/internal/tool"
)

// DefaultName is the MCP implementation name advertised to clients.
const DefaultName = "toolguard"

// maxArgumentsSize caps the JSON arguments accepted for one call.
const maxArgumentsSize = 1 << 20

// Config configures a Server.
type Config struct {
	Name    string
	Version string
}

// Server serves tools over MCP with moderation applied.
type Server struct {
	mcp      *server.MCPServer
	registry *tool.Registry
	state    *moderation.BypassState
	session  string
	logger   *slog.Logger
}

// New registers tools, wrapped by monitor, and the bypass tool when
// moderation is enabled. A nil monitor serves tools unmoderated.
func New(cfg Config, monitor *moderation.Monitor, tools []tool.Tool, audit *security.AuditLogger, logger *slog.Logger) (*Server, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		registry: tool.NewRegistry(),
		state:    moderation.NewBypassState(),
		session:  uuid.NewString(),
		logger:   logger.With("component", "mcpserver"),
	}
	s.registry.SetAuditLogger(audit)

	for _, t := range tools {
		if err := s.registry.Register(t); err != nil {
			return nil, fmt.Errorf("registering %s: %w", t.Name, err)
		}
	}
	s.registry.Apply(func(t tool.Tool) tool.Tool {
		return monitor.Wrap(t, s.state)
	})
	if bt, ok := monitor.Bypass(s.state); ok {
		if err := s.registry.Register(bt); err != nil {
			return nil, fmt.Errorf("registering %s: %w", bt.Name, err)
		}
	}

	s.mcp = server.NewMCPServer(cfg.Name, cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, t := range s.registry.Tools() {
		s.mcp.AddTool(mcp.NewToolWithRawSchema(t.Name, t.Description, schemaOf(t)), s.handler(t.Name))
	}

	s.logger.Info("mcp server ready",
		"tools", s.registry.Names(),
		"moderation", monitor.Enabled(),
	)
	return s, nil
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Bypass returns the session's bypass state.
func (s *Server) Bypass() *moderation.BypassState {
	return s.state
}

// ServeStdio serves MCP over in/out until ctx is done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(slogWriter{s.logger}, "", 0))
	return stdio.Listen(ctx, in, out)
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.GetRawArguments())
		if err != nil {
			return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
		}
		if string(args) == "null" {
			args = []byte("{}")
		}
		if err := security.ValidatePayload(args, maxArgumentsSize, 0); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		ctx = moderation.WithSessionID(ctx, s.sessionID(ctx))
		call := tool.Call{ID: uuid.NewString(), Arguments: args}

		result, err := s.registry.Execute(ctx, name, call, nil)
		if err != nil {
			s.logger.Warn("tool execution failed", "tool", name, "call_id", call.ID, "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("tool %s failed: %v", name, err)), nil
		}
		return toCallToolResult(result), nil
	}
}

// sessionID prefers the transport session and falls back to the server's.
func (s *Server) sessionID(ctx context.Context) string {
	if cs := server.ClientSessionFromContext(ctx); cs != nil && cs.SessionID() != "" {
		return cs.SessionID()
	}
	return s.session
}

func schemaOf(t tool.Tool) json.RawMessage {
	if len(t.Parameters) == 0 {
		return tool.EmptyParameters
	}
	return t.Parameters
}

// toCallToolResult converts a tool result into MCP content. Details are
// carried as structured content.
func toCallToolResult(r tool.Result) *mcp.CallToolResult {
	out := &mcp.CallToolResult{IsError: r.IsError}
	for _, b := range r.Content {
		switch b.Type {
		case tool.BlockText:
			out.Content = append(out.Content, mcp.NewTextContent(b.Text))
		case tool.BlockImage:
			out.Content = append(out.Content, mcp.NewImageContent(b.Data, b.MimeType))
		}
	}
	if out.Content == nil {
		out.Content = []mcp.Content{}
	}
	if len(r.Details) > 0 {
		out.StructuredContent = r.Details
	}
	return out
}

// slogWriter adapts the stdio transport's log.Logger to slog.
type slogWriter struct{ logger *slog.Logger }

func (w slogWriter) Write(p []byte) (int, error) {
	w.logger.Error("stdio transport", "error", string(p))
	return len(p), nil
}
