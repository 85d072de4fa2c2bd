package app

import (
	"context"
	"io"

	"github.com/flemzord/toolguard/internal/admin"
	"github.com/flemzord/toolguard/internal/mcpserver"
	"github.com/flemzord/toolguard/internal/moderation"
	"github.com/flemzord/toolguard/internal/tool"
)

// ServeMCP serves the moderated tool set over MCP stdio until ctx is done
// or in reaches EOF.
func (a *App) ServeMCP(ctx context.Context, in io.Reader, out io.Writer) error {
	srv, err := mcpserver.New(mcpserver.Config{Version: a.version}, a.Monitor, a.Tools, a.Audit, a.Logger)
	if err != nil {
		return err
	}
	return srv.ServeStdio(ctx, in, out)
}

// ServeAdmin runs the admin HTTP server until ctx is done.
func (a *App) ServeAdmin(ctx context.Context) error {
	deps := admin.Deps{
		Monitor: a.Monitor,
		Metrics: a.Metrics.Handler(),
		Audit:   a.Audit,
		Logger:  a.Logger,
	}
	if a.Ledger != nil {
		deps.Decisions = a.Ledger
	}

	srv := admin.New(a.Config.Admin, deps)
	if _, err := srv.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return srv.Stop(context.WithoutCancel(ctx))
}

// Classify evaluates text as the output of toolName. The returned result is
// what an agent would receive: the redaction, or text unchanged.
func (a *App) Classify(ctx context.Context, toolName, text string) (moderation.Decision, tool.Result) {
	d := a.Monitor.Evaluate(ctx, toolName, text)
	if r, ok := a.Monitor.Redaction(d); ok {
		return d, r
	}
	return d, tool.TextResult(text)
}
