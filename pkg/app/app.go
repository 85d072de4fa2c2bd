// Package app wires configuration, logging, moderation and the optional
// side channels into a runnable toolguard instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/flemzord/toolguard/internal/config"
	"github.com/flemzord/toolguard/internal/cron"
	"github.com/flemzord/toolguard/internal/ledger"
	"github.com/flemzord/toolguard/internal/moderation"
	"github.com/flemzord/toolguard/internal/provider"
	"github.com/flemzord/toolguard/internal/provider/openaicompat"
	"github.com/flemzord/toolguard/internal/security"
	"github.com/flemzord/toolguard/internal/telemetry"
	"github.com/flemzord/toolguard/internal/tool"
	"github.com/flemzord/toolguard/internal/tools"
	"go.opentelemetry.io/otel/trace"
)

// Options configures New.
type Options struct {
	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogOutput receives logs. Defaults to os.Stderr; stdout is reserved
	// for the MCP transport.
	LogOutput io.Writer

	// Getenv overrides os.Getenv for enablement and credential lookup.
	Getenv func(string) string
}

// App is a wired toolguard instance.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Redactor    *security.Redactor
	Credentials *security.CredentialStore
	Audit       *security.AuditLogger
	Metrics     *telemetry.Metrics
	Monitor     *moderation.Monitor
	Ledger      *ledger.Store
	Tools       []tool.Tool

	version   string
	scheduler *cron.Scheduler
	closers   []func(context.Context) error
}

// New builds an App from cfg. Missing classifier credentials disable
// moderation with a warning instead of failing.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	a := &App{
		Config:      cfg,
		Redactor:    security.NewRedactor(),
		Credentials: security.NewCredentialStore(),
		Metrics:     telemetry.NewMetrics(),
		version:     opts.Version,
	}
	a.Logger = security.NewLogger(opts.LogOutput, opts.LogLevel, a.Redactor)
	a.Credentials.Set(security.CredentialAdminToken, cfg.Admin.Token)

	if err := a.openAudit(); err != nil {
		return nil, err
	}

	tp, shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Endpoint:    cfg.Telemetry.Tracing.Endpoint,
		Insecure:    cfg.Telemetry.Tracing.Insecure,
		ServiceName: cfg.Telemetry.Tracing.ServiceName,
	}, opts.Version)
	if err != nil {
		return nil, errors.Join(err, a.Close(ctx))
	}
	a.closers = append(a.closers, shutdownTracing)

	if err := a.openLedger(ctx); err != nil {
		return nil, errors.Join(err, a.Close(ctx))
	}

	classifier, err := a.buildClassifier(opts.Getenv, tp)
	if err != nil {
		return nil, errors.Join(err, a.Close(ctx))
	}
	a.Redactor.SyncCredentials(a.Credentials)

	reporters := []moderation.Reporter{
		moderation.LogReporter{Logger: a.Logger.With("component", "moderation")},
		moderation.AuditReporter{Audit: a.Audit},
		a.Metrics,
	}
	if a.Ledger != nil {
		reporters = append(reporters, ledger.Reporter{Store: a.Ledger, Logger: a.Logger})
	}

	m := cfg.Moderation
	a.Monitor = moderation.NewMonitor(moderation.Config{
		Enabled:          moderation.Enabled(m.Enabled, opts.Getenv),
		Threshold:        derefInt(m.Threshold),
		MinTextLength:    derefInt(m.MinTextLength),
		Policy:           moderation.Policy(m.Policy),
		Instruction:      m.Instruction,
		BindCancellation: m.BindCancellation,
	}, classifier,
		moderation.WithLogger(a.Logger.With("component", "moderation")),
		moderation.WithAudit(a.Audit),
		moderation.WithReporter(reporters...),
	)

	a.Tools = tools.Builtin(a.toolsConfig())
	a.Metrics.KnownTools(toolNames(a.Tools)...)

	a.Logger.Info("toolguard ready",
		"version", opts.Version,
		"moderation", a.Monitor.Enabled(),
		"tools", len(a.Tools),
		"ledger", a.Ledger != nil,
	)
	return a, nil
}

func (a *App) openAudit() error {
	cfg := security.AuditLoggerConfig{Redactor: a.Redactor}
	if path := a.Config.Audit.Path; path != "" {
		f, err := security.OpenAuditFile(path)
		if err != nil {
			return err
		}
		cfg.Writer = f
		a.closers = append(a.closers, func(context.Context) error { return f.Close() })
	}
	a.Audit = security.NewAuditLogger(cfg)
	return nil
}

func (a *App) openLedger(ctx context.Context) error {
	lc := a.Config.Ledger
	if lc.Path == "" {
		return nil
	}

	store, err := ledger.Open(ctx, lc.Path)
	if err != nil {
		return err
	}
	a.Ledger = store
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })

	a.scheduler = cron.NewScheduler(a.Logger)
	if err := a.scheduler.RegisterJob(&cron.RetentionJob{
		Store:        store,
		MaxAge:       lc.Retention,
		Logger:       a.Logger,
		ScheduleExpr: lc.Schedule,
	}); err != nil {
		return err
	}
	if err := a.scheduler.Start(); err != nil {
		return err
	}
	// Stop runs before the store closes (closers run in reverse).
	a.closers = append(a.closers, a.scheduler.Stop)
	return nil
}

// buildClassifier returns nil, not an error, when moderation is off or no
// credentials resolve.
func (a *App) buildClassifier(getenv func(string) string, tp trace.TracerProvider) (moderation.Classifier, error) {
	cfg := a.Config
	if !moderation.Enabled(cfg.Moderation.Enabled, getenv) {
		return nil, nil
	}

	var host provider.Provider
	if pc := cfg.Provider; pc != nil {
		p, err := openaicompat.New(openaicompat.Config{
			BaseURL:   pc.BaseURL,
			APIKey:    pc.APIKey,
			Model:     pc.Model,
			MaxTokens: pc.MaxTokens,
			Headers:   pc.Headers,
			Timeout:   pc.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("provider: %w", err)
		}
		host = p
		a.Credentials.Set("provider.api_key", pc.APIKey)
	}

	creds, err := moderation.ResolveCredentials(moderation.ClassifierSettings{
		BaseURL:   cfg.Classifier.BaseURL,
		APIKey:    cfg.Classifier.APIKey,
		APIKeyEnv: cfg.Classifier.APIKeyEnv,
		Model:     cfg.Classifier.Model,
	}, getenv, host)
	if errors.Is(err, moderation.ErrMissingCredentials) {
		a.Logger.Warn("moderation enabled but no classifier credentials found, tools run unmoderated",
			"env", moderation.EnvAPIKey)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Credentials.Set(security.CredentialClassifierKey, creds.APIKey)

	transport, err := creds.Transport(nil)
	if err != nil {
		a.Logger.Warn("classifier transport unavailable, tools run unmoderated", "error", err)
		return nil, nil
	}

	a.Logger.Info("classifier configured", "source", creds.Source, "model", creds.Model)
	return moderation.NewGateway(transport,
		moderation.WithTimeout(cfg.Classifier.Timeout),
		moderation.WithTracerProvider(tp),
		moderation.WithObserver(a.Metrics),
		moderation.WithGatewayLogger(a.Logger.With("component", "classifier")),
	), nil
}

func (a *App) toolsConfig() tools.Config {
	tc := a.Config.Tools
	out := tools.Config{Workspace: tc.Workspace, ReadMaxSize: tc.ReadMaxSize}
	if wf := tc.WebFetch; wf.Enabled {
		out.WebFetch = &tools.WebFetchConfig{
			Filter:      security.NewURLFilter(wf.URLFilterConfig),
			Timeout:     wf.Timeout,
			MaxBodySize: wf.MaxBodySize,
			MaxLines:    wf.MaxLines,
		}
	}
	return out
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// derefInt returns 0 for nil so the monitor applies its own default.
func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func toolNames(ts []tool.Tool) []string {
	names := make([]string, 0, len(ts)+1)
	for _, t := range ts {
		names = append(names, t.Name)
	}
	return append(names, moderation.BypassToolName)
}
