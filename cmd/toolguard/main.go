// Package main is the entry point for the toolguard CLI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/flemzord/toolguard/internal/config"
	"github.com/flemzord/toolguard/internal/tool"
	"github.com/flemzord/toolguard/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "toolguard",
		Short:         "Content moderation for agent tool calls",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.AddCommand(versionCmd(), mcpCmd(), serveCmd(), classifyCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "toolguard %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the moderated built-in tools over MCP stdio",
		Long: "Serve the moderated built-in tools over MCP stdio. " +
			"The admin server also starts when admin.listen is configured.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			// The session ends when the client closes stdin.
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				defer cancel()
				return a.ServeMCP(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			})
			if a.Config.Admin.Listen != "" {
				g.Go(func() error { return a.ServeAdmin(ctx) })
			}
			return ignoreCanceled(g.Wait())
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			return ignoreCanceled(a.ServeAdmin(ctx))
		},
	}
}

// classifyOutput is printed by the classify command.
type classifyOutput struct {
	Tool      string `json:"tool"`
	Outcome   string `json:"outcome"`
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning,omitempty"`
	Error     string `json:"error,omitempty"`
	Result    string `json:"result"`
}

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Score text from --text or stdin as if a tool had returned it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			toolName, _ := cmd.Flags().GetString("tool")
			text, _ := cmd.Flags().GetString("text")
			if text == "" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = strings.TrimRight(string(raw), "\n")
			}

			a, err := newApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if !a.Monitor.Enabled() {
				return errors.New("moderation is disabled: set TOOLGUARD_MODERATION=1 and classifier credentials")
			}

			d, res := a.Classify(cmd.Context(), toolName, text)
			out := classifyOutput{
				Tool:      toolName,
				Outcome:   string(d.Outcome),
				Score:     d.Score,
				Reasoning: d.Reasoning,
			}
			if d.Err != nil {
				out.Error = d.Err.Error()
			}
			out.Result, _ = tool.ExtractText(res)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().String("tool", "adhoc", "Tool name reported to the classifier")
	cmd.Flags().String("text", "", "Text to classify (default: read stdin)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [path]",
		Short: "Validate configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				resolved, err := app.ResolveConfigPath()
				if err != nil {
					return err
				}
				path = resolved
			}

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Configuration OK (%s)\n", path)
			fmt.Fprintf(w, "  moderation: threshold=%d min_text_length=%d policy=%s\n",
				*cfg.Moderation.Threshold, *cfg.Moderation.MinTextLength, cfg.Moderation.Policy)
			if cfg.Ledger.Path != "" {
				fmt.Fprintf(w, "  ledger: %s (retention %s)\n", cfg.Ledger.Path, cfg.Ledger.Retention)
			}
			return nil
		},
	})
	return cmd
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	levelName, _ := cmd.Flags().GetString("log-level")
	level, err := parseLevel(levelName)
	if err != nil {
		return nil, err
	}

	return app.New(ctx, cfg, app.Options{
		Version:   version,
		Commit:    commit,
		Date:      date,
		LogLevel:  level,
		LogOutput: cmd.ErrOrStderr(),
	})
}

func closeApp(a *app.App) {
	if err := a.Close(context.Background()); err != nil {
		a.Logger.Warn("shutdown error", "error", err)
	}
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: %w", name, err)
	}
	return level, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
