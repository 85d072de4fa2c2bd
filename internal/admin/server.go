// Package admin provides the HTTP side-channel of toolguard: health, metrics,
// ad-hoc classification and the decision ledger. It binds to loopback by
// default.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/toolguard/internal/ledger"
	"github.com/flemzord/toolguard/internal/moderation"
	"github.com/flemzord/toolguard/internal/security"
)

// DecisionLister returns recent decisions. *ledger.Store implements it.
type DecisionLister interface {
	Recent(ctx context.Context, limit int) ([]ledger.Entry, error)
}

// Deps are the collaborators of a Server. Every field is optional.
type Deps struct {
	Monitor   *moderation.Monitor
	Decisions DecisionLister
	Metrics   http.Handler
	Audit     *security.AuditLogger
	Logger    *slog.Logger
}

// classifyBucket names the rate limiter bucket of POST /v1/classify.
const classifyBucket = "classify"

// Server is the admin HTTP server.
type Server struct {
	config    Config
	monitor   *moderation.Monitor
	decisions DecisionLister
	metrics   http.Handler
	audit     *security.AuditLogger
	limiter   *security.RateLimiter
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a server. Call Start to listen.
func New(cfg Config, deps Deps) *Server {
	cfg.defaults()
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var limits map[string]security.Limit
	if cfg.ClassifyPerMinute > 0 {
		limits = map[string]security.Limit{
			classifyBucket: {Window: time.Minute, Max: cfg.ClassifyPerMinute},
		}
	}

	return &Server{
		config:    cfg,
		monitor:   deps.Monitor,
		decisions: deps.Decisions,
		metrics:   deps.Metrics,
		audit:     deps.Audit,
		limiter:   security.NewRateLimiter(limits),
		logger:    logger.With("component", "admin"),
		startedAt: time.Now(),
	}
}

// Handler builds the chi mux with all routes wired.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth())
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.config.Token, s.audit))
		r.Get("/status", s.handleStatus())
		r.Route("/v1", func(r chi.Router) {
			r.With(rateLimitMiddleware(s.limiter, classifyBucket)).
				Post("/classify", s.handleClassify())
			r.Get("/decisions", s.handleDecisions())
		})
	})

	return r
}

// Start listens on the configured address and serves in the background.
// It returns the bound address.
func (s *Server) Start(ctx context.Context) (net.Addr, error) {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Listen)
	if err != nil {
		return nil, fmt.Errorf("admin: listen failed: %w", err)
	}

	go func() {
		s.logger.Info("admin server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin serve error", "error", err)
		}
	}()
	return ln.Addr(), nil
}

// Stop shuts the server down gracefully within the configured timeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("admin server shutting down")
	return s.server.Shutdown(shutdownCtx)
}
