package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/toolguard/internal/cron"
	"github.com/flemzord/toolguard/internal/moderation"
)

// DefaultLimit and MaxLimit bound Recent.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one persisted decision.
type Entry struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id,omitempty"`
	Tool       string    `json:"tool"`
	CallID     string    `json:"call_id,omitempty"`
	Outcome    string    `json:"outcome"`
	Score      int       `json:"score"`
	Reasoning  string    `json:"reasoning,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store reads and writes decisions.
type Store struct {
	db *sql.DB
}

var _ cron.Pruner = (*Store)(nil)

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a decision. A zero d.Time records the current time.
func (s *Store) Record(ctx context.Context, d moderation.Decision) error {
	created := d.Time
	if created.IsZero() {
		created = time.Now()
	}
	var errText string
	if d.Err != nil {
		errText = d.Err.Error()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (session_id, tool, call_id, outcome, score, reasoning, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.SessionID, d.Tool, d.CallID, string(d.Outcome), d.Score, d.Reasoning, errText,
		d.Duration.Milliseconds(), created.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("ledger: record decision: %w", err)
	}
	return nil
}

// Recent returns up to limit decisions, newest first. limit <= 0 means
// DefaultLimit; values above MaxLimit are capped.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, tool, call_id, outcome, score, reasoning, error, duration_ms, created_at
		 FROM decisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query recent: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Tool, &e.CallID, &e.Outcome, &e.Score,
			&e.Reasoning, &e.Error, &e.DurationMS, &created); err != nil {
			return nil, fmt.Errorf("ledger: scan decision: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("ledger: parse created_at %q: %w", created, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate decisions: %w", err)
	}
	return entries, nil
}

// Prune deletes decisions created before the cutoff and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM decisions WHERE created_at < ?`, before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("ledger: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ledger: prune rows affected: %w", err)
	}
	return n, nil
}

// Reporter adapts a Store to moderation.Reporter. Write failures are logged
// and otherwise ignored.
type Reporter struct {
	Store  *Store
	Logger *slog.Logger
}

var _ moderation.Reporter = Reporter{}

// Report implements moderation.Reporter.
func (r Reporter) Report(ctx context.Context, d moderation.Decision) {
	if r.Store == nil {
		return
	}
	// The decision is written even if the tool call context is cancelled.
	if err := r.Store.Record(context.WithoutCancel(ctx), d); err != nil && r.Logger != nil {
		r.Logger.Warn("failed to record moderation decision", "tool", d.Tool, "error", err)
	}
}
