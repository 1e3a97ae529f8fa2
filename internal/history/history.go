// Package history records sync passes in a local SQLite database so
// operators can audit what the engine did and when. Recording is best
// effort: a broken history database never blocks a sync pass.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nancarrowm/rangesync/internal/clock"
	"github.com/nancarrowm/rangesync/internal/logging"
	"github.com/nancarrowm/rangesync/internal/reconcile"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	started_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP NOT NULL,
	dry_run       INTEGER NOT NULL,
	degraded      INTEGER NOT NULL,
	outcome       TEXT NOT NULL,
	ranges_total  INTEGER NOT NULL,
	created       INTEGER NOT NULL,
	existing      INTEGER NOT NULL,
	deleted       INTEGER NOT NULL,
	failed        INTEGER NOT NULL,
	delete_failed INTEGER NOT NULL,
	error         TEXT
);

CREATE TABLE IF NOT EXISTS rule_ops (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	rule_name  TEXT NOT NULL,
	ip_range   TEXT NOT NULL,
	ip_version TEXT NOT NULL,
	protocol   TEXT NOT NULL,
	port       INTEGER NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT
);

CREATE INDEX IF NOT EXISTS idx_rule_ops_run ON rule_ops(run_id);
`

// Run is one recorded sync pass.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	DryRun       bool
	Degraded     bool
	Outcome      string
	RangesTotal  int
	Created      int
	Existing     int
	Deleted      int
	Failed       int
	DeleteFailed int
	Error        string
}

// Store persists run history in SQLite.
type Store struct {
	db     *sql.DB
	clock  clock.Clock
	logger *logging.Logger
}

// Open opens (and migrates) the history database at path.
func Open(path string, c clock.Clock, logger *logging.Logger) (*Store, error) {
	if c == nil {
		c = &clock.RealClock{}
	}
	if logger == nil {
		logger = logging.Default()
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening history database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history schema: %w", err)
	}

	return &Store{db: db, clock: c, logger: logger.WithComponent("history")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RecordRun writes a run and its rule operations in one transaction.
// Zero timestamps are filled in from the store's clock.
func (s *Store) RecordRun(ctx context.Context, run Run, records []reconcile.RuleRecord) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = s.clock.Now()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = s.clock.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning history transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, dry_run, degraded, outcome,
			ranges_total, created, existing, deleted, failed, delete_failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		boolInt(run.DryRun), boolInt(run.Degraded), run.Outcome,
		run.RangesTotal, run.Created, run.Existing, run.Deleted,
		run.Failed, run.DeleteFailed, nullable(run.Error))
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for _, rec := range records {
		errText := ""
		if rec.Err != nil {
			errText = rec.Err.Error()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rule_ops (run_id, rule_name, ip_range, ip_version, protocol, port, status, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, rec.Name, rec.Range, rec.IPVersion, rec.Protocol, rec.Port, rec.Status, nullable(errText))
		if err != nil {
			return fmt.Errorf("inserting rule op: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing history transaction: %w", err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, dry_run, degraded, outcome,
			ranges_total, created, existing, deleted, failed, delete_failed,
			COALESCE(error, '')
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var dryRun, degraded int
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &dryRun, &degraded,
			&r.Outcome, &r.RangesTotal, &r.Created, &r.Existing, &r.Deleted,
			&r.Failed, &r.DeleteFailed, &r.Error); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.DryRun = dryRun != 0
		r.Degraded = degraded != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RuleOps returns the rule operations recorded for a run.
func (s *Store) RuleOps(ctx context.Context, runID string) ([]reconcile.RuleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_name, ip_range, ip_version, protocol, port, status
		FROM rule_ops WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying rule ops: %w", err)
	}
	defer rows.Close()

	var recs []reconcile.RuleRecord
	for rows.Next() {
		var rec reconcile.RuleRecord
		if err := rows.Scan(&rec.Name, &rec.Range, &rec.IPVersion, &rec.Protocol, &rec.Port, &rec.Status); err != nil {
			return nil, fmt.Errorf("scanning rule op: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
