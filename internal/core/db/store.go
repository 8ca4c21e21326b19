// internal/core/db/store.go
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/framekeeper/internal/failure"
	"github.com/solatis/framekeeper/internal/types"
)

/*
 * Run store.
 *
 * Every filter or validate call that should be audited is recorded as one
 * validation run with its per-rule failure counts and co-occurrence counts.
 * The failing rows themselves are not stored; they belong in a failure
 * file (failure.Info.WriteFile) referenced by the run's source.
 *
 * A run and its details are written in one transaction. Run ids are UUIDv7,
 * so ordering by id orders by creation time.
 */

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("validation run not found")

// Run is the summary row of one validation run.
type Run struct {
	ID         types.RunID `db:"run_id"`
	SchemaName string      `db:"schema_name"`
	Source     string      `db:"source"`
	TotalRows  int64       `db:"total_rows"`
	ValidRows  int64       `db:"valid_rows"`
	FailedRows int64       `db:"failed_rows"`
	Cast       bool        `db:"cast_applied"`
}

// CreatedAt is the creation time embedded in the run id.
func (r Run) CreatedAt() time.Time { return types.RunIDTime(r.ID) }

// Cooccurrence counts the rows that failed exactly Rules.
type Cooccurrence struct {
	Rules []string
	Rows  int64
}

// Report is a run with its failure statistics.
type Report struct {
	Run
	Failures      map[string]int64
	Cooccurrences []Cooccurrence
}

// RunRecord is the input of RecordRun.
type RunRecord struct {
	// ID is generated when empty.
	ID        types.RunID
	Source    string
	ValidRows int
	Cast      bool
	Failures  *failure.Info
}

// Store reads and writes validation runs.
type Store struct {
	db      *sqlx.DB
	queries *Queries
}

// NewStore wraps an open, migrated database.
func NewStore(db *sqlx.DB) (*Store, error) {
	q, err := LoadQueries()
	if err != nil {
		return nil, err
	}
	return &Store{db: db, queries: q}, nil
}

// OpenStore opens dbURL, applies pending migrations and returns a Store.
func OpenStore(ctx context.Context, dbURL string) (*Store, error) {
	db, err := Open(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	if err := MigrateUp(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// RecordRun persists a run and returns its id.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) (types.RunID, error) {
	if rec.Failures == nil {
		return "", fmt.Errorf("record run: failure info is required")
	}
	id := rec.ID
	if id == "" {
		id = types.NewRunID()
	}
	failed := rec.Failures.Len()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.queries.Exec(ctx, tx, "insert-run",
		string(id), rec.Failures.SchemaName(), rec.Source,
		rec.ValidRows+failed, rec.ValidRows, failed, rec.Cast,
		timestamp(s.db.DriverName(), types.RunIDTime(id)),
	); err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	for rule, n := range rec.Failures.Counts() {
		if _, err := s.queries.Exec(ctx, tx, "insert-rule-failure", string(id), rule, n); err != nil {
			return "", fmt.Errorf("record rule failure %s: %w", rule, err)
		}
	}

	for set, n := range rec.Failures.CooccurrenceCounts() {
		rules := set.Rules()
		if rules == nil {
			rules = []string{}
		}
		encoded, err := json.Marshal(rules)
		if err != nil {
			return "", err
		}
		if _, err := s.queries.Exec(ctx, tx, "insert-rule-cooccurrence", string(id), string(encoded), n); err != nil {
			return "", fmt.Errorf("record rule co-occurrence %s: %w", set, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	slog.Debug("Recorded validation run",
		"run_id", id, "schema", rec.Failures.SchemaName(), "valid", rec.ValidRows, "failed", failed)
	return id, nil
}

// GetReport loads a run with its failure statistics.
func (s *Store) GetReport(ctx context.Context, id types.RunID) (*Report, error) {
	var run Run
	if err := s.queries.Get(ctx, s.db, "get-run", &run, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}

	var failures []struct {
		Rule     string `db:"rule_name"`
		Failures int64  `db:"failures"`
	}
	if err := s.queries.Select(ctx, s.db, "list-rule-failures", &failures, string(id)); err != nil {
		return nil, err
	}

	var cooccurrences []struct {
		RuleSet string `db:"rule_set"`
		Rows    int64  `db:"rows_affected"`
	}
	if err := s.queries.Select(ctx, s.db, "list-rule-cooccurrences", &cooccurrences, string(id)); err != nil {
		return nil, err
	}

	report := &Report{Run: run, Failures: make(map[string]int64, len(failures))}
	for _, f := range failures {
		report.Failures[f.Rule] = f.Failures
	}
	for _, c := range cooccurrences {
		var rules []string
		if err := json.Unmarshal([]byte(c.RuleSet), &rules); err != nil {
			return nil, fmt.Errorf("decode rule set of run %s: %w", id, err)
		}
		sort.Strings(rules)
		report.Cooccurrences = append(report.Cooccurrences, Cooccurrence{Rules: rules, Rows: c.Rows})
	}
	return report, nil
}

// ListRuns returns the latest runs of a schema, newest first.
func (s *Store) ListRuns(ctx context.Context, schemaName string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []Run
	if err := s.queries.Select(ctx, s.db, "list-runs", &runs, schemaName, limit); err != nil {
		return nil, err
	}
	return runs, nil
}

// PruneBefore deletes runs created before cutoff and returns how many.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.queries.Exec(ctx, s.db, "delete-runs-before", timestamp(s.db.DriverName(), cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
