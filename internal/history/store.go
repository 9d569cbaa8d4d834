package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sourpat/payresolve/internal/apiclient"
	"github.com/sourpat/payresolve/internal/db"
)

// Store provides persistence for diagnosis runs.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Record inserts a run. If run.ID is empty a UUID is generated; a zero
// StartedAt is set to now. The stored run is returned.
func (s *Store) Record(ctx context.Context, run Run) (*Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Source == "" {
		run.Source = SourceWeb
	}
	if run.Result != nil {
		if run.Category == "" {
			run.Category = run.Result.Category
		}
		if run.Severity == "" {
			run.Severity = run.Result.Severity
		}
	}

	result := []byte("{}")
	if run.Result != nil {
		var err error
		result, err = json.Marshal(run.Result)
		if err != nil {
			return nil, fmt.Errorf("marshalling result: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO diagnosis_runs (
			id, started_at, duration_ms, source, client_id, base_url,
			error_code, message, has_trace, outcome, category, severity,
			error, result
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.DateTime),
		run.Duration.Milliseconds(),
		string(run.Source),
		run.ClientID,
		run.BaseURL,
		run.ErrorCode,
		run.Message,
		boolToInt(run.HasTrace),
		string(run.Outcome),
		run.Category,
		run.Severity,
		run.Error,
		string(result),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting diagnosis run: %w", err)
	}
	return &run, nil
}

// Get retrieves a single run.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading diagnosis run %s: %w", id, err)
	}
	return run, nil
}

const selectRuns = `SELECT id, started_at, duration_ms, source, client_id, base_url,
	error_code, message, has_trace, outcome, category, severity, error, result
	FROM diagnosis_runs`

// List returns runs matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Run, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.ErrorCode != "" {
		clauses = append(clauses, "error_code = ?")
		args = append(args, filter.ErrorCode)
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.Since != nil {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.DateTime))
	}

	query := selectRuns
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying diagnosis runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Stats summarises outcomes across all runs.
type Stats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Stats counts runs by outcome.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END), 0)
		FROM diagnosis_runs`).Scan(&st.Total, &st.Succeeded, &st.Failed)
	if err != nil {
		return Stats{}, fmt.Errorf("counting diagnosis runs: %w", err)
	}
	return st, nil
}

// DeleteBefore removes runs older than the given time and returns the number
// of deleted rows.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM diagnosis_runs WHERE started_at < ?",
		before.UTC().Format(time.DateTime),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old diagnosis runs: %w", err)
	}
	return res.RowsAffected()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r                 Run
		startedAt, source string
		outcome, result   string
		durationMS        int64
		hasTrace          int
	)

	err := sc.Scan(
		&r.ID, &startedAt, &durationMS, &source, &r.ClientID, &r.BaseURL,
		&r.ErrorCode, &r.Message, &hasTrace, &outcome, &r.Category, &r.Severity,
		&r.Error, &result,
	)
	if err != nil {
		return nil, err
	}

	r.Source = Source(source)
	r.Outcome = Outcome(outcome)
	r.HasTrace = hasTrace != 0
	r.Duration = time.Duration(durationMS) * time.Millisecond

	if t, parseErr := time.Parse(time.DateTime, startedAt); parseErr == nil {
		r.StartedAt = t
	} else if t, parseErr := time.Parse(time.RFC3339, startedAt); parseErr == nil {
		r.StartedAt = t
	}

	if result != "" && result != "{}" {
		var res apiclient.DiagnosisResult
		if err := json.Unmarshal([]byte(result), &res); err == nil {
			r.Result = &res
		}
	}

	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
