package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/hypetrace/internal/ir"
)

// ErrRunNotFound is returned when a run id is not in the archive.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunOK      RunStatus = "ok"
	RunFailed  RunStatus = "failed"
)

// Run is one archived conversion.
type Run struct {
	ID           string          `json:"id"`
	Source       string          `json:"source"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at,omitzero"`
	Status       RunStatus       `json:"status"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Records      int             `json:"records"`
	Elements     int             `json:"elements"`
	Stats        json.RawMessage `json:"stats"`
}

// Element is one archived top-level value.
type Element struct {
	Seq         int         `json:"seq"`
	RecordIndex int         `json:"record_index"`
	ObjectID    ir.ObjectID `json:"object_id"`
	Body        string      `json:"body"`
}

// Outcome is what FinishRun records about a run.
type Outcome struct {
	Records  int
	Elements int
	Stats    any   // marshaled to JSON; nil stores {}
	Err      error // nil for a successful run
}

// BeginRun creates a running run for source and returns it.
func (s *Store) BeginRun(ctx context.Context, source string) (Run, error) {
	run := Run{
		ID:        s.ids.Generate(),
		Source:    source,
		StartedAt: s.clock.Now().UTC(),
		Status:    RunRunning,
		Stats:     json.RawMessage("{}"),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, source, started_at, status)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.Source, formatTime(run.StartedAt), string(run.Status))
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	return run, nil
}

// WriteElement appends an element to a run. Writing the same seq twice
// is silently ignored.
func (s *Store) WriteElement(ctx context.Context, runID string, el Element) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO elements (run_id, seq, record_index, object_id, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`, runID, el.Seq, el.RecordIndex, int64(el.ObjectID), el.Body)
	if err != nil {
		return fmt.Errorf("write element: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, out Outcome) error {
	stats := []byte("{}")
	if out.Stats != nil {
		var err error
		if stats, err = json.Marshal(out.Stats); err != nil {
			return fmt.Errorf("finish run: marshal stats: %w", err)
		}
	}

	status, code, msg := RunOK, "", ""
	if out.Err != nil {
		status, code, msg = RunFailed, string(ir.ErrorCode(out.Err)), out.Err.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, status = ?, error_code = ?, error_message = ?,
		    records = ?, elements = ?, stats = ?
		WHERE id = ?
	`, formatTime(s.clock.Now().UTC()), string(status), code, msg,
		out.Records, out.Elements, string(stats), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `id, source, started_at, finished_at, status, error_code, error_message, records, elements, stats`

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run with the given id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrRunNotFound)
	}
	return run, err
}

// ReadElements returns the elements of a run in output order.
// Returns an empty slice (not nil) for runs without elements.
func (s *Store) ReadElements(ctx context.Context, runID string) ([]Element, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, record_index, object_id, body
		FROM elements
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query elements: %w", err)
	}
	defer rows.Close()

	elements := []Element{}
	for rows.Next() {
		var el Element
		var id int64
		if err := rows.Scan(&el.Seq, &el.RecordIndex, &id, &el.Body); err != nil {
			return nil, fmt.Errorf("scan element: %w", err)
		}
		el.ObjectID = ir.ObjectID(id)
		elements = append(elements, el)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate elements: %w", err)
	}
	return elements, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var started, finished, status, stats string
	err := row.Scan(&run.ID, &run.Source, &started, &finished, &status,
		&run.ErrorCode, &run.ErrorMessage, &run.Records, &run.Elements, &stats)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, fmt.Errorf("run %s: started_at: %w", run.ID, err)
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, fmt.Errorf("run %s: finished_at: %w", run.ID, err)
	}
	run.Status = RunStatus(status)
	run.Stats = json.RawMessage(stats)
	return run, nil
}

// timeLayout is fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
