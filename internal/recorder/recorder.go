// Package recorder implements C10: an append-only SQLite log of every
// pipeline run, grounded on the teacher's internal/store.Store.
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pharmawatch/internal/core"
)

// Recorder persists RunRecords to a SQLite database, one row per run.
type Recorder struct {
	db   *sql.DB
	path string
}

// New opens (creating if necessary) the run_records database under dataDir.
func New(dataDir string) (*Recorder, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "pharmawatch.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	r := &Recorder{db: db, path: dbPath}
	if err := r.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return r, nil
}

func (r *Recorder) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS run_records (
		id TEXT PRIMARY KEY,
		timestamp DATETIME,
		alert_name TEXT,
		user TEXT,
		keywords TEXT,
		start_date DATETIME,
		end_date DATETIME,
		mode TEXT,
		state TEXT,
		success BOOLEAN,
		error TEXT,
		stats TEXT,
		strategies TEXT,
		by_provider TEXT
	);`
	_, err := r.db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// Record appends one run's outcome. It is the sole writer of run_records,
// called exactly once per pipeline invocation (including cancelled runs),
// per spec.md §4.10's "acknowledge persistence before process exit".
func (r *Recorder) Record(ctx context.Context, record core.RunRecord) error {
	keywordsJSON, err := json.Marshal(record.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}
	strategiesJSON, err := json.Marshal(record.Stats.Strategies)
	if err != nil {
		return fmt.Errorf("failed to marshal strategies: %w", err)
	}
	byProviderJSON, err := json.Marshal(record.Stats.ByProvider)
	if err != nil {
		return fmt.Errorf("failed to marshal provider aggregates: %w", err)
	}
	statsJSON, err := json.Marshal(statsSummary{
		Collected:         record.Stats.Collected,
		Unique:            record.Stats.Unique,
		DuplicatesRemoved: record.Stats.DuplicatesRemoved,
		DuplicateGroups:   record.Stats.DuplicateGroups,
		WithDates:         record.Stats.WithDates,
		WithoutDates:      record.Stats.WithoutDates,
		ModelExtracted:    record.Stats.ModelExtracted,
		InRange:           record.Stats.InRange,
		OutOfRange:        record.Stats.OutOfRange,
		ModelRescued:      record.Stats.ModelRescued,
		Analyzed:          record.Stats.Analyzed,
		Kept:              record.Stats.Kept,
		Filtered:          record.Stats.Filtered,
		ScoreMin:          record.Stats.ScoreMin,
		ScoreMax:          record.Stats.ScoreMax,
		ScoreAvg:          record.Stats.ScoreAvg,
		ScoreBands:        record.Stats.ScoreBands,
		PhaseTimingsMs:    phaseTimingsMillis(record.Stats.PhaseTimings),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO run_records
	(id, timestamp, alert_name, user, keywords, start_date, end_date, mode, state, success, error, stats, strategies, by_provider)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.Timestamp,
		record.AlertName,
		record.User,
		string(keywordsJSON),
		record.StartDate,
		record.EndDate,
		string(record.Mode),
		string(record.Stats.State),
		record.Success,
		record.Error,
		string(statsJSON),
		string(strategiesJSON),
		string(byProviderJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run record: %w", err)
	}
	return nil
}

// statsSummary is the JSON shape stored in run_records.stats: the numeric
// RunStats fields, stripped of the structures already stored in their own
// columns (Strategies, ByProvider).
type statsSummary struct {
	Collected         int
	Unique            int
	DuplicatesRemoved int
	DuplicateGroups   int

	WithDates      int
	WithoutDates   int
	ModelExtracted int

	InRange      int
	OutOfRange   int
	ModelRescued int

	Analyzed int
	Kept     int
	Filtered int

	ScoreMin   int
	ScoreMax   int
	ScoreAvg   float64
	ScoreBands map[core.ScoreBand]int

	PhaseTimingsMs map[string]int64
}

func phaseTimingsMillis(timings map[string]time.Duration) map[string]int64 {
	out := make(map[string]int64, len(timings))
	for phase, d := range timings {
		out[phase] = d.Milliseconds()
	}
	return out
}

// RunRecordRow is a row retrieved from the log by GetRun.
type RunRecordRow struct {
	ID        string
	Timestamp time.Time
	AlertName string
	User      string
	State     string
	Success   bool
	Error     string
}

// GetRun retrieves a single run by ID, for operator inspection or
// retry-auditing; it is not on the hot path of any pipeline run.
func (r *Recorder) GetRun(ctx context.Context, id string) (*RunRecordRow, error) {
	query := `SELECT id, timestamp, alert_name, user, state, success, error FROM run_records WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	var rec RunRecordRow
	err := row.Scan(&rec.ID, &rec.Timestamp, &rec.AlertName, &rec.User, &rec.State, &rec.Success, &rec.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run record: %w", err)
	}
	return &rec, nil
}

// RecentRuns retrieves the most recent run records for an alert, newest
// first, mirroring the teacher's GetLatestDigests ordering convention.
func (r *Recorder) RecentRuns(ctx context.Context, alertName string, limit int) ([]RunRecordRow, error) {
	query := `
	SELECT id, timestamp, alert_name, user, state, success, error
	FROM run_records
	WHERE alert_name = ?
	ORDER BY timestamp DESC
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, alertName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunRecordRow
	for rows.Next() {
		var rec RunRecordRow
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.AlertName, &rec.User, &rec.State, &rec.Success, &rec.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run record row: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
