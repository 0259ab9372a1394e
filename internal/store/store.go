package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"drivesafe/internal/jobs"
	"drivesafe/safetytips"
)

// Store keeps a durable history of report jobs and their log lines in SQLite.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY,
			report_id TEXT,
			status TEXT,
			idempotency_key TEXT,
			report_json TEXT,
			advice_json TEXT,
			last_stage TEXT,
			last_error TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_report ON jobs(report_id);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_idem ON jobs(idempotency_key);`,
		`CREATE TABLE IF NOT EXISTS job_logs (
			job_id INTEGER,
			line TEXT,
			created_at TIMESTAMP
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveJob inserts or updates the row for j. A second job carrying an
// idempotency key already on record fails the unique index.
func (s *Store) SaveJob(ctx context.Context, j jobs.Job) error {
	reportJSON, err := json.Marshal(j.Report)
	if err != nil {
		return err
	}
	var adviceJSON sql.NullString
	if j.Advice != nil {
		buf, err := json.Marshal(j.Advice)
		if err != nil {
			return err
		}
		adviceJSON = sql.NullString{String: string(buf), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO jobs(id, report_id, status, idempotency_key, report_json, advice_json, last_stage, last_error, created_at, updated_at, started_at, finished_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status, advice_json=excluded.advice_json, last_stage=excluded.last_stage,
			last_error=excluded.last_error, updated_at=excluded.updated_at, started_at=excluded.started_at, finished_at=excluded.finished_at`,
		j.ID, j.ReportID, j.Status, j.IdempotencyKey, string(reportJSON), adviceJSON, string(j.LastStage), j.LastError,
		j.CreatedAt, j.UpdatedAt, nullTime(j.StartedAt), nullTime(j.FinishedAt))
	return err
}

func (s *Store) AppendJobLog(ctx context.Context, id int64, line string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO job_logs(job_id, line, created_at) VALUES(?,?,?)`, id, line, ts)
	return err
}

// LastJobID returns the highest stored job ID, or 0 for an empty history.
func (s *Store) LastJobID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM jobs`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

const jobColumns = `id, report_id, status, idempotency_key, report_json, advice_json, last_stage, last_error, created_at, updated_at, started_at, finished_at`

// ListJobs returns up to limit jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]jobs.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []jobs.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// FindJobByKey returns the job recorded for an idempotency key, if any.
func (s *Store) FindJobByKey(ctx context.Context, key string) (jobs.Job, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE idempotency_key=?`, key)
	j, err := scanJob(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return jobs.Job{}, false, nil
	case err != nil:
		return jobs.Job{}, false, err
	}
	return j, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (jobs.Job, error) {
	var (
		j                 jobs.Job
		reportJSON        string
		adviceJSON        sql.NullString
		stage             string
		started, finished sql.NullTime
	)
	if err := sc.Scan(&j.ID, &j.ReportID, &j.Status, &j.IdempotencyKey, &reportJSON, &adviceJSON, &stage, &j.LastError,
		&j.CreatedAt, &j.UpdatedAt, &started, &finished); err != nil {
		return j, err
	}
	j.LastStage = jobs.Stage(stage)
	if err := json.Unmarshal([]byte(reportJSON), &j.Report); err != nil {
		return j, fmt.Errorf("job %d report: %w", j.ID, err)
	}
	if adviceJSON.Valid {
		var a safetytips.Advice
		if err := json.Unmarshal([]byte(adviceJSON.String), &a); err != nil {
			return j, fmt.Errorf("job %d advice: %w", j.ID, err)
		}
		j.Advice = &a
	}
	if started.Valid {
		j.StartedAt = &started.Time
	}
	if finished.Valid {
		j.FinishedAt = &finished.Time
	}
	return j, nil
}

func (s *Store) JobLogs(ctx context.Context, jobID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT line FROM job_logs WHERE job_id=? ORDER BY rowid ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
	var v int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
