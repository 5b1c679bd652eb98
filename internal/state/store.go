package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotTracked indicates the requested run or sample has no row yet.
var ErrNotTracked = errors.New("not tracked in state store")

// Store manages pipeline state backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the state database under dir and applies
// the schema.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure state directory: %w", err)
	}

	dbPath := filepath.Join(dir, "strand.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginPipeline records a pipeline execution and returns its identifier.
func (s *Store) BeginPipeline(ctx context.Context, batchPath string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO pipelines (id, batch_path, created_at) VALUES (?, ?, ?)",
		id, batchPath, timestamp(),
	)
	if err != nil {
		return "", fmt.Errorf("insert pipeline: %w", err)
	}
	return id, nil
}

// EnsureRun creates a pending row for the run if none exists and returns the
// current record either way.
func (s *Store) EnsureRun(ctx context.Context, pipelineID, name string) (RunRecord, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (name, pipeline_id, status, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (name) DO NOTHING`,
		name, pipelineID, StatusPending, timestamp(),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("ensure run %q: %w", name, err)
	}
	return s.GetRun(ctx, name)
}

// GetRun fetches one run record.
func (s *Store) GetRun(ctx context.Context, name string) (RunRecord, error) {
	var rec RunRecord
	err := s.db.QueryRowContext(ctx,
		"SELECT name, status, resolved_path, fastq_path, error_message, updated_at FROM runs WHERE name = ?",
		name,
	).Scan(&rec.Name, &rec.Status, &rec.ResolvedPath, &rec.FastqPath, &rec.ErrorMessage, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %q: %w", name, ErrNotTracked)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %q: %w", name, err)
	}
	return rec, nil
}

// SetRunStatus transitions a run and clears or records its error message.
func (s *Store) SetRunStatus(ctx context.Context, name string, status Status, errorMessage string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, error_message = ?, updated_at = ? WHERE name = ?",
		status, errorMessage, timestamp(), name,
	)
	if err != nil {
		return fmt.Errorf("set run %q status: %w", name, err)
	}
	return requireRow(res, "run", name)
}

// SetRunResolvedPath records the acquired, uncompressed run directory.
func (s *Store) SetRunResolvedPath(ctx context.Context, name, path string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET resolved_path = ?, updated_at = ? WHERE name = ?",
		path, timestamp(), name,
	)
	if err != nil {
		return fmt.Errorf("set run %q resolved path: %w", name, err)
	}
	return requireRow(res, "run", name)
}

// SetRunFastqPath records the demultiplexed output location.
func (s *Store) SetRunFastqPath(ctx context.Context, name, path string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET fastq_path = ?, updated_at = ? WHERE name = ?",
		path, timestamp(), name,
	)
	if err != nil {
		return fmt.Errorf("set run %q fastq path: %w", name, err)
	}
	return requireRow(res, "run", name)
}

// ListRuns returns all run records in name order.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, status, resolved_path, fastq_path, error_message, updated_at FROM runs ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.Name, &rec.Status, &rec.ResolvedPath, &rec.FastqPath, &rec.ErrorMessage, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// EnsureSample creates a pending row for the sample if none exists and
// returns the current record either way.
func (s *Store) EnsureSample(ctx context.Context, pipelineID, name string) (SampleRecord, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO samples (name, pipeline_id, status, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (name) DO NOTHING`,
		name, pipelineID, StatusPending, timestamp(),
	)
	if err != nil {
		return SampleRecord{}, fmt.Errorf("ensure sample %q: %w", name, err)
	}
	return s.GetSample(ctx, name)
}

// GetSample fetches one sample record.
func (s *Store) GetSample(ctx context.Context, name string) (SampleRecord, error) {
	var rec SampleRecord
	err := s.db.QueryRowContext(ctx,
		"SELECT name, status, count_path, aggr_path, error_message, updated_at FROM samples WHERE name = ?",
		name,
	).Scan(&rec.Name, &rec.Status, &rec.CountPath, &rec.AggrPath, &rec.ErrorMessage, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SampleRecord{}, fmt.Errorf("sample %q: %w", name, ErrNotTracked)
	}
	if err != nil {
		return SampleRecord{}, fmt.Errorf("get sample %q: %w", name, err)
	}
	return rec, nil
}

// SetSampleStatus transitions a sample and clears or records its error message.
func (s *Store) SetSampleStatus(ctx context.Context, name string, status Status, errorMessage string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE samples SET status = ?, error_message = ?, updated_at = ? WHERE name = ?",
		status, errorMessage, timestamp(), name,
	)
	if err != nil {
		return fmt.Errorf("set sample %q status: %w", name, err)
	}
	return requireRow(res, "sample", name)
}

// SetSampleCountPath records the per-sample processing output directory.
func (s *Store) SetSampleCountPath(ctx context.Context, name, path string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE samples SET count_path = ?, updated_at = ? WHERE name = ?",
		path, timestamp(), name,
	)
	if err != nil {
		return fmt.Errorf("set sample %q count path: %w", name, err)
	}
	return requireRow(res, "sample", name)
}

// SetSampleAggrPath records the group output directory on a member sample.
func (s *Store) SetSampleAggrPath(ctx context.Context, name, path string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE samples SET aggr_path = ?, updated_at = ? WHERE name = ?",
		path, timestamp(), name,
	)
	if err != nil {
		return fmt.Errorf("set sample %q aggr path: %w", name, err)
	}
	return requireRow(res, "sample", name)
}

// ListSamples returns all sample records in name order.
func (s *Store) ListSamples(ctx context.Context) ([]SampleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, status, count_path, aggr_path, error_message, updated_at FROM samples ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	var records []SampleRecord
	for rows.Next() {
		var rec SampleRecord
		if err := rows.Scan(&rec.Name, &rec.Status, &rec.CountPath, &rec.AggrPath, &rec.ErrorMessage, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func requireRow(res sql.Result, kind, name string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %q: %w", kind, name, ErrNotTracked)
	}
	return nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
