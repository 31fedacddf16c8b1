package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chengyoucen9-png/bbdyy-idea/internal/jobs"
	"github.com/chengyoucen9-png/bbdyy-idea/internal/transcription"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrNotFound is returned when no persisted result exists for a fingerprint.
var ErrNotFound = errors.New("not found")

// SQLiteStore persists transcription jobs and finished results. It
// implements jobs.Store and transcription.ResultStore.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.TranscriptionJob, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, dedupe_key, file_url, file_type, language, enable_punctuation, enable_diarization,
		        status, error, result_key, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.TranscriptionJob, 0)
	for rows.Next() {
		var (
			j                  jobs.TranscriptionJob
			enablePunctuation  int
			enableDiarization  int
			createdAt, updated string
		)
		if err := rows.Scan(
			&j.ID, &j.Source, &j.DedupeKey,
			&j.Payload.FileURL, &j.Payload.FileType, &j.Payload.Language,
			&enablePunctuation, &enableDiarization,
			&j.Status, &j.Error, &j.ResultKey,
			&createdAt, &updated,
		); err != nil {
			return nil, err
		}
		j.Payload.EnablePunctuation = enablePunctuation != 0
		j.Payload.EnableDiarization = enableDiarization != 0
		j.CreatedAt = parseTime(createdAt)
		j.UpdatedAt = parseTime(updated)
		ret = append(ret, &j)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.TranscriptionJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (id, source, dedupe_key, file_url, file_type, language,
		                   enable_punctuation, enable_diarization, status, error, result_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   error = excluded.error,
		   result_key = excluded.result_key,
		   updated_at = excluded.updated_at`,
		job.ID, job.Source, job.DedupeKey,
		job.Payload.FileURL, job.Payload.FileType, job.Payload.Language,
		boolToInt(job.Payload.EnablePunctuation), boolToInt(job.Payload.EnableDiarization),
		string(job.Status), job.Error, job.ResultKey,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	return err
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

// SaveResult persists one finished transcription under its fingerprint,
// replacing any older payload for the same content.
func (s *SQLiteStore) SaveResult(ctx context.Context, fingerprint string, result *transcription.Result) error {
	if fingerprint == "" {
		return fmt.Errorf("fingerprint is required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO results (fingerprint, provider, payload, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
		   provider = excluded.provider,
		   payload = excluded.payload,
		   created_at = excluded.created_at`,
		fingerprint, string(result.Provider), string(payload), formatTime(time.Now()),
	)
	return err
}

// GetResult loads a persisted transcription by fingerprint.
func (s *SQLiteStore) GetResult(ctx context.Context, fingerprint string) (*transcription.Result, error) {
	var payload string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT payload FROM results WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var result transcription.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
