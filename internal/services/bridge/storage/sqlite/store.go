// Package sqlite provides a SQLite-backed bridge storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voluntarios/learnbridge/internal/platform/storage/sqlitemigrate"
	"github.com/voluntarios/learnbridge/internal/services/bridge/storage"
	"github.com/voluntarios/learnbridge/internal/services/bridge/storage/sqlite/migrations"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Store persists bridge state in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ storage.CommitAttemptStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite bridge store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordCommitAttempt appends one attempt.
func (s *Store) RecordCommitAttempt(ctx context.Context, attempt storage.CommitAttempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	activityID := strings.TrimSpace(attempt.ActivityID)
	if activityID == "" {
		return fmt.Errorf("activity id is required")
	}
	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	var score sql.NullFloat64
	if attempt.Score != nil {
		score = sql.NullFloat64{Float64: *attempt.Score, Valid: true}
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO commit_attempts (
		   activity_id,
		   viewer_id,
		   completed,
		   score,
		   error,
		   created_at
		 ) VALUES (?, ?, ?, ?, ?, ?)`,
		activityID,
		strings.TrimSpace(attempt.ViewerID),
		attempt.Completed,
		score,
		attempt.Error,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert commit attempt: %w", err)
	}
	return nil
}

// ListCommitAttempts returns the newest attempts for one activity first.
func (s *Store) ListCommitAttempts(ctx context.Context, activityID string, limit int) ([]storage.CommitAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return nil, fmt.Errorf("activity id is required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, activity_id, viewer_id, completed, score, error, created_at
		   FROM commit_attempts
		  WHERE activity_id = ?
		  ORDER BY created_at DESC, id DESC
		  LIMIT ?`,
		activityID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list commit attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]storage.CommitAttempt, 0, limit)
	for rows.Next() {
		var (
			attempt   storage.CommitAttempt
			score     sql.NullFloat64
			createdAt int64
		)
		if err := rows.Scan(
			&attempt.ID,
			&attempt.ActivityID,
			&attempt.ViewerID,
			&attempt.Completed,
			&score,
			&attempt.Error,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan commit attempt: %w", err)
		}
		if score.Valid {
			value := score.Float64
			attempt.Score = &value
		}
		attempt.CreatedAt = fromMillis(createdAt)
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commit attempts: %w", err)
	}
	return attempts, nil
}
