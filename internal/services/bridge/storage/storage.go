// Package storage defines persistence contracts for bridge state.
package storage

import (
	"context"
	"time"
)

// CommitAttempt records one delivery of a progress message to the backend.
type CommitAttempt struct {
	ID         int64
	ActivityID string
	ViewerID   string
	Completed  bool
	// Score is nil when the message carried no usable score.
	Score *float64
	// Error is the delivery failure, empty on success.
	Error     string
	CreatedAt time.Time
}

// CommitAttemptStore persists commit attempts for audit.
type CommitAttemptStore interface {
	RecordCommitAttempt(ctx context.Context, attempt CommitAttempt) error
	ListCommitAttempts(ctx context.Context, activityID string, limit int) ([]CommitAttempt, error)
}
