// Package commit forwards progress messages from embedded content to the
// backend and infers completion from them.
package commit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/voluntarios/learnbridge/internal/platform/requestctx"
	"github.com/voluntarios/learnbridge/internal/platform/timeouts"
	"github.com/voluntarios/learnbridge/internal/services/bridge/backend"
	"github.com/voluntarios/learnbridge/internal/services/bridge/storage"
)

var tracer = otel.Tracer("github.com/voluntarios/learnbridge/internal/services/bridge/commit")

// Committer is the backend commit endpoint.
type Committer interface {
	Commit(ctx context.Context, req backend.CommitRequest) error
}

// Completion is reported once per progress message that signals completion.
type Completion struct {
	ActivityID string
	ViewerID   string
	CMI        map[string]any
	// Score is nil when the message carried no usable score.
	Score *float64
}

// CompletionFunc receives completion notifications.
type CompletionFunc func(ctx context.Context, c Completion)

// Config configures a Relay.
type Config struct {
	Committer Committer
	// Store receives one audit row per delivery attempt. Optional.
	Store   storage.CommitAttemptStore
	Logger  *log.Logger
	Timeout time.Duration
	Now     func() time.Time
}

// Relay delivers progress messages in the background. Messages from the same
// viewer are delivered one at a time in the order they were received.
type Relay struct {
	committer Committer
	store     storage.CommitAttemptStore
	logger    *log.Logger
	timeout   time.Duration
	now       func() time.Time

	mu     sync.Mutex
	queues map[string][]job
	wg     sync.WaitGroup
}

type job struct {
	ctx        context.Context
	activityID string
	viewerID   string
	cmi        map[string]any
	raw        json.RawMessage
	onComplete CompletionFunc
}

// NewRelay builds a relay around the backend commit endpoint.
func NewRelay(cfg Config) (*Relay, error) {
	if cfg.Committer == nil {
		return nil, errors.New("committer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = timeouts.CommitRequest
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Relay{
		committer: cfg.Committer,
		store:     cfg.Store,
		logger:    logger,
		timeout:   timeout,
		now:       now,
		queues:    make(map[string][]job),
	}, nil
}

// Relay queues one progress message and returns immediately. Delivery
// failures are logged and audited, never returned. onComplete, when set, runs
// after the delivery attempt if the message signals completion, whether or
// not delivery succeeded.
func (r *Relay) Relay(ctx context.Context, activityID string, cmi map[string]any, raw json.RawMessage, onComplete CompletionFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cmi == nil {
		cmi = map[string]any{}
	}
	j := job{
		ctx:        ctx,
		activityID: strings.TrimSpace(activityID),
		viewerID:   requestctx.ViewerIDFromContext(ctx),
		cmi:        cmi,
		raw:        raw,
		onComplete: onComplete,
	}
	key := j.viewerID
	if key == "" {
		key = "activity:" + j.activityID
	}

	r.mu.Lock()
	r.queues[key] = append(r.queues[key], j)
	start := len(r.queues[key]) == 1
	if start {
		r.wg.Add(1)
	}
	r.mu.Unlock()

	if start {
		go r.drain(key)
	}
}

// Wait blocks until every queued message has been handled.
func (r *Relay) Wait() {
	r.wg.Wait()
}

// Drain waits for queued messages like Wait, giving up when ctx ends.
func (r *Relay) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain owns the queue for key until it empties. The head stays queued
// while it is delivered so that Relay does not start a second drainer.
func (r *Relay) drain(key string) {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		next := r.queues[key][0]
		r.mu.Unlock()

		r.deliver(next)

		r.mu.Lock()
		rest := r.queues[key][1:]
		if len(rest) == 0 {
			delete(r.queues, key)
			r.mu.Unlock()
			return
		}
		r.queues[key] = rest
		r.mu.Unlock()
	}
}

func (r *Relay) deliver(j job) {
	base, span := tracer.Start(context.WithoutCancel(j.ctx), "commit.relay")
	defer span.End()

	completed := IsCompletion(j.cmi)
	var score *float64
	if value, ok := Score(j.cmi); ok {
		score = &value
	}
	span.SetAttributes(
		attribute.String("activity.id", j.activityID),
		attribute.Bool("commit.completed", completed),
	)

	commitCtx, cancelCommit := context.WithTimeout(base, r.timeout)
	err := r.committer.Commit(commitCtx, backend.CommitRequest{
		ActivityID: j.activityID,
		CMI:        j.cmi,
		Raw:        j.raw,
	})
	cancelCommit()

	// The commit deadline may already be spent; auditing and the callback
	// get a fresh one.
	ctx, cancel := context.WithTimeout(base, r.timeout)
	defer cancel()
	attempt := storage.CommitAttempt{
		ActivityID: j.activityID,
		ViewerID:   j.viewerID,
		Completed:  completed,
		Score:      score,
		CreatedAt:  r.now().UTC(),
	}
	if err != nil {
		attempt.Error = err.Error()
		r.logger.Printf("commit: delivery failed activity_id=%s viewer_id=%s err=%v", j.activityID, j.viewerID, err)
	}
	if r.store != nil {
		if storeErr := r.store.RecordCommitAttempt(ctx, attempt); storeErr != nil {
			r.logger.Printf("commit: audit failed activity_id=%s err=%v", j.activityID, storeErr)
		}
	}

	if completed && j.onComplete != nil {
		r.notify(ctx, j.onComplete, Completion{
			ActivityID: j.activityID,
			ViewerID:   j.viewerID,
			CMI:        j.cmi,
			Score:      score,
		})
	}
}

func (r *Relay) notify(ctx context.Context, fn CompletionFunc, c Completion) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Printf("commit: completion callback panic activity_id=%s panic=%v", c.ActivityID, recovered)
		}
	}()
	fn(ctx, c)
}
