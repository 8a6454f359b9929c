// Package viewer drives the lifecycle of one embedded activity: launching it,
// watching the rendered frame, and reporting completion to the host.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	apperrors "github.com/voluntarios/learnbridge/internal/platform/errors"
	"github.com/voluntarios/learnbridge/internal/platform/timeouts"
	"github.com/voluntarios/learnbridge/internal/services/bridge/activity"
	"github.com/voluntarios/learnbridge/internal/services/bridge/commit"
	"github.com/voluntarios/learnbridge/internal/services/bridge/gateway"
	"github.com/voluntarios/learnbridge/internal/services/bridge/mount"
)

// Status is the viewer state.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusMounting         Status = "mounting"
	StatusReady            Status = "ready"
	StatusBlockedSuspected Status = "blocked-suspected"
	StatusFrameError       Status = "frame-error"
)

// DisabledNotConfigured is reported when the activity has neither a launch
// URL nor a package URL.
const DisabledNotConfigured = "not_configured"

// Snapshot is the externally visible viewer state.
type Snapshot struct {
	ActivityID     string         `json:"activityId"`
	Title          string         `json:"title"`
	Status         Status         `json:"status"`
	LaunchURL      string         `json:"launchUrl,omitempty"`
	ErrorCode      apperrors.Code `json:"errorCode,omitempty"`
	CanLaunch      bool           `json:"canLaunch"`
	DisabledReason string         `json:"disabledReason,omitempty"`
}

// LaunchURLSource resolves and memoizes launch URLs. *mount.Manager
// satisfies it.
type LaunchURLSource interface {
	EnsureLaunchURL(ctx context.Context, a activity.Activity) (string, error)
	Reset()
}

var _ LaunchURLSource = (*mount.Manager)(nil)

// Registrar hands out gateway listeners. *gateway.Gateway satisfies it.
type Registrar interface {
	Register(reg gateway.Registration) (*gateway.Listener, error)
}

// Relayer forwards progress messages. *commit.Relay satisfies it.
type Relayer interface {
	Relay(ctx context.Context, activityID string, cmi map[string]any, raw json.RawMessage, onComplete commit.CompletionFunc)
}

var (
	_ Registrar = (*gateway.Gateway)(nil)
	_ Relayer   = (*commit.Relay)(nil)
)

// Timer is a pending advisory timer.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

// Config wires a viewer.
type Config struct {
	Activity       activity.Activity
	Mounts         LaunchURLSource
	Gateway        Registrar
	Relay          Relayer
	ExpectedOrigin string
	// Scope restricts the gateway listener to messages relayed for this
	// viewer.
	Scope        string
	OnCompletion commit.CompletionFunc
	// OnChange receives every state change in order. It must not call back
	// into the viewer.
	OnChange     func(Snapshot)
	AfterFunc    AfterFunc
	BlockedAfter time.Duration
}

// Viewer is the presentation state machine for one activity.
type Viewer struct {
	mounts         LaunchURLSource
	registrar      Registrar
	relay          Relayer
	expectedOrigin string
	scope          string
	onCompletion   commit.CompletionFunc
	onChange       func(Snapshot)
	afterFunc      AfterFunc
	blockedAfter   time.Duration

	notifyMu sync.Mutex

	mu         sync.Mutex
	activity   activity.Activity
	status     Status
	launchURL  string
	err        error
	generation uint64
	timer      Timer
	timerSeq   uint64
	listener   *gateway.Listener
	disposed   bool
}

// New builds a viewer and registers its gateway listener.
func New(cfg Config) (*Viewer, error) {
	if cfg.Mounts == nil {
		return nil, errors.New("launch url source is required")
	}
	afterFunc := cfg.AfterFunc
	if afterFunc == nil {
		afterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	blockedAfter := cfg.BlockedAfter
	if blockedAfter <= 0 {
		blockedAfter = timeouts.BlockedAdvisory
	}
	v := &Viewer{
		mounts:         cfg.Mounts,
		registrar:      cfg.Gateway,
		relay:          cfg.Relay,
		expectedOrigin: strings.TrimSpace(cfg.ExpectedOrigin),
		scope:          cfg.Scope,
		onCompletion:   cfg.OnCompletion,
		onChange:       cfg.OnChange,
		afterFunc:      afterFunc,
		blockedAfter:   blockedAfter,
		activity:       cfg.Activity,
		status:         StatusIdle,
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.bindLocked(); err != nil {
		return nil, err
	}
	return v, nil
}

// Snapshot returns the current state.
func (v *Viewer) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Launch opens the viewer: it obtains the launch URL and renders the frame.
// Launching an activity with nothing to launch makes no backend call and
// returns ACTIVITY_NOT_CONFIGURED. Launching a viewer that is not idle is a
// no-op.
func (v *Viewer) Launch(ctx context.Context) error {
	v.mu.Lock()
	if v.disposed || v.status != StatusIdle {
		v.mu.Unlock()
		return nil
	}
	a := v.activity
	if !a.Launchable() {
		v.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeActivityNotConfigured, "activity has nothing to launch", map[string]string{"ActivityID": a.ID})
	}
	v.status = StatusMounting
	v.err = nil
	generation := v.generation
	v.commitLocked()

	launchURL, err := v.mounts.EnsureLaunchURL(ctx, a)

	v.mu.Lock()
	if v.disposed || generation != v.generation {
		v.mu.Unlock()
		return nil
	}
	switch {
	case err != nil:
		v.status = StatusIdle
		v.err = err
	case launchURL == "":
		v.status = StatusIdle
		v.err = apperrors.New(apperrors.CodeActivityNotConfigured, "activity has nothing to launch")
		err = v.err
	default:
		v.status = StatusReady
		v.launchURL = launchURL
		v.armTimerLocked()
	}
	v.commitLocked()
	return err
}

// FrameLoaded reports that the rendered frame finished loading. It cancels
// the blocked advisory and clears it if it already fired.
func (v *Viewer) FrameLoaded() {
	v.mu.Lock()
	if v.disposed || (v.status != StatusReady && v.status != StatusBlockedSuspected) {
		v.mu.Unlock()
		return
	}
	v.stopTimerLocked()
	v.status = StatusReady
	v.commitLocked()
}

// FrameError reports that the rendered frame failed. The viewer stays in
// frame-error until closed.
func (v *Viewer) FrameError() {
	v.mu.Lock()
	if v.disposed || (v.status != StatusReady && v.status != StatusBlockedSuspected) {
		v.mu.Unlock()
		return
	}
	v.stopTimerLocked()
	v.status = StatusFrameError
	v.commitLocked()
}

// Close returns to idle and clears error and advisory state. The launch URL
// stays cached so reopening does not mount again.
func (v *Viewer) Close() {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return
	}
	v.stopTimerLocked()
	v.generation++
	v.status = StatusIdle
	v.err = nil
	v.commitLocked()
}

// SetActivity switches the viewer to a. The same activity id is a no-op;
// a different one drops the cached launch URL and re-binds the listener.
func (v *Viewer) SetActivity(a activity.Activity) error {
	v.mu.Lock()
	if v.disposed || v.activity.SameIdentity(a) {
		v.mu.Unlock()
		return nil
	}
	v.stopTimerLocked()
	v.generation++
	v.listener.Deregister()
	v.listener = nil
	v.mounts.Reset()
	v.activity = a
	v.status = StatusIdle
	v.launchURL = ""
	v.err = nil
	err := v.bindLocked()
	if err != nil {
		v.err = err
	}
	v.commitLocked()
	return err
}

// Dispose releases the gateway listener and the advisory timer. Events that
// arrive afterwards are ignored.
func (v *Viewer) Dispose() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return
	}
	v.disposed = true
	v.generation++
	v.stopTimerLocked()
	v.listener.Deregister()
	v.listener = nil
}

func (v *Viewer) bindLocked() error {
	if v.registrar == nil || v.relay == nil || strings.TrimSpace(v.activity.ID) == "" {
		return nil
	}
	activityID := v.activity.ID
	listener, err := v.registrar.Register(gateway.Registration{
		Scope:          v.scope,
		ExpectedOrigin: v.expectedOrigin,
		ActivityID:     activityID,
		Sink: func(ctx context.Context, msg gateway.Message) {
			v.relay.Relay(ctx, activityID, msg.CMI, msg.Raw, v.completed)
		},
	})
	if err != nil {
		return err
	}
	v.listener = listener
	return nil
}

func (v *Viewer) completed(ctx context.Context, c commit.Completion) {
	v.mu.Lock()
	disposed := v.disposed
	v.mu.Unlock()
	if disposed || v.onCompletion == nil {
		return
	}
	v.onCompletion(ctx, c)
}

func (v *Viewer) armTimerLocked() {
	v.timerSeq++
	seq := v.timerSeq
	v.timer = v.afterFunc(v.blockedAfter, func() { v.blockedAdvisory(seq) })
}

func (v *Viewer) stopTimerLocked() {
	v.timerSeq++
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
}

func (v *Viewer) blockedAdvisory(seq uint64) {
	v.mu.Lock()
	if v.disposed || seq != v.timerSeq || v.status != StatusReady {
		v.mu.Unlock()
		return
	}
	v.timer = nil
	v.status = StatusBlockedSuspected
	v.commitLocked()
}

// commitLocked publishes the current state and releases v.mu. Notifications
// are serialized so observers see changes in order.
func (v *Viewer) commitLocked() {
	snapshot := v.snapshotLocked()
	v.notifyMu.Lock()
	v.mu.Unlock()
	defer v.notifyMu.Unlock()
	if v.onChange != nil {
		v.onChange(snapshot)
	}
}

func (v *Viewer) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		ActivityID: v.activity.ID,
		Title:      v.activity.Title,
		Status:     v.status,
		CanLaunch:  v.status == StatusIdle && v.activity.Launchable(),
	}
	if !v.activity.Launchable() {
		snapshot.DisabledReason = DisabledNotConfigured
	}
	if v.status != StatusIdle && v.status != StatusMounting {
		snapshot.LaunchURL = v.launchURL
	}
	if v.err != nil {
		snapshot.ErrorCode = apperrors.CodeOf(v.err)
	}
	return snapshot
}
