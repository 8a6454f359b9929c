// Package mount obtains launch URLs for packaged activities, mounting them
// on the backend at most once per activity identity.
package mount

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/voluntarios/learnbridge/internal/platform/errors"
	"github.com/voluntarios/learnbridge/internal/platform/timeouts"
	"github.com/voluntarios/learnbridge/internal/services/bridge/activity"
	"github.com/voluntarios/learnbridge/internal/services/bridge/backend"
	"github.com/voluntarios/learnbridge/internal/services/bridge/urlresolve"
)

// Status is the mount lifecycle of the current activity.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusMounting Status = "mounting"
	StatusReady    Status = "ready"
)

// ErrSuperseded is returned to callers whose mount finished after the
// manager moved on to another activity. The result was discarded.
var ErrSuperseded = errors.New("mount superseded by activity change")

// Mounter is the backend mount endpoint.
type Mounter interface {
	Mount(ctx context.Context, req backend.MountRequest) (backend.MountResponse, error)
}

// Manager memoizes the launch URL of one activity at a time.
type Manager struct {
	mounter     Mounter
	backendBase string
	group       singleflight.Group

	mu         sync.Mutex
	activityID string
	generation uint64
	launchURL  string
	status     Status
	lastErr    error
}

// NewManager returns a manager resolving launch URLs against backendBase.
func NewManager(mounter Mounter, backendBase string) *Manager {
	return &Manager{
		mounter:     mounter,
		backendBase: strings.TrimSpace(backendBase),
		status:      StatusIdle,
	}
}

// EnsureLaunchURL returns the launch URL for a, mounting it when needed.
//
// A cached URL is returned without any backend call. A directly configured
// launch URL is resolved without mounting. An activity with no package URL
// yields "" and a nil error. Concurrent callers share one backend call.
// Failures are not retried.
func (m *Manager) EnsureLaunchURL(ctx context.Context, a activity.Activity) (string, error) {
	m.mu.Lock()
	if strings.TrimSpace(a.ID) != m.activityID {
		m.resetLocked(strings.TrimSpace(a.ID))
	}
	if m.launchURL != "" {
		url := m.launchURL
		m.mu.Unlock()
		return url, nil
	}
	if direct := urlresolve.Resolve(a.Config.LaunchURL, m.backendBase); direct != "" {
		m.launchURL = direct
		m.status = StatusReady
		m.lastErr = nil
		m.mu.Unlock()
		return direct, nil
	}
	packageURL := strings.TrimSpace(a.Config.PackageURL)
	if packageURL == "" {
		m.mu.Unlock()
		return "", nil
	}
	if m.mounter == nil {
		m.mu.Unlock()
		return "", apperrors.New(apperrors.CodeMountFailed, "mount endpoint is not configured")
	}
	generation := m.generation
	m.status = StatusMounting
	m.lastErr = nil
	m.mu.Unlock()

	key := m.activityID + "#" + strconv.FormatUint(generation, 10)
	result, err, _ := m.group.Do(key, func() (any, error) {
		return m.mount(ctx, generation, backend.MountRequest{ActivityID: a.ID, PackageURL: packageURL})
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// mount performs the backend call and stores its outcome before the
// singleflight key is released, so a later caller sees the cache.
func (m *Manager) mount(ctx context.Context, generation uint64, req backend.MountRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeouts.MountRequest)
	defer cancel()
	resp, err := m.mounter.Mount(callCtx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		return "", ErrSuperseded
	}
	if err != nil {
		m.status = StatusIdle
		m.lastErr = err
		return "", err
	}
	resolved := urlresolve.Resolve(resp.LaunchURL, m.backendBase)
	if resolved == "" {
		m.status = StatusIdle
		m.lastErr = apperrors.New(apperrors.CodeMountFailed, "mount returned an empty launch url")
		return "", m.lastErr
	}
	m.launchURL = resolved
	m.status = StatusReady
	return resolved, nil
}

// Reset forgets the cached launch URL. Any mount still in flight is
// discarded when it completes.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked("")
}

func (m *Manager) resetLocked(activityID string) {
	m.activityID = activityID
	m.generation++
	m.launchURL = ""
	m.status = StatusIdle
	m.lastErr = nil
}

// Status reports the mount lifecycle.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LaunchURL returns the cached launch URL, if any.
func (m *Manager) LaunchURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.launchURL
}

// LastError returns the most recent mount failure, cleared on the next attempt.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}
