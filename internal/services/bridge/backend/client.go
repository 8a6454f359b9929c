// Package backend talks to the mount and commit endpoints of the learning
// backend through a caller-supplied authorized request function.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/voluntarios/learnbridge/internal/platform/errors"
	"github.com/voluntarios/learnbridge/internal/services/bridge/urlresolve"
)

const (
	// DefaultMountPath is the mount endpoint relative to the backend base.
	DefaultMountPath = "/api/scorm/mount"
	// DefaultCommitPath is the commit endpoint relative to the backend base.
	DefaultCommitPath = "/api/scorm/commit"

	maxErrorBody = 512
)

var tracer = otel.Tracer("github.com/voluntarios/learnbridge/internal/services/bridge/backend")

// MountRequest asks the backend to prepare a content package.
type MountRequest struct {
	ActivityID string `json:"activityId"`
	PackageURL string `json:"packageUrl"`
}

// MountResponse carries the launch URL, relative to the backend or absolute.
type MountResponse struct {
	LaunchURL string `json:"launchUrl"`
}

// CommitRequest persists one progress message. The endpoint is idempotent.
type CommitRequest struct {
	ActivityID string          `json:"activityId"`
	CMI        map[string]any  `json:"cmi"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// Config locates the backend endpoints.
type Config struct {
	BaseURL    string
	MountPath  string
	CommitPath string
}

// Client calls the backend mount and commit endpoints.
type Client struct {
	doer      Doer
	mountURL  string
	commitURL string
}

// NewClient builds a client. doer must already attach credentials; see
// Authorized.
func NewClient(cfg Config, doer Doer) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if urlresolve.Origin(base) == "" {
		return nil, fmt.Errorf("backend base url must be an absolute http(s) url, got %q", cfg.BaseURL)
	}
	if doer == nil {
		return nil, errors.New("request function is required")
	}
	mountPath := strings.TrimSpace(cfg.MountPath)
	if mountPath == "" {
		mountPath = DefaultMountPath
	}
	commitPath := strings.TrimSpace(cfg.CommitPath)
	if commitPath == "" {
		commitPath = DefaultCommitPath
	}
	return &Client{
		doer:      doer,
		mountURL:  urlresolve.Resolve(mountPath, base),
		commitURL: urlresolve.Resolve(commitPath, base),
	}, nil
}

// Mount asks the backend for a launch URL for the package.
func (c *Client) Mount(ctx context.Context, req MountRequest) (MountResponse, error) {
	ctx, span := tracer.Start(ctx, "backend.Mount", trace.WithAttributes(
		attribute.String("activity.id", req.ActivityID),
	))
	defer span.End()

	var resp struct {
		LaunchURL    string `json:"launchUrl"`
		LaunchURLAlt string `json:"launch_url"`
	}
	if err := c.postJSON(ctx, c.mountURL, req, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mount failed")
		return MountResponse{}, apperrors.Wrap(apperrors.CodeMountFailed, "mount activity "+req.ActivityID, err)
	}
	launchURL := strings.TrimSpace(resp.LaunchURL)
	if launchURL == "" {
		launchURL = strings.TrimSpace(resp.LaunchURLAlt)
	}
	if launchURL == "" {
		err := apperrors.New(apperrors.CodeMountFailed, "mount activity "+req.ActivityID+": response has no launch url")
		span.SetStatus(codes.Error, err.Message)
		return MountResponse{}, err
	}
	return MountResponse{LaunchURL: launchURL}, nil
}

// Commit persists one progress payload.
func (c *Client) Commit(ctx context.Context, req CommitRequest) error {
	ctx, span := tracer.Start(ctx, "backend.Commit", trace.WithAttributes(
		attribute.String("activity.id", req.ActivityID),
		attribute.Int("cmi.keys", len(req.CMI)),
	))
	defer span.End()

	if req.CMI == nil {
		req.CMI = map[string]any{}
	}
	if err := c.postJSON(ctx, c.commitURL, req, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return apperrors.Wrap(apperrors.CodeCommitFailed, "commit activity "+req.ActivityID, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeBackendUnavailable, "backend request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("backend returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
