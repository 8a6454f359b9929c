// Package timeouts defines shared timeout constants used across learnbridge.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// MountRequest caps a single backend mount call.
const MountRequest = 30 * time.Second

// CommitRequest caps a single backend commit call. Commits run detached from
// the viewer, so this is the only bound on their lifetime.
const CommitRequest = 10 * time.Second

// BlockedAdvisory is how long a rendered frame may stay silent before the
// viewer flags it as possibly blocked.
const BlockedAdvisory = 8 * time.Second
