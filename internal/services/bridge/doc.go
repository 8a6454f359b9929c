// Package bridge groups the embedded learning-content bridge.
//
// A viewer mounts an externally packaged learning unit inside a sandboxed
// frame, receives its progress messages across an origin boundary, persists
// them to the backend and infers completion from the status payload. The
// subpackages are layered leaves first: urlresolve, activity, backend,
// mount, commit, gateway, viewer, and the web surface on top.
package bridge
