// Package errors provides coded domain errors for the bridge.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeInvalidArgument rejects malformed caller input.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeResourceExhausted rejects callers over their rate limit.
	CodeResourceExhausted Code = "RESOURCE_EXHAUSTED"

	// Activity errors
	CodeActivityNotFound      Code = "ACTIVITY_NOT_FOUND"
	CodeActivityNotConfigured Code = "ACTIVITY_NOT_CONFIGURED"

	// Backend errors
	CodeMountFailed        Code = "MOUNT_FAILED"
	CodeCommitFailed       Code = "COMMIT_FAILED"
	CodeBackendUnavailable Code = "BACKEND_UNAVAILABLE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeResourceExhausted:
		return http.StatusTooManyRequests
	case CodeActivityNotFound:
		return http.StatusNotFound
	case CodeActivityNotConfigured:
		return http.StatusConflict
	case CodeMountFailed, CodeCommitFailed, CodeBackendUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
