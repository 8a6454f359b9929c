package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("launch: %w", Wrap(CodeMountFailed, "mount activity a1", stderrors.New("dial tcp")))
	if !stderrors.Is(err, New(CodeMountFailed, "")) {
		t.Fatal("expected mount failure to match by code")
	}
	if stderrors.Is(err, New(CodeCommitFailed, "")) {
		t.Fatal("expected commit failure not to match")
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	t.Parallel()

	err := Wrap(CodeBackendUnavailable, "mount request", stderrors.New("connection refused"))
	if got, want := err.Error(), "mount request: connection refused"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if got := New(CodeInvalidArgument, "activity id is required").Error(); got != "activity id is required" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{err: nil, want: http.StatusOK},
		{err: New(CodeInvalidArgument, "x"), want: http.StatusBadRequest},
		{err: New(CodeResourceExhausted, "x"), want: http.StatusTooManyRequests},
		{err: New(CodeActivityNotFound, "x"), want: http.StatusNotFound},
		{err: New(CodeActivityNotConfigured, "x"), want: http.StatusConflict},
		{err: fmt.Errorf("wrap: %w", New(CodeMountFailed, "x")), want: http.StatusBadGateway},
		{err: stderrors.New("plain"), want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestCodeOfUnknownForPlainErrors(t *testing.T) {
	t.Parallel()

	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf = %q, want %q", got, CodeUnknown)
	}
}
