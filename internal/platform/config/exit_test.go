package config_test

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/voluntarios/learnbridge/internal/platform/config"
)

// os.Exit cannot be observed in-process, so the test re-runs itself.
func TestExitfPrefixesMessageAndExitsNonZero(t *testing.T) {
	if os.Getenv("LEARNBRIDGE_EXITF_CHILD") == "1" {
		config.Exitf("mount endpoint %s unreachable", "https://h/mount")
		return
	}

	child := exec.Command(os.Args[0], "-test.run=^TestExitfPrefixesMessageAndExitsNonZero$")
	child.Env = append(os.Environ(), "LEARNBRIDGE_EXITF_CHILD=1")
	out, err := child.CombinedOutput()

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit error, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("exit code = %d, want 1", exitErr.ExitCode())
	}
	want := "learnbridge: mount endpoint https://h/mount unreachable"
	if !strings.Contains(string(out), want) {
		t.Fatalf("output = %q, want %q", string(out), want)
	}
}
