package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Base    string `env:"CMD_TEST_BASE" envDefault:"https://backend.local"`
}

func TestParseConfigReadsPrefixedEnvAndFlags(t *testing.T) {
	t.Setenv("LEARNBRIDGE_CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("LEARNBRIDGE_CMD_TEST_BASE", "https://env.backend")

	cfg := testConfig{}
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringVar(&cfg.Address, "address", cfg.Address, "address")
	fs.StringVar(&cfg.Base, "base", cfg.Base, "base")

	if err := ParseArgs(fs, []string{"-address", "flag:9001"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfg.Address != "flag:9001" {
		t.Fatalf("expected flag value for address, got %q", cfg.Address)
	}
	if cfg.Base != "https://env.backend" {
		t.Fatalf("expected env value for base, got %q", cfg.Base)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceBridge, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryReturnsRunError(t *testing.T) {
	t.Setenv("LEARNBRIDGE_OTEL_ENDPOINT", "")
	want := errors.New("boom")

	err := RunWithTelemetry(context.Background(), ServiceBridge, func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}
