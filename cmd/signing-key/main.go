// Package main prints a fresh signing key for backend service tokens.
package main

import (
	"flag"
	"os"

	"github.com/voluntarios/learnbridge/internal/platform/config"
	"github.com/voluntarios/learnbridge/internal/tools/signingkey"
)

func main() {
	cfg, err := signingkey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := signingkey.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("generate key: %v", err)
	}
}
