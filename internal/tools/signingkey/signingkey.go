// Package signingkey generates the shared key used to sign backend service
// tokens.
package signingkey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
)

// EnvKey is the variable the bridge reads the signing key from.
const EnvKey = "LEARNBRIDGE_AUTH_SIGNING_KEY"

// MinBytes keeps the hex-encoded key at or above the 32 bytes the token
// source requires.
const MinBytes = 16

// Config holds configuration for key generation.
type Config struct {
	Bytes int
	Raw   bool
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: 32}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes")
	fs.BoolVar(&cfg.Raw, "raw", cfg.Raw, "print only the key, without the env assignment")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the key and writes it to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes < MinBytes {
		return fmt.Errorf("bytes must be at least %d", MinBytes)
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	key := hex.EncodeToString(buf)
	if cfg.Raw {
		_, err := fmt.Fprintln(out, key)
		return err
	}
	_, err := fmt.Fprintf(out, "%s=%s\n", EnvKey, key)
	return err
}
