// Package bridge parses bridge service flags and launches the service.
package bridge

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	entrypoint "github.com/voluntarios/learnbridge/internal/platform/cmd"
	"github.com/voluntarios/learnbridge/internal/platform/timeouts"
	"github.com/voluntarios/learnbridge/internal/services/bridge/activity"
	"github.com/voluntarios/learnbridge/internal/services/bridge/backend"
	"github.com/voluntarios/learnbridge/internal/services/bridge/commit"
	"github.com/voluntarios/learnbridge/internal/services/bridge/gateway"
	"github.com/voluntarios/learnbridge/internal/services/bridge/storage"
	"github.com/voluntarios/learnbridge/internal/services/bridge/storage/sqlite"
	"github.com/voluntarios/learnbridge/internal/services/bridge/web"
)

// Config holds bridge command configuration. Environment keys carry the
// LEARNBRIDGE_ prefix.
type Config struct {
	HTTPAddr            string        `env:"HTTP_ADDR" envDefault:"localhost:8095"`
	BackendBaseURL      string        `env:"BACKEND_BASE_URL" envDefault:"http://localhost:8080"`
	MountPath           string        `env:"MOUNT_PATH" envDefault:"/api/scorm/mount"`
	CommitPath          string        `env:"COMMIT_PATH" envDefault:"/api/scorm/commit"`
	ActivitiesPath      string        `env:"ACTIVITIES_PATH" envDefault:"activities.yaml"`
	DBPath              string        `env:"DB_PATH" envDefault:"data/learnbridge.db"`
	AuthToken           string        `env:"AUTH_TOKEN"`
	AuthSigningKey      string        `env:"AUTH_SIGNING_KEY"`
	AuthIssuer          string        `env:"AUTH_ISSUER" envDefault:"learnbridge"`
	AuthAudience        string        `env:"AUTH_AUDIENCE"`
	BlockedAfter        time.Duration `env:"BLOCKED_AFTER" envDefault:"8s"`
	TrustForwardedProto bool          `env:"TRUST_FORWARDED_PROTO"`
	Debug               bool          `env:"DEBUG"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.BackendBaseURL, "backend-base-url", cfg.BackendBaseURL, "Learning backend base URL")
	fs.StringVar(&cfg.ActivitiesPath, "activities", cfg.ActivitiesPath, "Activity catalog YAML file")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Commit audit SQLite path (empty disables auditing)")
	fs.DurationVar(&cfg.BlockedAfter, "blocked-after", cfg.BlockedAfter, "Silence before a frame is flagged as possibly blocked")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Log rejected frame messages")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the bridge web service and drains pending commits on shutdown.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBridge, func(ctx context.Context) error {
		catalog, err := activity.LoadCatalog(cfg.ActivitiesPath)
		if err != nil {
			return err
		}
		tokens, err := tokenSource(cfg)
		if err != nil {
			return err
		}
		client, err := backend.NewClient(backend.Config{
			BaseURL:    cfg.BackendBaseURL,
			MountPath:  cfg.MountPath,
			CommitPath: cfg.CommitPath,
		}, backend.Authorized(&http.Client{}, tokens))
		if err != nil {
			return err
		}

		var attempts storage.CommitAttemptStore
		if path := strings.TrimSpace(cfg.DBPath); path != "" {
			store, err := openStore(ctx, path)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					log.Printf("close commit store: %v", err)
				}
			}()
			attempts = store
		}

		relay, err := commit.NewRelay(commit.Config{
			Committer: client,
			Store:     attempts,
			Logger:    log.Default(),
		})
		if err != nil {
			return err
		}
		gatewayLogger := log.New(io.Discard, "", 0)
		if cfg.Debug {
			gatewayLogger = log.Default()
		}

		server, err := web.NewServer(ctx, web.Config{
			HTTPAddr:            cfg.HTTPAddr,
			Catalog:             catalog,
			Mounter:             client,
			BackendBase:         cfg.BackendBaseURL,
			Gateway:             gateway.New(gatewayLogger),
			Relay:               relay,
			Attempts:            attempts,
			BlockedAfter:        cfg.BlockedAfter,
			TrustForwardedProto: cfg.TrustForwardedProto,
		})
		if err != nil {
			return err
		}
		log.Printf("bridge listening addr=%s activities=%d backend=%s", server.Addr(), len(catalog.List()), cfg.BackendBaseURL)
		serveErr := server.ListenAndServe(ctx)

		drainCtx, cancel := context.WithTimeout(context.Background(), timeouts.CommitRequest)
		defer cancel()
		if err := relay.Drain(drainCtx); err != nil {
			log.Printf("drain pending commits: %v", err)
		}
		return serveErr
	})
}

// tokenSource picks the backend credential. A signing key mints per-request
// tokens for the end user; otherwise the static token is used.
func tokenSource(cfg Config) (backend.TokenSource, error) {
	if key := strings.TrimSpace(cfg.AuthSigningKey); key != "" {
		return backend.NewSignedTokenSource(backend.SignedTokenConfig{
			Key:      []byte(key),
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
		})
	}
	if token := strings.TrimSpace(cfg.AuthToken); token != "" {
		return backend.StaticToken(token), nil
	}
	return nil, errors.New("backend credential is required: set LEARNBRIDGE_AUTH_TOKEN or LEARNBRIDGE_AUTH_SIGNING_KEY")
}

func openStore(ctx context.Context, path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	return sqlite.Open(ctx, path)
}
