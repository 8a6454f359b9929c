package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/voluntarios/learnbridge/internal/platform/requestctx"
)

const defaultTokenTTL = 5 * time.Minute

// Doer performs one HTTP exchange. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(*http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// TokenSource yields the bearer credential for an outgoing request.
// How the credential is obtained or refreshed is the source's concern.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed, pre-issued bearer credential.
type StaticToken string

// Token returns the static credential.
func (s StaticToken) Token(context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", errors.New("static token is empty")
	}
	return token, nil
}

// SignedTokenConfig configures short-lived HS256 service tokens.
type SignedTokenConfig struct {
	Key      []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

// SignedTokenSource mints a JWT per request whose subject is the user id
// carried in the request context.
type SignedTokenSource struct {
	cfg SignedTokenConfig
}

// NewSignedTokenSource validates cfg and returns a token source.
func NewSignedTokenSource(cfg SignedTokenConfig) (*SignedTokenSource, error) {
	if len(cfg.Key) < 32 {
		return nil, errors.New("signing key must be at least 32 bytes")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("token issuer and audience are required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SignedTokenSource{cfg: cfg}, nil
}

// Token signs a fresh token for the user in ctx.
func (s *SignedTokenSource) Token(ctx context.Context) (string, error) {
	now := s.cfg.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.cfg.Issuer,
		Subject:   requestctx.UserIDFromContext(ctx),
		Audience:  jwt.ClaimStrings{s.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	return signed, nil
}

// Authorized wraps next so every request carries a bearer credential from
// tokens and the active trace context.
func Authorized(next Doer, tokens TokenSource) Doer {
	if next == nil {
		next = http.DefaultClient
	}
	return DoerFunc(func(req *http.Request) (*http.Response, error) {
		if tokens != nil {
			token, err := tokens.Token(req.Context())
			if err != nil {
				return nil, fmt.Errorf("acquire bearer token: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}
		otel.GetTextMapPropagator().Inject(req.Context(), propagation.HeaderCarrier(req.Header))
		return next.Do(req)
	})
}
