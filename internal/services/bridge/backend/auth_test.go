package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/voluntarios/learnbridge/internal/platform/requestctx"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestStaticTokenRejectsEmpty(t *testing.T) {
	t.Parallel()

	if _, err := StaticToken(" ").Token(context.Background()); err == nil {
		t.Fatal("expected empty token error")
	}
}

func TestNewSignedTokenSourceValidates(t *testing.T) {
	t.Parallel()

	if _, err := NewSignedTokenSource(SignedTokenConfig{Key: []byte("short"), Issuer: "i", Audience: "a"}); err == nil {
		t.Fatal("expected short key error")
	}
	if _, err := NewSignedTokenSource(SignedTokenConfig{Key: testKey}); err == nil {
		t.Fatal("expected missing issuer/audience error")
	}
}

func TestSignedTokenCarriesUserAndAudience(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	source, err := NewSignedTokenSource(SignedTokenConfig{
		Key:      testKey,
		Issuer:   "learnbridge",
		Audience: "learning-backend",
		TTL:      time.Minute,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewSignedTokenSource() error = %v", err)
	}

	signed, err := source.Token(requestctx.WithUserID(context.Background(), "volunteer-7"))
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(signed, &claims, func(*jwt.Token) (any, error) { return testKey, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return now.Add(30 * time.Second) }),
		jwt.WithAudience("learning-backend"),
		jwt.WithIssuer("learnbridge"),
	)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "volunteer-7" {
		t.Fatalf("Subject = %q", claims.Subject)
	}
	if claims.ID == "" {
		t.Fatal("expected jti")
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(time.Minute)) {
		t.Fatalf("ExpiresAt = %s", claims.ExpiresAt.Time)
	}
}

type failingTokens struct{}

func (failingTokens) Token(context.Context) (string, error) { return "", errors.New("no credential") }

func TestAuthorizedAttachesBearer(t *testing.T) {
	t.Parallel()

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	t.Cleanup(srv.Close)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := Authorized(srv.Client(), StaticToken("abc")).Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	_ = resp.Body.Close()
	if got != "Bearer abc" {
		t.Fatalf("Authorization = %q", got)
	}
}

func TestAuthorizedFailsWithoutCredential(t *testing.T) {
	t.Parallel()

	called := false
	next := DoerFunc(func(*http.Request) (*http.Response, error) {
		called = true
		return nil, nil
	})
	req, _ := http.NewRequest(http.MethodGet, "https://h", nil)
	_, err := Authorized(next, failingTokens{}).Do(req)
	if err == nil || !strings.Contains(err.Error(), "acquire bearer token") {
		t.Fatalf("err = %v", err)
	}
	if called {
		t.Fatal("request must not be sent without a credential")
	}
}
