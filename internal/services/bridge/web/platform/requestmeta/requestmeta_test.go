package requestmeta

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHasSameOriginProof(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		host    string
		origin  string
		referer string
		tls     bool
		policy  SchemePolicy
		want    bool
	}{
		{name: "matching origin", host: "learn.example.test", origin: "http://learn.example.test", want: true},
		{name: "explicit default port", host: "learn.example.test", origin: "http://learn.example.test:80", want: true},
		{name: "host case differs", host: "Learn.Example.Test", origin: "http://learn.example.test", want: true},
		{name: "other host", host: "learn.example.test", origin: "http://evil.example.test", want: false},
		{name: "other port", host: "learn.example.test:8080", origin: "http://learn.example.test:9090", want: false},
		{name: "scheme mismatch", host: "learn.example.test", origin: "https://learn.example.test", want: false},
		{name: "tls request", host: "learn.example.test", origin: "https://learn.example.test", tls: true, want: true},
		{
			name:   "trusted forwarded proto",
			host:   "learn.example.test",
			origin: "https://learn.example.test",
			policy: SchemePolicy{TrustForwardedProto: true},
			want:   true,
		},
		{name: "referer fallback", host: "learn.example.test", referer: "http://learn.example.test/learn/a1", want: true},
		{name: "no proof", host: "learn.example.test", want: false},
		{name: "null origin", host: "learn.example.test", origin: "null", want: false},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/learn/a1/ws", nil)
		req.Host = tc.host
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		if tc.referer != "" {
			req.Header.Set("Referer", tc.referer)
		}
		if tc.tls {
			req.TLS = &tls.ConnectionState{}
		}
		if tc.policy.TrustForwardedProto {
			req.Header.Set("X-Forwarded-Proto", "https")
		}
		if got := HasSameOriginProof(req, tc.policy); got != tc.want {
			t.Fatalf("%s: HasSameOriginProof = %t, want %t", tc.name, got, tc.want)
		}
	}
}

func TestForwardedProtoIgnoredByDefault(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "learn.example.test"
	req.Header.Set("Origin", "https://learn.example.test")
	req.Header.Set("X-Forwarded-Proto", "https")
	if HasSameOriginProof(req, SchemePolicy{}) {
		t.Fatal("untrusted forwarded proto must not upgrade the scheme")
	}
}

func TestHasSameOriginProofNilRequest(t *testing.T) {
	t.Parallel()

	if HasSameOriginProof(nil, SchemePolicy{}) {
		t.Fatal("nil request has no proof")
	}
}
