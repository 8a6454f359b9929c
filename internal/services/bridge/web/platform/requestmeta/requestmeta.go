// Package requestmeta checks where browser requests come from.
package requestmeta

import (
	"net/http"
	"net/url"
	"strings"
)

// SchemePolicy controls how the request scheme is resolved.
//
// X-Forwarded-Proto is only honored when TrustForwardedProto is set.
type SchemePolicy struct {
	TrustForwardedProto bool
}

// HasSameOriginProof reports whether the Origin header, or the Referer when
// Origin is absent, names the host the request was sent to.
func HasSameOriginProof(r *http.Request, policy SchemePolicy) bool {
	if r == nil {
		return false
	}
	want, ok := requestOrigin(r, policy)
	if !ok {
		return false
	}
	claimed := strings.TrimSpace(r.Header.Get("Origin"))
	if claimed == "" {
		claimed = strings.TrimSpace(r.Header.Get("Referer"))
	}
	if claimed == "" {
		return false
	}
	got, ok := parseOrigin(claimed)
	return ok && got == want
}

type origin struct {
	scheme string
	host   string
	port   string
}

func parseOrigin(raw string) (origin, bool) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return origin{}, false
	}
	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	if host == "" || (scheme != "http" && scheme != "https") {
		return origin{}, false
	}
	port := parsed.Port()
	if port == "" {
		port = defaultPort(scheme)
	}
	return origin{scheme: scheme, host: host, port: port}, true
}

func requestOrigin(r *http.Request, policy SchemePolicy) (origin, bool) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if policy.TrustForwardedProto {
		if forwarded := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))); forwarded == "http" || forwarded == "https" {
			scheme = forwarded
		}
	}
	rawHost := r.Host
	if rawHost == "" && r.URL != nil {
		rawHost = r.URL.Host
	}
	parsed, err := url.Parse("//" + strings.TrimSpace(rawHost))
	if err != nil || parsed.Hostname() == "" {
		return origin{}, false
	}
	port := parsed.Port()
	if port == "" {
		port = defaultPort(scheme)
	}
	return origin{scheme: scheme, host: strings.ToLower(parsed.Hostname()), port: port}, true
}

func defaultPort(scheme string) string {
	if scheme == "https" {
		return "443"
	}
	return "80"
}
