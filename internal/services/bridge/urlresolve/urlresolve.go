// Package urlresolve turns backend-relative paths into absolute URLs.
package urlresolve

import (
	"net/url"
	"strings"
)

// Resolve returns path as an absolute URL under base.
//
// Empty input resolves to "" (not configured). Input that already carries an
// http or https scheme is returned unchanged. Anything else is joined onto
// base with exactly one separating slash.
func Resolve(path, base string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if HasHTTPScheme(path) {
		return path
	}
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/" + strings.TrimLeft(path, "/")
}

// HasHTTPScheme reports whether raw starts with http:// or https://.
func HasHTTPScheme(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Origin returns the scheme://host[:port] of an absolute http(s) base URL,
// or "" when base is not one. Default ports are dropped, matching how
// browsers serialize an origin.
func Origin(base string) string {
	base = strings.TrimSpace(base)
	if !HasHTTPScheme(base) {
		return ""
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" {
		return ""
	}
	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := parsed.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host
}
