package urlutil

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// IsSameDomain reports whether targetURL is on host or one of its
// subdomains. Ports and a leading "www." are ignored on both sides.
func IsSameDomain(targetURL, host string) bool {
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Host == "" {
		return false
	}

	target := bareHost(parsed.Hostname())
	host = bareHost(host)
	if host == "" {
		return false
	}
	return target == host || strings.HasSuffix(target, "."+host)
}

func bareHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// IsHTTPScheme reports whether href starts with http:// or https://, in any
// case.
func IsHTTPScheme(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// StripFragmentAndQuery cuts href at the first "#", then at the first "?".
func StripFragmentAndQuery(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if i := strings.IndexByte(href, '?'); i >= 0 {
		href = href[:i]
	}
	return href
}

// ResolveReference resolves ref against the absolute URL base.
func ResolveReference(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", base, err)
	}
	if !baseURL.IsAbs() {
		return "", fmt.Errorf("parse base URL %q: not absolute", base)
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
