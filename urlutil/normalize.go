package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInsecureScheme is returned when a caller insists on https but gets http.
var ErrInsecureScheme = errors.New("http:// URLs are not allowed, use https://")

// EnsureScheme prepends https:// when rawURL carries no scheme.
func EnsureScheme(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || strings.Contains(rawURL, "://") {
		return rawURL
	}
	return "https://" + strings.TrimPrefix(rawURL, "//")
}

// Normalize takes a raw URL string and returns a normalized version.
// Normalization includes:
// - Upgrading a missing scheme to https
// - Lowercasing the scheme and host
// - Stripping fragments (#section)
// - Preserving path and query parameters
//
// Returns an error if the input is empty or cannot be parsed as an absolute
// http(s) URL.
func Normalize(rawURL string) (string, error) {
	rawURL = EnsureScheme(rawURL)
	if rawURL == "" {
		return "", errors.New("cannot normalize empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize URL %q: %w", rawURL, err)
	}

	if parsed.Host == "" {
		return "", fmt.Errorf("normalize URL %q: missing host", rawURL)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("normalize URL %q: unsupported scheme %q", rawURL, parsed.Scheme)
	}
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	return parsed.String(), nil
}

// NormalizeSecure is Normalize with plain http rejected.
func NormalizeSecure(rawURL string) (string, error) {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(rawURL)), "http://") {
		return "", ErrInsecureScheme
	}
	return Normalize(rawURL)
}

// SiteRoot returns scheme://host for rawURL.
func SiteRoot(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL %q: %w", rawURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("parse URL %q: not absolute", rawURL)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

// SafeFilename turns a URL into a filename stem: the scheme prefix is
// dropped and every "/" becomes "_".
func SafeFilename(rawURL string) string {
	name := strings.TrimPrefix(rawURL, "https://")
	name = strings.TrimPrefix(name, "http://")
	return strings.ReplaceAll(name, "/", "_")
}
