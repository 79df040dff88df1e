package urlutil

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "fragment stripping",
			input:    "https://example.com/page#section",
			expected: "https://example.com/page",
		},
		{
			name:     "trailing slash kept",
			input:    "https://example.com/about/",
			expected: "https://example.com/about/",
		},
		{
			name:     "missing scheme upgraded to https",
			input:    "example.com/blog",
			expected: "https://example.com/blog",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  example.com  ",
			expected: "https://example.com",
		},
		{
			name:     "query params preserved",
			input:    "https://example.com/search?q=foo",
			expected: "https://example.com/search?q=foo",
		},
		{
			name:     "scheme and host lowercased",
			input:    "HTTPS://Example.Com/Page",
			expected: "https://example.com/Page",
		},
		{
			name:     "plain http allowed",
			input:    "http://example.com/",
			expected: "http://example.com/",
		},
		{
			name:    "empty string returns error",
			input:   "",
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			input:   "ftp://example.com/file",
			wantErr: true,
		},
		{
			name:    "invalid URL returns error",
			input:   "://invalid",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Normalize() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.expected {
				t.Errorf("Normalize(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeSecure(t *testing.T) {
	if _, err := NormalizeSecure("http://example.com"); !errors.Is(err, ErrInsecureScheme) {
		t.Errorf("NormalizeSecure(http) error = %v, want %v", err, ErrInsecureScheme)
	}
	got, err := NormalizeSecure("example.com/account")
	if err != nil {
		t.Fatalf("NormalizeSecure() error = %v", err)
	}
	if got != "https://example.com/account" {
		t.Errorf("NormalizeSecure() = %q, want https://example.com/account", got)
	}
}

func TestEnsureScheme(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"example.com", "https://example.com"},
		{"//example.com/x", "https://example.com/x"},
		{"http://example.com", "http://example.com"},
		{"https://example.com", "https://example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := EnsureScheme(tt.input); got != tt.want {
			t.Errorf("EnsureScheme(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSiteRoot(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "https://example.com/blog/post?x=1", want: "https://example.com"},
		{input: "http://example.com:8080/", want: "http://example.com:8080"},
		{input: "/relative/only", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SiteRoot(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("SiteRoot(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("SiteRoot(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"https://example.com", "example.com"},
		{"https://example.com/blog/post", "example.com_blog_post"},
		{"http://example.com/", "example.com_"},
	}
	for _, tt := range tests {
		if got := SafeFilename(tt.input); got != tt.want {
			t.Errorf("SafeFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
