package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/sirupsen/logrus"

	"github.com/lukemcguire/pageprobe/logging"
	"github.com/lukemcguire/pageprobe/result"
)

// sitemapCandidates are tried in order below the site root.
var sitemapCandidates = []string{"/sitemap.xml", "/static/sitemap.xml"}

// maxSitemapBytes is the sitemap protocol's uncompressed size limit.
var maxSitemapBytes int64 = 50 << 20

// locXPath matches <loc> in any namespace.
const locXPath = "//*[local-name()='loc']"

// SitemapResolver finds and parses a site's sitemap.
type SitemapResolver struct {
	client    *http.Client
	userAgent string
	logger    *logrus.Logger
}

// NewSitemapResolver creates a SitemapResolver using client for every fetch.
func NewSitemapResolver(client *http.Client, userAgent string, logger *logrus.Logger) *SitemapResolver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SitemapResolver{client: client, userAgent: userAgent, logger: logger}
}

// Resolve tries each candidate under siteRoot in turn and returns the <loc>
// values of the first one that answers 200 and parses. found is false when
// none does; failures never surface as errors.
func (s *SitemapResolver) Resolve(ctx context.Context, siteRoot string) (urls []string, found bool) {
	siteRoot = strings.TrimSuffix(siteRoot, "/")
	for _, candidate := range sitemapCandidates {
		sitemapURL := siteRoot + candidate
		urls, err := s.Fetch(ctx, sitemapURL)
		if err != nil {
			s.logger.WithError(err).WithField("url", sitemapURL).Debug("sitemap candidate unavailable")
			if ctx.Err() != nil {
				return nil, false
			}
			continue
		}
		s.logger.WithFields(logrus.Fields{"url": sitemapURL, "count": len(urls)}).Debug("sitemap found")
		return urls, true
	}
	s.logger.WithField("site", siteRoot).Info("no sitemap found")
	return nil, false
}

// Fetch downloads one sitemap and returns its <loc> values in document order.
func (s *SitemapResolver) Fetch(ctx context.Context, sitemapURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create sitemap request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, result.StatusError(sitemapURL, resp.StatusCode)
	}

	return parseSitemap(io.LimitReader(resp.Body, maxSitemapBytes))
}

func parseSitemap(r io.Reader) ([]string, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}
	nodes, err := xmlquery.QueryAll(doc, locXPath)
	if err != nil {
		return nil, fmt.Errorf("query sitemap: %w", err)
	}
	urls := make([]string, 0, len(nodes))
	for _, node := range nodes {
		urls = append(urls, strings.TrimSpace(node.InnerText()))
	}
	return urls, nil
}
