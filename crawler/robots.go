package crawler

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"github.com/lukemcguire/pageprobe/logging"
	"github.com/lukemcguire/pageprobe/result"
)

// maxRobotsBytes caps how much of a robots.txt body is read.
const maxRobotsBytes = 512 << 10

// Decision is the outcome of a robots.txt check for one URL.
type Decision struct {
	Allowed    bool
	RobotsURL  string
	Rule       string        // directive that decided the outcome, empty when none matched
	CrawlDelay time.Duration // Crawl-delay of the "*" group
}

// robotsRules holds the Allow and Disallow paths of the "*" group.
type robotsRules struct {
	allow    []string
	disallow []string
}

// RobotsChecker fetches robots.txt and evaluates it for the "*" user agent.
// Nothing is cached: each check reads robots.txt afresh.
type RobotsChecker struct {
	client *http.Client
	logger *logrus.Logger
}

// NewRobotsChecker creates a RobotsChecker with the given HTTP client.
func NewRobotsChecker(client *http.Client, logger *logrus.Logger) *RobotsChecker {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RobotsChecker{client: client, logger: logger}
}

// Check fetches {scheme}://{host}/robots.txt and reports whether rawURL may
// be fetched.
//
// Status handling: 2xx is parsed; 401 and 403 deny everything; any other 4xx
// allows everything; 5xx and transport failures return a
// compliance_fetch_failed error so the caller never crawls on a guess.
func (r *RobotsChecker) Check(ctx context.Context, rawURL, userAgent string) (Decision, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Host == "" {
		return Decision{}, result.NewError(result.KindInvalidInput, rawURL, fmt.Errorf("parse URL: %w", errOrMissingHost(err)))
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsedURL.Scheme, parsedURL.Host)
	decision := Decision{RobotsURL: robotsURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return decision, result.NewError(result.KindComplianceFetchFailed, rawURL, fmt.Errorf("create robots.txt request: %w", err))
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return decision, result.Aborted(rawURL)
		}
		return decision, result.NewError(result.KindComplianceFetchFailed, rawURL, fmt.Errorf("fetch %s: %w", robotsURL, err))
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	closeErr := resp.Body.Close()
	if readErr != nil {
		return decision, result.NewError(result.KindComplianceFetchFailed, rawURL, fmt.Errorf("read %s: %w", robotsURL, readErr))
	}
	if closeErr != nil {
		r.logger.WithError(closeErr).WithField("url", robotsURL).Debug("close robots.txt body")
	}

	status := resp.StatusCode
	r.logger.WithFields(logrus.Fields{"url": robotsURL, "status": status}).Debug("robots.txt fetched")

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		decision.Rule = fmt.Sprintf("robots.txt status %d", status)
		return decision, nil
	case status >= 400 && status < 500:
		decision.Allowed = true
		return decision, nil
	case status < 200 || status >= 300:
		return decision, result.NewError(result.KindComplianceFetchFailed, rawURL,
			fmt.Errorf("fetch %s: unexpected status %d", robotsURL, status))
	}

	rules := parseRobots(body)
	decision.Allowed, decision.Rule = rules.allows(targetPath(parsedURL))
	decision.CrawlDelay = crawlDelay(body)
	return decision, nil
}

func errOrMissingHost(err error) error {
	if err != nil {
		return err
	}
	return errors.New("missing host")
}

// parseRobots collects the Allow and Disallow paths of every group whose
// User-agent lines include "*". Consecutive User-agent lines share a group.
func parseRobots(body []byte) robotsRules {
	var rules robotsRules
	inWildcard := false
	agentRun := false // previous directive was a User-agent line

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if !agentRun {
				inWildcard = false
			}
			if value == "*" {
				inWildcard = true
			}
			agentRun = true
		case "allow":
			agentRun = false
			if inWildcard && value != "" {
				rules.allow = append(rules.allow, canonicalPath(value))
			}
		case "disallow":
			agentRun = false
			if inWildcard && value != "" {
				rules.disallow = append(rules.disallow, canonicalPath(value))
			}
		default:
			agentRun = false
		}
	}
	return rules
}

// allows applies longest-prefix matching. A tie between Allow and Disallow
// goes to Allow.
func (r robotsRules) allows(path string) (bool, string) {
	path = canonicalPath(path)
	allowLen, allowRule := longestPrefix(r.allow, path)
	disallowLen, disallowRule := longestPrefix(r.disallow, path)

	if disallowLen < 0 {
		if allowLen < 0 {
			return true, ""
		}
		return true, "Allow: " + allowRule
	}
	if allowLen >= disallowLen {
		return true, "Allow: " + allowRule
	}
	return false, "Disallow: " + disallowRule
}

// longestPrefix returns the length of the longest rule that prefixes path,
// or -1 when none does.
func longestPrefix(rules []string, path string) (int, string) {
	best, bestRule := -1, ""
	for _, rule := range rules {
		if strings.HasPrefix(path, rule) && len(rule) > best {
			best, bestRule = len(rule), rule
		}
	}
	return best, bestRule
}

// targetPath is the path plus query that robots rules are matched against.
func targetPath(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

// canonicalPath gives rules and targets one percent-encoding, so "/café",
// "/caf%C3%A9" and "/%7Ejoe" vs "/~joe" compare equal. The query is kept
// as written.
func canonicalPath(p string) string {
	path, query, hasQuery := strings.Cut(p, "?")
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = (&url.URL{Path: unescaped}).EscapedPath()
	}
	if hasQuery {
		path += "?" + query
	}
	return path
}

// crawlDelay reads the Crawl-delay of the "*" group.
func crawlDelay(body []byte) time.Duration {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return 0
	}
	group := data.FindGroup("*")
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}
