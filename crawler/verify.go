package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	bloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/sirupsen/logrus"

	"github.com/lukemcguire/pageprobe/logging"
	"github.com/lukemcguire/pageprobe/result"
)

// LinkVerifier checks that links resolve, one request at a time, paced by
// an AdaptiveLimiter.
type LinkVerifier struct {
	client    *http.Client
	limiter   *AdaptiveLimiter
	userAgent string
	timeout   time.Duration
	logger    *logrus.Logger
}

// NewLinkVerifier creates a verifier. A nil limiter disables pacing.
func NewLinkVerifier(client *http.Client, limiter *AdaptiveLimiter, userAgent string, timeout time.Duration, logger *logrus.Logger) *LinkVerifier {
	if logger == nil {
		logger = logging.Discard()
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &LinkVerifier{
		client:    client,
		limiter:   limiter,
		userAgent: userAgent,
		timeout:   timeout,
		logger:    logger,
	}
}

// Verify checks each distinct link once. A link is broken when it answers
// 404, still redirects after the client has followed redirects, or fails
// at the transport level. The error is non-nil only when ctx is cancelled.
func (v *LinkVerifier) Verify(ctx context.Context, links []string) (checked int, broken []result.BrokenLink, err error) {
	broken = []result.BrokenLink{}
	// A false positive skips a link; at this size the odds are ~1e-6.
	seen := bloom.NewWithEstimates(uint(max(len(links), 64)), 1e-6)

	for _, link := range links {
		if seen.TestOrAddString(link) {
			v.logger.WithField("url", link).Debug("link already seen, skipping check")
			continue
		}
		status, checkErr := v.Check(ctx, link)
		if ctx.Err() != nil {
			return checked, broken, result.Aborted(link)
		}
		checked++

		switch {
		case checkErr != nil:
			broken = append(broken, result.BrokenLink{URL: link, Reason: "Error: " + checkErr.Error()})
		case status == http.StatusNotFound:
			broken = append(broken, result.BrokenLink{URL: link, StatusCode: status, Reason: "Not Found"})
		case status >= 300 && status < 400:
			broken = append(broken, result.BrokenLink{URL: link, StatusCode: status, Reason: "Unexpected Redirect"})
		default:
			continue
		}
		v.logger.WithFields(logrus.Fields{"url": link, "status": status}).Warn("broken link")
	}
	return checked, broken, nil
}

// CheckRoutes reports the status of every route, in order.
func (v *LinkVerifier) CheckRoutes(ctx context.Context, routes []string) ([]result.RouteStatus, error) {
	statuses := make([]result.RouteStatus, 0, len(routes))
	for _, route := range routes {
		status, err := v.Check(ctx, route)
		if ctx.Err() != nil {
			return statuses, result.Aborted(route)
		}
		rs := result.RouteStatus{URL: route, StatusCode: status}
		if err != nil {
			rs.Error = result.FormatKind(result.ClassifyTransport(err))
		}
		statuses = append(statuses, rs)
	}
	return statuses, nil
}

// Check issues a HEAD for link, falling back to GET when the server answers
// 405 Method Not Allowed, and returns the final status code.
func (v *LinkVerifier) Check(ctx context.Context, link string) (int, error) {
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	start := time.Now()
	status, err := v.do(reqCtx, http.MethodHead, link)
	if err == nil && status == http.StatusMethodNotAllowed {
		status, err = v.do(reqCtx, http.MethodGet, link)
	}
	if v.limiter != nil && err == nil {
		v.limiter.ObserveRTT(time.Since(start))
		v.logger.WithFields(logrus.Fields{"url": link, "status": status, "rps": v.limiter.CurrentRate()}).Debug("link checked")
	}
	return status, err
}

func (v *LinkVerifier) do(ctx context.Context, method, link string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, link, nil)
	if err != nil {
		return 0, fmt.Errorf("create %s request: %w", method, err)
	}
	if v.userAgent != "" {
		req.Header.Set("User-Agent", v.userAgent)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return 0, urlErr.Err
		}
		return 0, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if closeErr := resp.Body.Close(); closeErr != nil {
		v.logger.WithError(closeErr).WithField("url", link).Debug("close response body")
	}
	return resp.StatusCode, nil
}
