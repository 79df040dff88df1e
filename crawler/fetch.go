package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/lukemcguire/pageprobe/result"
)

// maxPageBytes caps how much of a page body is read.
const maxPageBytes = 10 << 20

// fetchedPage is a fully read GET response.
type fetchedPage struct {
	URL        string // requested URL
	FinalURL   string // URL after redirects
	StatusCode int
	Header     http.Header
	Body       []byte
}

// fetchPage GETs rawURL and reads the whole body within the per-request
// timeout. Transport failures come back as classified *result.Error values;
// HTTP error statuses do not, so the caller can pace on them first.
func fetchPage(ctx context.Context, client *http.Client, rawURL, userAgent string, cfg Config) (*fetchedPage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, result.NewError(result.KindRequest, rawURL, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(ctx, rawURL, err)
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	closeErr := resp.Body.Close()
	if readErr != nil {
		return nil, transportError(ctx, rawURL, fmt.Errorf("read response body: %w", readErr))
	}
	if closeErr != nil {
		cfg.Logger.WithError(closeErr).WithField("url", rawURL).Debug("close response body")
	}

	return &fetchedPage{
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// transportError classifies err, reporting a cancelled parent context as an
// abort rather than a network fault.
func transportError(ctx context.Context, rawURL string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return result.Aborted(rawURL)
	}
	return result.NewError(result.ClassifyTransport(err), rawURL, err)
}
