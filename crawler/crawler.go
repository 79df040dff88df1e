// Package crawler fetches a single page under robots.txt compliance and
// advisory pacing, and extracts a crawl, scrape or SEO record from it.
package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/lukemcguire/pageprobe/logging"
	"github.com/lukemcguire/pageprobe/result"
	"github.com/lukemcguire/pageprobe/urlutil"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultVerifyRate     = 5
	verifyTargetRTT       = 500 * time.Millisecond
)

// Config holds pipeline configuration.
type Config struct {
	UserAgent      string        // fixed User-Agent; empty picks a random browser one per run
	Mobile         bool          // draw random User-Agents from the mobile pool
	RequestTimeout time.Duration // per-request timeout (default 15s)
	CourtesyDelay  time.Duration // pause after each fetch (default 1s)
	VerifyLinks    bool          // check internal links during SEO audits
	VerifyRate     int           // initial link checks per second (default 5)
	Logger         *logrus.Logger
}

// Request is one unit of pipeline work.
type Request struct {
	URL  string
	Mode Mode
	// Client overrides the pipeline's client for this run, e.g. with an
	// authenticated session.
	Client *http.Client
}

// Outcome is what a successful run produces. Raw is set for ModeRawHTML,
// Record for every other mode.
type Outcome struct {
	URL        string
	FinalURL   string
	StatusCode int
	Record     result.Record
	Raw        []byte
}

// Pipeline runs compliance check, fetch, pacing and extraction for one URL
// at a time.
type Pipeline struct {
	cfg        Config
	client     *http.Client
	pacer      *Pacer
	limiter    *AdaptiveLimiter
	progressCh chan<- Event
}

// New creates a Pipeline. A nil client gets one bounded by the request
// timeout, which also bounds the robots.txt and sitemap fetches; progressCh
// is optional.
func New(cfg Config, client *http.Client, progressCh chan<- Event) *Pipeline {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.VerifyRate <= 0 {
		cfg.VerifyRate = defaultVerifyRate
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &Pipeline{
		cfg:        cfg,
		client:     client,
		pacer:      NewPacer(cfg.CourtesyDelay, cfg.Logger),
		limiter:    NewAdaptiveLimiter(cfg.VerifyRate, verifyTargetRTT),
		progressCh: progressCh,
	}
}

// Pacer exposes the pacer so callers can swap its sleep function.
func (p *Pipeline) Pacer() *Pacer { return p.pacer }

// userAgent returns the configured User-Agent or a random browser one.
func (p *Pipeline) userAgent() string {
	if p.cfg.UserAgent != "" {
		return p.cfg.UserAgent
	}
	return RandomUserAgent(p.cfg.Mobile)
}

// Run executes one request. The robots.txt check always precedes the page
// fetch; a denial returns before any content request is made.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	target, err := urlutil.Normalize(req.URL)
	if err != nil {
		return nil, result.NewError(result.KindInvalidInput, req.URL, err)
	}

	client := p.client
	if req.Client != nil {
		client = req.Client
	}
	ua := p.userAgent()
	log := p.cfg.Logger.WithFields(logrus.Fields{"url": target, "mode": req.Mode.String()})

	emit(p.progressCh, Event{URL: target, Stage: StageCompliance, Message: "Checking robots.txt"})
	decision, err := NewRobotsChecker(client, p.cfg.Logger).Check(ctx, target, ua)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		log.WithField("rule", decision.Rule).Info("crawl forbidden by robots.txt")
		return nil, result.NewError(result.KindComplianceDenied, target, fmt.Errorf("%s (%s)", decision.Rule, decision.RobotsURL))
	}

	emit(p.progressCh, Event{URL: target, Stage: StageFetch, Message: "Fetching page"})
	page, err := fetchPage(ctx, client, target, ua, p.cfg)
	if err != nil {
		return nil, err
	}
	log.WithField("status", page.StatusCode).Debug("page fetched")

	emit(p.progressCh, Event{URL: target, Stage: StagePacing, Message: pacingMessage(page.StatusCode)})
	if err := p.pacer.Pause(ctx, page.StatusCode, page.Header, decision.CrawlDelay); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, result.Aborted(target)
		}
		return nil, result.NewError(result.KindTimeout, target, err)
	}

	if page.StatusCode >= http.StatusBadRequest {
		return nil, result.StatusError(target, page.StatusCode)
	}

	outcome := &Outcome{URL: target, FinalURL: page.FinalURL, StatusCode: page.StatusCode}
	if req.Mode == ModeRawHTML {
		outcome.Raw = page.Body
		emit(p.progressCh, Event{URL: target, Stage: StageDone})
		return outcome, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, result.NewError(result.KindRequest, target, fmt.Errorf("parse html: %w", err))
	}

	emit(p.progressCh, Event{URL: target, Stage: StageExtract, Message: "Extracting " + req.Mode.String() + " data"})
	engine := &Engine{
		Sitemaps: NewSitemapResolver(client, ua, p.cfg.Logger),
		Events:   p.progressCh,
	}
	if p.cfg.VerifyLinks {
		engine.Verifier = NewLinkVerifier(client, p.limiter, ua, p.cfg.RequestTimeout, p.cfg.Logger)
	}
	rec, err := engine.Extract(ctx, req.Mode, doc, target)
	if err != nil {
		return nil, err
	}
	outcome.Record = rec

	emit(p.progressCh, Event{URL: target, Stage: StageDone})
	return outcome, nil
}

// Routes reads the sitemap at sitemapURL and checks every route in it.
// robots.txt is consulted for the sitemap URL first.
func (p *Pipeline) Routes(ctx context.Context, sitemapURL string) (*result.RouteReport, error) {
	target, err := urlutil.Normalize(sitemapURL)
	if err != nil {
		return nil, result.NewError(result.KindInvalidInput, sitemapURL, err)
	}
	ua := p.userAgent()

	emit(p.progressCh, Event{URL: target, Stage: StageCompliance, Message: "Checking robots.txt"})
	decision, err := NewRobotsChecker(p.client, p.cfg.Logger).Check(ctx, target, ua)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, result.NewError(result.KindComplianceDenied, target, fmt.Errorf("%s (%s)", decision.Rule, decision.RobotsURL))
	}

	emit(p.progressCh, Event{URL: target, Stage: StageSitemap, Message: "Reading sitemap"})
	routes, err := NewSitemapResolver(p.client, ua, p.cfg.Logger).Fetch(ctx, target)
	if err != nil {
		var classified *result.Error
		if errors.As(err, &classified) {
			return nil, classified
		}
		return nil, transportError(ctx, target, err)
	}

	emit(p.progressCh, Event{URL: target, Stage: StageVerify, Message: fmt.Sprintf("Checking %d routes", len(routes))})
	statuses, err := NewLinkVerifier(p.client, p.limiter, ua, p.cfg.RequestTimeout, p.cfg.Logger).CheckRoutes(ctx, routes)
	if err != nil {
		return nil, err
	}

	emit(p.progressCh, Event{URL: target, Stage: StageDone})
	return &result.RouteReport{SitemapURL: target, Routes: statuses}, nil
}

func pacingMessage(status int) string {
	if status == http.StatusTooManyRequests {
		return "Server is overwhelmed, waiting before continuing"
	}
	return "Pausing between requests"
}
