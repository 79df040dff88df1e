package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lukemcguire/pageprobe/crawler"
	"github.com/lukemcguire/pageprobe/result"
)

// newTestSite serves a small site:
//
//	/robots.txt   -> robots (may be empty)
//	/             -> page with title, description and no links
//	/private/...  -> content that must never be fetched when disallowed
//	/busy         -> 429 with Retry-After: 5
//	/gone         -> 404
//
// Every request except robots.txt counts as a content fetch.
func newTestSite(t *testing.T, robots string, contentFetches *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		if robots == "" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, robots)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		contentFetches.Add(1)
		switch r.URL.Path {
		case "/", "/private/secret":
			fmt.Fprint(w, `<html><head><title>Example</title>
				<meta name="description" content="desc"></head>
				<body><p>hello</p></body></html>`)
		case "/busy":
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			http.NotFound(w, r)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// recordSleeps swaps the pipeline's pacer sleep for one that records delays.
func recordSleeps(p *crawler.Pipeline) *[]time.Duration {
	var mu sync.Mutex
	delays := &[]time.Duration{}
	p.Pacer().WithSleep(func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*delays = append(*delays, d)
		mu.Unlock()
		return ctx.Err()
	})
	return delays
}

func TestPipelineRobotsDenyMakesNoContentRequest(t *testing.T) {
	var fetches atomic.Int32
	server := newTestSite(t, "User-agent: *\nDisallow: /private\n", &fetches)

	p := crawler.New(crawler.Config{UserAgent: "test-agent"}, server.Client(), nil)
	recordSleeps(p)

	_, err := p.Run(context.Background(), crawler.Request{URL: server.URL + "/private/secret", Mode: crawler.ModeCrawl})

	if got := result.KindOf(err); got != result.KindComplianceDenied {
		t.Fatalf("Run() error kind = %q, want %q (err %v)", got, result.KindComplianceDenied, err)
	}
	if fetches.Load() != 0 {
		t.Errorf("content fetches = %d, want 0", fetches.Load())
	}
}

func TestPipelineCrawlEndToEnd(t *testing.T) {
	var fetches atomic.Int32
	server := newTestSite(t, "", &fetches)

	progress := make(chan crawler.Event, 32)
	p := crawler.New(crawler.Config{UserAgent: "test-agent"}, server.Client(), progress)
	delays := recordSleeps(p)

	out, err := p.Run(context.Background(), crawler.Request{URL: server.URL + "/", Mode: crawler.ModeCrawl})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	page, ok := out.Record.(*result.PageRecord)
	if !ok {
		t.Fatalf("Record = %T, want *result.PageRecord", out.Record)
	}
	if page.Title == nil || *page.Title != "Example" {
		t.Errorf("Title = %v, want Example", page.Title)
	}
	if page.MetaDescription == nil || *page.MetaDescription != "desc" {
		t.Errorf("MetaDescription = %v, want desc", page.MetaDescription)
	}
	if len(page.InternalLinks) != 0 || len(page.ExternalLinks) != 0 || len(page.ImageURLs) != 0 {
		t.Errorf("expected empty link and image lists, got %+v", page)
	}
	if page.SitemapURLs == nil || len(page.SitemapURLs) != 0 {
		t.Errorf("SitemapURLs = %v, want empty", page.SitemapURLs)
	}
	if out.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", out.StatusCode)
	}
	if len(*delays) != 1 || (*delays)[0] != time.Second {
		t.Errorf("pacing delays = %v, want [1s]", *delays)
	}

	close(progress)
	var stages []crawler.Stage
	for ev := range progress {
		stages = append(stages, ev.Stage)
	}
	if len(stages) == 0 || stages[0] != crawler.StageCompliance || stages[len(stages)-1] != crawler.StageDone {
		t.Errorf("stages = %v, want compliance first and done last", stages)
	}
}

func TestPipelineScrape(t *testing.T) {
	var fetches atomic.Int32
	server := newTestSite(t, "", &fetches)

	p := crawler.New(crawler.Config{}, server.Client(), nil)
	recordSleeps(p)

	out, err := p.Run(context.Background(), crawler.Request{URL: server.URL, Mode: crawler.ModeScrape})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	content, ok := out.Record.(*result.ContentRecord)
	if !ok {
		t.Fatalf("Record = %T, want *result.ContentRecord", out.Record)
	}
	if len(content.Paragraphs) != 1 || content.Paragraphs[0] != "hello" {
		t.Errorf("Paragraphs = %q, want [hello]", content.Paragraphs)
	}
}

func TestPipelineTooManyRequestsPacesThenFails(t *testing.T) {
	var fetches atomic.Int32
	server := newTestSite(t, "", &fetches)

	p := crawler.New(crawler.Config{}, server.Client(), nil)
	delays := recordSleeps(p)

	_, err := p.Run(context.Background(), crawler.Request{URL: server.URL + "/busy", Mode: crawler.ModeCrawl})

	var rerr *result.Error
	if !errors.As(err, &rerr) || rerr.Kind != result.KindHTTPStatus || rerr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("Run() error = %v, want HTTP 429", err)
	}
	if len(*delays) != 1 || (*delays)[0] != 5*time.Second {
		t.Errorf("pacing delays = %v, want [5s]", *delays)
	}
}

func TestPipelineNotFound(t *testing.T) {
	var fetches atomic.Int32
	server := newTestSite(t, "", &fetches)

	p := crawler.New(crawler.Config{}, server.Client(), nil)
	recordSleeps(p)

	_, err := p.Run(context.Background(), crawler.Request{URL: server.URL + "/gone", Mode: crawler.ModeSEO})
	var rerr *result.Error
	if !errors.As(err, &rerr) || rerr.StatusCode != http.StatusNotFound {
		t.Errorf("Run() error = %v, want HTTP 404", err)
	}
}

func TestPipelineCancelDuringPauseAborts(t *testing.T) {
	var fetches atomic.Int32
	server := newTestSite(t, "", &fetches)

	p := crawler.New(crawler.Config{}, server.Client(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Pacer().WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	_, err := p.Run(ctx, crawler.Request{URL: server.URL + "/", Mode: crawler.ModeCrawl})
	if !result.IsAborted(err) {
		t.Errorf("Run() error = %v, want aborted", err)
	}
	if fetches.Load() != 1 {
		t.Errorf("content fetches = %d, want 1", fetches.Load())
	}
}

func TestPipelineRawHTML(t *testing.T) {
	var fetches atomic.Int32
	server := newTestSite(t, "", &fetches)

	p := crawler.New(crawler.Config{}, server.Client(), nil)
	recordSleeps(p)

	out, err := p.Run(context.Background(), crawler.Request{URL: server.URL + "/", Mode: crawler.ModeRawHTML})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Record != nil {
		t.Errorf("Record = %v, want nil for raw mode", out.Record)
	}
	if len(out.Raw) == 0 {
		t.Error("Raw is empty")
	}
}

func TestPipelineInvalidURL(t *testing.T) {
	p := crawler.New(crawler.Config{}, nil, nil)
	_, err := p.Run(context.Background(), crawler.Request{URL: "ftp://example.com/file", Mode: crawler.ModeCrawl})
	if got := result.KindOf(err); got != result.KindInvalidInput {
		t.Errorf("Run() error kind = %q, want %q", got, result.KindInvalidInput)
	}
}

func TestPipelineRoutes(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<urlset><url><loc>%[1]s/</loc></url><url><loc>%[1]s/gone</loc></url></urlset>`, server.URL)
		case "/":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := crawler.New(crawler.Config{VerifyRate: 20}, server.Client(), nil)
	report, err := p.Routes(context.Background(), server.URL+"/sitemap.xml")
	if err != nil {
		t.Fatalf("Routes() error = %v", err)
	}
	if len(report.Routes) != 2 {
		t.Fatalf("Routes = %+v, want 2 entries", report.Routes)
	}
	if report.Routes[0].StatusCode != http.StatusOK || report.Routes[1].StatusCode != http.StatusNotFound {
		t.Errorf("Routes = %+v, want 200 then 404", report.Routes)
	}
}

func TestPipelineRoutesMissingSitemap(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	p := crawler.New(crawler.Config{}, server.Client(), nil)
	_, err := p.Routes(context.Background(), server.URL+"/sitemap.xml")

	var rerr *result.Error
	if !errors.As(err, &rerr) || rerr.StatusCode != http.StatusNotFound {
		t.Errorf("Routes() error = %v, want HTTP 404", err)
	}
}
