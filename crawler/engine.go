package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lukemcguire/pageprobe/result"
	"github.com/lukemcguire/pageprobe/urlutil"
)

// Mode selects what a pipeline run extracts.
type Mode int

const (
	ModeCrawl Mode = iota
	ModeScrape
	ModeSEO
	ModeRawHTML
)

func (m Mode) String() string {
	switch m {
	case ModeCrawl:
		return "crawl"
	case ModeScrape:
		return "scrape"
	case ModeSEO:
		return "seo"
	case ModeRawHTML:
		return "get-html"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the command names and their short aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "crawl", "c", "1":
		return ModeCrawl, nil
	case "scrape", "content", "s", "2":
		return ModeScrape, nil
	case "seo", "3":
		return ModeSEO, nil
	case "get-html", "html", "raw":
		return ModeRawHTML, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Engine turns a parsed document into a record. The sitemap resolver and
// link verifier are optional; without them the matching fields stay empty.
type Engine struct {
	Sitemaps *SitemapResolver
	Verifier *LinkVerifier
	Events   chan<- Event
}

// Extract dispatches on mode. ModeRawHTML has no record and is rejected.
func (e *Engine) Extract(ctx context.Context, mode Mode, doc *goquery.Document, pageURL string) (result.Record, error) {
	switch mode {
	case ModeCrawl:
		rec := ExtractPage(doc, pageURL)
		if e.Sitemaps != nil {
			root, err := urlutil.SiteRoot(pageURL)
			if err == nil {
				emit(e.Events, Event{URL: pageURL, Stage: StageSitemap, Message: "Looking for a sitemap"})
				if urls, found := e.Sitemaps.Resolve(ctx, root); found {
					rec.SitemapURLs = urls
				}
			}
		}
		return rec, nil

	case ModeScrape:
		return ExtractContent(doc), nil

	case ModeSEO:
		report := AnalyzeSEO(doc, pageURL)
		if e.Verifier != nil {
			internal, _ := ClassifyLinks(doc, pageURL)
			emit(e.Events, Event{URL: pageURL, Stage: StageVerify, Message: fmt.Sprintf("Checking %d internal links", len(internal))})
			checked, broken, err := e.Verifier.Verify(ctx, internal)
			if err != nil {
				return nil, err
			}
			report.LinksChecked = checked
			report.BrokenLinks = broken
		}
		return report, nil
	}
	return nil, fmt.Errorf("extract: mode %s produces no record", mode)
}
