package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lukemcguire/pageprobe/result"
	"github.com/lukemcguire/pageprobe/urlutil"
)

// ClassifyLinks splits the <a href> values of doc into internal and external
// links, in document order. Fragments and then queries are stripped first.
//
//   - Anything starting with "/" is internal. Leading slashes are dropped
//     and the rest is joined under base, which is given a trailing "/".
//   - http and https URLs are external, kept as written.
//
// Anything else (mailto:, javascript:, bare relative paths, empty) is
// dropped. Duplicates are kept.
func ClassifyLinks(doc *goquery.Document, base string) (internal, external []string) {
	internal, external = []string{}, []string{}
	dirBase := strings.TrimSuffix(base, "/") + "/"

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = urlutil.StripFragmentAndQuery(strings.TrimSpace(href))

		switch {
		case strings.HasPrefix(href, "/"):
			// "./" keeps a colon in the first segment from reading as a scheme.
			if abs, err := urlutil.ResolveReference(dirBase, "./"+strings.TrimLeft(href, "/")); err == nil {
				internal = append(internal, abs)
			}
		case urlutil.IsHTTPScheme(href):
			external = append(external, href)
		}
	})
	return internal, external
}

// ExtractPage builds the full-crawl record from doc. Sitemap URLs are left
// empty for the caller to fill.
func ExtractPage(doc *goquery.Document, base string) *result.PageRecord {
	rec := &result.PageRecord{
		Favicon:         firstAttr(doc, "link[rel~='icon']", "href"),
		MetaDescription: firstAttr(doc, "meta[name='description']", "content"),
		Title:           titleText(doc),
		OpenGraphTags:   outerHTML(doc.Find("meta[property^='og:']")),
		TwitterCardTags: outerHTML(doc.Find("meta[name^='twitter:']")),
		CanonicalURL:    firstAttr(doc, "link[rel~='canonical']", "href"),
		ImageURLs:       attrValues(doc.Find("img[src]"), "src"),
		SitemapURLs:     []string{},
	}
	rec.InternalLinks, rec.ExternalLinks = ClassifyLinks(doc, base)
	return rec
}

// ExtractContent builds the scrape record from doc.
func ExtractContent(doc *goquery.Document) *result.ContentRecord {
	return &result.ContentRecord{
		Title:           titleText(doc),
		MetaDescription: firstAttr(doc, "meta[name='description']", "content"),
		Paragraphs:      trimmedTexts(doc.Find("p")),
		Headings:        trimmedTexts(doc.Find(headingSelector)),
		Lists:           trimmedTexts(doc.Find("ul, ol")),
	}
}

const headingSelector = "h1, h2, h3, h4, h5, h6"

// titleText returns the untrimmed text of the first <title>, nil if absent.
func titleText(doc *goquery.Document) *string {
	title := doc.Find("title").First()
	return result.Optional(title.Text(), title.Length() > 0)
}

func firstAttr(doc *goquery.Document, selector, attr string) *string {
	return result.Optional(doc.Find(selector).First().Attr(attr))
}

func attrValues(sel *goquery.Selection, attr string) []string {
	values := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok {
			values = append(values, v)
		}
	})
	return values
}

func outerHTML(sel *goquery.Selection) []string {
	tags := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if tag, err := goquery.OuterHtml(s); err == nil {
			tags = append(tags, tag)
		}
	})
	return tags
}

func trimmedTexts(sel *goquery.Selection) []string {
	texts := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(s.Text()))
	})
	return texts
}
