package crawler

import (
	"slices"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestClassifyLinks(t *testing.T) {
	const base = "https://example.com/blog/post"

	tests := []struct {
		name         string
		html         string
		wantInternal []string
		wantExternal []string
	}{
		{
			name:         "rooted path is joined under the page URL",
			html:         `<a href="/about">About</a>`,
			wantInternal: []string{"https://example.com/blog/post/about"},
		},
		{
			name:         "root link resolves to the page itself",
			html:         `<a href="/">Home</a>`,
			wantInternal: []string{"https://example.com/blog/post/"},
		},
		{
			name:         "colon in first segment stays a path",
			html:         `<a href="/wiki/a:b">Wiki</a>`,
			wantInternal: []string{"https://example.com/blog/post/wiki/a:b"},
		},
		{
			name:         "absolute http link is external as written",
			html:         `<a href="https://other.com/page?ref=1#top">Other</a>`,
			wantExternal: []string{"https://other.com/page"},
		},
		{
			name:         "double slash is internal like any rooted href",
			html:         `<a href="//cdn/lib.js">CDN</a>`,
			wantInternal: []string{"https://example.com/blog/post/cdn/lib.js"},
		},
		{
			name:         "fragment stripped before query",
			html:         `<a href="/search#results?x=1">Search</a>`,
			wantInternal: []string{"https://example.com/blog/post/search"},
		},
		{
			name:         "query stripped",
			html:         `<a href="/search?q=go">Search</a>`,
			wantInternal: []string{"https://example.com/blog/post/search"},
		},
		{
			name: "non-http schemes and bare relatives dropped",
			html: `<a href="mailto:a@example.com">m</a><a href="javascript:void(0)">j</a>
				<a href="tel:123">t</a><a href="relative/page">r</a><a href="">e</a><a href="#top">f</a>`,
		},
		{
			name:         "duplicates kept in document order",
			html:         `<a href="/a">1</a><a href="http://x.org/">2</a><a href="/a">3</a><a href="/b">4</a>`,
			wantInternal: []string{"https://example.com/blog/post/a", "https://example.com/blog/post/a", "https://example.com/blog/post/b"},
			wantExternal: []string{"http://x.org/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			internal, external := ClassifyLinks(mustDoc(t, tt.html), base)
			if tt.wantInternal == nil {
				tt.wantInternal = []string{}
			}
			if tt.wantExternal == nil {
				tt.wantExternal = []string{}
			}
			if !slices.Equal(internal, tt.wantInternal) {
				t.Errorf("internal = %v, want %v", internal, tt.wantInternal)
			}
			if !slices.Equal(external, tt.wantExternal) {
				t.Errorf("external = %v, want %v", external, tt.wantExternal)
			}
		})
	}
}

func TestClassifyLinks_HostBase(t *testing.T) {
	for _, base := range []string{"https://example.com", "https://example.com/"} {
		internal, _ := ClassifyLinks(mustDoc(t, `<a href="/about">About</a>`), base)
		if want := []string{"https://example.com/about"}; !slices.Equal(internal, want) {
			t.Errorf("ClassifyLinks(base %q) internal = %v, want %v", base, internal, want)
		}
	}
}

func TestClassifyLinks_Idempotent(t *testing.T) {
	html := `<a href="/a">a</a><a href="https://x.org/b?c#d">b</a><a href="//y.org/c">c</a>`
	in1, ex1 := ClassifyLinks(mustDoc(t, html), "https://example.com")
	in2, ex2 := ClassifyLinks(mustDoc(t, html), "https://example.com")
	if !slices.Equal(in1, in2) || !slices.Equal(ex1, ex2) {
		t.Errorf("ClassifyLinks() not deterministic: %v/%v vs %v/%v", in1, ex1, in2, ex2)
	}
}

func TestExtractPage(t *testing.T) {
	html := `<html><head>
		<title> Example Site </title>
		<link rel="shortcut icon" href="/favicon.ico">
		<link rel="canonical" href="https://example.com/">
		<meta name="description" content="An example">
		<meta property="og:title" content="Example">
		<meta name="twitter:card" content="summary">
	</head><body>
		<img src="/logo.png"><img alt="no src">
		<a href="/docs">Docs</a><a href="https://github.com/example">GitHub</a>
	</body></html>`

	rec := ExtractPage(mustDoc(t, html), "https://example.com/")

	if rec.Title == nil || *rec.Title != " Example Site " {
		t.Errorf("Title = %v, want untrimmed text", rec.Title)
	}
	if rec.Favicon == nil || *rec.Favicon != "/favicon.ico" {
		t.Errorf("Favicon = %v, want /favicon.ico", rec.Favicon)
	}
	if rec.CanonicalURL == nil || *rec.CanonicalURL != "https://example.com/" {
		t.Errorf("CanonicalURL = %v", rec.CanonicalURL)
	}
	if rec.MetaDescription == nil || *rec.MetaDescription != "An example" {
		t.Errorf("MetaDescription = %v", rec.MetaDescription)
	}
	if want := []string{`<meta property="og:title" content="Example"/>`}; !slices.Equal(rec.OpenGraphTags, want) {
		t.Errorf("OpenGraphTags = %v, want %v", rec.OpenGraphTags, want)
	}
	if want := []string{`<meta name="twitter:card" content="summary"/>`}; !slices.Equal(rec.TwitterCardTags, want) {
		t.Errorf("TwitterCardTags = %v, want %v", rec.TwitterCardTags, want)
	}
	if want := []string{"/logo.png"}; !slices.Equal(rec.ImageURLs, want) {
		t.Errorf("ImageURLs = %v, want %v", rec.ImageURLs, want)
	}
	if want := []string{"https://example.com/docs"}; !slices.Equal(rec.InternalLinks, want) {
		t.Errorf("InternalLinks = %v, want %v", rec.InternalLinks, want)
	}
	if want := []string{"https://github.com/example"}; !slices.Equal(rec.ExternalLinks, want) {
		t.Errorf("ExternalLinks = %v, want %v", rec.ExternalLinks, want)
	}
}

func TestExtractPage_MissingOptionalTags(t *testing.T) {
	rec := ExtractPage(mustDoc(t, `<html><body><p>bare</p></body></html>`), "https://example.com/")
	if rec.Favicon != nil || rec.CanonicalURL != nil || rec.Title != nil || rec.MetaDescription != nil {
		t.Errorf("expected absent optional fields, got %+v", rec)
	}
	if rec.OpenGraphTags == nil || rec.ImageURLs == nil || rec.SitemapURLs == nil {
		t.Error("list fields should be empty, not nil")
	}
}

func TestExtractContent(t *testing.T) {
	html := `<html><head><title>Docs</title></head><body>
		<h1> Intro </h1>
		<p>  First paragraph. </p>
		<h3>Details</h3>
		<ul><li>one</li><li>two</li></ul>
		<p>Second</p>
		<ol><li>step</li></ol>
	</body></html>`

	rec := ExtractContent(mustDoc(t, html))

	if rec.Title == nil || *rec.Title != "Docs" {
		t.Errorf("Title = %v, want Docs", rec.Title)
	}
	if rec.MetaDescription != nil {
		t.Errorf("MetaDescription = %v, want nil", *rec.MetaDescription)
	}
	if want := []string{"First paragraph.", "Second"}; !slices.Equal(rec.Paragraphs, want) {
		t.Errorf("Paragraphs = %q, want %q", rec.Paragraphs, want)
	}
	if want := []string{"Intro", "Details"}; !slices.Equal(rec.Headings, want) {
		t.Errorf("Headings = %q, want %q", rec.Headings, want)
	}
	if want := []string{"onetwo", "step"}; !slices.Equal(rec.Lists, want) {
		t.Errorf("Lists = %q, want %q", rec.Lists, want)
	}
}
