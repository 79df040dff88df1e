package result

import "strconv"

// RecordKind identifies which extraction produced a record.
type RecordKind string

const (
	KindPage    RecordKind = "page"
	KindContent RecordKind = "content"
	KindSeo     RecordKind = "seo"
	KindRoutes  RecordKind = "routes"
)

// Record is implemented by every value the pipeline hands to an output sink.
type Record interface {
	RecordKind() RecordKind
	// Fields returns the record's values in declaration order.
	Fields() []Field
}

// Field is one labeled row of a record, shared by the text writer and the
// table renderers.
type Field struct {
	Key    string   // snake_case key, matches the JSON name
	Label  string   // human label for tables
	Detail string   // middle column for three-column layouts
	Value  string   // scalar value (unused when List is true)
	Values []string // list value
	List   bool
}

// PageRecord is the result of a full crawl.
type PageRecord struct {
	Favicon         *string  `json:"favicon"`
	MetaDescription *string  `json:"meta_description"`
	Title           *string  `json:"title"`
	OpenGraphTags   []string `json:"open_graph_tags"`
	TwitterCardTags []string `json:"twitter_card_tags"`
	CanonicalURL    *string  `json:"canonical_url"`
	InternalLinks   []string `json:"internal_links"`
	ExternalLinks   []string `json:"external_links"`
	ImageURLs       []string `json:"image_urls"`
	SitemapURLs     []string `json:"sitemap_urls"`
}

// NoSitemap is rendered in place of an empty sitemap list.
const NoSitemap = "No sitemap found"

func (r *PageRecord) RecordKind() RecordKind { return KindPage }

func (r *PageRecord) Fields() []Field {
	sitemaps := listField("sitemap_urls", "Sitemap URLs", r.SitemapURLs)
	if len(r.SitemapURLs) == 0 {
		sitemaps = scalarField("sitemap_urls", "Sitemap URLs", NoSitemap)
	}
	return []Field{
		optionalField("favicon", "Favicon", r.Favicon),
		optionalField("meta_description", "Meta Description", r.MetaDescription),
		optionalField("title", "Title", r.Title),
		listField("open_graph_tags", "Open Graph Tags", r.OpenGraphTags),
		listField("twitter_card_tags", "Twitter Card Tags", r.TwitterCardTags),
		optionalField("canonical_url", "Canonical URL", r.CanonicalURL),
		listField("internal_links", "Internal Links", r.InternalLinks),
		listField("external_links", "External Links", r.ExternalLinks),
		listField("image_urls", "Image URLs", r.ImageURLs),
		sitemaps,
	}
}

// ContentRecord is the result of a content scrape.
type ContentRecord struct {
	Title           *string  `json:"title"`
	MetaDescription *string  `json:"meta_description"`
	Paragraphs      []string `json:"paragraphs"`
	Headings        []string `json:"headings"`
	Lists           []string `json:"lists"`
}

func (r *ContentRecord) RecordKind() RecordKind { return KindContent }

func (r *ContentRecord) Fields() []Field {
	return []Field{
		optionalField("title", "Title", r.Title),
		optionalField("meta_description", "Meta Description", r.MetaDescription),
		listField("paragraphs", "Paragraphs", r.Paragraphs),
		listField("headings", "Headings", r.Headings),
		listField("lists", "Lists", r.Lists),
	}
}

// RouteStatus is the HEAD check outcome for one sitemap route.
type RouteStatus struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error,omitempty"`
}

// RouteReport lists every route of a sitemap with its status.
type RouteReport struct {
	SitemapURL string        `json:"sitemap_url"`
	Routes     []RouteStatus `json:"routes"`
}

func (r *RouteReport) RecordKind() RecordKind { return KindRoutes }

func (r *RouteReport) Fields() []Field {
	routes := make([]string, 0, len(r.Routes))
	for _, route := range r.Routes {
		status := statusCodeStr(route.StatusCode)
		if route.Error != "" {
			status = route.Error
		}
		routes = append(routes, route.URL+" ["+status+"]")
	}
	return []Field{
		scalarField("sitemap_url", "Sitemap", r.SitemapURL),
		listField("routes", "Routes", routes),
	}
}

// Optional returns a pointer to s when ok, nil otherwise.
func Optional(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}

// absentValue is what displays and text files show for a missing optional field.
const absentValue = "None"

func optionalField(key, label string, v *string) Field {
	if v == nil {
		return scalarField(key, label, absentValue)
	}
	return scalarField(key, label, *v)
}

func scalarField(key, label, value string) Field {
	return Field{Key: key, Label: label, Value: value}
}

func listField(key, label string, values []string) Field {
	return Field{Key: key, Label: label, Values: values, List: true}
}

func countField(key, label string, n int, status string) Field {
	return Field{Key: key, Label: label, Detail: strconv.Itoa(n), Value: status}
}

func detailField(key, label, value string) Field {
	return Field{Key: key, Label: label, Detail: "N/A", Value: value}
}
