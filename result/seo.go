package result

import (
	"fmt"
	"strings"
)

// LengthStatus grades the length of the title or meta description.
type LengthStatus string

const (
	LengthOK             LengthStatus = "OK"
	LengthTooLong        LengthStatus = "TooLong"
	LengthMissingOrEmpty LengthStatus = "MissingOrEmpty"
)

// HeadingStatus grades the heading outline of a page.
type HeadingStatus string

const (
	HeadingOK              HeadingStatus = "OK"
	HeadingImproperH1Usage HeadingStatus = "ImproperH1Usage"
	HeadingLevelJump       HeadingStatus = "LevelJumpDetected"
)

// Mobile responsiveness messages.
const (
	MobileResponsive    = "Mobile Responsive"
	NotMobileResponsive = "Not Mobile Responsive"
)

// LanguageNotFound is reported when <html> carries no lang attribute.
const LanguageNotFound = "Language attribute not found"

// Keyword is one entry of the top-keyword list.
type Keyword struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// SocialPresence records which platforms are linked from the page.
type SocialPresence struct {
	Facebook  bool `json:"facebook"`
	Twitter   bool `json:"twitter"`
	Instagram bool `json:"instagram"`
	LinkedIn  bool `json:"linkedin"`
	YouTube   bool `json:"youtube"`
}

// Platforms returns the names of the linked platforms in fixed order.
func (s SocialPresence) Platforms() []string {
	var names []string
	for _, p := range []struct {
		name string
		ok   bool
	}{
		{"Facebook", s.Facebook},
		{"Twitter", s.Twitter},
		{"Instagram", s.Instagram},
		{"LinkedIn", s.LinkedIn},
		{"YouTube", s.YouTube},
	} {
		if p.ok {
			names = append(names, p.name)
		}
	}
	return names
}

// BrokenLink is an internal link that failed verification.
type BrokenLink struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Reason     string `json:"reason"`
}

// SeoReport is the result of an SEO audit.
type SeoReport struct {
	TitleLength           int            `json:"title_length"`
	TitleStatus           LengthStatus   `json:"title_status"`
	MetaDescriptionLength int            `json:"meta_description_length"`
	MetaDescriptionStatus LengthStatus   `json:"meta_description_status"`
	Headings              map[string]int `json:"headings"`
	HeadingStructure      HeadingStatus  `json:"heading_structure"`
	HeadingJumpAt         string         `json:"heading_jump_at,omitempty"`
	ImagesWithoutAlt      []string       `json:"images_without_alt"`
	TopKeywords           []Keyword      `json:"top_keywords"`
	MobileResponsive      bool           `json:"mobile_responsive"`
	MobileMessage         string         `json:"mobile_message"`
	SocialMedia           SocialPresence `json:"social_media"`
	Language              string         `json:"language"`
	URLFriendly           bool           `json:"url_friendly"`
	URLFriendlyReason     string         `json:"url_friendly_reason"`
	LinksChecked          int            `json:"links_checked"`
	BrokenLinks           []BrokenLink   `json:"broken_links"`
}

var headingTags = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

func (r *SeoReport) RecordKind() RecordKind { return KindSeo }

func (r *SeoReport) Fields() []Field {
	keywords := make([]string, 0, len(r.TopKeywords))
	for _, kw := range r.TopKeywords {
		keywords = append(keywords, fmt.Sprintf("%s (%d)", kw.Word, kw.Count))
	}

	var headings []string
	for _, tag := range headingTags {
		if n, ok := r.Headings[tag]; ok {
			headings = append(headings, fmt.Sprintf("%s: %d", tag, n))
		}
	}
	headingsValue := strings.Join(headings, ", ")
	if headingsValue == "" {
		headingsValue = "No Headers"
	}
	structure := string(r.HeadingStructure)
	if r.HeadingJumpAt != "" {
		structure = fmt.Sprintf("%s at %s", structure, r.HeadingJumpAt)
	}

	noAlt := strings.Join(r.ImagesWithoutAlt, ", ")
	if noAlt == "" {
		noAlt = "All images have alt text"
	}

	social := strings.Join(r.SocialMedia.Platforms(), ", ")
	if social == "" {
		social = "No Social Media Integration Detected"
	}

	broken := make([]string, 0, len(r.BrokenLinks))
	for _, link := range r.BrokenLinks {
		broken = append(broken, fmt.Sprintf("%s (%s)", link.URL, link.Reason))
	}
	brokenValue := strings.Join(broken, ", ")
	if brokenValue == "" {
		brokenValue = "No broken links found"
	}

	return []Field{
		countField("title", "Title Tag", r.TitleLength, string(r.TitleStatus)),
		countField("meta_description", "Meta Description", r.MetaDescriptionLength, string(r.MetaDescriptionStatus)),
		detailField("top_keywords", "Top Keywords", strings.Join(keywords, ", ")),
		detailField("headings", "Headings", headingsValue),
		detailField("heading_structure", "Heading Structure", structure),
		countField("images_without_alt", "Images without Alt Text", len(r.ImagesWithoutAlt), noAlt),
		detailField("mobile_responsiveness", "Mobile Responsiveness", r.MobileMessage),
		detailField("social_media", "Social Media Integration", social),
		detailField("language", "Website Language", r.Language),
		detailField("url_friendly", "SEO-friendly URL", r.URLFriendlyReason),
		countField("broken_links", "Broken Links", len(r.BrokenLinks), brokenValue),
	}
}
