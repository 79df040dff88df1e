package crawler

import (
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/lukemcguire/pageprobe/result"
)

const (
	maxTitleLength           = 60
	maxMetaDescriptionLength = 300
	maxFriendlyURLLength     = 75
	topKeywordCount          = 5
)

var (
	wordPattern        = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	friendlyURLPattern = regexp.MustCompile(`^[a-z0-9\.-]+[a-z0-9/-]*$`)
)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an the and or in of by for with on at to from up down out off over
		under again further then once here there when where why how all any both each few more most
		other some such no nor not only own same so than too very your that`) {
		stopwords[w] = struct{}{}
	}
}

// socialPlatforms are matched against hrefs in order; each href counts for
// the first platform it mentions.
var socialPlatforms = []struct {
	domain string
	set    func(*result.SocialPresence)
}{
	{"facebook.com", func(s *result.SocialPresence) { s.Facebook = true }},
	{"twitter.com", func(s *result.SocialPresence) { s.Twitter = true }},
	{"instagram.com", func(s *result.SocialPresence) { s.Instagram = true }},
	{"linkedin.com", func(s *result.SocialPresence) { s.LinkedIn = true }},
	{"youtube.com", func(s *result.SocialPresence) { s.YouTube = true }},
}

// AnalyzeSEO audits doc, fetched from pageURL. Broken-link fields are left
// for the link verifier.
func AnalyzeSEO(doc *goquery.Document, pageURL string) *result.SeoReport {
	title := doc.Find("title").First().Text()
	description, _ := doc.Find("meta[name='description']").First().Attr("content")

	report := &result.SeoReport{
		TitleLength:           utf8.RuneCountInString(title),
		MetaDescriptionLength: utf8.RuneCountInString(description),
		ImagesWithoutAlt:      imagesWithoutAlt(doc),
		SocialMedia:           socialPresence(doc),
		Language:              pageLanguage(doc),
		BrokenLinks:           []result.BrokenLink{},
	}
	report.TitleStatus = lengthStatus(report.TitleLength, maxTitleLength)
	report.MetaDescriptionStatus = lengthStatus(report.MetaDescriptionLength, maxMetaDescriptionLength)

	sequence := headingSequence(doc)
	report.Headings = headingCounts(sequence)
	report.HeadingStructure, report.HeadingJumpAt = headingStructure(report.Headings, sequence)

	headingText := make([]string, 0, len(sequence))
	doc.Find(headingSelector).Each(func(_ int, s *goquery.Selection) {
		headingText = append(headingText, s.Text())
	})
	report.TopKeywords = TopKeywords(title+" "+description+" "+strings.Join(headingText, " "), topKeywordCount)

	report.MobileResponsive = isMobileResponsive(doc)
	report.MobileMessage = result.NotMobileResponsive
	if report.MobileResponsive {
		report.MobileMessage = result.MobileResponsive
	}

	report.URLFriendly, report.URLFriendlyReason = URLFriendliness(pageURL)
	return report
}

func lengthStatus(n, limit int) result.LengthStatus {
	switch {
	case n == 0:
		return result.LengthMissingOrEmpty
	case n > limit:
		return result.LengthTooLong
	default:
		return result.LengthOK
	}
}

// headingSequence lists heading levels (1-6) in document order.
func headingSequence(doc *goquery.Document) []int {
	var levels []int
	doc.Find(headingSelector).Each(func(_ int, s *goquery.Selection) {
		level, err := strconv.Atoi(strings.TrimPrefix(goquery.NodeName(s), "h"))
		if err == nil {
			levels = append(levels, level)
		}
	})
	return levels
}

func headingCounts(levels []int) map[string]int {
	counts := make(map[string]int)
	for _, level := range levels {
		counts["h"+strconv.Itoa(level)]++
	}
	return counts
}

// headingStructure requires exactly one h1 and no level skipped on the way
// down. A skip reports the tag where it happened.
func headingStructure(counts map[string]int, levels []int) (result.HeadingStatus, string) {
	if counts["h1"] != 1 {
		return result.HeadingImproperH1Usage, ""
	}
	prev := 0
	for _, level := range levels {
		if level > prev+1 {
			return result.HeadingLevelJump, "h" + strconv.Itoa(level)
		}
		prev = level
	}
	return result.HeadingOK, ""
}

// imagesWithoutAlt lists the src of every <img> with no alt attribute.
// An empty alt="" counts as present.
func imagesWithoutAlt(doc *goquery.Document) []string {
	missing := []string{}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("alt"); ok {
			return
		}
		src, _ := s.Attr("src")
		missing = append(missing, src)
	})
	return missing
}

// TopKeywords counts stopword-filtered words of text and returns the n most
// frequent. Ties keep first-occurrence order.
func TopKeywords(text string, n int) []result.Keyword {
	counts := make(map[string]int)
	var order []string
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopwords[word]; stop {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	keywords := make([]result.Keyword, 0, len(order))
	for _, word := range order {
		keywords = append(keywords, result.Keyword{Word: word, Count: counts[word]})
	}
	slices.SortStableFunc(keywords, func(a, b result.Keyword) int {
		return b.Count - a.Count
	})
	if len(keywords) > n {
		keywords = keywords[:n]
	}
	return keywords
}

func isMobileResponsive(doc *goquery.Document) bool {
	content, _ := doc.Find("meta[name='viewport']").First().Attr("content")
	return strings.Contains(content, "width=device-width")
}

func socialPresence(doc *goquery.Document) result.SocialPresence {
	var presence result.SocialPresence
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		for _, p := range socialPlatforms {
			if strings.Contains(href, p.domain) {
				p.set(&presence)
				break
			}
		}
	})
	return presence
}

func pageLanguage(doc *goquery.Document) string {
	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		return lang
	}
	return result.LanguageNotFound
}

// URLFriendliness grades pageURL against common SEO conventions. The
// character check runs on the decoded URL without its scheme.
func URLFriendliness(pageURL string) (bool, string) {
	decoded, err := url.PathUnescape(pageURL)
	if err != nil {
		decoded = pageURL
	}

	if utf8.RuneCountInString(decoded) > maxFriendlyURLLength {
		return false, "URL is too long (>75 characters)"
	}
	if strings.Contains(decoded, "_") {
		return false, "URL contains underscores instead of hyphens"
	}
	if strings.ContainsAny(decoded, "?&") {
		return false, "URL contains excessive parameters"
	}

	bare := decoded
	if i := strings.Index(bare, "://"); i >= 0 {
		bare = bare[i+3:]
	}
	if !friendlyURLPattern.MatchString(bare) {
		return false, "URL contains invalid characters"
	}
	return true, "SEO-friendly"
}
