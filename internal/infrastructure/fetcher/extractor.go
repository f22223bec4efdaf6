package fetcher

import (
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"ArticleRewriter/internal/textclean"
)

// DefaultContentSelectors are tried in order when looking for the article body.
var DefaultContentSelectors = []string{
	"article",
	".post-content",
	".entry-content",
	".article-content",
	".content-body",
	".blog-content",
	"main .content",
	`[itemprop="articleBody"]`,
}

// DefaultRemoveSelectors cover chrome that never belongs to an article.
var DefaultRemoveSelectors = []string{
	"script", "style", "nav", "header", "footer", "aside",
	".sidebar", ".comments", ".advertisement", ".social-share",
	".related-posts", ".author-bio", "form",
}

// DefaultMinContentLength is the gate a selector candidate has to pass.
const DefaultMinContentLength = 200

// Extractor picks the title and main text out of a parsed page.
type Extractor struct {
	Selectors []string
	MinLength int
}

// NewExtractor returns an extractor with defaults for empty settings.
func NewExtractor(selectors []string, minLength int) Extractor {
	if len(selectors) == 0 {
		selectors = DefaultContentSelectors
	}
	if minLength <= 0 {
		minLength = DefaultMinContentLength
	}
	return Extractor{Selectors: selectors, MinLength: minLength}
}

// Title prefers the first h1, then <title>, then og:title.
func (e Extractor) Title(doc *goquery.Document) string {
	if t := textclean.NormalizeWhitespace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	if t := textclean.NormalizeWhitespace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		return textclean.NormalizeWhitespace(t)
	}
	return ""
}

// Content returns the first candidate longer than MinLength, else the body text.
func (e Extractor) Content(doc *goquery.Document) string {
	for _, sel := range e.Selectors {
		text := textclean.NormalizeWhitespace(doc.Find(sel).First().Text())
		if utf8.RuneCountInString(text) > e.MinLength {
			return text
		}
	}
	return textclean.NormalizeWhitespace(doc.Find("body").Text())
}

// Strip removes the given selectors and HTML comments from doc.
func Strip(doc *goquery.Document, selectors []string) {
	for _, sel := range selectors {
		doc.Find(sel).Remove()
	}
	doc.Find("*").Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#comment" {
			s.Remove()
		}
	})
}
