// Package textclean holds the pure text helpers shared by the scrapers,
// the rewrite prompt builder and the article store.
package textclean

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// MaxSlugLength bounds generated slugs.
const MaxSlugLength = 100

// WordsPerMinute is the reading speed used for reading time estimates.
const WordsPerMinute = 200

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	blankLines    = regexp.MustCompile(`\n\s*\n`)
	nonSlugRun    = regexp.MustCompile(`[^a-z0-9]+`)
	sentenceExpr  = regexp.MustCompile(`[^.!?]+[.!?]+`)
	scriptBlock   = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	styleBlock    = regexp.MustCompile(`(?is)<style\b.*?</style>`)
	anyTag        = regexp.MustCompile(`<[^>]+>`)

	boilerplate = regexp.MustCompile(`(?i)share this article|follow us on|subscribe to our newsletter|read more articles|related posts|comments \(\d+\)|leave a comment|advertisement`)
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// NormalizeWhitespace collapses whitespace runs to single spaces and trims the ends.
func NormalizeWhitespace(text string) string {
	if text == "" {
		return ""
	}
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// StripHTML drops script/style blocks and tags and decodes common entities.
func StripHTML(html string) string {
	if html == "" {
		return ""
	}
	html = scriptBlock.ReplaceAllString(html, "")
	html = styleBlock.ReplaceAllString(html, "")
	html = anyTag.ReplaceAllString(html, " ")
	return entityReplacer.Replace(html)
}

// CleanArticleContent removes share/subscribe boilerplate and normalizes whitespace.
func CleanArticleContent(content string) string {
	if content == "" {
		return ""
	}
	return NormalizeWhitespace(boilerplate.ReplaceAllString(content, ""))
}

// GenerateSlug derives the URL-safe slug of a title.
func GenerateSlug(title string) string {
	if title == "" {
		return ""
	}
	slug := nonSlugRun.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	return slug
}

// ExtractExcerpt returns the first n sentences of text joined by a space.
func ExtractExcerpt(text string, n int) string {
	if text == "" || n <= 0 {
		return ""
	}
	sentences := sentenceExpr.FindAllString(text, n)
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	return strings.TrimSpace(strings.Join(sentences, " "))
}

// TruncateText cuts text to maxLen runes on a word boundary and appends "...".
func TruncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen < 0 {
		maxLen = 0
	}
	cut := runes[:maxLen]
	for i := len(cut) - 1; i >= 0; i-- {
		if unicode.IsSpace(cut[i]) {
			j := i
			for j > 0 && unicode.IsSpace(cut[j-1]) {
				j--
			}
			cut = cut[:j]
			break
		}
	}
	return string(cut) + "..."
}

// Truncate hard-cuts text to at most n runes.
func Truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

// CountWords counts whitespace separated tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ReadingTime converts a word count into whole minutes.
func ReadingTime(words int) int {
	if words <= 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / WordsPerMinute))
}
