package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/scanner"
	"ArticleRewriter/internal/textclean"
)

const blogUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// BlogScanner lists and reads articles of a paginated blog described by a Layout.
type BlogScanner struct {
	name        string
	layout      scanner.Layout
	pagePattern *regexp.Regexp
	client      *http.Client
}

var _ scanner.Scanner = (*BlogScanner)(nil)

// NewBlogScanner validates the layout; empty fields take the WordPress defaults.
func NewBlogScanner(name string, layout scanner.Layout, client *http.Client) (*BlogScanner, error) {
	layout = layout.Merge(scanner.DefaultLayout(layout.BaseURL))
	if layout.BaseURL == "" {
		return nil, fmt.Errorf("scanner %s: base url is required", name)
	}
	pattern, err := regexp.Compile(layout.PagePattern)
	if err != nil {
		return nil, fmt.Errorf("scanner %s: page pattern: %w", name, err)
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &BlogScanner{name: name, layout: layout, pagePattern: pattern, client: client}, nil
}

// Name identifies the strategy inside the registry.
func (b *BlogScanner) Name() string {
	return b.name
}

// DiscoverPageCount returns the highest page number linked from the first page.
func (b *BlogScanner) DiscoverPageCount(ctx context.Context) (int, error) {
	doc, err := b.fetchDocument(ctx, b.layout.BaseURL)
	if err != nil {
		return 0, fmt.Errorf("discover pages: %w", err)
	}

	maxPage := 1
	doc.Find(b.layout.PaginationSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		m := b.pagePattern.FindStringSubmatch(href)
		if len(m) < 2 {
			return
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > maxPage {
			maxPage = n
		}
	})
	return maxPage, nil
}

// ListArticleLinks returns the article entries of listing page n in page order.
func (b *BlogScanner) ListArticleLinks(ctx context.Context, page int) ([]domain.ArticleLink, error) {
	pageURL := b.layout.PageURL(page)
	doc, err := b.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("list page %d: %w", page, err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	return b.extractLinks(doc, base), nil
}

func (b *BlogScanner) extractLinks(doc *goquery.Document, base *url.URL) []domain.ArticleLink {
	containers := strings.Join(b.layout.ContainerSelectors, ", ")
	titles := strings.Join(b.layout.TitleSelectors, ", ")

	var links []domain.ArticleLink
	seen := map[string]struct{}{}
	doc.Find(containers).Each(func(_ int, s *goquery.Selection) {
		anchor := s.Find(titles).First()
		title := textclean.NormalizeWhitespace(anchor.Text())
		href, ok := anchor.Attr("href")
		if title == "" || !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, domain.ArticleLink{
			Title: title,
			URL:   abs,
			Slug:  textclean.GenerateSlug(title),
		})
	})
	return links
}

// FetchArticleContent returns the cleaned body text of one article page.
func (b *BlogScanner) FetchArticleContent(ctx context.Context, articleURL string) (string, error) {
	doc, err := b.fetchDocument(ctx, articleURL)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}
	for _, sel := range b.layout.RemoveSelectors {
		doc.Find(sel).Remove()
	}

	var raw string
	for _, sel := range b.layout.ContentSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			raw = found.First().Text()
			break
		}
	}
	if strings.TrimSpace(raw) == "" {
		raw = doc.Find("article").First().Text()
	}
	if strings.TrimSpace(raw) == "" {
		raw = doc.Find("main").First().Text()
	}

	content := textclean.CleanArticleContent(raw)
	if content == "" {
		return "", fmt.Errorf("article %s: %w", articleURL, domain.ErrExtraction)
	}
	return content, nil
}

func (b *BlogScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", blogUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &domain.TransientNetworkError{Op: "get", URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}
