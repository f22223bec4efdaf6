package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
)

const (
	defaultEndpoint = "https://www.google.com/search"
	defaultTimeout  = 10 * time.Second
	querySuffix     = " blog OR article"
	extraResults    = 5
	browserUA       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// DefaultExcludedDomains never make useful rewrite references.
var DefaultExcludedDomains = []string{
	"youtube.com", "facebook.com", "twitter.com", "linkedin.com",
	"instagram.com", "pinterest.com", "reddit.com", "quora.com",
	"wikipedia.org", "beyondchats.com",
}

// Options configures the search client.
type Options struct {
	Endpoint        string
	Timeout         time.Duration
	ExcludedDomains []string
	Client          *http.Client
}

// Client scrapes a web search results page.
type Client struct {
	endpoint string
	excluded []string
	client   *http.Client
	logger   *zap.Logger
}

var _ ports.Searcher = (*Client)(nil)

// NewClient builds a search client; empty options take the defaults.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ExcludedDomains == nil {
		opts.ExcludedDomains = DefaultExcludedDomains
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		endpoint: opts.Endpoint,
		excluded: opts.ExcludedDomains,
		client:   client,
		logger:   logger.With(zap.String("component", "search")),
	}
}

// Search returns up to n results for query. A rate-limited response yields
// an empty result and no error.
func (c *Client) Search(ctx context.Context, query string, n int) ([]domain.SearchResult, error) {
	if n <= 0 {
		return []domain.SearchResult{}, nil
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query+querySuffix)
	q.Set("num", strconv.Itoa(n+extraResults))
	q.Set("hl", "en")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	c.logger.Info("searching", zap.String("query", query))
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.TransientNetworkError{Op: "search", URL: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		c.logger.Warn("search engine rate limited the request", zap.Int("status", resp.StatusCode))
		return []domain.SearchResult{}, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &domain.TransientNetworkError{
			Op:  "search",
			URL: c.endpoint,
			Err: fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	results := c.parseResults(doc, n)
	c.logger.Info("search done", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

func (c *Client) parseResults(doc *goquery.Document, n int) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, n)
	seen := map[string]struct{}{}
	doc.Find("div.g, div[data-ved]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(results) >= n {
			return false
		}
		href, _ := s.Find(`a[href^="http"]`).First().Attr("href")
		title := strings.TrimSpace(s.Find("h3").First().Text())
		if href == "" || title == "" || c.Excluded(href) {
			return true
		}
		if _, dup := seen[href]; dup {
			return true
		}
		seen[href] = struct{}{}
		results = append(results, domain.SearchResult{Title: title, URL: href})
		return true
	})
	return results
}

// Excluded reports whether rawURL is malformed or its host contains an excluded domain.
func (c *Client) Excluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range c.excluded {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}
