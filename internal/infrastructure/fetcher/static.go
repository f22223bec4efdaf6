package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/textclean"
)

const (
	defaultStaticTimeout = 15 * time.Second
	maxRedirects         = 5
	defaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptHTML           = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// StaticOptions configures the plain HTTP fetcher.
type StaticOptions struct {
	UserAgent       string
	Timeout         time.Duration
	Extractor       Extractor
	RemoveSelectors []string
	Client          *http.Client
}

// StaticFetcher downloads HTML over HTTP and extracts it with goquery.
type StaticFetcher struct {
	client    *http.Client
	userAgent string
	extractor Extractor
	remove    []string
	logger    *zap.Logger
}

// NewStaticFetcher builds a fetcher capped at five redirects.
func NewStaticFetcher(opts StaticOptions, logger *zap.Logger) *StaticFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultStaticTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if len(opts.RemoveSelectors) == 0 {
		opts.RemoveSelectors = DefaultRemoveSelectors
	}
	if len(opts.Extractor.Selectors) == 0 {
		opts.Extractor = NewExtractor(nil, opts.Extractor.MinLength)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
	return &StaticFetcher{
		client:    client,
		userAgent: opts.UserAgent,
		extractor: opts.Extractor,
		remove:    opts.RemoveSelectors,
		logger:    logger.With(zap.String("component", "static_fetcher")),
	}
}

// Fetch downloads url and returns its cleaned title and content.
func (f *StaticFetcher) Fetch(ctx context.Context, url string) (domain.ScrapedContent, error) {
	doc, err := f.document(ctx, url)
	if err != nil {
		return domain.ScrapedContent{URL: url}, err
	}

	Strip(doc, f.remove)
	title := f.extractor.Title(doc)
	content := textclean.CleanArticleContent(f.extractor.Content(doc))

	f.logger.Debug("static fetch done", zap.String("url", url), zap.Int("content_len", len(content)))
	return domain.ScrapedContent{Title: title, Content: content, URL: url}, nil
}

func (f *StaticFetcher) document(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHTML)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &domain.TransientNetworkError{Op: "fetch", URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, &domain.TransientNetworkError{Op: "fetch", URL: url, Err: statusErr}
		}
		return nil, fmt.Errorf("fetch %s: %w", url, statusErr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", url, err)
	}
	return doc, nil
}
