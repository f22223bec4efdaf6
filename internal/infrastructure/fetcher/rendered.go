package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/textclean"
)

const (
	defaultRenderTimeout = 30 * time.Second
	defaultSelectorWait  = 5 * time.Second
)

// RenderedSelectors are tried inside the page after scripts ran.
var RenderedSelectors = []string{"article", ".post-content", ".entry-content", ".article-content", "main"}

// RenderOptions configures the headless browser path.
type RenderOptions struct {
	UserAgent       string
	Timeout         time.Duration
	SelectorWait    time.Duration
	ExecPath        string
	Selectors       []string
	RemoveSelectors []string
	MinLength       int
}

// RenderedFetcher loads pages in headless Chrome through chromedp.
type RenderedFetcher struct {
	opts   RenderOptions
	script string
	logger *zap.Logger
}

type renderedPage struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NewRenderedFetcher prepares the extraction script for the configured selectors.
func NewRenderedFetcher(opts RenderOptions, logger *zap.Logger) (*RenderedFetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRenderTimeout
	}
	if opts.SelectorWait <= 0 {
		opts.SelectorWait = defaultSelectorWait
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if len(opts.Selectors) == 0 {
		opts.Selectors = RenderedSelectors
	}
	if len(opts.RemoveSelectors) == 0 {
		opts.RemoveSelectors = DefaultRemoveSelectors
	}
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinContentLength
	}
	script, err := extractionScript(opts.Selectors, opts.RemoveSelectors, opts.MinLength)
	if err != nil {
		return nil, err
	}
	return &RenderedFetcher{
		opts:   opts,
		script: script,
		logger: logger.With(zap.String("component", "rendered_fetcher")),
	}, nil
}

// Fetch starts a browser for this call only and tears it down before returning.
func (f *RenderedFetcher) Fetch(parent context.Context, url string) (domain.ScrapedContent, error) {
	ctx, cancel := context.WithTimeout(parent, f.opts.Timeout+f.opts.SelectorWait+5*time.Second)
	defer cancel()

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(f.opts.UserAgent),
	)
	if f.opts.ExecPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(f.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	idle := make(chan struct{}, 1)
	chromedp.ListenTarget(browserCtx, func(ev any) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})

	start := time.Now()
	var out renderedPage
	err := chromedp.Run(browserCtx,
		page.SetLifecycleEventsEnabled(true),
		f.navigate(url),
		f.waitNetworkIdle(idle),
		f.waitForContent(),
		chromedp.Evaluate(f.script, &out),
	)
	if err != nil {
		return domain.ScrapedContent{URL: url}, fmt.Errorf("render %s: %w", url, err)
	}

	content := textclean.CleanArticleContent(out.Content)
	f.logger.Debug("rendered fetch done",
		zap.String("url", url),
		zap.Duration("latency", time.Since(start)),
		zap.Int("content_len", len(content)),
	)
	return domain.ScrapedContent{
		Title:   textclean.NormalizeWhitespace(out.Title),
		Content: content,
		URL:     url,
	}, nil
}

func (f *RenderedFetcher) navigate(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		navCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
		return chromedp.Navigate(url).Do(navCtx)
	})
}

// waitNetworkIdle gives up silently once the navigation budget runs out.
func (f *RenderedFetcher) waitNetworkIdle(idle <-chan struct{}) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		timer := time.NewTimer(f.opts.Timeout)
		defer timer.Stop()
		select {
		case <-idle:
		case <-timer.C:
			f.logger.Debug("network idle not reached")
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

func (f *RenderedFetcher) waitForContent() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, f.opts.SelectorWait)
		defer cancel()
		sel := strings.Join(f.opts.Selectors, ", ")
		if err := chromedp.WaitReady(sel, chromedp.ByQuery).Do(waitCtx); err != nil {
			f.logger.Debug("content selector not found", zap.String("selector", sel), zap.Error(err))
		}
		return ctx.Err()
	})
}

func extractionScript(selectors, remove []string, minLength int) (string, error) {
	sel, err := json.Marshal(selectors)
	if err != nil {
		return "", fmt.Errorf("encode selectors: %w", err)
	}
	rm, err := json.Marshal(remove)
	if err != nil {
		return "", fmt.Errorf("encode remove selectors: %w", err)
	}
	return fmt.Sprintf(`(() => {
  const remove = %s;
  const selectors = %s;
  remove.forEach(s => document.querySelectorAll(s).forEach(el => el.remove()));
  const h1 = document.querySelector('h1');
  const title = (h1 && h1.innerText.trim()) || document.title || '';
  for (const s of selectors) {
    const el = document.querySelector(s);
    if (el && el.innerText.trim().length > %d) {
      return {title: title, content: el.innerText};
    }
  }
  return {title: title, content: document.body ? document.body.innerText : ''};
})()`, rm, sel, minLength), nil
}
