package fetcher

import (
	"context"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
)

// DefaultEscalateBelow is the static content length under which the
// rendered path is tried.
const DefaultEscalateBelow = 500

// Strategy names a page fetching path.
type Strategy int

const (
	StrategyStatic Strategy = iota
	StrategyRendered
)

func (s Strategy) String() string {
	switch s {
	case StrategyStatic:
		return "static"
	case StrategyRendered:
		return "rendered"
	default:
		return "unknown"
	}
}

// Fetcher is one concrete fetching path.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (domain.ScrapedContent, error)
}

// NextStrategy decides whether the outcome of current warrants another path.
// Only the static path escalates: on error or when content is shorter than threshold.
func NextStrategy(current Strategy, res domain.ScrapedContent, err error, threshold int) (Strategy, bool) {
	if current != StrategyStatic {
		return current, false
	}
	if err != nil || utf8.RuneCountInString(res.Content) < threshold {
		return StrategyRendered, true
	}
	return current, false
}

// AdaptiveFetcher tries the static path first and escalates to rendering.
type AdaptiveFetcher struct {
	static        Fetcher
	rendered      Fetcher
	escalateBelow int
	sleep         func(context.Context, time.Duration) error
	logger        *zap.Logger
}

var _ ports.PageFetcher = (*AdaptiveFetcher)(nil)

// NewAdaptiveFetcher wires both paths. rendered may be nil to disable escalation.
func NewAdaptiveFetcher(static, rendered Fetcher, escalateBelow int, logger *zap.Logger) *AdaptiveFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if escalateBelow <= 0 {
		escalateBelow = DefaultEscalateBelow
	}
	return &AdaptiveFetcher{
		static:        static,
		rendered:      rendered,
		escalateBelow: escalateBelow,
		sleep:         SleepContext,
		logger:        logger.With(zap.String("component", "adaptive_fetcher")),
	}
}

// Fetch never fails: unusable pages are returned with Error set.
func (f *AdaptiveFetcher) Fetch(ctx context.Context, url string) domain.ScrapedContent {
	res, err := f.static.Fetch(ctx, url)
	next, escalate := NextStrategy(StrategyStatic, res, err, f.escalateBelow)
	if !escalate {
		return res
	}

	fields := []zap.Field{
		zap.String("url", url),
		zap.Stringer("from", StrategyStatic),
		zap.Stringer("to", next),
		zap.Int("content_len", len(res.Content)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	if f.rendered == nil || ctx.Err() != nil {
		return staticOrFailed(url, res, err)
	}
	f.logger.Info("escalating fetch", fields...)

	rendered, rerr := f.rendered.Fetch(ctx, url)
	if rerr == nil && rendered.Content != "" {
		return rendered
	}
	f.logger.Warn("rendered fetch failed", zap.String("url", url), zap.Error(rerr))
	return staticOrFailed(url, res, err)
}

// FetchMany fetches urls in order, pausing between consecutive fetches.
func (f *AdaptiveFetcher) FetchMany(ctx context.Context, urls []string, delay time.Duration) []domain.ScrapedContent {
	out := make([]domain.ScrapedContent, 0, len(urls))
	for i, u := range urls {
		out = append(out, f.Fetch(ctx, u))
		if i < len(urls)-1 && delay > 0 {
			if err := f.sleep(ctx, delay); err != nil {
				break
			}
		}
	}
	return out
}

func staticOrFailed(url string, res domain.ScrapedContent, err error) domain.ScrapedContent {
	if err == nil && res.Content != "" {
		return res
	}
	return domain.ScrapedContent{URL: url, Error: true}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
