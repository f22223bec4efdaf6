package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 2 * time.Second
)

// RetryingSearcher retries a Searcher with a linearly growing pause:
// attempt k > 1 waits BaseDelay*k first.
type RetryingSearcher struct {
	next       ports.Searcher
	maxRetries int
	baseDelay  time.Duration
	sleep      func(context.Context, time.Duration) error
	logger     *zap.Logger
}

var _ ports.Searcher = (*RetryingSearcher)(nil)

// NewRetryingSearcher wraps next. Zero values select the defaults.
func NewRetryingSearcher(next ports.Searcher, maxRetries int, baseDelay time.Duration, logger *zap.Logger) *RetryingSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &RetryingSearcher{
		next:       next,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      sleepContext,
		logger:     logger.With(zap.String("component", "search_retry")),
	}
}

// WithSleep replaces the pause function, mainly for tests.
func (r *RetryingSearcher) WithSleep(sleep func(context.Context, time.Duration) error) *RetryingSearcher {
	r.sleep = sleep
	return r
}

// Search never returns an error; exhausted retries and cancellation give an empty slice.
func (r *RetryingSearcher) Search(ctx context.Context, query string, n int) ([]domain.SearchResult, error) {
	return r.SearchWithRetry(ctx, query, n, r.maxRetries), nil
}

// SearchWithRetry runs up to maxRetries attempts of the wrapped searcher.
func (r *RetryingSearcher) SearchWithRetry(ctx context.Context, query string, n, maxRetries int) []domain.SearchResult {
	if maxRetries <= 0 {
		maxRetries = r.maxRetries
	}
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			delay := r.baseDelay * time.Duration(attempt)
			r.logger.Info("waiting before retry", zap.Duration("delay", delay), zap.Int("attempt", attempt))
			if err := r.sleep(ctx, delay); err != nil {
				return []domain.SearchResult{}
			}
		}
		results, err := r.next.Search(ctx, query, n)
		if err == nil {
			if results == nil {
				results = []domain.SearchResult{}
			}
			return results
		}
		r.logger.Warn("search attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if ctx.Err() != nil {
			return []domain.SearchResult{}
		}
	}
	r.logger.Error("all search attempts failed", zap.Int("attempts", maxRetries), zap.String("query", query))
	return []domain.SearchResult{}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
