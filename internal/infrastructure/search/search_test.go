package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticleRewriter/internal/domain"
)

const resultsPage = `<html><body>
<div class="g"><a href="https://www.youtube.com/watch?v=1"><h3>Video</h3></a></div>
<div class="g"><a href="https://blog.example.com/chatbots"><h3>Chatbots 101</h3></a></div>
<div class="g"><a href="https://blog.example.com/chatbots"><h3>Duplicate</h3></a></div>
<div class="g"><a href="/relative"><h3>Relative link</h3></a></div>
<div data-ved="x"><a href="https://news.example.org/ai"><h3>AI News</h3></a></div>
<div class="g"><a href="https://en.wikipedia.org/wiki/Chatbot"><h3>Wiki</h3></a></div>
<div class="g"><a href="https://third.example.net/"><h3>Third</h3></a></div>
</body></html>`

func TestSearchParsesAndFilters(t *testing.T) {
	t.Parallel()

	var gotQuery, gotNum, gotHL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotNum = r.URL.Query().Get("num")
		gotHL = r.URL.Query().Get("hl")
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL}, nil)
	results, err := c.Search(context.Background(), "chatbots", 2)
	require.NoError(t, err)

	assert.Equal(t, "chatbots blog OR article", gotQuery)
	assert.Equal(t, "7", gotNum)
	assert.Equal(t, "en", gotHL)
	assert.Equal(t, []domain.SearchResult{
		{Title: "Chatbots 101", URL: "https://blog.example.com/chatbots"},
		{Title: "AI News", URL: "https://news.example.org/ai"},
	}, results)
}

func TestSearchRateLimitedIsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	results, err := NewClient(Options{Endpoint: srv.URL}, nil).Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearchServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(Options{Endpoint: srv.URL}, nil).Search(context.Background(), "q", 2)
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestExcluded(t *testing.T) {
	t.Parallel()

	c := NewClient(Options{}, nil)
	assert.True(t, c.Excluded("https://m.facebook.com/page"))
	assert.True(t, c.Excluded("https://beyondchats.com/blogs/x"))
	assert.True(t, c.Excluded("::not a url"))
	assert.False(t, c.Excluded("https://example.com/post"))
}

type flakySearcher struct {
	failures int
	calls    int
	results  []domain.SearchResult
}

func (f *flakySearcher) Search(context.Context, string, int) ([]domain.SearchResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.results, nil
}

func TestRetryWaitsLinearly(t *testing.T) {
	t.Parallel()

	want := []domain.SearchResult{{Title: "A", URL: "https://a.example.com"}}
	inner := &flakySearcher{failures: 2, results: want}
	var delays []time.Duration
	r := NewRetryingSearcher(inner, 3, 2*time.Second, nil).WithSleep(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})

	got := r.SearchWithRetry(context.Background(), "q", 2, 3)
	assert.Equal(t, want, got)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, []time.Duration{4 * time.Second, 6 * time.Second}, delays)

	var total time.Duration
	for _, d := range delays {
		total += d
	}
	assert.GreaterOrEqual(t, total, 6*time.Second)
}

func TestRetryExhaustedIsEmpty(t *testing.T) {
	t.Parallel()

	inner := &flakySearcher{failures: 10}
	r := NewRetryingSearcher(inner, 3, time.Millisecond, nil).WithSleep(func(context.Context, time.Duration) error { return nil })

	got, err := r.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	t.Parallel()

	inner := &flakySearcher{failures: 10}
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetryingSearcher(inner, 3, time.Hour, nil).WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})

	got := r.SearchWithRetry(ctx, "q", 2, 3)
	assert.Empty(t, got)
	assert.Equal(t, 1, inner.calls)
}
