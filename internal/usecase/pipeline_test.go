package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
)

type pipelineFixture struct {
	store    *memStore
	searcher *fakeSearcher
	fetcher  *fakeFetcher
	model    *fakeModel
	notifier *recordingNotifier
	sleeps   []time.Duration
}

func newPipelineFixture() *pipelineFixture {
	return &pipelineFixture{
		store:    newMemStore(),
		searcher: &fakeSearcher{results: map[string][]domain.SearchResult{}, fail: map[string]bool{}},
		fetcher:  &fakeFetcher{pages: map[string]domain.ScrapedContent{}},
		model: &fakeModel{reply: func(req ports.ChatRequest) (string, error) {
			return "## Rewritten\n\nfresh words here", nil
		}},
		notifier: &recordingNotifier{},
	}
}

func (f *pipelineFixture) pipeline(opts PipelineOptions) *Pipeline {
	return NewPipeline(PipelineDeps{
		Queue:    f.store,
		Searcher: f.searcher,
		Fetcher:  f.fetcher,
		Rewriter: NewRewriter(f.model, RewriterOptions{SystemPrompt: "sys"}, nil),
		Notifier: f.notifier,
		Options:  opts,
		Sleep: func(ctx context.Context, d time.Duration) error {
			f.sleeps = append(f.sleeps, d)
			return ctx.Err()
		},
	})
}

func longText(word string) string {
	return strings.Repeat(word+" ", 60)
}

func TestRunContinuesAfterArticleFailure(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	seeded := f.store.seed(
		domain.NewDraft("First", "one", "", ""),
		domain.NewDraft("Second", "two", "", ""),
		domain.NewDraft("Third", "three", "", ""),
	)
	f.searcher.fail["Second"] = true

	report, err := f.pipeline(PipelineOptions{DelayBetweenArticles: 5 * time.Second}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, seeded[1].ID, report.Failures[0].ID)
	assert.Contains(t, report.Failures[0].Err, seeded[1].ID)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, f.sleeps)
	assert.NotEmpty(t, report.RunID)

	second, _ := f.store.FindByID(context.Background(), seeded[1].ID)
	assert.Equal(t, domain.StatusOriginal, second.Status)
	third, _ := f.store.FindByID(context.Background(), seeded[2].ID)
	assert.Equal(t, domain.StatusRewritten, third.Status)

	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "succeeded: 2, failed: 1")
}

func TestRunEmptyGenerationKeepsOriginal(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	seeded := f.store.seed(domain.NewDraft("Only", "text", "", ""))
	f.model.reply = func(ports.ChatRequest) (string, error) { return "   \n", nil }

	report, err := f.pipeline(PipelineOptions{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Failures[0].Err, domain.ErrEmptyGeneration.Error())

	a, _ := f.store.FindByID(context.Background(), seeded[0].ID)
	assert.Equal(t, domain.StatusOriginal, a.Status)
	assert.Empty(t, a.RewrittenContent)
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	seeded := f.store.seed(domain.NewDraft("Chatbots for Support", longText("original"), "https://beyondchats.com/blogs/x/", ""))
	f.searcher.results["Chatbots for Support"] = []domain.SearchResult{
		{Title: "Search Title A", URL: "https://a.example.com/post"},
		{Title: "Search Title B", URL: "https://b.example.com/post"},
	}
	f.fetcher.pages["https://a.example.com/post"] = domain.ScrapedContent{Title: "", Content: longText("alpha")}
	f.fetcher.pages["https://b.example.com/post"] = domain.ScrapedContent{Title: "Scraped B", Content: longText("beta")}

	report, err := f.pipeline(PipelineOptions{ResultsPerArticle: 2, DelayBetweenScrapes: 2 * time.Second}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, []time.Duration{2 * time.Second}, f.sleeps)
	assert.Equal(t, []string{"Chatbots for Support"}, f.searcher.queries)

	a, err := f.store.FindByID(context.Background(), seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRewritten, a.Status)
	assert.Equal(t, "## Rewritten\n\nfresh words here", a.RewrittenContent)
	assert.Equal(t, []domain.Reference{
		{Title: "Search Title A", URL: "https://a.example.com/post"},
		{Title: "Scraped B", URL: "https://b.example.com/post"},
	}, a.References)
	assert.Equal(t, 5, a.Metadata.WordCount)

	require.Len(t, f.model.requests, 1)
	req := f.model.requests[0]
	assert.Equal(t, "sys", req.System)
	assert.Equal(t, 4000, req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	assert.Contains(t, req.Prompt, "--- Reference 1: Search Title A ---")
	assert.Contains(t, req.Prompt, "--- Reference 2: Scraped B ---")
}

func TestRunNoUsableReferences(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.store.seed(domain.NewDraft("Lonely", "text", "", ""))
	f.searcher.results["Lonely"] = []domain.SearchResult{{Title: "x", URL: "https://dead.example.com"}}
	f.fetcher.pages["https://dead.example.com"] = domain.ScrapedContent{Content: "too short"}

	report, err := f.pipeline(PipelineOptions{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Failures[0].Err, domain.ErrNoUsableReferences.Error())
	assert.Empty(t, f.model.requests)
}

func TestRunLogsCarryRunID(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.store.seed(domain.NewDraft("Lonely", "text", "", ""))
	f.searcher.results["Lonely"] = []domain.SearchResult{{Title: "x", URL: "https://dead.example.com"}}

	core, logs := observer.New(zapcore.DebugLevel)
	p := NewPipeline(PipelineDeps{
		Queue:    f.store,
		Searcher: f.searcher,
		Fetcher:  f.fetcher,
		Rewriter: NewRewriter(f.model, RewriterOptions{}, nil),
		Logger:   zap.New(core),
		Sleep:    func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	})

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	for _, msg := range []string{"reference unusable", "article failed", "run finished"} {
		entries := logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		assert.Equal(t, report.RunID, entries[0].ContextMap()["run_id"], msg)
	}
}

func TestRunWithoutSearchResultsStillRewrites(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.store.seed(domain.NewDraft("Niche", "text", "", ""))

	report, err := f.pipeline(PipelineOptions{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, f.model.requests, 1)
	assert.NotContains(t, f.model.requests[0].Prompt, "REFERENCE MATERIALS")
}

func TestRunQueueErrorIsFatal(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.store.listErr = errors.New("db down")

	_, err := f.pipeline(PipelineOptions{}).Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.notifier.messages)
}

func TestRunEmptyQueue(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	report, err := f.pipeline(PipelineOptions{}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Attempted)
	assert.Empty(t, f.notifier.messages)
}

func TestRunRespectsMaxArticles(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	for _, title := range []string{"a1", "a2", "a3", "a4"} {
		f.store.seed(domain.NewDraft(title, "text", "", ""))
	}

	report, err := f.pipeline(PipelineOptions{MaxArticles: 2}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, []string{"a1", "a2"}, f.searcher.queries)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.store.seed(domain.NewDraft("c1", "text", "", ""), domain.NewDraft("c2", "text", "", ""))
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPipeline(PipelineDeps{
		Queue:    f.store,
		Searcher: f.searcher,
		Fetcher:  f.fetcher,
		Rewriter: NewRewriter(f.model, RewriterOptions{}, nil),
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})

	report, err := p.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 1, report.Attempted)
}

func TestRunNotifierErrorIsIgnored(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.store.seed(domain.NewDraft("n1", "text", "", ""))
	f.notifier.err = errors.New("telegram down")

	report, err := f.pipeline(PipelineOptions{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
}

func TestRunGeneratesTitleAndMeta(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.store.seed(domain.NewDraft("Plain", "text", "", ""))
	f.model.reply = func(req ports.ChatRequest) (string, error) {
		switch req.System {
		case titleSystemPrompt:
			return `"Shiny Title"`, nil
		case metaSystemPrompt:
			return " A short description. ", nil
		default:
			return "body", nil
		}
	}

	report, err := f.pipeline(PipelineOptions{GenerateTitle: true, GenerateMeta: true}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Successes, 1)
	assert.Equal(t, "Shiny Title", report.Successes[0].SuggestedTitle)
	assert.Equal(t, "A short description.", report.Successes[0].MetaDescription)
}
