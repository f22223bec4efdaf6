package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("rewrite run already in progress")

// PipelineOptions tunes one batch run.
type PipelineOptions struct {
	MaxArticles          int
	ResultsPerArticle    int
	DelayBetweenArticles time.Duration
	DelayBetweenScrapes  time.Duration
	MinReferenceLength   int
	GenerateTitle        bool
	GenerateMeta         bool
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Queue    ports.RewriteQueue
	Searcher ports.Searcher
	Fetcher  ports.PageFetcher
	Rewriter *Rewriter
	Notifier ports.Notifier
	Logger   *zap.Logger
	Options  PipelineOptions
	Sleep    func(context.Context, time.Duration) error
	Now      func() time.Time
}

// ArticleFailure records why one article was not rewritten.
type ArticleFailure struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Err   string `json:"error"`
}

// ArticleSuccess records one rewritten article.
type ArticleSuccess struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	References      int           `json:"references"`
	SuggestedTitle  string        `json:"suggestedTitle,omitempty"`
	MetaDescription string        `json:"metaDescription,omitempty"`
	Usage           *domain.Usage `json:"usage,omitempty"`
}

// RunReport summarizes one batch run.
type RunReport struct {
	RunID      string           `json:"runId"`
	Attempted  int              `json:"attempted"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Cancelled  bool             `json:"cancelled,omitempty"`
	Successes  []ArticleSuccess `json:"successes"`
	Failures   []ArticleFailure `json:"failures"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
}

// Pipeline rewrites the oldest original articles one at a time.
type Pipeline struct {
	queue    ports.RewriteQueue
	searcher ports.Searcher
	fetcher  ports.PageFetcher
	rewriter *Rewriter
	notifier ports.Notifier
	opts     PipelineOptions
	sleep    func(context.Context, time.Duration) error
	now      func() time.Time
	logger   *zap.Logger
	running  sync.Mutex
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	opts := deps.Options
	if opts.MaxArticles <= 0 {
		opts.MaxArticles = 5
	}
	if opts.ResultsPerArticle <= 0 {
		opts.ResultsPerArticle = 2
	}
	if opts.MinReferenceLength <= 0 {
		opts.MinReferenceLength = 200
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		queue:    deps.Queue,
		searcher: deps.Searcher,
		fetcher:  deps.Fetcher,
		rewriter: deps.Rewriter,
		notifier: deps.Notifier,
		opts:     opts,
		sleep:    sleep,
		now:      now,
		logger:   logger.With(zap.String("component", "pipeline")),
	}
}

// Run processes up to MaxArticles pending articles. Only a failure to load
// the queue is returned; per-article failures land in the report.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	if !p.running.TryLock() {
		return RunReport{}, ErrRunInProgress
	}
	defer p.running.Unlock()

	report := RunReport{
		RunID:     uuid.NewString(),
		StartedAt: p.now(),
		Successes: []ArticleSuccess{},
		Failures:  []ArticleFailure{},
	}
	log := p.logger.With(zap.String("run_id", report.RunID))

	articles, err := p.queue.ListPending(ctx, p.opts.MaxArticles)
	if err != nil {
		return report, fmt.Errorf("load pending articles: %w", err)
	}
	if len(articles) == 0 {
		log.Info("no articles to rewrite")
		report.FinishedAt = p.now()
		return report, nil
	}
	log.Info("run started", zap.Int("articles", len(articles)))

	for i, article := range articles {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		report.Attempted++

		success, err := p.processArticle(ctx, log, article)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, ArticleFailure{ID: article.ID, Title: article.Title, Err: err.Error()})
			log.Error("article failed", zap.String("id", article.ID), zap.String("title", article.Title), zap.Error(err))
		} else {
			report.Succeeded++
			report.Successes = append(report.Successes, success)
			log.Info("article rewritten", zap.String("id", article.ID), zap.Int("references", success.References))
		}

		if i < len(articles)-1 {
			if err := p.sleep(ctx, p.opts.DelayBetweenArticles); err != nil {
				report.Cancelled = true
				break
			}
		}
	}

	report.FinishedAt = p.now()
	log.Info("run finished",
		zap.Int("attempted", report.Attempted),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Bool("cancelled", report.Cancelled),
	)
	p.notify(ctx, log, report)
	return report, nil
}

func (p *Pipeline) processArticle(ctx context.Context, log *zap.Logger, article domain.Article) (ArticleSuccess, error) {
	results, err := p.searcher.Search(ctx, article.Title, p.opts.ResultsPerArticle)
	if err != nil {
		return ArticleSuccess{}, fmt.Errorf("article %s: search: %w", article.ID, err)
	}

	refs := make([]domain.ScrapedContent, 0, len(results))
	references := make([]domain.Reference, 0, len(results))
	for i, result := range results {
		scraped := p.fetcher.Fetch(ctx, result.URL)
		if !scraped.Error && utf8.RuneCountInString(scraped.Content) > p.opts.MinReferenceLength {
			title := scraped.Title
			if title == "" {
				title = result.Title
			}
			scraped.Title = title
			refs = append(refs, scraped)
			references = append(references, domain.Reference{Title: title, URL: result.URL})
		} else {
			log.Debug("reference unusable", zap.String("id", article.ID), zap.String("url", result.URL), zap.Int("content_len", len(scraped.Content)))
		}

		if i < len(results)-1 {
			if err := p.sleep(ctx, p.opts.DelayBetweenScrapes); err != nil {
				return ArticleSuccess{}, fmt.Errorf("article %s: %w", article.ID, err)
			}
		}
	}
	if len(results) > 0 && len(refs) == 0 {
		return ArticleSuccess{}, fmt.Errorf("article %s: %w", article.ID, domain.ErrNoUsableReferences)
	}

	rewritten, err := p.rewriter.Rewrite(ctx, article.OriginalContent, refs, article.Title)
	if err != nil {
		return ArticleSuccess{}, fmt.Errorf("article %s: %w", article.ID, err)
	}

	success := ArticleSuccess{
		ID:         article.ID,
		Title:      article.Title,
		References: len(references),
		Usage:      rewritten.Usage,
	}
	if p.opts.GenerateTitle {
		success.SuggestedTitle = p.rewriter.GenerateTitle(ctx, article.Title, rewritten.Content)
	}
	if p.opts.GenerateMeta {
		success.MetaDescription = p.rewriter.GenerateMetaDescription(ctx, rewritten.Content)
	}

	if err := p.queue.MarkRewritten(ctx, article.ID, rewritten.Content, references); err != nil {
		return ArticleSuccess{}, fmt.Errorf("article %s: persist: %w", article.ID, err)
	}
	return success, nil
}

func (p *Pipeline) notify(ctx context.Context, log *zap.Logger, report RunReport) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishDigest(ctx, BuildDigestMessage(report)); err != nil {
		log.Warn("publish run report", zap.Error(err))
	}
}

// BuildDigestMessage renders a run report as plain text.
func BuildDigestMessage(report RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite run %s\nAttempted: %d, succeeded: %d, failed: %d\n",
		report.RunID, report.Attempted, report.Succeeded, report.Failed)
	if report.Cancelled {
		b.WriteString("Run was cancelled before finishing.\n")
	}
	for _, s := range report.Successes {
		fmt.Fprintf(&b, "\n+ %s (%d references)", s.Title, s.References)
		if s.SuggestedTitle != "" {
			fmt.Fprintf(&b, "\n  suggested title: %s", s.SuggestedTitle)
		}
	}
	for _, f := range report.Failures {
		fmt.Fprintf(&b, "\n- %s: %s", f.Title, f.Err)
	}
	return b.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
