package ports

import (
	"context"
	"time"

	"ArticleRewriter/internal/domain"
)

// ArticleSource pulls articles from the upstream blog.
type ArticleSource interface {
	OldestArticles(ctx context.Context, count int) ([]domain.Article, error)
}

// SortField orders article listings.
type SortField struct {
	Field string
	Desc  bool
}

// ListQuery filters and pages article listings.
type ListQuery struct {
	Status *domain.Status
	Source string
	Sort   SortField
	Offset int
	Limit  int
}

// RewriteQueue is the part of the store the batch run needs.
type RewriteQueue interface {
	ListPending(ctx context.Context, limit int) ([]domain.Article, error)
	MarkRewritten(ctx context.Context, id, content string, refs []domain.Reference) error
}

// ArticleStore persists articles for the pipeline and the API.
type ArticleStore interface {
	RewriteQueue
	Create(ctx context.Context, article *domain.Article) error
	FindByID(ctx context.Context, id string) (domain.Article, error)
	FindBySlug(ctx context.Context, slug string) (domain.Article, error)
	List(ctx context.Context, q ListQuery) ([]domain.Article, int64, error)
	Update(ctx context.Context, id string, patch domain.ArticlePatch) (domain.Article, error)
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, status *domain.Status) (int64, error)
	Latest(ctx context.Context) (domain.Article, error)
	Close(ctx context.Context) error
}

// Searcher finds candidate reference articles for a query.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]domain.SearchResult, error)
}

// PageFetcher extracts readable content from a page. It never fails;
// unusable pages come back with Error set.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) domain.ScrapedContent
}

// ChatRequest is a single-turn completion call.
type ChatRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// ChatResponse carries the generated text.
type ChatResponse struct {
	Text  string
	Usage *domain.Usage
}

// ChatModel is a text generation backend (OpenAI, Anthropic).
type ChatModel interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Notifier publishes run summaries to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
