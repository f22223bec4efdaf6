package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
)

// DefaultImportCount is used when the caller does not ask for a number.
const DefaultImportCount = 5

// ImportReport lists what an import stored and what it left alone.
type ImportReport struct {
	Saved   []domain.Article `json:"saved"`
	Skipped []string         `json:"skipped"`
	Total   int              `json:"total"`
}

// LastScraped identifies the newest stored article.
type LastScraped struct {
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

// ScrapeStatus reports store counters.
type ScrapeStatus struct {
	Total          int64        `json:"total"`
	Original       int64        `json:"original"`
	Rewritten      int64        `json:"rewritten"`
	PendingRewrite int64        `json:"pendingRewrite"`
	LastScraped    *LastScraped `json:"lastScraped"`
}

// Importer copies the oldest source articles into the store.
type Importer struct {
	source ports.ArticleSource
	store  ports.ArticleStore
	logger *zap.Logger
}

// NewImporter wires the source and the store.
func NewImporter(source ports.ArticleSource, store ports.ArticleStore, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{source: source, store: store, logger: logger.With(zap.String("component", "importer"))}
}

// Import stores up to count new articles. Articles whose slug already exists are skipped.
func (i *Importer) Import(ctx context.Context, count int) (ImportReport, error) {
	if count <= 0 {
		count = DefaultImportCount
	}
	i.logger.Info("starting import", zap.Int("count", count))

	drafts, err := i.source.OldestArticles(ctx, count)
	if err != nil {
		return ImportReport{}, fmt.Errorf("scrape source: %w", err)
	}

	report := ImportReport{Saved: []domain.Article{}, Skipped: []string{}, Total: len(drafts)}
	for _, draft := range drafts {
		draft := draft
		_, err := i.store.FindBySlug(ctx, draft.Slug)
		switch {
		case err == nil:
			report.Skipped = append(report.Skipped, draft.Title)
			continue
		case !errors.Is(err, domain.ErrNotFound):
			i.logger.Error("lookup article", zap.String("title", draft.Title), zap.Error(err))
			continue
		}

		if err := i.store.Create(ctx, &draft); err != nil {
			if errors.Is(err, domain.ErrDuplicateSlug) {
				report.Skipped = append(report.Skipped, draft.Title)
				continue
			}
			i.logger.Error("save article", zap.String("title", draft.Title), zap.Error(err))
			continue
		}
		report.Saved = append(report.Saved, draft)
		i.logger.Info("saved article", zap.String("title", draft.Title), zap.String("id", draft.ID))
	}
	return report, nil
}

// Status counts stored articles by status and finds the newest one.
func (i *Importer) Status(ctx context.Context) (ScrapeStatus, error) {
	total, err := i.store.CountByStatus(ctx, nil)
	if err != nil {
		return ScrapeStatus{}, fmt.Errorf("count articles: %w", err)
	}
	original := domain.StatusOriginal
	originals, err := i.store.CountByStatus(ctx, &original)
	if err != nil {
		return ScrapeStatus{}, fmt.Errorf("count original articles: %w", err)
	}
	rewritten := domain.StatusRewritten
	rewrittens, err := i.store.CountByStatus(ctx, &rewritten)
	if err != nil {
		return ScrapeStatus{}, fmt.Errorf("count rewritten articles: %w", err)
	}

	status := ScrapeStatus{Total: total, Original: originals, Rewritten: rewrittens, PendingRewrite: originals}
	latest, err := i.store.Latest(ctx)
	switch {
	case err == nil:
		status.LastScraped = &LastScraped{Title: latest.Title, Date: latest.CreatedAt}
	case !errors.Is(err, domain.ErrNotFound):
		return ScrapeStatus{}, fmt.Errorf("latest article: %w", err)
	}
	return status, nil
}
