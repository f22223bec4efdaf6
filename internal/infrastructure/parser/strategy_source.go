package parser

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ArticleRewriter/internal/config"
	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
	"ArticleRewriter/internal/scanner"
)

// StrategySource implements ArticleSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *zap.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *zap.Logger) *StrategySource {
	if log == nil {
		log = zap.NewNop()
	}
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log.With(zap.String("component", "strategy_source")),
	}
}

// OldestArticles returns up to count drafts from the last listing pages of the
// configured sites. Articles that cannot be read are skipped.
func (s *StrategySource) OldestArticles(ctx context.Context, count int) ([]domain.Article, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}
	if count <= 0 {
		return nil, nil
	}

	var drafts []domain.Article
	for _, site := range s.sites {
		remaining := count - len(drafts)
		if remaining <= 0 {
			break
		}
		strategy, err := s.registry.Resolve(site.Name)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", site.Name, err)
		}
		found, err := s.scanSite(ctx, site, strategy, remaining)
		if err != nil {
			return nil, fmt.Errorf("scan site %s: %w", site.Name, err)
		}
		drafts = append(drafts, found...)
	}

	s.logger.Info("strategy source done", zap.Int("total_articles", len(drafts)))
	return drafts, nil
}

func (s *StrategySource) scanSite(ctx context.Context, site config.SiteConfig, strategy scanner.Scanner, count int) ([]domain.Article, error) {
	lastPage, err := strategy.DiscoverPageCount(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("pages discovered", zap.String("site", site.Name), zap.Int("last_page", lastPage))

	links, err := strategy.ListArticleLinks(ctx, lastPage)
	if err != nil {
		return nil, err
	}
	if len(links) > count {
		links = links[len(links)-count:]
	}

	interval := site.RequestInterval.Duration
	if interval <= 0 {
		interval = time.Second
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	drafts := make([]domain.Article, 0, len(links))
	for _, link := range links {
		if err := limiter.Wait(ctx); err != nil {
			return drafts, err
		}
		content, err := strategy.FetchArticleContent(ctx, link.URL)
		if err != nil {
			s.logger.Warn("skip article", zap.String("url", link.URL), zap.Error(err))
			continue
		}
		if content == "" {
			s.logger.Warn("skip empty article", zap.String("url", link.URL))
			continue
		}
		drafts = append(drafts, domain.NewDraft(link.Title, content, link.URL, site.Name))
	}
	s.logger.Debug("site produced articles", zap.String("site", site.Name), zap.Int("count", len(drafts)))
	return drafts, nil
}

// LayoutFromSite maps the YAML site block onto a scanner layout.
func LayoutFromSite(site config.SiteConfig) scanner.Layout {
	return scanner.Layout{
		BaseURL:            site.BaseURL,
		PageURLTemplate:    site.PageURLTemplate,
		PaginationSelector: site.PaginationSelector,
		PagePattern:        site.PagePattern,
		ContainerSelectors: site.ContainerSelectors,
		TitleSelectors:     site.TitleSelectors,
		ContentSelectors:   site.ContentSelectors,
		RemoveSelectors:    site.RemoveSelectors,
	}
}

// RegisterSites builds a blog scanner per site and registers it under the site name.
func RegisterSites(reg *scanner.Registry, sites []config.SiteConfig, client *http.Client) error {
	for _, site := range sites {
		if site.Scanner != "" && site.Scanner != "blog" {
			return fmt.Errorf("site %s: unknown scanner %q", site.Name, site.Scanner)
		}
		blog, err := NewBlogScanner(site.Name, LayoutFromSite(site), client)
		if err != nil {
			return err
		}
		reg.Register(blog)
	}
	return nil
}
