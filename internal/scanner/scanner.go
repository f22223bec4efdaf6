package scanner

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"ArticleRewriter/internal/domain"
)

// Layout holds the selectors and URL shapes of one blog. It is pure data so
// a redesigned site only needs new configuration.
type Layout struct {
	BaseURL            string
	PageURLTemplate    string
	PaginationSelector string
	PagePattern        string
	ContainerSelectors []string
	TitleSelectors     []string
	ContentSelectors   []string
	RemoveSelectors    []string
}

// DefaultLayout returns the WordPress heuristics for baseURL.
func DefaultLayout(baseURL string) Layout {
	return Layout{
		BaseURL:            baseURL,
		PageURLTemplate:    "{base}page/{n}/",
		PaginationSelector: `a[href*="/page/"]`,
		PagePattern:        `/page/(\d+)`,
		ContainerSelectors: []string{"article", ".post", ".blog-post", ".entry"},
		TitleSelectors:     []string{"h2 a", "h3 a", ".entry-title a", ".post-title a"},
		ContentSelectors: []string{
			".entry-content", ".post-content", ".article-content",
			"article .content", ".blog-content", "main article",
		},
		RemoveSelectors: []string{
			"script", "style", "nav", "header", "footer",
			".sidebar", ".comments", ".related-posts", ".share-buttons",
		},
	}
}

// Merge fills empty fields of l from def.
func (l Layout) Merge(def Layout) Layout {
	if l.BaseURL == "" {
		l.BaseURL = def.BaseURL
	}
	if l.PageURLTemplate == "" {
		l.PageURLTemplate = def.PageURLTemplate
	}
	if l.PaginationSelector == "" {
		l.PaginationSelector = def.PaginationSelector
	}
	if l.PagePattern == "" {
		l.PagePattern = def.PagePattern
	}
	if len(l.ContainerSelectors) == 0 {
		l.ContainerSelectors = def.ContainerSelectors
	}
	if len(l.TitleSelectors) == 0 {
		l.TitleSelectors = def.TitleSelectors
	}
	if len(l.ContentSelectors) == 0 {
		l.ContentSelectors = def.ContentSelectors
	}
	if len(l.RemoveSelectors) == 0 {
		l.RemoveSelectors = def.RemoveSelectors
	}
	return l
}

// PageURL returns the listing URL of page n; page 1 is the base URL.
func (l Layout) PageURL(n int) string {
	if n <= 1 {
		return l.BaseURL
	}
	r := strings.NewReplacer("{base}", l.BaseURL, "{n}", strconv.Itoa(n))
	return r.Replace(l.PageURLTemplate)
}

// Scanner captures a single source-site strategy.
type Scanner interface {
	Name() string
	DiscoverPageCount(ctx context.Context) (int, error)
	ListArticleLinks(ctx context.Context, page int) ([]domain.ArticleLink, error)
	FetchArticleContent(ctx context.Context, url string) (string, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
