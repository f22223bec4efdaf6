package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
)

type memStore struct {
	mu       sync.Mutex
	articles map[string]domain.Article
	seq      int
	clock    time.Time
	listErr  error
	markErr  map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		articles: map[string]domain.Article{},
		markErr:  map[string]error{},
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) seed(drafts ...domain.Article) []domain.Article {
	out := make([]domain.Article, 0, len(drafts))
	for _, d := range drafts {
		d := d
		if err := m.Create(context.Background(), &d); err != nil {
			panic(err)
		}
		out = append(out, d)
	}
	return out
}

func (m *memStore) Create(_ context.Context, a *domain.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.articles {
		if existing.Slug == a.Slug {
			return domain.ErrDuplicateSlug
		}
	}
	m.seq++
	m.clock = m.clock.Add(time.Minute)
	a.ID = fmt.Sprintf("a%d", m.seq)
	a.CreatedAt, a.UpdatedAt = m.clock, m.clock
	m.articles[a.ID] = *a
	return nil
}

func (m *memStore) FindByID(_ context.Context, id string) (domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return domain.Article{}, domain.ErrNotFound
	}
	return a, nil
}

func (m *memStore) FindBySlug(_ context.Context, slug string) (domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.articles {
		if a.Slug == slug {
			return a, nil
		}
	}
	return domain.Article{}, domain.ErrNotFound
}

func (m *memStore) sorted() []domain.Article {
	out := make([]domain.Article, 0, len(m.articles))
	for _, a := range m.articles {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memStore) List(_ context.Context, q ports.ListQuery) ([]domain.Article, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Article
	for _, a := range m.sorted() {
		if q.Status != nil && a.Status != *q.Status {
			continue
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) ListPending(_ context.Context, limit int) ([]domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Article
	for _, a := range m.sorted() {
		if a.Status == domain.StatusOriginal && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, id string, patch domain.ArticlePatch) (domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return domain.Article{}, domain.ErrNotFound
	}
	patch.Apply(&a)
	m.articles[id] = a
	return a, nil
}

func (m *memStore) MarkRewritten(_ context.Context, id, content string, refs []domain.Reference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.markErr[id]; err != nil {
		return err
	}
	a, ok := m.articles[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.RewrittenContent = content
	a.References = refs
	a.Status = domain.StatusRewritten
	a.Recompute()
	m.articles[id] = a
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.articles[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.articles, id)
	return nil
}

func (m *memStore) CountByStatus(_ context.Context, status *domain.Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.articles {
		if status == nil || a.Status == *status {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Latest(_ context.Context) (domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	if len(all) == 0 {
		return domain.Article{}, domain.ErrNotFound
	}
	return all[len(all)-1], nil
}

func (m *memStore) Close(context.Context) error { return nil }

var _ ports.ArticleStore = (*memStore)(nil)

type fakeSearcher struct {
	results map[string][]domain.SearchResult
	fail    map[string]bool
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, n int) ([]domain.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.fail[query] {
		return nil, errors.New("search engine unreachable")
	}
	res := f.results[query]
	if len(res) > n {
		res = res[:n]
	}
	return res, nil
}

type fakeFetcher struct {
	pages map[string]domain.ScrapedContent
	urls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) domain.ScrapedContent {
	f.urls = append(f.urls, url)
	if page, ok := f.pages[url]; ok {
		page.URL = url
		return page
	}
	return domain.ScrapedContent{URL: url, Error: true}
}

type fakeModel struct {
	mu       sync.Mutex
	reply    func(req ports.ChatRequest) (string, error)
	requests []ports.ChatRequest
}

func (f *fakeModel) Complete(_ context.Context, req ports.ChatRequest) (ports.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	text, err := f.reply(req)
	if err != nil {
		return ports.ChatResponse{}, err
	}
	return ports.ChatResponse{Text: text, Usage: &domain.Usage{TotalTokens: 42}}, nil
}

type fakeSource struct {
	drafts []domain.Article
	err    error
}

func (f *fakeSource) OldestArticles(_ context.Context, count int) ([]domain.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.drafts) > count {
		return f.drafts[len(f.drafts)-count:], nil
	}
	return f.drafts, nil
}

type recordingNotifier struct {
	messages []string
	err      error
}

func (r *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	r.messages = append(r.messages, digest)
	return r.err
}
