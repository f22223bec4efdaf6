package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticleRewriter/internal/config"
	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()

	store, err := NewSQLStore(context.Background(), config.DriverSQLite, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	var mu sync.Mutex
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return store
}

func mustCreate(t *testing.T, s *SQLStore, title, content string) domain.Article {
	t.Helper()
	a := domain.NewDraft(title, content, "https://beyondchats.com/blogs/"+title, "")
	require.NoError(t, s.Create(context.Background(), &a))
	return a
}

func TestSQLStoreCreateAndFind(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, "Hello World", "one two three")
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "hello-world", created.Slug)
	assert.Equal(t, 3, created.Metadata.WordCount)
	assert.Equal(t, 1, created.Metadata.ReadingTime)

	byID, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, byID.Title)
	assert.Equal(t, domain.StatusOriginal, byID.Status)
	assert.Equal(t, domain.DefaultSource, byID.Source)
	assert.Equal(t, []domain.Reference{}, byID.References)
	assert.True(t, created.CreatedAt.Equal(byID.CreatedAt))

	bySlug, err := s.FindBySlug(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySlug.ID)

	_, err = s.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLStoreDuplicateSlug(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	mustCreate(t, s, "Same Title", "a")
	dup := domain.NewDraft("same title", "b", "", "")
	err := s.Create(context.Background(), &dup)
	assert.ErrorIs(t, err, domain.ErrDuplicateSlug)
}

func TestSQLStoreCreateValidates(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	a := domain.NewDraft("Title", "", "", "")
	err := s.Create(context.Background(), &a)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSQLStorePendingOrder(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	first := mustCreate(t, s, "first", "body")
	second := mustCreate(t, s, "second", "body")
	third := mustCreate(t, s, "third", "body")
	require.NoError(t, s.MarkRewritten(ctx, second.ID, "new body", nil))

	pending, err := s.ListPending(ctx, 5)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, third.ID, pending[1].ID)

	limited, err := s.ListPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, first.ID, limited[0].ID)
}

func TestSQLStoreMarkRewrittenRecomputesMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, "metrics", "short")
	refs := []domain.Reference{{Title: "Ref", URL: "https://ref.example.com"}}
	rewritten := strings.Repeat("word ", 402)

	require.NoError(t, s.MarkRewritten(ctx, a.ID, rewritten, refs))
	got, err := s.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRewritten, got.Status)
	assert.Equal(t, refs, got.References)
	assert.Equal(t, 402, got.Metadata.WordCount)
	assert.Equal(t, 3, got.Metadata.ReadingTime)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	assert.ErrorIs(t, s.MarkRewritten(ctx, "missing", "x", nil), domain.ErrNotFound)
}

func TestSQLStoreUpdate(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, "Alpha", "body")
	mustCreate(t, s, "Beta", "body")

	title := "Alpha Prime"
	updated, err := s.Update(ctx, a.ID, domain.ArticlePatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "alpha-prime", updated.Slug)

	taken := "Beta"
	_, err = s.Update(ctx, a.ID, domain.ArticlePatch{Title: &taken})
	assert.ErrorIs(t, err, domain.ErrDuplicateSlug)

	bad := domain.Status("archived")
	_, err = s.Update(ctx, a.ID, domain.ArticlePatch{Status: &bad})
	assert.ErrorIs(t, err, domain.ErrValidation)

	symbols := "!!!"
	_, err = s.Update(ctx, a.ID, domain.ArticlePatch{Title: &symbols})
	assert.ErrorIs(t, err, domain.ErrValidation)
	kept, err := s.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha-prime", kept.Slug)
	assert.Equal(t, "Alpha Prime", kept.Title)

	_, err = s.Update(ctx, "missing", domain.ArticlePatch{Title: &title})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLStoreListFiltersAndPages(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		mustCreate(t, s, fmt.Sprintf("post %d", i), "body")
	}
	other := domain.NewDraft("elsewhere", "body", "", "medium")
	require.NoError(t, s.Create(ctx, &other))

	page, total, err := s.List(ctx, ports.ListQuery{Sort: ports.SortField{Field: "createdAt", Desc: true}, Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	require.Len(t, page, 2)
	assert.Equal(t, "post 4", page[0].Title)
	assert.Equal(t, "post 3", page[1].Title)

	bySource, total, err := s.List(ctx, ports.ListQuery{Source: "medium", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "elsewhere", bySource[0].Title)

	status := domain.StatusRewritten
	none, total, err := s.List(ctx, ports.ListQuery{Status: &status, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)

	byTitle, _, err := s.List(ctx, ports.ListQuery{Sort: ports.SortField{Field: "title"}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, "elsewhere", byTitle[0].Title)

	tail, _, err := s.List(ctx, ports.ListQuery{Offset: 5})
	require.NoError(t, err)
	assert.Len(t, tail, 1)
}

func TestSQLStoreDeleteCountLatest(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Latest(ctx)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	a := mustCreate(t, s, "one", "body")
	b := mustCreate(t, s, "two", "body")
	require.NoError(t, s.MarkRewritten(ctx, a.ID, "done", nil))

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, latest.ID)

	original := domain.StatusOriginal
	n, err := s.CountByStatus(ctx, &original)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = s.CountByStatus(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.NoError(t, s.Delete(ctx, b.ID))
	assert.ErrorIs(t, s.Delete(ctx, b.ID), domain.ErrNotFound)
}

func TestStatementBuilderPlaceholders(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		config.DriverSQLite:   "SELECT id FROM articles WHERE id = ?",
		config.DriverPostgres: "SELECT id FROM articles WHERE id = $1",
	}
	for driver, want := range cases {
		qb, err := statementBuilder(driver)
		require.NoError(t, err, driver)
		store := &SQLStore{qb: qb}
		query, args, err := store.qb.Select("id").From("articles").Where(sq.Eq{"id": "x"}).ToSql()
		require.NoError(t, err)
		assert.Equal(t, want, query)
		assert.Equal(t, []any{"x"}, args)
	}

	_, err := statementBuilder("oracle")
	assert.Error(t, err)
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), config.StoreConfig{Driver: "cassandra"}, nil)
	require.Error(t, err)
}
