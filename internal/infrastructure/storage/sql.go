package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"ArticleRewriter/internal/config"
	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	slug              TEXT NOT NULL UNIQUE,
	original_content  TEXT NOT NULL,
	rewritten_content TEXT NOT NULL DEFAULT '',
	references_json   TEXT NOT NULL DEFAULT '[]',
	status            TEXT NOT NULL,
	source            TEXT NOT NULL,
	source_url        TEXT NOT NULL DEFAULT '',
	word_count        INTEGER NOT NULL DEFAULT 0,
	reading_time      INTEGER NOT NULL DEFAULT 0,
	created_at        BIGINT NOT NULL,
	updated_at        BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_status ON articles (status);
CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles (created_at);
`

var articleColumns = []string{
	"id", "title", "slug", "original_content", "rewritten_content", "references_json",
	"status", "source", "source_url", "word_count", "reading_time", "created_at", "updated_at",
}

// SQLStore keeps articles in SQLite or Postgres.
type SQLStore struct {
	db     *sql.DB
	qb     sq.StatementBuilderType
	now    func() time.Time
	logger *zap.Logger
}

var _ ports.ArticleStore = (*SQLStore)(nil)

// NewSQLStore opens the database and creates the schema when missing.
func NewSQLStore(ctx context.Context, driver, dsn string, logger *zap.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	qb, err := statementBuilder(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == config.DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLStore{
		db:     db,
		qb:     qb,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(zap.String("component", "sql_store"), zap.String("driver", driver)),
	}
	s.logger.Info("sql store ready")
	return s, nil
}

// statementBuilder picks the bind-parameter style of the driver.
func statementBuilder(driver string) (sq.StatementBuilderType, error) {
	var placeholder sq.PlaceholderFormat
	switch driver {
	case config.DriverSQLite:
		placeholder = sq.Question
	case config.DriverPostgres:
		placeholder = sq.Dollar
	default:
		return sq.StatementBuilderType{}, fmt.Errorf("unsupported sql driver %q", driver)
	}
	return sq.StatementBuilder.PlaceholderFormat(placeholder), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// Create inserts a new article; an existing slug yields ErrDuplicateSlug.
func (s *SQLStore) Create(ctx context.Context, article *domain.Article) error {
	if article.References == nil {
		article.References = []domain.Reference{}
	}
	article.Recompute()
	if err := article.Validate(); err != nil {
		return err
	}
	if _, err := s.FindBySlug(ctx, article.Slug); err == nil {
		return domain.ErrDuplicateSlug
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	refs, err := json.Marshal(article.References)
	if err != nil {
		return fmt.Errorf("encode references: %w", err)
	}
	now := s.now()
	id := uuid.NewString()

	query, args, err := s.qb.Insert("articles").Columns(articleColumns...).Values(
		id, article.Title, article.Slug, article.OriginalContent, article.RewrittenContent, string(refs),
		string(article.Status), article.Source, article.SourceURL,
		article.Metadata.WordCount, article.Metadata.ReadingTime, now.UnixNano(), now.UnixNano(),
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateSlug
		}
		return fmt.Errorf("insert article: %w", err)
	}

	article.ID = id
	article.CreatedAt, article.UpdatedAt = now, now
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var (
		a                  domain.Article
		refs, status       string
		created, updated   int64
		words, readingTime int
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Slug, &a.OriginalContent, &a.RewrittenContent, &refs,
		&status, &a.Source, &a.SourceURL, &words, &readingTime, &created, &updated); err != nil {
		return domain.Article{}, err
	}
	a.References = []domain.Reference{}
	if refs != "" {
		if err := json.Unmarshal([]byte(refs), &a.References); err != nil {
			return domain.Article{}, fmt.Errorf("decode references: %w", err)
		}
	}
	a.Status = domain.Status(status)
	a.Metadata = domain.Metadata{WordCount: words, ReadingTime: readingTime}
	a.CreatedAt = time.Unix(0, created).UTC()
	a.UpdatedAt = time.Unix(0, updated).UTC()
	return a, nil
}

func (s *SQLStore) findOne(ctx context.Context, where sq.Sqlizer) (domain.Article, error) {
	query, args, err := s.qb.Select(articleColumns...).From("articles").Where(where).Limit(1).ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build select: %w", err)
	}
	a, err := scanArticle(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Article{}, domain.ErrNotFound
		}
		return domain.Article{}, fmt.Errorf("find article: %w", err)
	}
	return a, nil
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (domain.Article, error) {
	return s.findOne(ctx, sq.Eq{"id": id})
}

func (s *SQLStore) FindBySlug(ctx context.Context, slug string) (domain.Article, error) {
	return s.findOne(ctx, sq.Eq{"slug": slug})
}

func (s *SQLStore) query(ctx context.Context, b sq.SelectBuilder) ([]domain.Article, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	articles := []domain.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

func listWhere(q ports.ListQuery) sq.And {
	where := sq.And{}
	if q.Status != nil {
		where = append(where, sq.Eq{"status": string(*q.Status)})
	}
	if q.Source != "" {
		where = append(where, sq.Eq{"source": q.Source})
	}
	return where
}

// List returns one page of articles and the total matching count.
func (s *SQLStore) List(ctx context.Context, q ports.ListQuery) ([]domain.Article, int64, error) {
	where := listWhere(q)
	order := sortFields[sortKey(q.Sort.Field)]
	if q.Sort.Desc {
		order += " DESC"
	}

	b := s.qb.Select(articleColumns...).From("articles").Where(where).OrderBy(order, "id")
	switch {
	case q.Limit > 0:
		b = b.Limit(uint64(q.Limit))
	case q.Offset > 0:
		b = b.Limit(math.MaxInt32)
	}
	if q.Offset > 0 {
		b = b.Offset(uint64(q.Offset))
	}
	articles, err := s.query(ctx, b)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.count(ctx, where)
	if err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

func (s *SQLStore) count(ctx context.Context, where sq.And) (int64, error) {
	query, args, err := s.qb.Select("COUNT(*)").From("articles").Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

// ListPending returns the oldest original articles first.
func (s *SQLStore) ListPending(ctx context.Context, limit int) ([]domain.Article, error) {
	b := s.qb.Select(articleColumns...).From("articles").
		Where(sq.Eq{"status": string(domain.StatusOriginal)}).
		OrderBy("created_at", "id").
		Limit(uint64(limit))
	return s.query(ctx, b)
}

// Update applies a partial patch. A title change that collides with another slug is ErrDuplicateSlug.
func (s *SQLStore) Update(ctx context.Context, id string, patch domain.ArticlePatch) (domain.Article, error) {
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return domain.Article{}, err
	}
	oldSlug := current.Slug
	patch.Apply(&current)
	if err := current.Validate(); err != nil {
		return domain.Article{}, err
	}
	if current.Slug != oldSlug {
		if other, err := s.FindBySlug(ctx, current.Slug); err == nil && other.ID != id {
			return domain.Article{}, domain.ErrDuplicateSlug
		}
	}

	refs, err := json.Marshal(current.References)
	if err != nil {
		return domain.Article{}, fmt.Errorf("encode references: %w", err)
	}
	current.UpdatedAt = s.now()

	query, args, err := s.qb.Update("articles").SetMap(map[string]any{
		"title":             current.Title,
		"slug":              current.Slug,
		"original_content":  current.OriginalContent,
		"rewritten_content": current.RewrittenContent,
		"references_json":   string(refs),
		"status":            string(current.Status),
		"word_count":        current.Metadata.WordCount,
		"reading_time":      current.Metadata.ReadingTime,
		"updated_at":        current.UpdatedAt.UnixNano(),
	}).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Article{}, domain.ErrDuplicateSlug
		}
		return domain.Article{}, fmt.Errorf("update article: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Article{}, domain.ErrNotFound
	}
	return current, nil
}

// MarkRewritten stores the rewrite, its references and the new status in one write.
func (s *SQLStore) MarkRewritten(ctx context.Context, id, content string, refs []domain.Reference) error {
	status := domain.StatusRewritten
	if refs == nil {
		refs = []domain.Reference{}
	}
	_, err := s.Update(ctx, id, domain.ArticlePatch{RewrittenContent: &content, References: refs, Status: &status})
	return err
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	query, args, err := s.qb.Delete("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLStore) CountByStatus(ctx context.Context, status *domain.Status) (int64, error) {
	return s.count(ctx, listWhere(ports.ListQuery{Status: status}))
}

// Latest returns the most recently created article.
func (s *SQLStore) Latest(ctx context.Context) (domain.Article, error) {
	query, args, err := s.qb.Select(articleColumns...).From("articles").
		OrderBy("created_at DESC", "id DESC").Limit(1).ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build select: %w", err)
	}
	a, err := scanArticle(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Article{}, domain.ErrNotFound
		}
		return domain.Article{}, fmt.Errorf("latest article: %w", err)
	}
	return a, nil
}

func (s *SQLStore) Close(context.Context) error {
	return s.db.Close()
}
