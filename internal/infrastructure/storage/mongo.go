package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
)

const articlesCollection = "articles"

// MongoOptions locates the article collection.
type MongoOptions struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// MongoStore keeps articles in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
	logger *zap.Logger
}

var _ ports.ArticleStore = (*MongoStore)(nil)

type mongoArticle struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	domain.Article `bson:",inline"`
}

func (d mongoArticle) toDomain() domain.Article {
	a := d.Article
	a.ID = d.ID.Hex()
	if a.References == nil {
		a.References = []domain.Reference{}
	}
	return a
}

// NewMongoStore connects, pings and makes sure the indexes exist.
func NewMongoStore(ctx context.Context, opts MongoOptions, logger *zap.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Database == "" {
		opts.Database = "beyondchats_articles"
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.URI).SetServerSelectionTimeout(opts.Timeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &MongoStore{
		client: client,
		coll:   client.Database(opts.Database).Collection(articlesCollection),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(zap.String("component", "mongo_store")),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	s.logger.Info("mongo store ready", zap.String("database", opts.Database))
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Create inserts a new article; an existing slug yields ErrDuplicateSlug.
func (s *MongoStore) Create(ctx context.Context, article *domain.Article) error {
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

	now := s.now()
	article.CreatedAt, article.UpdatedAt = now, now
	doc := mongoArticle{ID: primitive.NewObjectID(), Article: *article}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateSlug
		}
		return fmt.Errorf("insert article: %w", err)
	}
	article.ID = doc.ID.Hex()
	return nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (domain.Article, error) {
	var doc mongoArticle
	if err := s.coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Article{}, domain.ErrNotFound
		}
		return domain.Article{}, fmt.Errorf("find article: %w", err)
	}
	return doc.toDomain(), nil
}

// FindByID treats malformed ids as not found.
func (s *MongoStore) FindByID(ctx context.Context, id string) (domain.Article, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Article{}, domain.ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) FindBySlug(ctx context.Context, slug string) (domain.Article, error) {
	return s.findOne(ctx, bson.M{"slug": slug})
}

func listFilter(q ports.ListQuery) bson.M {
	filter := bson.M{}
	if q.Status != nil {
		filter["status"] = *q.Status
	}
	if q.Source != "" {
		filter["source"] = q.Source
	}
	return filter
}

// List returns one page of articles and the total matching count.
func (s *MongoStore) List(ctx context.Context, q ports.ListQuery) ([]domain.Article, int64, error) {
	filter := listFilter(q)
	dir := 1
	if q.Sort.Desc {
		dir = -1
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: sortKey(q.Sort.Field), Value: dir}}).
		SetSkip(int64(q.Offset))
	if q.Limit > 0 {
		findOpts.SetLimit(int64(q.Limit))
	}

	articles, err := s.find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}
	return articles, total, nil
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Article, error) {
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}
	defer cur.Close(ctx)

	articles := []domain.Article{}
	for cur.Next(ctx) {
		var doc mongoArticle
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode article: %w", err)
		}
		articles = append(articles, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

// ListPending returns the oldest original articles first.
func (s *MongoStore) ListPending(ctx context.Context, limit int) ([]domain.Article, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(int64(limit))
	return s.find(ctx, bson.M{"status": domain.StatusOriginal}, opts)
}

// Update applies a partial patch. A title change that collides with another slug is ErrDuplicateSlug.
func (s *MongoStore) Update(ctx context.Context, id string, patch domain.ArticlePatch) (domain.Article, error) {
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
	current.UpdatedAt = s.now()

	oid, _ := primitive.ObjectIDFromHex(id)
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": oid}, mongoArticle{ID: oid, Article: current})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Article{}, domain.ErrDuplicateSlug
		}
		return domain.Article{}, fmt.Errorf("replace article: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.Article{}, domain.ErrNotFound
	}
	return current, nil
}

// MarkRewritten stores the rewrite, its references and the new status in one write.
func (s *MongoStore) MarkRewritten(ctx context.Context, id, content string, refs []domain.Reference) error {
	status := domain.StatusRewritten
	if refs == nil {
		refs = []domain.Reference{}
	}
	_, err := s.Update(ctx, id, domain.ArticlePatch{RewrittenContent: &content, References: refs, Status: &status})
	return err
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *MongoStore) CountByStatus(ctx context.Context, status *domain.Status) (int64, error) {
	filter := bson.M{}
	if status != nil {
		filter["status"] = *status
	}
	n, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

// Latest returns the most recently created article.
func (s *MongoStore) Latest(ctx context.Context) (domain.Article, error) {
	return s.findOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
