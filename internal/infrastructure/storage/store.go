package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ArticleRewriter/internal/config"
	"ArticleRewriter/internal/ports"
)

// sortFields maps the accepted sort keys to SQL columns. Mongo uses the keys as is.
var sortFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
}

func sortKey(field string) string {
	if _, ok := sortFields[field]; ok {
		return field
	}
	return "createdAt"
}

// Open connects the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (ports.ArticleStore, error) {
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	switch cfg.Driver {
	case config.DriverMongo:
		store, err := NewMongoStore(ctx, MongoOptions{URI: cfg.MongoURI, Database: cfg.MongoDatabase, Timeout: timeout}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverSQLite, config.DriverPostgres:
		store, err := NewSQLStore(ctx, cfg.Driver, cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
