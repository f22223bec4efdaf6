package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ArticleRewriter/internal/api"
	"ArticleRewriter/internal/config"
	"ArticleRewriter/internal/infrastructure/apiclient"
	"ArticleRewriter/internal/infrastructure/cache"
	"ArticleRewriter/internal/infrastructure/fetcher"
	"ArticleRewriter/internal/infrastructure/llm"
	"ArticleRewriter/internal/infrastructure/parser"
	"ArticleRewriter/internal/infrastructure/scheduler"
	"ArticleRewriter/internal/infrastructure/search"
	"ArticleRewriter/internal/infrastructure/storage"
	"ArticleRewriter/internal/infrastructure/telegram"
	"ArticleRewriter/internal/ports"
	"ArticleRewriter/internal/scanner"
	"ArticleRewriter/internal/usecase"
)

// ErrPipelineUnavailable is returned by RunOnce when no language model is configured.
var ErrPipelineUnavailable = errors.New("rewrite pipeline is not configured")

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *zap.Logger
	store     ports.ArticleStore
	redis     *cache.RedisStore
	importer  *usecase.Importer
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
}

func newApplication(cfg config.Config, logger *zap.Logger) *Application {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Application{cfg: cfg, logger: logger}
}

// NewRewriter builds the batch rewriter. The article store is opened only
// when the queue reads from it directly.
func NewRewriter(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Application, error) {
	a := newApplication(cfg, logger)

	var queue ports.RewriteQueue
	if cfg.Rewrite.Queue == config.QueueAPI {
		queue = apiclient.NewClient(cfg.App.APIBaseURL, a.logger)
		a.logger.Info("reading pending articles from api", zap.String("base_url", cfg.App.APIBaseURL))
	} else {
		if err := a.openStore(ctx); err != nil {
			return nil, err
		}
		queue = a.store
	}

	model, err := llm.New(cfg.LLM)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("language model: %w", err)
	}
	a.buildPipeline(ctx, queue, model)
	return a, nil
}

// NewServer builds everything the HTTP API needs. A missing language model
// only disables the rewrite endpoint and the cron runs.
func NewServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Application, error) {
	a := newApplication(cfg, logger)
	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	source, err := a.buildSource()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.importer = usecase.NewImporter(source, a.store, a.logger)

	model, err := llm.New(cfg.LLM)
	if err != nil {
		a.logger.Warn("language model unavailable, rewrite runs disabled", zap.Error(err))
		return a, nil
	}
	a.buildPipeline(ctx, a.store, model)

	if cfg.Scheduler.CronExpression != "" {
		driver, err := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), a.logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.scheduler = usecase.NewScheduler(driver, a.pipeline, a.logger)
	}
	return a, nil
}

func (a *Application) openStore(ctx context.Context) error {
	store, err := storage.Open(ctx, a.cfg.Store, a.logger)
	if err != nil {
		return fmt.Errorf("open article store: %w", err)
	}
	a.store = store
	return nil
}

func (a *Application) buildSource() (*parser.StrategySource, error) {
	registry := scanner.NewRegistry()
	if err := parser.RegisterSites(registry, a.cfg.Sites, nil); err != nil {
		return nil, fmt.Errorf("register sites: %w", err)
	}
	return parser.NewStrategySource(registry, a.cfg.Sites, a.logger), nil
}

func (a *Application) buildFetcher() *fetcher.AdaptiveFetcher {
	fc := a.cfg.Fetcher
	static := fetcher.NewStaticFetcher(fetcher.StaticOptions{
		UserAgent:       fc.UserAgent,
		Timeout:         fc.StaticTimeout.Duration,
		Extractor:       fetcher.NewExtractor(fc.ContentSelectors, fc.MinContentLength),
		RemoveSelectors: fc.RemoveSelectors,
	}, a.logger)

	if fc.DisableRendering {
		return fetcher.NewAdaptiveFetcher(static, nil, fc.EscalateBelow, a.logger)
	}
	rendered, err := fetcher.NewRenderedFetcher(fetcher.RenderOptions{
		UserAgent:       fc.UserAgent,
		Timeout:         fc.RenderTimeout.Duration,
		SelectorWait:    fc.SelectorWait.Duration,
		Selectors:       fc.ContentSelectors,
		RemoveSelectors: fc.RemoveSelectors,
		MinLength:       fc.MinContentLength,
	}, a.logger)
	if err != nil {
		a.logger.Warn("rendered fetcher unavailable, using static only", zap.Error(err))
		return fetcher.NewAdaptiveFetcher(static, nil, fc.EscalateBelow, a.logger)
	}
	return fetcher.NewAdaptiveFetcher(static, rendered, fc.EscalateBelow, a.logger)
}

func (a *Application) buildSearcher(ctx context.Context) ports.Searcher {
	sc := a.cfg.Search
	var searcher ports.Searcher = search.NewClient(search.Options{
		Endpoint:        sc.URL,
		Timeout:         sc.Timeout.Duration,
		ExcludedDomains: sc.ExcludedDomains,
	}, a.logger)

	if url := a.cfg.Cache.RedisURL; url != "" {
		rs, err := cache.Connect(ctx, url)
		if err != nil {
			a.logger.Warn("search cache disabled", zap.Error(err))
		} else {
			a.redis = rs
			searcher = cache.NewSearchCache(searcher, rs, a.cfg.Cache.TTL.Duration, a.logger)
		}
	}
	return search.NewRetryingSearcher(searcher, sc.MaxRetries, sc.BaseDelay.Duration, a.logger)
}

func (a *Application) buildPipeline(ctx context.Context, queue ports.RewriteQueue, model ports.ChatModel) {
	rc := a.cfg.Rewrite
	rewriter := usecase.NewRewriter(model, usecase.RewriterOptions{
		SystemPrompt: a.cfg.LLM.SystemPrompt,
		MaxTokens:    rc.MaxTokens,
		Temperature:  &rc.Temperature,
	}, a.logger)

	deps := usecase.PipelineDeps{
		Queue:    queue,
		Searcher: a.buildSearcher(ctx),
		Fetcher:  a.buildFetcher(),
		Rewriter: rewriter,
		Logger:   a.logger,
		Options: usecase.PipelineOptions{
			MaxArticles:          rc.MaxArticles,
			ResultsPerArticle:    rc.ResultsPerArticle,
			DelayBetweenArticles: rc.DelayBetweenArticles.Duration,
			DelayBetweenScrapes:  rc.DelayBetweenScrapes.Duration,
			MinReferenceLength:   rc.MinReferenceLength,
			GenerateTitle:        rc.GenerateTitle,
			GenerateMeta:         rc.GenerateMeta,
		},
	}
	if tg := a.cfg.Notifications.Telegram; tg.Enabled() {
		deps.Notifier = telegram.NewNotifier(tg, a.logger)
	}
	a.pipeline = usecase.NewPipeline(deps)
}

// RunOnce executes a single rewrite batch.
func (a *Application) RunOnce(ctx context.Context) (usecase.RunReport, error) {
	if a.pipeline == nil {
		return usecase.RunReport{}, ErrPipelineUnavailable
	}
	return a.pipeline.Run(ctx)
}

// Serve runs the HTTP API and the optional cron runs until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if a.store == nil || a.importer == nil {
		return errors.New("application was not built for serving")
	}

	var runner api.Runner
	if a.pipeline != nil {
		runner = a.pipeline
	}
	handler := api.NewHandler(a.store, a.importer, runner, a.logger)
	router := api.NewRouter(handler, a.logger, !a.cfg.IsProduction())

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.logger.Info("scheduled rewrite runs enabled", zap.String("cron", a.cfg.Scheduler.CronExpression))
	}

	return api.NewServer(a.cfg.App.Port, router, a.logger).Run(ctx)
}

// Close stops the scheduler and releases the store and cache connections.
func (a *Application) Close(ctx context.Context) {
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.logger.Warn("stop scheduler", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			a.logger.Warn("close article store", zap.Error(err))
		}
	}
}
