package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "REWRITER_CONFIG"

	portEnv            = "PORT"
	appEnvEnv          = "APP_ENV"
	logLevelEnv        = "LOG_LEVEL"
	storeDriverEnv     = "STORE_DRIVER"
	mongoURIEnv        = "MONGODB_URI"
	mongoDatabaseEnv   = "MONGODB_DATABASE"
	databaseDSNEnv     = "DATABASE_DSN"
	llmProviderEnv     = "LLM_PROVIDER"
	openAIKeyEnv       = "OPENAI_API_KEY"
	openAIModelEnv     = "OPENAI_MODEL"
	openAIBaseURLEnv   = "OPENAI_BASE_URL"
	anthropicKeyEnv    = "ANTHROPIC_API_KEY"
	anthropicModelEnv  = "ANTHROPIC_MODEL"
	blogURLEnv         = "BEYONDCHATS_BLOG_URL"
	apiBaseURLEnv      = "API_BASE_URL"
	searchURLEnv       = "SEARCH_URL"
	redisURLEnv        = "REDIS_URL"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	schedulerCronEnv   = "SCHEDULER_CRON"
	rewriteQueueEnv    = "REWRITE_QUEUE"
	defaultSiteName    = "beyondchats"
	defaultBlogURL     = "https://beyondchats.com/blogs/"
	defaultSearchURL   = "https://www.google.com/search"
	defaultOpenAIModel = "gpt-4"
)

const defaultSystemPrompt = `You are an expert content rewriter. Your task is to rewrite articles to be:
1. Original and unique (no plagiarism)
2. Well-structured with proper headings
3. SEO-friendly
4. Engaging and informative
5. Maintaining the original meaning and key points

When given the original article and reference content, create a completely rewritten version that incorporates insights from all sources while being entirely original.`

// Store drivers understood by the storage layer.
const (
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Queues the batch rewriter can read pending articles from.
const (
	QueueStore = "store"
	QueueAPI   = "api"
)

// Config holds high-level settings required across the application.
type Config struct {
	App           AppConfig          `yaml:"app"`
	Store         StoreConfig        `yaml:"store"`
	LLM           LLMConfig          `yaml:"llm"`
	Rewrite       RewriteConfig      `yaml:"rewrite"`
	Search        SearchConfig       `yaml:"search"`
	Fetcher       FetcherConfig      `yaml:"fetcher"`
	Cache         CacheConfig        `yaml:"cache"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// AppConfig covers the process itself.
type AppConfig struct {
	Port       int    `yaml:"port"`
	Env        string `yaml:"env"`
	LogLevel   string `yaml:"logLevel"`
	APIBaseURL string `yaml:"apiBaseUrl"`
}

// StoreConfig selects and connects the article store.
type StoreConfig struct {
	Driver        string   `yaml:"driver"`
	MongoURI      string   `yaml:"mongoUri"`
	MongoDatabase string   `yaml:"mongoDatabase"`
	DSN           string   `yaml:"dsn"`
	Timeout       Duration `yaml:"timeout"`
}

// LLMConfig defines how to contact the language model.
type LLMConfig struct {
	Provider     string          `yaml:"provider"`
	SystemPrompt string          `yaml:"systemPrompt"`
	OpenAI       OpenAIConfig    `yaml:"openai"`
	Anthropic    AnthropicConfig `yaml:"anthropic"`
}

// OpenAIConfig holds chat completion API settings.
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseUrl"`
}

// AnthropicConfig holds messages API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// RewriteConfig tunes the batch orchestrator.
type RewriteConfig struct {
	MaxArticles          int      `yaml:"maxArticles"`
	ResultsPerArticle    int      `yaml:"resultsPerArticle"`
	DelayBetweenArticles Duration `yaml:"delayBetweenArticles"`
	DelayBetweenScrapes  Duration `yaml:"delayBetweenScrapes"`
	MinReferenceLength   int      `yaml:"minReferenceLength"`
	MaxTokens            int      `yaml:"maxTokens"`
	Temperature          float64  `yaml:"temperature"`
	GenerateTitle        bool     `yaml:"generateTitle"`
	GenerateMeta         bool     `yaml:"generateMeta"`
	Queue                string   `yaml:"queue"`
}

// SearchConfig describes the reference search engine.
type SearchConfig struct {
	URL             string   `yaml:"url"`
	Timeout         Duration `yaml:"timeout"`
	MaxRetries      int      `yaml:"maxRetries"`
	BaseDelay       Duration `yaml:"baseDelay"`
	ExcludedDomains []string `yaml:"excludedDomains"`
}

// FetcherConfig tunes the static and rendered page fetchers.
type FetcherConfig struct {
	UserAgent        string   `yaml:"userAgent"`
	StaticTimeout    Duration `yaml:"staticTimeout"`
	RenderTimeout    Duration `yaml:"renderTimeout"`
	SelectorWait     Duration `yaml:"selectorWait"`
	EscalateBelow    int      `yaml:"escalateBelow"`
	MinContentLength int      `yaml:"minContentLength"`
	ContentSelectors []string `yaml:"contentSelectors"`
	RemoveSelectors  []string `yaml:"removeSelectors"`
	DisableRendering bool     `yaml:"disableRendering"`
}

// CacheConfig enables the redis search cache when RedisURL is set.
type CacheConfig struct {
	RedisURL string   `yaml:"redisUrl"`
	TTL      Duration `yaml:"ttl"`
}

// SchedulerConfig defines when the rewrite run should repeat.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.UTC
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// SiteConfig describes one source blog and its layout. Empty selector
// lists fall back to the scanner's WordPress defaults.
type SiteConfig struct {
	Name               string   `yaml:"name"`
	Scanner            string   `yaml:"scanner"`
	BaseURL            string   `yaml:"baseUrl"`
	PageURLTemplate    string   `yaml:"pageUrlTemplate"`
	PaginationSelector string   `yaml:"paginationSelector"`
	PagePattern        string   `yaml:"pagePattern"`
	ContainerSelectors []string `yaml:"containerSelectors"`
	TitleSelectors     []string `yaml:"titleSelectors"`
	ContentSelectors   []string `yaml:"contentSelectors"`
	RemoveSelectors    []string `yaml:"removeSelectors"`
	RequestInterval    Duration `yaml:"requestInterval"`
}

// Load reads .env, the YAML file (if configured) and applies environment overrides.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	cfg.bindTimezone()
	cfg.fillSiteDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.App.Port < 1 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port %d out of range", c.App.Port))
	}
	switch c.Store.Driver {
	case DriverMongo, DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of mongo, sqlite, postgres", c.Store.Driver))
	}
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of openai, anthropic", c.LLM.Provider))
	}
	if c.Rewrite.MaxArticles <= 0 {
		errs = append(errs, errors.New("rewrite.maxArticles must be positive"))
	}
	if c.Rewrite.ResultsPerArticle <= 0 {
		errs = append(errs, errors.New("rewrite.resultsPerArticle must be positive"))
	}
	switch c.Rewrite.Queue {
	case QueueStore:
	case QueueAPI:
		if c.App.APIBaseURL == "" {
			errs = append(errs, errors.New("rewrite.queue api needs app.apiBaseUrl"))
		}
	default:
		errs = append(errs, fmt.Errorf("rewrite.queue %q is not one of store, api", c.Rewrite.Queue))
	}
	if c.Search.MaxRetries <= 0 {
		errs = append(errs, errors.New("search.maxRetries must be positive"))
	}
	if len(c.Sites) == 0 {
		errs = append(errs, errors.New("at least one site is required"))
	}
	for _, site := range c.Sites {
		if site.BaseURL == "" {
			errs = append(errs, fmt.Errorf("site %s: baseUrl is required", site.Name))
		}
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the app runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(portEnv); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", portEnv, err)
		}
		c.App.Port = port
	}

	setString(&c.App.Env, appEnvEnv)
	setString(&c.App.LogLevel, logLevelEnv)
	setString(&c.App.APIBaseURL, apiBaseURLEnv)

	setString(&c.Store.Driver, storeDriverEnv)
	setString(&c.Store.MongoURI, mongoURIEnv)
	setString(&c.Store.MongoDatabase, mongoDatabaseEnv)
	setString(&c.Store.DSN, databaseDSNEnv)

	setString(&c.LLM.Provider, llmProviderEnv)
	setString(&c.LLM.OpenAI.APIKey, openAIKeyEnv)
	setString(&c.LLM.OpenAI.Model, openAIModelEnv)
	setString(&c.LLM.OpenAI.BaseURL, openAIBaseURLEnv)
	setString(&c.LLM.Anthropic.APIKey, anthropicKeyEnv)
	setString(&c.LLM.Anthropic.Model, anthropicModelEnv)

	setString(&c.Rewrite.Queue, rewriteQueueEnv)
	setString(&c.Search.URL, searchURLEnv)
	setString(&c.Cache.RedisURL, redisURLEnv)
	setString(&c.Scheduler.CronExpression, schedulerCronEnv)
	setString(&c.Notifications.Telegram.BotToken, telegramTokenEnv)
	setString(&c.Notifications.Telegram.ChatID, telegramChatIDEnv)

	if v := os.Getenv(blogURLEnv); v != "" {
		for i := range c.Sites {
			if c.Sites[i].Name == defaultSiteName {
				c.Sites[i].BaseURL = v
			}
		}
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	c.Scheduler.location = loc
}

func (c *Config) fillSiteDefaults() {
	for i := range c.Sites {
		site := &c.Sites[i]
		if site.Scanner == "" {
			site.Scanner = "blog"
		}
		if site.BaseURL != "" && !strings.HasSuffix(site.BaseURL, "/") {
			site.BaseURL += "/"
		}
		if site.RequestInterval.IsZero() {
			site.RequestInterval = DurationFrom(time.Second)
		}
	}
}

func defaultConfig() Config {
	return Config{
		App: AppConfig{
			Port:       5000,
			Env:        "development",
			LogLevel:   "info",
			APIBaseURL: "http://localhost:5000/api",
		},
		Store: StoreConfig{
			Driver:        DriverMongo,
			MongoURI:      "mongodb://localhost:27017/beyondchats_articles",
			MongoDatabase: "beyondchats_articles",
			DSN:           "file:articles.db?_pragma=busy_timeout(5000)",
			Timeout:       DurationFrom(10 * time.Second),
		},
		LLM: LLMConfig{
			Provider:     "openai",
			SystemPrompt: defaultSystemPrompt,
			OpenAI:       OpenAIConfig{Model: defaultOpenAIModel},
			Anthropic:    AnthropicConfig{Model: "claude-3-5-sonnet-latest"},
		},
		Rewrite: RewriteConfig{
			MaxArticles:          5,
			ResultsPerArticle:    2,
			DelayBetweenArticles: DurationFrom(5 * time.Second),
			DelayBetweenScrapes:  DurationFrom(2 * time.Second),
			MinReferenceLength:   200,
			MaxTokens:            4000,
			Temperature:          0.7,
			Queue:                QueueStore,
		},
		Search: SearchConfig{
			URL:        defaultSearchURL,
			Timeout:    DurationFrom(10 * time.Second),
			MaxRetries: 3,
			BaseDelay:  DurationFrom(2 * time.Second),
			ExcludedDomains: []string{
				"youtube.com", "facebook.com", "twitter.com", "linkedin.com",
				"instagram.com", "pinterest.com", "reddit.com", "quora.com",
				"wikipedia.org", "beyondchats.com",
			},
		},
		Fetcher: FetcherConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
				"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			StaticTimeout:    DurationFrom(15 * time.Second),
			RenderTimeout:    DurationFrom(30 * time.Second),
			SelectorWait:     DurationFrom(5 * time.Second),
			EscalateBelow:    500,
			MinContentLength: 200,
		},
		Cache:     CacheConfig{TTL: DurationFrom(6 * time.Hour)},
		Scheduler: SchedulerConfig{Timezone: defaultTimezone},
		Sites: []SiteConfig{
			{Name: defaultSiteName, Scanner: "blog", BaseURL: defaultBlogURL},
		},
	}
}
