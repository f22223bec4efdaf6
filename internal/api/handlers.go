package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
	"ArticleRewriter/internal/usecase"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
	defaultSort  = "-createdAt"
	apiVersion   = "1.0.0"
)

// Importer pulls source articles into the store.
type Importer interface {
	Import(ctx context.Context, count int) (usecase.ImportReport, error)
	Status(ctx context.Context) (usecase.ScrapeStatus, error)
}

// Runner executes one rewrite batch.
type Runner interface {
	Run(ctx context.Context) (usecase.RunReport, error)
}

// Handler serves the article and scrape endpoints.
type Handler struct {
	store    ports.ArticleStore
	importer Importer
	runner   Runner
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler wires the store and the use cases. runner may be nil.
func NewHandler(store ports.ArticleStore, importer Importer, runner Runner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, importer: importer, runner: runner, logger: logger, now: time.Now}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Article rewriter API is running",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Article rewriter API",
		"version": apiVersion,
		"endpoints": gin.H{
			"articles": gin.H{
				"list":   "GET /api/articles",
				"single": "GET /api/articles/:id",
				"html":   "GET /api/articles/:id/html",
				"create": "POST /api/articles",
				"update": "PUT /api/articles/:id",
				"delete": "DELETE /api/articles/:id",
			},
			"scrape": gin.H{
				"beyondchats": "POST /api/scrape/beyondchats",
				"status":      "GET /api/scrape/status",
			},
			"rewrite": gin.H{
				"run": "POST /api/rewrite/run",
			},
		},
	})
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Article rewriter API",
		"version": apiVersion,
		"endpoints": gin.H{
			"articles": "/api/articles",
			"scrape":   "/api/scrape",
			"rewrite":  "/api/rewrite",
		},
	})
}

// parseSort reads "-field" or "field"; unknown fields fall back to the default order.
func parseSort(raw string) ports.SortField {
	desc := strings.HasPrefix(raw, "-")
	field := strings.TrimPrefix(raw, "-")
	switch field {
	case "createdAt", "updatedAt", "title":
		return ports.SortField{Field: field, Desc: desc}
	default:
		return ports.SortField{Field: "createdAt", Desc: true}
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func (h *Handler) ListArticles(c *gin.Context) {
	page := intQuery(c, "page", defaultPage)
	limit := intQuery(c, "limit", defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}

	q := ports.ListQuery{
		Source: c.Query("source"),
		Sort:   parseSort(c.DefaultQuery("sort", defaultSort)),
		Offset: (page - 1) * limit,
		Limit:  limit,
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.Status(raw)
		if !status.Valid() {
			fail(c, http.StatusBadRequest, fmt.Sprintf("invalid status %q", raw), nil)
			return
		}
		q.Status = &status
	}

	articles, total, err := h.store.List(c.Request.Context(), q)
	if err != nil {
		h.logger.Error("list articles", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch articles", err)
		return
	}

	c.JSON(http.StatusOK, Envelope{Success: true, Data: articles, Pagination: newPagination(page, limit, total)})
}

func (h *Handler) GetArticle(c *gin.Context) {
	article, err := h.store.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logFailure("fetch article", c.Param("id"), err)
		failWith(c, err, "Failed to fetch article")
		return
	}
	ok(c, http.StatusOK, "", article)
}

func (h *Handler) GetArticleHTML(c *gin.Context) {
	article, err := h.store.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logFailure("fetch article", c.Param("id"), err)
		failWith(c, err, "Failed to fetch article")
		return
	}

	content := article.RewrittenContent
	if content == "" {
		content = article.OriginalContent
	}
	page, err := renderArticle(article.Title, content)
	if err != nil {
		h.logger.Error("render article", zap.String("id", article.ID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to render article", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

type createArticleRequest struct {
	Title           string `json:"title"`
	OriginalContent string `json:"originalContent"`
	Source          string `json:"source"`
	SourceURL       string `json:"sourceUrl"`
	Status          string `json:"status"`
}

func (h *Handler) CreateArticle(c *gin.Context) {
	var req createArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if req.Title == "" || req.OriginalContent == "" {
		fail(c, http.StatusBadRequest, "Title and originalContent are required", nil)
		return
	}

	article := domain.NewDraft(req.Title, req.OriginalContent, req.SourceURL, req.Source)
	if req.Status != "" {
		article.Status = domain.Status(req.Status)
	}
	if err := article.Validate(); err != nil {
		failWith(c, err, "Failed to create article")
		return
	}

	if err := h.store.Create(c.Request.Context(), &article); err != nil {
		h.logFailure("create article", req.Title, err)
		failWith(c, err, "Failed to create article")
		return
	}

	h.logger.Info("article created", zap.String("id", article.ID), zap.String("title", article.Title))
	ok(c, http.StatusCreated, "Article created successfully", article)
}

type updateArticleRequest struct {
	Title            *string            `json:"title"`
	OriginalContent  *string            `json:"originalContent"`
	RewrittenContent *string            `json:"rewrittenContent"`
	References       []domain.Reference `json:"references"`
	Status           *string            `json:"status"`
}

func (r updateArticleRequest) patch() (domain.ArticlePatch, error) {
	patch := domain.ArticlePatch{
		Title:            r.Title,
		OriginalContent:  r.OriginalContent,
		RewrittenContent: r.RewrittenContent,
		References:       r.References,
	}
	if r.Status != nil && *r.Status != "" {
		status := domain.Status(*r.Status)
		if !status.Valid() {
			return domain.ArticlePatch{}, domain.Validationf("invalid status %q", *r.Status)
		}
		patch.Status = &status
	}
	return patch, nil
}

func (h *Handler) UpdateArticle(c *gin.Context) {
	id := c.Param("id")
	var req updateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	patch, err := req.patch()
	if err != nil {
		failWith(c, err, "Failed to update article")
		return
	}

	article, err := h.store.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.logFailure("update article", id, err)
		failWith(c, err, "Failed to update article")
		return
	}

	h.logger.Info("article updated", zap.String("id", id), zap.String("title", article.Title))
	ok(c, http.StatusOK, "Article updated successfully", article)
}

func (h *Handler) DeleteArticle(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.logFailure("delete article", id, err)
		failWith(c, err, "Failed to delete article")
		return
	}

	h.logger.Info("article deleted", zap.String("id", id))
	ok(c, http.StatusOK, "Article deleted successfully", nil)
}

type scrapeRequest struct {
	Count int `json:"count"`
}

type scrapeSummary struct {
	Total   int `json:"total"`
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
}

type scrapeResult struct {
	Saved   []domain.Article `json:"saved"`
	Skipped []string         `json:"skipped"`
	Summary scrapeSummary    `json:"summary"`
}

func (h *Handler) Scrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if req.Count <= 0 {
		req.Count = usecase.DefaultImportCount
	}

	report, err := h.importer.Import(c.Request.Context(), req.Count)
	if err != nil {
		h.logger.Error("scrape failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Scraping failed", err)
		return
	}
	if report.Total == 0 {
		ok(c, http.StatusOK, "No articles found to scrape", []domain.Article{})
		return
	}

	ok(c, http.StatusCreated, fmt.Sprintf("Scraped and saved %d articles", len(report.Saved)), scrapeResult{
		Saved:   report.Saved,
		Skipped: report.Skipped,
		Summary: scrapeSummary{Total: report.Total, Saved: len(report.Saved), Skipped: len(report.Skipped)},
	})
}

func (h *Handler) ScrapeStatus(c *gin.Context) {
	status, err := h.importer.Status(c.Request.Context())
	if err != nil {
		h.logger.Error("scrape status", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to get status", err)
		return
	}
	ok(c, http.StatusOK, "", status)
}

func (h *Handler) RunRewrite(c *gin.Context) {
	if h.runner == nil {
		fail(c, http.StatusServiceUnavailable, "Rewrite pipeline is not configured", nil)
		return
	}

	report, err := h.runner.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("rewrite run", zap.Error(err))
		failWith(c, err, "Rewrite run failed")
		return
	}
	ok(c, http.StatusOK, fmt.Sprintf("Rewrote %d of %d articles", report.Succeeded, report.Attempted), report)
}

func (h *Handler) logFailure(op, key string, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, zap.String("key", key), zap.Error(err))
		return
	}
	h.logger.Debug(op, zap.String("key", key), zap.Error(err))
}
