package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ShutdownTimeout bounds the graceful shutdown of the HTTP server.
const ShutdownTimeout = 10 * time.Second

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(h *Handler, logger *zap.Logger, exposeErrors bool) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(recovery(logger, exposeErrors))
	router.Use(permissiveCORS())
	router.Use(requestLogger(logger))
	router.NoRoute(notFound)

	router.GET("/health", h.Health)
	router.GET("/", h.Root)

	api := router.Group("/api")
	api.GET("", h.Index)

	articles := api.Group("/articles")
	articles.GET("", h.ListArticles)
	articles.POST("", h.CreateArticle)
	articles.GET("/:id", h.GetArticle)
	articles.GET("/:id/html", h.GetArticleHTML)
	articles.PUT("/:id", h.UpdateArticle)
	articles.DELETE("/:id", h.DeleteArticle)

	scrape := api.Group("/scrape")
	scrape.POST("/beyondchats", h.Scrape)
	scrape.GET("/status", h.ScrapeStatus)

	api.POST("/rewrite/run", h.RunRewrite)

	return router
}

// Server owns the HTTP listener.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer listens on the given port.
func NewServer(port int, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With(zap.String("component", "http")),
	}
}

// Run serves until ctx is cancelled, then shuts down within ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("address", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server", zap.Duration("timeout", ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
