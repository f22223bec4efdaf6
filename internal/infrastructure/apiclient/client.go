package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
)

// Client reads pending articles from and publishes rewrites to the article API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

var _ ports.RewriteQueue = (*Client)(nil)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type publishRequest struct {
	RewrittenContent string             `json:"rewrittenContent"`
	References       []domain.Reference `json:"references"`
	Status           domain.Status      `json:"status"`
}

// NewClient targets baseURL, the API prefix such as http://localhost:5000/api.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With(zap.String("component", "api_client")),
	}
}

// ListPending asks the API for the oldest original articles.
func (c *Client) ListPending(ctx context.Context, limit int) ([]domain.Article, error) {
	q := url.Values{}
	q.Set("status", string(domain.StatusOriginal))
	q.Set("sort", "createdAt")
	q.Set("limit", strconv.Itoa(limit))

	var articles []domain.Article
	if err := c.do(ctx, http.MethodGet, "/articles?"+q.Encode(), nil, &articles); err != nil {
		return nil, fmt.Errorf("list pending articles: %w", err)
	}
	return articles, nil
}

// MarkRewritten publishes the rewrite with PUT /articles/:id.
func (c *Client) MarkRewritten(ctx context.Context, id, content string, refs []domain.Reference) error {
	if refs == nil {
		refs = []domain.Reference{}
	}
	payload := publishRequest{RewrittenContent: content, References: refs, Status: domain.StatusRewritten}
	if err := c.do(ctx, http.MethodPut, "/articles/"+url.PathEscape(id), payload, nil); err != nil {
		return fmt.Errorf("publish article %s: %w", id, err)
	}
	c.logger.Info("published rewritten article", zap.String("id", id))
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, v any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.TransientNetworkError{Op: method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return domain.ErrDuplicateSlug
	case resp.StatusCode >= http.StatusInternalServerError:
		return &domain.TransientNetworkError{Op: method, URL: req.URL.String(), Err: fmt.Errorf("%s: %s", resp.Status, env.Message)}
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("unexpected status %s: %s", resp.Status, env.Message)
	}

	if v == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
