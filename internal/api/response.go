package api

import (
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/usecase"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func newPagination(page, limit int, total int64) *Pagination {
	return &Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}
}

func ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string, err error) {
	env := Envelope{Success: false, Message: message}
	if err != nil && status >= http.StatusInternalServerError {
		env.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, env)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateSlug), errors.Is(err, usecase.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// failWith picks the status from err and the message from the status.
func failWith(c *gin.Context, err error, serverMessage string) {
	status := statusFor(err)
	switch status {
	case http.StatusNotFound:
		fail(c, status, "Article not found", err)
	case http.StatusConflict:
		if errors.Is(err, usecase.ErrRunInProgress) {
			fail(c, status, "A rewrite run is already in progress", err)
			return
		}
		fail(c, status, "Article with this title already exists", err)
	case http.StatusBadRequest:
		fail(c, status, validationMessage(err), err)
	default:
		fail(c, status, serverMessage, err)
	}
}

func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
}
