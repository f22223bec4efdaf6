package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
)

func TestBuildPromptTruncatesAndNumbersReferences(t *testing.T) {
	t.Parallel()

	original := strings.Repeat("o", 6000)
	refs := []domain.ScrapedContent{
		{Title: "Short", Content: strings.Repeat("s", 100)},
		{Title: "", Content: strings.Repeat("r", 4000)},
		{Title: "Second Kept", Content: strings.Repeat("k", 150)},
	}

	prompt := BuildPrompt(original, refs, "My Title")

	assert.Contains(t, prompt, "ORIGINAL ARTICLE TITLE: My Title")
	assert.Contains(t, prompt, strings.Repeat("o", 5000)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("o", 5001))
	assert.NotContains(t, prompt, "Short")
	assert.Contains(t, prompt, "--- Reference 1: Untitled ---")
	assert.Contains(t, prompt, "--- Reference 2: Second Kept ---")
	assert.NotContains(t, prompt, "Reference 3")
	assert.NotContains(t, prompt, strings.Repeat("r", 3001))
	assert.True(t, strings.HasSuffix(prompt, "Please provide ONLY the rewritten article content:"))
}

func TestBuildPromptWithoutReferences(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt("body", nil, "T")
	assert.NotContains(t, prompt, "REFERENCE MATERIALS")
	assert.Contains(t, prompt, "ORIGINAL CONTENT:\nbody\n\n")
	assert.Contains(t, prompt, "Target word count: 800-1500 words")
}

func TestRewriteReturnsUsage(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: func(ports.ChatRequest) (string, error) { return "new text", nil }}
	temp := 0.2
	res, err := NewRewriter(model, RewriterOptions{MaxTokens: 123, Temperature: &temp}, nil).
		Rewrite(context.Background(), "old", nil, "t")
	require.NoError(t, err)
	assert.Equal(t, "new text", res.Content)
	require.NotNil(t, res.Usage)
	assert.EqualValues(t, 42, res.Usage.TotalTokens)
	assert.Equal(t, 123, model.requests[0].MaxTokens)
	assert.InDelta(t, 0.2, model.requests[0].Temperature, 1e-9)
}

func TestRewriteTemperature(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: func(ports.ChatRequest) (string, error) { return "new text", nil }}
	zero := 0.0
	_, err := NewRewriter(model, RewriterOptions{Temperature: &zero}, nil).Rewrite(context.Background(), "old", nil, "t")
	require.NoError(t, err)
	_, err = NewRewriter(model, RewriterOptions{}, nil).Rewrite(context.Background(), "old", nil, "t")
	require.NoError(t, err)

	require.Len(t, model.requests, 2)
	assert.Zero(t, model.requests[0].Temperature)
	assert.InDelta(t, 0.7, model.requests[1].Temperature, 1e-9)
}

func TestRewriteModelError(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: func(ports.ChatRequest) (string, error) { return "", domain.ErrRateLimited }}
	_, err := NewRewriter(model, RewriterOptions{}, nil).Rewrite(context.Background(), "old", nil, "t")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestGenerateTitle(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		reply string
		err   error
		want  string
	}{
		{name: "quoted", reply: ` "Fresh Take" `, want: "Fresh Take"},
		{name: "single quotes", reply: "'Fresh'", want: "Fresh"},
		{name: "blank", reply: "  ", want: "Original"},
		{name: "error", err: errors.New("boom"), want: "Original"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			model := &fakeModel{reply: func(ports.ChatRequest) (string, error) { return tc.reply, tc.err }}
			got := NewRewriter(model, RewriterOptions{}, nil).GenerateTitle(context.Background(), "Original", strings.Repeat("é", 900))
			assert.Equal(t, tc.want, got)

			req := model.requests[0]
			assert.Equal(t, 100, req.MaxTokens)
			assert.InDelta(t, 0.8, req.Temperature, 1e-9)
			assert.Equal(t, 500, strings.Count(req.Prompt, "é"))
		})
	}
}

func TestGenerateMetaDescription(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: func(ports.ChatRequest) (string, error) { return "", errors.New("down") }}
	got := NewRewriter(model, RewriterOptions{}, nil).GenerateMetaDescription(context.Background(), strings.Repeat("x", 2000))
	assert.Equal(t, "", got)
	assert.Equal(t, 1000, strings.Count(model.requests[0].Prompt, "x"))
	assert.True(t, utf8.ValidString(model.requests[0].Prompt))
}
