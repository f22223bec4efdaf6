package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
	"ArticleRewriter/internal/textclean"
)

const (
	maxOriginalRunes   = 5000
	maxReferenceRunes  = 3000
	minReferenceRunes  = 100
	titleContextRunes  = 500
	metaContextRunes   = 1000
	defaultMaxTokens   = 4000
	defaultTemperature = 0.7

	titleSystemPrompt = "You are an expert at creating engaging, SEO-friendly article titles. Respond with only the new title, nothing else."
	metaSystemPrompt  = "You are an SEO expert. Generate compelling meta descriptions. Respond with only the meta description, nothing else."
)

const requirementsBlock = `REQUIREMENTS:
1. Create a completely original rewrite - no plagiarism
2. Maintain the key points and message
3. Add proper headings and structure (use markdown)
4. Make it engaging and SEO-friendly
5. Improve readability and flow
6. Incorporate insights from reference materials where relevant
7. Target word count: 800-1500 words
8. Include a compelling introduction and conclusion

OUTPUT FORMAT:
- Use markdown formatting
- Include H2 and H3 headings
- Use bullet points or numbered lists where appropriate
- Write in a professional but engaging tone

Please provide ONLY the rewritten article content:`

// RewriterOptions tunes the generation calls.
type RewriterOptions struct {
	SystemPrompt string
	MaxTokens    int
	// Temperature is used as given when set, including 0.
	Temperature  *float64
}

// Rewriter turns an article plus reference material into new markdown.
type Rewriter struct {
	model  ports.ChatModel
	opts   RewriterOptions
	logger *zap.Logger
}

// NewRewriter wires the chat model; zero options select the defaults.
func NewRewriter(model ports.ChatModel, opts RewriterOptions, logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == nil {
		t := defaultTemperature
		opts.Temperature = &t
	}
	return &Rewriter{
		model:  model,
		opts:   opts,
		logger: logger.With(zap.String("component", "rewriter")),
	}
}

// Rewrite asks the model for an original rewrite. An empty reply is ErrEmptyGeneration.
func (r *Rewriter) Rewrite(ctx context.Context, original string, refs []domain.ScrapedContent, title string) (domain.RewriteResult, error) {
	r.logger.Info("rewriting article", zap.String("title", title), zap.Int("references", len(refs)))

	resp, err := r.model.Complete(ctx, ports.ChatRequest{
		System:      r.opts.SystemPrompt,
		Prompt:      BuildPrompt(original, refs, title),
		MaxTokens:   r.opts.MaxTokens,
		Temperature: *r.opts.Temperature,
	})
	if err != nil {
		return domain.RewriteResult{}, fmt.Errorf("rewrite %q: %w", title, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return domain.RewriteResult{}, fmt.Errorf("rewrite %q: %w", title, domain.ErrEmptyGeneration)
	}
	return domain.RewriteResult{Content: resp.Text, Usage: resp.Usage}, nil
}

// GenerateTitle proposes a new title and falls back to the original on any failure.
func (r *Rewriter) GenerateTitle(ctx context.Context, originalTitle, content string) string {
	prompt := fmt.Sprintf(`Create a new, engaging title for an article originally titled "%s".

The article content starts with: %s

Requirements:
- Make it catchy and click-worthy
- Keep it under 70 characters for SEO
- Don't use clickbait tactics
- Make it different from the original

Respond with ONLY the new title:`, originalTitle, textclean.Truncate(content, titleContextRunes))

	resp, err := r.model.Complete(ctx, ports.ChatRequest{
		System: titleSystemPrompt, Prompt: prompt, MaxTokens: 100, Temperature: 0.8,
	})
	if err != nil {
		r.logger.Warn("title generation failed", zap.Error(err))
		return originalTitle
	}
	title := strings.Trim(strings.TrimSpace(resp.Text), `"'`)
	if title == "" {
		return originalTitle
	}
	return title
}

// GenerateMetaDescription returns "" when the model fails.
func (r *Rewriter) GenerateMetaDescription(ctx context.Context, content string) string {
	prompt := fmt.Sprintf(`Generate an SEO-friendly meta description (150-160 characters) for this article:

%s

Respond with ONLY the meta description:`, textclean.Truncate(content, metaContextRunes))

	resp, err := r.model.Complete(ctx, ports.ChatRequest{
		System: metaSystemPrompt, Prompt: prompt, MaxTokens: 100, Temperature: 0.7,
	})
	if err != nil {
		r.logger.Warn("meta description generation failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(resp.Text)
}

// BuildPrompt assembles the rewrite instructions. References of 100 runes
// or fewer are dropped; numbering follows the kept references.
func BuildPrompt(original string, refs []domain.ScrapedContent, title string) string {
	var b strings.Builder
	b.WriteString("\nTASK: Rewrite the following article to be completely original while maintaining the core message and key information.\n\n")
	fmt.Fprintf(&b, "ORIGINAL ARTICLE TITLE: %s\n\n", title)
	fmt.Fprintf(&b, "ORIGINAL CONTENT:\n%s\n\n", textclean.Truncate(original, maxOriginalRunes))

	var refText strings.Builder
	kept := 0
	for _, ref := range refs {
		if utf8.RuneCountInString(ref.Content) <= minReferenceRunes {
			continue
		}
		kept++
		name := ref.Title
		if name == "" {
			name = "Untitled"
		}
		if kept > 1 {
			refText.WriteString("\n")
		}
		fmt.Fprintf(&refText, "\n--- Reference %d: %s ---\n%s", kept, name, textclean.Truncate(ref.Content, maxReferenceRunes))
	}
	if kept > 0 {
		b.WriteString("REFERENCE MATERIALS (use these for additional insights and perspectives):")
		b.WriteString(refText.String())
	}
	b.WriteString("\n\n")
	b.WriteString(requirementsBlock)
	return b.String()
}
