package domain

import (
	"time"

	"ArticleRewriter/internal/textclean"
)

// DefaultSource tags articles coming from the source blog.
const DefaultSource = "beyondchats"

// Status enumerates the rewrite lifecycle of an article.
type Status string

const (
	StatusOriginal  Status = "original"
	StatusRewritten Status = "rewritten"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusOriginal || s == StatusRewritten
}

// Reference is an external article used as rewrite material.
type Reference struct {
	Title string `json:"title" bson:"title"`
	URL   string `json:"url" bson:"url"`
}

// Metadata holds values derived from the article content.
type Metadata struct {
	WordCount   int `json:"wordCount" bson:"wordCount"`
	ReadingTime int `json:"readingTime" bson:"readingTime"`
}

// Article is the durable entity owned by the article store.
type Article struct {
	ID               string      `json:"_id" bson:"-"`
	Title            string      `json:"title" bson:"title"`
	Slug             string      `json:"slug" bson:"slug"`
	OriginalContent  string      `json:"originalContent" bson:"originalContent"`
	RewrittenContent string      `json:"rewrittenContent,omitempty" bson:"rewrittenContent,omitempty"`
	References       []Reference `json:"references" bson:"references"`
	Status           Status      `json:"status" bson:"status"`
	Source           string      `json:"source" bson:"source"`
	SourceURL        string      `json:"sourceUrl,omitempty" bson:"sourceUrl,omitempty"`
	Metadata         Metadata    `json:"metadata" bson:"metadata"`
	CreatedAt        time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// NewDraft builds an in-memory article that has not been persisted yet.
func NewDraft(title, content, sourceURL, source string) Article {
	if source == "" {
		source = DefaultSource
	}
	a := Article{
		Title:           title,
		Slug:            textclean.GenerateSlug(title),
		OriginalContent: content,
		References:      []Reference{},
		Status:          StatusOriginal,
		Source:          source,
		SourceURL:       sourceURL,
	}
	a.Recompute()
	return a
}

// Recompute refreshes the derived metadata. The rewritten text wins when present.
func (a *Article) Recompute() {
	content := a.OriginalContent
	if a.RewrittenContent != "" {
		content = a.RewrittenContent
	}
	words := textclean.CountWords(content)
	a.Metadata = Metadata{
		WordCount:   words,
		ReadingTime: textclean.ReadingTime(words),
	}
}

// Validate checks the fields required at creation.
func (a Article) Validate() error {
	if a.Title == "" || a.OriginalContent == "" {
		return Validationf("title and originalContent are required")
	}
	if a.Slug == "" {
		return Validationf("title %q does not produce a usable slug", a.Title)
	}
	if !a.Status.Valid() {
		return Validationf("invalid status %q", a.Status)
	}
	return nil
}

// ArticlePatch is a partial update; nil fields are left untouched.
type ArticlePatch struct {
	Title            *string
	OriginalContent  *string
	RewrittenContent *string
	References       []Reference
	Status           *Status
}

// Apply mutates a with the patch, keeping slug and metadata consistent.
func (p ArticlePatch) Apply(a *Article) {
	if p.Title != nil && *p.Title != "" {
		a.Title = *p.Title
		a.Slug = textclean.GenerateSlug(*p.Title)
	}
	if p.OriginalContent != nil && *p.OriginalContent != "" {
		a.OriginalContent = *p.OriginalContent
	}
	if p.RewrittenContent != nil && *p.RewrittenContent != "" {
		a.RewrittenContent = *p.RewrittenContent
	}
	if p.References != nil {
		a.References = p.References
	}
	if p.Status != nil && *p.Status != "" {
		a.Status = *p.Status
	}
	a.Recompute()
}

// SearchResult is one hit returned by the reference search engine.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ScrapedContent is the text extracted from one page.
type ScrapedContent struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Error   bool   `json:"error,omitempty"`
}

// Usage reports model token consumption.
type Usage struct {
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
	TotalTokens      int64 `json:"totalTokens"`
}

// RewriteResult is the output of one rewrite call.
type RewriteResult struct {
	Content string `json:"content"`
	Usage   *Usage `json:"usage,omitempty"`
}

// ArticleLink is an entry discovered on a listing page of the source site.
type ArticleLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Slug  string `json:"slug"`
}
