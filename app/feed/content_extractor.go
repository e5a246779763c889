package feed

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-shiori/go-readability"
)

var (
	ErrEmptyDocument = errors.New("document is empty")
	ErrNoArticle     = errors.New("no article found in document")
)

// ContentExtractor isolates the main article of a full HTML newsletter,
// dropping navigation, headers and footers around it. The result is markup
// and still goes through MarkupStripper.
type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

func (e *ContentExtractor) Run(document []byte) (string, error) {
	if len(bytes.TrimSpace(document)) == 0 {
		return "", ErrEmptyDocument
	}

	article, err := readability.FromReader(bytes.NewReader(document), nil)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	if strings.TrimSpace(article.TextContent) == "" {
		return "", ErrNoArticle
	}

	slog.Debug("Article extracted from newsletter document",
		"document_bytes", len(document),
		"article_bytes", len(article.Content))

	return article.Content, nil
}

// looksLikeDocument reports whether markup is a whole HTML page rather than a fragment.
func looksLikeDocument(markup string) bool {
	head := strings.ToLower(markup[:min(len(markup), 2048)])
	return strings.Contains(head, "<html") || strings.Contains(head, "<body") || strings.Contains(head, "<!doctype")
}
