package feed

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"
)

var (
	skippedElements = "script, style, noscript, iframe, head, template, svg, object"

	blockElements = map[string]bool{
		"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
		"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true, "figure": true,
		"footer": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"header": true, "hr": true, "li": true, "main": true, "nav": true, "ol": true,
		"p": true, "pre": true, "section": true, "table": true, "tbody": true, "td": true,
		"th": true, "tr": true, "ul": true,
	}

	tagPattern = regexp.MustCompile(`<[^>]*>`)
)

// MarkupStripper turns HTML into plain text lines, one per block element.
// It accepts any input: structurally invalid markup is stripped on a best-effort basis.
type MarkupStripper struct{}

func NewMarkupStripper() *MarkupStripper {
	return &MarkupStripper{}
}

// Run returns the non-empty text lines of markup with whitespace collapsed.
func (s *MarkupStripper) Run(markup string) []string {
	if strings.TrimSpace(markup) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return splitLines(html.UnescapeString(tagPattern.ReplaceAllString(markup, "\n")))
	}

	doc.Find(skippedElements).Remove()

	var b strings.Builder
	for _, node := range doc.Nodes {
		writeText(&b, node)
	}

	return splitLines(b.String())
}

func writeText(b *strings.Builder, node *nethtml.Node) {
	isBlock := node.Type == nethtml.ElementNode && blockElements[node.Data]

	switch node.Type {
	case nethtml.TextNode:
		b.WriteString(node.Data)
	case nethtml.CommentNode:
		return
	}

	if isBlock {
		b.WriteByte('\n')
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		writeText(b, child)
	}
	if isBlock {
		b.WriteByte('\n')
	}
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = collapseWhitespace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
