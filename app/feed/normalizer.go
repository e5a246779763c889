package feed

import (
	"cmp"
	"log/slog"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/lysyi3m/newsletter-relay/app/delivery"
)

const (
	MaxContentLength = 50000
	MaxPreviewLength = 200

	// MinContentLength is the shortest text noise filtering may leave behind;
	// below it the unfiltered text is kept instead.
	MinContentLength = 50

	TruncationMarker    = "... [Content truncated due to size limits]"
	UntitledPlaceholder = "Untitled"
	UnknownAuthor       = "Unknown Author"
	ContentPlaceholder  = "This newsletter issue has no readable text content. Open the original link to read it."
)

// Normalizer converts parsed entries into delivery records. It is pure: the
// same entry and source always produce the same record.
type Normalizer struct {
	stripper  *MarkupStripper
	noise     *NoiseFilter
	extractor *ContentExtractor
}

func NewNormalizer(stripper *MarkupStripper, noise *NoiseFilter, extractor *ContentExtractor) *Normalizer {
	return &Normalizer{
		stripper:  stripper,
		noise:     noise,
		extractor: extractor,
	}
}

func (n *Normalizer) Run(entry Entry, source Source) delivery.Record {
	content := n.resolveContent(entry, source)
	content = truncateRunes(content, MaxContentLength, TruncationMarker)

	return delivery.Record{
		UserInfo:    delivery.UserInfo{Name: n.resolveAuthor(entry, source)},
		MoreInfoURL: n.resolveLink(entry),
		Source:      n.resolveSource(entry, source),
		Cost:        delivery.Cost,
		Preview:     n.preview(content),
		Title:       cmp.Or(n.inlineText(entry.Title), UntitledPlaceholder),
		Content:     content,
	}
}

func (n *Normalizer) resolveAuthor(entry Entry, source Source) string {
	return cmp.Or(
		n.inlineText(entry.Author),
		n.inlineText(entry.Creator),
		n.inlineText(source.Label),
		UnknownAuthor,
	)
}

func (n *Normalizer) resolveSource(entry Entry, source Source) string {
	return cmp.Or(
		n.inlineText(source.Label),
		n.inlineText(entry.Author),
		n.inlineText(entry.Creator),
		DefaultSourceLabel,
	)
}

// resolveContent prefers the full content over the summary; a content field
// without readable text falls through to the summary.
func (n *Normalizer) resolveContent(entry Entry, source Source) string {
	for _, markup := range []string{entry.Content, entry.Summary} {
		if strings.TrimSpace(markup) == "" {
			continue
		}
		if text := n.bodyText(markup, source.ExtractArticle); hasReadableText(text) {
			return text
		}
	}
	return ContentPlaceholder
}

func (n *Normalizer) bodyText(markup string, extractArticle bool) string {
	if extractArticle && n.extractor != nil && looksLikeDocument(markup) {
		article, err := n.extractor.Run([]byte(markup))
		if err != nil {
			slog.Debug("Article extraction failed, stripping whole document", "error", err)
		} else if text := n.plainText(article); utf8.RuneCountInString(text) >= MinContentLength {
			return text
		}
	}
	return n.plainText(markup)
}

func (n *Normalizer) plainText(markup string) string {
	lines := n.stripper.Run(markup)
	all := sanitize(strings.Join(lines, " "))

	if n.noise == nil {
		return all
	}

	kept := sanitize(strings.Join(n.noise.Run(lines), " "))
	if utf8.RuneCountInString(kept) < MinContentLength && kept != all {
		return all
	}
	return kept
}

func (n *Normalizer) inlineText(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return sanitize(strings.Join(n.stripper.Run(value), " "))
}

func (n *Normalizer) preview(content string) string {
	preview := truncateRunes(content, MaxPreviewLength, "")
	return strings.TrimRightFunc(preview, unicode.IsSpace)
}

// resolveLink prefers the entry link, then a guid that is an http(s) URL.
func (n *Normalizer) resolveLink(entry Entry) string {
	if entry.Link != "" {
		return entry.Link
	}
	if u, err := url.Parse(entry.GUID); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return entry.GUID
	}
	return ""
}

// sanitize normalizes to NFC, drops angle brackets left over from decoded
// entities and collapses whitespace.
func sanitize(text string) string {
	text = norm.NFC.String(text)
	text = strings.Map(func(r rune) rune {
		if r == '<' || r == '>' || r == utf8.RuneError {
			return -1
		}
		return r
	}, text)
	return collapseWhitespace(text)
}

func hasReadableText(text string) bool {
	return strings.ContainsFunc(text, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	})
}

// truncateRunes caps text at limit runes, marker included.
func truncateRunes(text string, limit int, marker string) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	keep := limit - utf8.RuneCountInString(marker)
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + marker
}
