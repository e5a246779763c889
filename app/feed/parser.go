package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses Atom or RSS data and returns the entries in document order.
func (p *Parser) Run(data []byte) ([]Entry, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, p.normalizeItem(item))
	}

	return entries, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Entry {
	entry := Entry{
		Title:   strings.TrimSpace(item.Title),
		Link:    strings.TrimSpace(item.Link),
		GUID:    strings.TrimSpace(item.GUID),
		Content: item.Content,
		Summary: item.Description,
	}

	// Atom entries may carry only <updated>
	switch {
	case item.PublishedParsed != nil:
		published := item.PublishedParsed.UTC()
		entry.PublishedAt = &published
	case item.Published == "" && item.UpdatedParsed != nil:
		updated := item.UpdatedParsed.UTC()
		entry.PublishedAt = &updated
	}
	entry.PublishedRaw = strings.TrimSpace(cmp.Or(item.Published, item.Updated))

	entry.Author = p.extractAuthor(item)

	if item.DublinCoreExt != nil {
		for _, creator := range item.DublinCoreExt.Creator {
			if creator = strings.TrimSpace(creator); creator != "" {
				entry.Creator = creator
				break
			}
		}
	}

	if item.Categories != nil {
		entry.Categories = item.Categories
	}

	return entry
}

func (p *Parser) extractAuthor(item *gofeed.Item) string {
	people := item.Authors
	if len(people) == 0 && item.Author != nil {
		people = []*gofeed.Person{item.Author}
	}

	for _, person := range people {
		if person == nil {
			continue
		}
		if name := cmp.Or(strings.TrimSpace(person.Name), strings.TrimSpace(person.Email)); name != "" {
			return name
		}
	}

	return ""
}
