package feed

import (
	"time"
)

// Feed processing types

type Entry struct {
	Title        string
	PublishedAt  *time.Time
	PublishedRaw string // publication date as written in the feed
	Author       string
	Creator      string // dc:creator
	Content      string
	Summary      string
	Link         string
	GUID         string
	Categories   []string
}

// Fingerprint is the ledger key of an entry: title and publication date joined
// by "-". Entries sharing both fields are the same entry even when their bodies differ.
func (e Entry) Fingerprint() string {
	return e.Title + "-" + e.publishedKey()
}

func (e Entry) publishedKey() string {
	if e.PublishedAt != nil {
		return e.PublishedAt.UTC().Format(time.RFC3339)
	}
	return e.PublishedRaw
}

// Source configuration types

type Source struct {
	URL            string         `yaml:"url" json:"url" validate:"required,url"`
	Label          string         `yaml:"label" json:"label"`
	Enabled        *bool          `yaml:"enabled" json:"enabled,omitempty"`
	ExtractArticle bool           `yaml:"extract_article" json:"extract_article"` // isolate the article body of full HTML documents
	Filters        []SourceFilter `yaml:"filters" json:"filters,omitempty" validate:"dive"`
}

func (s Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type SourceFilter struct {
	Field    string   `yaml:"field" json:"field" validate:"oneof=title content summary author link categories"`
	Includes []string `yaml:"includes" json:"includes,omitempty"`
	Excludes []string `yaml:"excludes" json:"excludes,omitempty"`
}

type sourcesFile struct {
	Feeds []Source `yaml:"feeds"`
}
