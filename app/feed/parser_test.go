package feed

import (
	"errors"
	"testing"
	"time"
)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <item>
      <title>Wall Street Doubles Down on ETH</title>
      <link>https://example.com/item1</link>
      <description>&lt;p&gt;Funds bought &lt;b&gt;more&lt;/b&gt; ETH.&lt;/p&gt;</description>
      <guid>item-1</guid>
      <pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate>
      <author>Jane Doe</author>
      <category>Crypto</category>
    </item>
    <item>
      <title>Second Issue</title>
      <guid>https://example.com/item2</guid>
      <pubDate>Tue, 02 Jan 2024 08:30:00 GMT</pubDate>
      <dc:creator>Unchained</dc:creator>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	entries, err := parser.Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got: %d", len(entries))
	}

	entry := entries[0]
	if entry.Title != "Wall Street Doubles Down on ETH" {
		t.Errorf("Expected title 'Wall Street Doubles Down on ETH', got: %s", entry.Title)
	}
	if entry.Link != "https://example.com/item1" {
		t.Errorf("Expected link 'https://example.com/item1', got: %s", entry.Link)
	}
	if entry.GUID != "item-1" {
		t.Errorf("Expected GUID 'item-1', got: %s", entry.GUID)
	}
	if entry.Summary != "<p>Funds bought <b>more</b> ETH.</p>" {
		t.Errorf("Expected decoded HTML summary, got: %s", entry.Summary)
	}
	if entry.Author != "Jane Doe" {
		t.Errorf("Expected author 'Jane Doe', got: %s", entry.Author)
	}
	if entry.PublishedAt == nil || !entry.PublishedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected published 2024-01-01T00:00:00Z, got: %v", entry.PublishedAt)
	}
	if len(entry.Categories) != 1 {
		t.Errorf("Expected 1 category, got: %d", len(entry.Categories))
	}

	second := entries[1]
	if second.Creator != "Unchained" {
		t.Errorf("Expected creator 'Unchained', got: %s", second.Creator)
	}
	if second.Link != "" {
		t.Errorf("Expected empty link, got: %s", second.Link)
	}
	if second.GUID != "https://example.com/item2" {
		t.Errorf("Expected GUID 'https://example.com/item2', got: %s", second.GUID)
	}
}

func TestParseAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Kill the Newsletter</title>
  <link href="https://example.com"/>
  <updated>2023-07-03T12:00:00Z</updated>
  <id>urn:uuid:1234567890</id>
  <entry>
    <title>Weekly Digest</title>
    <link href="https://example.com/entry1"/>
    <id>urn:uuid:entry-1</id>
    <updated>2023-07-03T10:00:00Z</updated>
    <author><name>Test Author</name></author>
    <summary>Short summary</summary>
    <content type="html">&lt;div&gt;Full content&lt;/div&gt;</content>
  </entry>
</feed>`

	parser := NewParser()
	entries, err := parser.Run([]byte(atomData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got: %d", len(entries))
	}

	entry := entries[0]
	if entry.Title != "Weekly Digest" {
		t.Errorf("Expected title 'Weekly Digest', got: %s", entry.Title)
	}
	if entry.Author != "Test Author" {
		t.Errorf("Expected author 'Test Author', got: %s", entry.Author)
	}
	if entry.Content != "<div>Full content</div>" {
		t.Errorf("Expected content '<div>Full content</div>', got: %s", entry.Content)
	}
	if entry.Summary != "Short summary" {
		t.Errorf("Expected summary 'Short summary', got: %s", entry.Summary)
	}
	// Without <published> the updated timestamp stands in
	if entry.PublishedAt == nil || !entry.PublishedAt.Equal(time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected published 2023-07-03T10:00:00Z, got: %v", entry.PublishedAt)
	}
	if entry.Fingerprint() != "Weekly Digest-2023-07-03T10:00:00Z" {
		t.Errorf("Unexpected fingerprint: %s", entry.Fingerprint())
	}
}

func TestParseMissingOptionalFields(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Sparse</title>
    <item></item>
  </channel>
</rss>`

	parser := NewParser()
	entries, err := parser.Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got: %d", len(entries))
	}

	entry := entries[0]
	if entry.Title != "" || entry.Link != "" || entry.Author != "" || entry.PublishedAt != nil {
		t.Errorf("Expected empty entry, got: %+v", entry)
	}
	if entry.Fingerprint() != "-" {
		t.Errorf("Expected fingerprint '-', got: %s", entry.Fingerprint())
	}
}

func TestParseKeepsDocumentOrder(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Order</title>
    <item><title>B</title><pubDate>Wed, 03 Jan 2024 00:00:00 GMT</pubDate></item>
    <item><title>A</title><pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate></item>
    <item><title>C</title><pubDate>not a date</pubDate></item>
  </channel>
</rss>`

	entries, err := NewParser().Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	titles := []string{}
	for _, entry := range entries {
		titles = append(titles, entry.Title)
	}
	if len(titles) != 3 || titles[0] != "B" || titles[1] != "A" || titles[2] != "C" {
		t.Errorf("Expected document order [B A C], got: %v", titles)
	}

	if entries[2].PublishedAt != nil {
		t.Errorf("Expected unparseable date to stay unset, got: %v", entries[2].PublishedAt)
	}
	if entries[2].Fingerprint() != "C-not a date" {
		t.Errorf("Expected raw date in fingerprint, got: %s", entries[2].Fingerprint())
	}
}

func TestParseInvalidFeed(t *testing.T) {
	parser := NewParser()
	_, err := parser.Run([]byte("invalid xml"))
	if err == nil {
		t.Fatal("Expected error for invalid XML")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("Expected *ParseError, got: %T", err)
	}
}

func TestFingerprint(t *testing.T) {
	published := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	other := time.Date(2024, 1, 1, 1, 0, 0, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		name     string
		entry    Entry
		expected string
	}{
		{
			name:     "title and parsed date",
			entry:    Entry{Title: "Issue 1", PublishedAt: &published},
			expected: "Issue 1-2024-01-01T00:00:00Z",
		},
		{
			name:     "same instant in another zone",
			entry:    Entry{Title: "Issue 1", PublishedAt: &other},
			expected: "Issue 1-2024-01-01T00:00:00Z",
		},
		{
			name:     "content does not matter",
			entry:    Entry{Title: "Issue 1", PublishedAt: &published, Content: "edited body"},
			expected: "Issue 1-2024-01-01T00:00:00Z",
		},
		{
			name:     "raw date when unparsed",
			entry:    Entry{Title: "Issue 2", PublishedRaw: "yesterday"},
			expected: "Issue 2-yesterday",
		},
		{
			name:     "no date",
			entry:    Entry{Title: "Issue 3"},
			expected: "Issue 3-",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Fingerprint(); got != tt.expected {
				t.Errorf("Expected fingerprint '%s', got '%s'", tt.expected, got)
			}
		})
	}
}
