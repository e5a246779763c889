package feed

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultSourceLabel labels sources configured without one.
const DefaultSourceLabel = "Newsletter"

// SourceCache holds the configured feed sources. The sources file is optional;
// URLs passed via extraURLs are appended with the default label.
type SourceCache struct {
	sourcesFile string
	extraURLs   []string
	validate    *validator.Validate
	sources     []Source
	mu          sync.RWMutex
}

func NewSourceCache(sourcesFile string, extraURLs []string) *SourceCache {
	return &SourceCache{
		sourcesFile: sourcesFile,
		extraURLs:   extraURLs,
		validate:    validator.New(),
	}
}

// Run (re)loads the sources. On error the previously loaded sources stay active.
func (sc *SourceCache) Run() error {
	sources, err := sc.parseSources()
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(sources))
	for _, source := range sources {
		seen[source.URL] = true
	}
	for _, url := range sc.extraURLs {
		if seen[url] {
			continue
		}
		seen[url] = true
		sources = append(sources, Source{URL: url, Label: DefaultSourceLabel})
	}

	for i, source := range sources {
		if err := sc.validateSource(source); err != nil {
			return fmt.Errorf("invalid feed source at index %d: %w", i, err)
		}
	}

	sc.mu.Lock()
	sc.sources = sources
	sc.mu.Unlock()

	for _, source := range sources {
		slog.Debug("Feed source loaded", "url", source.URL, "label", source.Label, "enabled", source.IsEnabled())
	}

	return nil
}

func (sc *SourceCache) GetSources() []Source {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	sourcesCopy := make([]Source, len(sc.sources))
	copy(sourcesCopy, sc.sources)
	return sourcesCopy
}

func (sc *SourceCache) GetEnabledSources() []Source {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	enabled := make([]Source, 0, len(sc.sources))
	for _, source := range sc.sources {
		if source.IsEnabled() {
			enabled = append(enabled, source)
		}
	}
	return enabled
}

// GetSource returns the configured source for url, if any.
func (sc *SourceCache) GetSource(url string) (Source, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	for _, source := range sc.sources {
		if source.URL == url {
			return source, true
		}
	}
	return Source{}, false
}

func (sc *SourceCache) GetSourceCount() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.sources)
}

func (sc *SourceCache) parseSources() ([]Source, error) {
	if sc.sourcesFile == "" {
		return nil, nil
	}

	data, err := os.ReadFile(sc.sourcesFile)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Feed sources file not found", "file", sc.sourcesFile)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return file.Feeds, nil
}

func (sc *SourceCache) validateSource(source Source) error {
	if err := sc.validate.Struct(source); err != nil {
		return err
	}

	for i, filter := range source.Filters {
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}
