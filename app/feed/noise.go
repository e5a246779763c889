package feed

import (
	"regexp"
	"strings"
)

var (
	cssRulePattern     = regexp.MustCompile(`^(?:[^{}]*\{[^{}]*:[^{}]*\}\s*)+$`)
	cssPropertyPattern = regexp.MustCompile(`^(?:[a-zA-Z-]+\s*:\s*[^;:]+;\s*){2,}$`)
	cssAtRulePattern   = regexp.MustCompile(`^@(?:media|import|font-face|charset|keyframes|supports)\b`)

	boilerplatePhrases = []string{
		"unsubscribe",
		"view this email online",
		"view this email in your browser",
		"view in browser",
		"view online",
		"update your preferences",
		"manage your subscription",
		"manage preferences",
		"email preferences",
		"you are receiving this email",
		"you received this email",
		"forward to a friend",
		"add us to your address book",
	}
)

// maxBoilerplateLineLength keeps long paragraphs that merely mention a footer phrase.
const maxBoilerplateLineLength = 200

// NoiseFilter drops lines that are style declarations or newsletter footer boilerplate.
type NoiseFilter struct{}

func NewNoiseFilter() *NoiseFilter {
	return &NoiseFilter{}
}

func (f *NoiseFilter) Run(lines []string) []string {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if f.isStyle(line) || f.isBoilerplate(line) {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

func (f *NoiseFilter) isStyle(line string) bool {
	return cssAtRulePattern.MatchString(line) ||
		cssRulePattern.MatchString(line) ||
		cssPropertyPattern.MatchString(line)
}

func (f *NoiseFilter) isBoilerplate(line string) bool {
	if len(line) > maxBoilerplateLineLength {
		return false
	}
	lower := strings.ToLower(line)
	for _, phrase := range boilerplatePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
