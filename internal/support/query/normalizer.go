// Package query cleans raw user messages before they reach the search index.
package query

import (
	"regexp"
	"strings"
)

var (
	followUpPrefix = regexp.MustCompile(`(?i)^follow[- ]?up:\s*`)

	// Lead-in phrases that carry no retrieval signal. Longer variants first so
	// the anchored match consumes as much as possible.
	fluffPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^how (do|can|would|should) (i|we|you)\s+`),
		regexp.MustCompile(`(?i)^(can|could|would) (i|we|you)( please)?\s+`),
		regexp.MustCompile(`(?i)^i('m| am) (trying|unable|not able) to\s+`),
		regexp.MustCompile(`(?i)^i (want|need|would like) to\s+`),
		regexp.MustCompile(`(?i)^(what|why|where) (is|are|do|does)\s+`),
		regexp.MustCompile(`(?i)^please\s+`),
		regexp.MustCompile(`(?i)^help( me)?( with)?\s+`),
	}
)

// Normalize collapses whitespace, trims, and removes a leading follow-up marker.
// It is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	s := strings.Join(strings.Fields(raw), " ")
	// Stacked markers ("follow up: follow-up: ...") must all go, otherwise a
	// second Normalize would strip further.
	for {
		stripped := followUpPrefix.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	return strings.TrimSpace(s)
}

// StripFluff removes a leading conversational lead-in from an already-normalized
// query. If stripping would leave fewer than 3 characters the original query is
// returned unchanged.
func StripFluff(normalized string) string {
	stripped := normalized
	for _, p := range fluffPatterns {
		if loc := p.FindStringIndex(stripped); loc != nil && loc[0] == 0 {
			stripped = strings.TrimSpace(stripped[loc[1]:])
		}
	}
	if len(stripped) < 3 {
		return normalized
	}
	return stripped
}
