package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-engine/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeSearcher struct {
	byQuery map[string][]Hit
	queries []string
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, text, _ string) ([]Hit, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.byQuery[text], nil
}

func makeHit(id, appSlug string, score float64) Hit {
	return Hit{ID: id, AppSlug: appSlug, Score: floatPtr(score)}
}

func TestDedupe_KeepsHigherScore(t *testing.T) {
	hits := []Hit{
		{ID: "doc-1", Score: floatPtr(0.3), Body: "short"},
		{ID: "doc-1", Score: floatPtr(0.7), Body: "short"},
		{ID: "doc-2", Score: floatPtr(0.5)},
	}

	merged := Dedupe(hits)

	require.Len(t, merged, 2)
	assert.Equal(t, "doc-1", merged[0].ID)
	assert.InDelta(t, 0.7, *merged[0].Score, 1e-9)
}

func TestDedupe_TieBreaksOnContentLength(t *testing.T) {
	hits := []Hit{
		{ID: "doc-1", Score: floatPtr(0.5), Body: "short"},
		{ID: "doc-1", Score: floatPtr(0.5), Body: "a much longer body text", Steps: "with steps"},
	}

	merged := Dedupe(hits)

	require.Len(t, merged, 1)
	assert.Equal(t, "a much longer body text", merged[0].Body)
}

func TestDedupe_NilScoreLosesToAnyScore(t *testing.T) {
	hits := []Hit{
		{ID: "doc-1", Body: "unscored"},
		{ID: "doc-1", Score: floatPtr(0.1), Body: "scored"},
	}

	merged := Dedupe(hits)

	require.Len(t, merged, 1)
	assert.Equal(t, "scored", merged[0].Body)
}

func TestRerank_AppSpecificBeforeGlobal(t *testing.T) {
	hits := []Hit{
		makeHit("global-high", "*", 0.9),
		makeHit("own-low", "resume-app", 0.1),
	}

	Rerank(hits, "resume-app", "", "*")

	assert.Equal(t, "own-low", hits[0].ID)
	assert.Equal(t, "global-high", hits[1].ID)
}

func TestRerank_RouteMatchBeatsScore(t *testing.T) {
	matching := Hit{ID: "route-match", AppSlug: "resume-app", Score: floatPtr(0.2), Routes: []string{"/settings/*"}}
	other := Hit{ID: "no-route", AppSlug: "resume-app", Score: floatPtr(0.9), Routes: []string{"/billing"}}
	hits := []Hit{other, matching}

	Rerank(hits, "resume-app", "/settings/profile", "*")

	assert.Equal(t, "route-match", hits[0].ID)
}

func TestRerank_ScoreOrderWithinTier(t *testing.T) {
	hits := []Hit{
		makeHit("low", "resume-app", 0.2),
		makeHit("high", "resume-app", 0.8),
		makeHit("mid", "resume-app", 0.5),
	}

	Rerank(hits, "resume-app", "", "*")

	assert.Equal(t, []string{"high", "mid", "low"},
		[]string{hits[0].ID, hits[1].ID, hits[2].ID})
}

func TestRouteMatches(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		route    string
		expected bool
	}{
		{"exact match", []string{"/billing"}, "/billing", true},
		{"wildcard prefix match", []string{"/settings/*"}, "/settings/profile", true},
		{"wildcard non-match", []string{"/settings/*"}, "/billing", false},
		{"no patterns", nil, "/billing", false},
		{"non-wildcard prefix is not enough", []string{"/settings"}, "/settings/profile", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RouteMatches(tt.patterns, tt.route))
		})
	}
}

func TestRetriever_IssuesAllQueryVariants(t *testing.T) {
	searcher := &fakeSearcher{byQuery: map[string][]Hit{
		"how do I reset my password": {makeHit("doc-1", "resume-app", 0.5)},
		"reset my password":          {makeHit("doc-2", "resume-app", 0.4)},
		"password help context":      {makeHit("doc-1", "resume-app", 0.9)},
	}}
	r := NewRetriever(searcher, "*", logger.NewNoOpLogger())

	hits, used := r.Retrieve(context.Background(), "resume-app", "how do I reset my password", "", "password help context")

	assert.Equal(t, "how do I reset my password", used)
	assert.Equal(t, []string{
		"how do I reset my password",
		"reset my password",
		"password help context",
	}, searcher.queries)

	// doc-1 deduplicated keeping the 0.9 score, ranked first
	require.Len(t, hits, 2)
	assert.Equal(t, "doc-1", hits[0].ID)
	assert.InDelta(t, 0.9, *hits[0].Score, 1e-9)
}

func TestRetriever_SearchFailureDegradesToFewerHits(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("index down")}
	r := NewRetriever(searcher, "*", logger.NewNoOpLogger())

	hits, used := r.Retrieve(context.Background(), "resume-app", "upload failed", "", "")

	assert.Empty(t, hits)
	assert.Equal(t, "upload failed", used)
}

func TestRetriever_EmptyMessageReturnsNothing(t *testing.T) {
	searcher := &fakeSearcher{}
	r := NewRetriever(searcher, "*", logger.NewNoOpLogger())

	hits, used := r.Retrieve(context.Background(), "resume-app", "   ", "", "")

	assert.Empty(t, hits)
	assert.Empty(t, used)
	assert.Empty(t, searcher.queries)
}

func TestSynonymFallback(t *testing.T) {
	tests := []struct {
		name        string
		message     string
		expected    string
		shouldMatch bool
	}{
		{
			name:        "callbacks phrasing rewritten",
			message:     "I never get callbacks from my applications",
			expected:    "improve application response rate",
			shouldMatch: true,
		},
		{
			name:        "no interviews phrasing rewritten",
			message:     "applied everywhere but no interviews",
			expected:    "improve application response rate",
			shouldMatch: true,
		},
		{
			name:        "first matching rule wins",
			message:     "no interviews and my file rejected too",
			expected:    "improve application response rate",
			shouldMatch: true,
		},
		{
			name:        "no rule matches",
			message:     "the dashboard looks odd",
			shouldMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SynonymFallback(tt.message)
			assert.Equal(t, tt.shouldMatch, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
