package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSearcher(t *testing.T, handler http.HandlerFunc) (*Searcher, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return NewSearcher(client, "kb_articles", 8, "*", 3*time.Second), srv
}

func esResponse(w http.ResponseWriter, body map[string]interface{}) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func TestSearcher_ParsesHitsAndSquashesScores(t *testing.T) {
	var capturedBody map[string]interface{}

	searcher, _ := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&capturedBody)
		esResponse(w, map[string]interface{}{
			"hits": map[string]interface{}{
				"hits": []interface{}{
					map[string]interface{}{
						"_id":    "kb-1",
						"_score": 25.0,
						"_source": map[string]interface{}{
							"title":    "Fix upload failed or file rejected error",
							"summary":  "Common causes of upload failures",
							"app_slug": "resume-app",
							"routes":   []string{"/upload"},
						},
					},
					map[string]interface{}{
						"_id":    "kb-2",
						"_score": 4.0,
						"_source": map[string]interface{}{
							"title":    "Account settings",
							"app_slug": "*",
						},
					},
				},
			},
		})
	})

	hits, err := searcher.Search(context.Background(), "upload failed", "resume-app")

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "kb-1", hits[0].ID)
	assert.Equal(t, "Fix upload failed or file rejected error", hits[0].Title)
	assert.Equal(t, []string{"/upload"}, hits[0].Routes)
	require.NotNil(t, hits[0].Score)
	assert.InDelta(t, 1.0, *hits[0].Score, 1e-9) // 25/10 clamped
	require.NotNil(t, hits[1].Score)
	assert.InDelta(t, 0.4, *hits[1].Score, 1e-9)

	// Filter must restrict to the requesting app or the global wildcard.
	raw, _ := json.Marshal(capturedBody)
	assert.Contains(t, string(raw), `"resume-app"`)
	assert.Contains(t, string(raw), `"*"`)
	assert.Contains(t, string(raw), `"published":true`)
}

func TestSearcher_BlankQueryReturnsNoHitsWithoutRequest(t *testing.T) {
	called := false
	searcher, _ := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		esResponse(w, map[string]interface{}{})
	})

	hits, err := searcher.Search(context.Background(), "   ", "resume-app")

	assert.NoError(t, err)
	assert.Empty(t, hits)
	assert.False(t, called)
}

func TestSearcher_ErrorStatusReturnsSearchQueryFailed(t *testing.T) {
	searcher, _ := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusInternalServerError)
	})

	hits, err := searcher.Search(context.Background(), "upload failed", "resume-app")

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrSearchQueryFailed)
	assert.Empty(t, hits)
}
