// internal/support/retrieval/search.go
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"support-engine/internal/common/metrics"
)

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
)

// rawScoreCeiling squashes BM25 scores into [0,1]: a raw score at or above
// the ceiling maps to 1.0. Mirrors the linear clamp the ranking layer uses.
const rawScoreCeiling = 10.0

// Searcher issues bounded full-text queries against the knowledge-base index.
type Searcher struct {
	client        *elasticsearch.Client
	index         string
	size          int
	globalAppSlug string
	timeout       time.Duration
}

func NewSearcher(client *elasticsearch.Client, index string, size int, globalAppSlug string, timeout time.Duration) *Searcher {
	if size <= 0 {
		size = 8
	}
	return &Searcher{
		client:        client,
		index:         index,
		size:          size,
		globalAppSlug: globalAppSlug,
		timeout:       timeout,
	}
}

// Search runs a single query restricted to published documents belonging to
// the requesting app or the global wildcard app.
func (s *Searcher) Search(ctx context.Context, text, appSlug string) ([]Hit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  text,
							"fields": []string{"title^3", "summary^2", "body", "steps", "trigger"},
							"type":   "best_fields",
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"published": true},
					},
					map[string]interface{}{
						"terms": map[string]interface{}{"app_slug": []string{appSlug, s.globalAppSlug}},
					},
				},
			},
		},
	}

	body, _ := json.Marshal(queryBody)
	size := s.size
	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchQueryFailed, res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string   `json:"_id"`
				Score  *float64 `json:"_score"`
				Source struct {
					Collection string   `json:"collection"`
					Title      string   `json:"title"`
					Summary    string   `json:"summary"`
					Body       string   `json:"body"`
					Steps      string   `json:"steps"`
					Trigger    string   `json:"trigger"`
					Routes     []string `json:"routes"`
					AppSlug    string   `json:"app_slug"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrSearchQueryFailed, err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, raw := range parsed.Hits.Hits {
		h := Hit{
			ID:         raw.ID,
			Collection: raw.Source.Collection,
			Title:      raw.Source.Title,
			Summary:    raw.Source.Summary,
			Body:       raw.Source.Body,
			Steps:      raw.Source.Steps,
			Trigger:    raw.Source.Trigger,
			Routes:     raw.Source.Routes,
			AppSlug:    raw.Source.AppSlug,
		}
		if raw.Score != nil {
			h.Score = squashScore(*raw.Score)
		}
		hits = append(hits, h)
	}

	metrics.SearchDuration.WithLabelValues("kb").Observe(time.Since(start).Seconds())
	return hits, nil
}

func squashScore(raw float64) *float64 {
	v := raw / rawScoreCeiling
	if v > 1.0 {
		v = 1.0
	}
	if v < 0 {
		v = 0
	}
	return &v
}
