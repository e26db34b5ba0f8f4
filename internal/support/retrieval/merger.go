// internal/support/retrieval/merger.go
package retrieval

import (
	"context"
	"sort"
	"strings"

	"support-engine/internal/common/logger"
	"support-engine/internal/support/query"
)

// SearchClient is the single-query surface the merger fans out over.
type SearchClient interface {
	Search(ctx context.Context, text, appSlug string) ([]Hit, error)
}

// Retriever issues the normalized, fluff-stripped and context queries against
// the index, merges the hits, and re-ranks the deduplicated set.
type Retriever struct {
	searcher      SearchClient
	globalAppSlug string
	logger        logger.Logger
}

func NewRetriever(searcher SearchClient, globalAppSlug string, log logger.Logger) *Retriever {
	return &Retriever{
		searcher:      searcher,
		globalAppSlug: globalAppSlug,
		logger:        log.WithFields(map[string]interface{}{"component": "retriever"}),
	}
}

// Retrieve returns the re-ranked hit list and the primary query text used.
// An index failure on one query degrades to fewer hits rather than failing
// the whole retrieval.
func (r *Retriever) Retrieve(ctx context.Context, appSlug, message, route, contextQuery string) ([]Hit, string) {
	normalized := query.Normalize(message)
	if normalized == "" {
		return nil, ""
	}
	stripped := query.StripFluff(normalized)

	queries := []string{normalized}
	if stripped != normalized {
		queries = append(queries, stripped)
	}
	if contextQuery != "" {
		queries = append(queries, contextQuery)
	}

	var all []Hit
	for _, q := range queries {
		hits, err := r.searcher.Search(ctx, q, appSlug)
		if err != nil {
			r.logger.Warn("search query failed", map[string]interface{}{
				"query": q,
				"error": err.Error(),
			})
			continue
		}
		all = append(all, hits...)
	}

	merged := Dedupe(all)
	Rerank(merged, appSlug, route, r.globalAppSlug)
	return merged, normalized
}

// Dedupe collapses hits sharing an identifier, keeping the one with the
// highest ranking score and breaking ties on combined content length.
func Dedupe(hits []Hit) []Hit {
	byID := make(map[string]Hit, len(hits))
	order := make([]string, 0, len(hits))

	for _, h := range hits {
		existing, seen := byID[h.ID]
		if !seen {
			byID[h.ID] = h
			order = append(order, h.ID)
			continue
		}
		if h.scoreValue() > existing.scoreValue() ||
			(h.scoreValue() == existing.scoreValue() && h.contentLength() > existing.contentLength()) {
			byID[h.ID] = h
		}
	}

	out := make([]Hit, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// Rerank orders hits with a three-level comparator: app-specific documents
// before global ones, route matches before non-matches when a route was
// resolved, then ranking score.
func Rerank(hits []Hit, appSlug, route, globalAppSlug string) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]

		aOwn := a.AppSlug == appSlug && a.AppSlug != globalAppSlug
		bOwn := b.AppSlug == appSlug && b.AppSlug != globalAppSlug
		if aOwn != bOwn {
			return aOwn
		}

		if route != "" {
			aRoute := RouteMatches(a.Routes, route)
			bRoute := RouteMatches(b.Routes, route)
			if aRoute != bRoute {
				return aRoute
			}
		}

		return a.scoreValue() > b.scoreValue()
	})
}

// RouteMatches reports whether any pattern in the list matches the resolved
// route, either exactly or as a prefix when the pattern ends in a wildcard.
func RouteMatches(patterns []string, route string) bool {
	for _, p := range patterns {
		if p == route {
			return true
		}
		if strings.HasSuffix(p, "*") && strings.HasPrefix(route, strings.TrimSuffix(p, "*")) {
			return true
		}
	}
	return false
}
