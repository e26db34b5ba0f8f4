// internal/support/retrieval/documents.go
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrDocumentNotFound = errors.New("DOCUMENT_NOT_FOUND")

// docIDPrefix is the canonical namespace for knowledge-base article IDs.
const docIDPrefix = "kb_articles:"

// NormalizeDocID prefixes bare article IDs with the canonical namespace.
// Already-prefixed IDs pass through unchanged.
func NormalizeDocID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, docIDPrefix) {
		return id
	}
	return docIDPrefix + id
}

// Get fetches a single published document by its normalized ID.
func (s *Searcher) Get(ctx context.Context, id string) (*Hit, error) {
	id = NormalizeDocID(id)
	if id == "" {
		return nil, ErrDocumentNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := esapi.GetRequest{Index: s.index, DocumentID: id}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, ErrDocumentNotFound
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchQueryFailed, res.Status())
	}

	var parsed struct {
		ID     string `json:"_id"`
		Found  bool   `json:"found"`
		Source struct {
			Collection string   `json:"collection"`
			Title      string   `json:"title"`
			Summary    string   `json:"summary"`
			Body       string   `json:"body"`
			Steps      string   `json:"steps"`
			Trigger    string   `json:"trigger"`
			Routes     []string `json:"routes"`
			AppSlug    string   `json:"app_slug"`
			Published  bool     `json:"published"`
		} `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrSearchQueryFailed, err)
	}
	if !parsed.Found || !parsed.Source.Published {
		return nil, ErrDocumentNotFound
	}

	return &Hit{
		ID:         parsed.ID,
		Collection: parsed.Source.Collection,
		Title:      parsed.Source.Title,
		Summary:    parsed.Source.Summary,
		Body:       parsed.Source.Body,
		Steps:      parsed.Source.Steps,
		Trigger:    parsed.Source.Trigger,
		Routes:     parsed.Source.Routes,
		AppSlug:    parsed.Source.AppSlug,
	}, nil
}
