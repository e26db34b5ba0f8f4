// internal/support/retrieval/models.go
package retrieval

// Hit is a single knowledge-base document returned by the search index.
type Hit struct {
	ID         string   `json:"id"`
	Collection string   `json:"collection"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Body       string   `json:"body"`
	Steps      string   `json:"steps"`
	Trigger    string   `json:"trigger"`
	Routes     []string `json:"routes,omitempty"`
	AppSlug    string   `json:"appSlug"`
	// Score is the index ranking score squashed into [0,1]; nil when the
	// index did not report one.
	Score *float64 `json:"score,omitempty"`
}

// SearchableText concatenates every text field of the hit for lexical scoring.
func (h Hit) SearchableText() string {
	return h.Title + " " + h.Summary + " " + h.Body + " " + h.Steps + " " + h.Trigger
}

// contentLength is the dedupe tie-breaker: richer documents win.
func (h Hit) contentLength() int {
	return len(h.Body) + len(h.Steps)
}

func (h Hit) scoreValue() float64 {
	if h.Score == nil {
		return -1
	}
	return *h.Score
}
