// internal/support/retrieval/gate.go
package retrieval

import "strings"

const (
	// LexicalThreshold is the minimum token-overlap fraction for a gate pass.
	LexicalThreshold = 0.2
	// RankingThreshold is the minimum index ranking score for a gate pass.
	RankingThreshold = 0.4

	minTokenLen = 2
)

// GateResult is the relevance decision for a candidate document.
type GateResult struct {
	Lexical float64  `json:"lexical"`
	Ranking *float64 `json:"ranking,omitempty"`
	Passed  bool     `json:"passed"`
}

// EvaluateGate decides whether a candidate document is trustworthy enough to
// answer from. Either signal can independently justify confidence: lexical
// overlap avoids engine-score opacity, the ranking score avoids pure-keyword
// brittleness.
func EvaluateGate(queryText, docText string, ranking *float64) GateResult {
	result := GateResult{
		Lexical: LexicalScore(queryText, docText),
		Ranking: ranking,
	}
	result.Passed = result.Lexical >= LexicalThreshold ||
		(ranking != nil && *ranking >= RankingThreshold)
	return result
}

// LexicalScore is the fraction of query tokens (length >= 2) found as
// substrings in the lowercased document text. Zero when either side is empty.
func LexicalScore(queryText, docText string) float64 {
	if strings.TrimSpace(queryText) == "" || strings.TrimSpace(docText) == "" {
		return 0
	}

	lowerDoc := strings.ToLower(docText)
	var total, found int
	for _, token := range strings.Fields(strings.ToLower(queryText)) {
		if len(token) < minTokenLen {
			continue
		}
		total++
		if strings.Contains(lowerDoc, token) {
			found++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(found) / float64(total)
}
