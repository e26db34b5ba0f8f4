// internal/support/retrieval/synonyms.go
package retrieval

import "strings"

// synonymRule rewrites a zero-hit query when the user phrased a known problem
// in vocabulary the knowledge base never uses.
type synonymRule struct {
	phrases     []string
	replacement string
}

// Ordered: the first rule with any matching phrase wins.
var synonymRules = []synonymRule{
	{
		phrases:     []string{"callbacks", "no interviews", "not getting calls", "no responses"},
		replacement: "improve application response rate",
	},
	{
		phrases:     []string{"file rejected", "upload error", "can't upload", "cannot upload"},
		replacement: "fix upload failed or file rejected error",
	},
	{
		phrases:     []string{"charged twice", "double charge", "billed twice"},
		replacement: "duplicate billing charge refund",
	},
	{
		phrases:     []string{"can't log in", "cannot log in", "locked out"},
		replacement: "reset password or unlock account",
	},
}

// SynonymFallback returns a full replacement query for a message that matched
// zero documents, or ok=false when no curated rule applies.
func SynonymFallback(message string) (string, bool) {
	lower := strings.ToLower(message)
	for _, rule := range synonymRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(lower, phrase) {
				return rule.replacement, true
			}
		}
	}
	return "", false
}
