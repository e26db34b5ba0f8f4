// Package triage classifies unresolved support requests into a ticket
// category, an action, and a reason operators can audit.
package triage

import "strings"

// Category is the triage bucket assigned to a ticket.
type Category string

const (
	CategoryUserError     Category = "user_error"
	CategoryValidBug      Category = "valid_bug"
	CategorySystemFailure Category = "system_failure"
	CategoryFeatureRequest Category = "feature_request"
	// CategoryFalseBug is reserved for a future reviewer flow.
	CategoryFalseBug Category = "false_bug"
)

// Action is what the pipeline decided to do with the request.
type Action string

const (
	ActionAnswerNow    Action = "answer_now"
	ActionCreateTicket Action = "create_ticket"
)

// Reason explains the decision.
type Reason string

const (
	ReasonKBHit         Reason = "kb_hit"
	ReasonSystemSignal  Reason = "system_signal"
	ReasonBugSignal     Reason = "bug_signal"
	ReasonFeatureSignal Reason = "feature_signal"
	ReasonForced        Reason = "forced"
	ReasonNoKBMatch     Reason = "no_kb_match"
)

// Decision is the classifier output embedded in the ticket payload.
type Decision struct {
	Category   Category `json:"category"`
	Action     Action   `json:"action"`
	Reason     Reason   `json:"reason"`
	Forced     bool     `json:"forced"`
	Confidence float64  `json:"confidence"`
}

var (
	// Hard system-failure terms: infrastructure is broken, documentation
	// cannot help, and the signal overrides everything else.
	hardSystemTerms = []string{
		"500", "502", "503", "504", "404",
		"timeout", "timed out",
		"failed to fetch",
		"network error",
		"connection refused",
		"dns error",
	}

	featureTerms = []string{
		"feature request",
		"please add",
		"can you add",
		"would be great if",
		"suggestion",
		"feature idea",
		"it would help if",
	}

	bugTerms = []string{
		"error",
		"broken",
		"crash",
		"doesn't work",
		"does not work",
		"not working",
		"bug",
		"glitch",
		"incorrect",
	}

	// Soft system terms only reclassify when no KB answer was found; with a
	// gate pass they stay answerable.
	softSystemTerms = []string{
		"stuck",
		"spinning",
		"frozen",
		"blank page",
		"won't load",
		"wont load",
		"not loading",
		"loading forever",
	}
)

// rule is one entry of the fixed-priority classification list. Rules are
// evaluated top to bottom; the first match wins.
type rule struct {
	terms            []string
	requiresGateMiss bool
	category         Category
	reason           Reason
	confidence       float64
}

var rules = []rule{
	{terms: hardSystemTerms, category: CategorySystemFailure, reason: ReasonSystemSignal, confidence: 0.7},
	{terms: featureTerms, category: CategoryFeatureRequest, reason: ReasonFeatureSignal, confidence: 0.7},
	{terms: bugTerms, category: CategoryValidBug, reason: ReasonBugSignal, confidence: 0.7},
	{terms: softSystemTerms, requiresGateMiss: true, category: CategorySystemFailure, reason: ReasonSystemSignal, confidence: 0.6},
}

// Classify assigns category/reason/confidence for a message that is taking the
// ticket path. gatePassed reports whether a KB gate pass occurred for this
// request; it only affects the soft-system rule.
func Classify(message string, gatePassed bool) Decision {
	lower := strings.ToLower(message)

	for _, r := range rules {
		if r.requiresGateMiss && gatePassed {
			continue
		}
		if matchesAny(lower, r.terms) {
			return Decision{
				Category:   r.category,
				Action:     ActionCreateTicket,
				Reason:     r.reason,
				Confidence: r.confidence,
			}
		}
	}

	return Decision{
		Category:   CategoryUserError,
		Action:     ActionCreateTicket,
		Reason:     ReasonNoKBMatch,
		Confidence: 0.5,
	}
}

// ShouldSkipAnswer reports whether the answer-first attempt must be skipped
// entirely. Forced submissions and hard-system/bug/feature signals always
// produce a ticket: a ticket owner should see real bug and feature reports
// even when documentation exists. Soft system signals do not skip.
func ShouldSkipAnswer(message string, forced bool) bool {
	if forced {
		return true
	}
	lower := strings.ToLower(message)
	return matchesAny(lower, hardSystemTerms) ||
		matchesAny(lower, featureTerms) ||
		matchesAny(lower, bugTerms)
}

func matchesAny(lowerMessage string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(lowerMessage, term) {
			return true
		}
	}
	return false
}
