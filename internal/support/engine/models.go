// Package engine runs the answer-first support pipeline: retrieval, gating,
// synthesis, triage, guard checks, ticket persistence and alert dispatch.
package engine

import (
	"support-engine/internal/support/query"
	"support-engine/internal/support/retrieval"
	"support-engine/internal/support/store"
	"support-engine/internal/support/triage"
)

// TicketInput is a support submission from a client application.
type TicketInput struct {
	AppSlug       string         `json:"app_slug"`
	Message       string         `json:"message"`
	Severity      store.Severity `json:"severity,omitempty"`
	PageURL       string         `json:"page_url,omitempty"`
	Route         string         `json:"route,omitempty"`
	UserAgent     string         `json:"user_agent,omitempty"`
	ClientIP      string         `json:"-"`
	SentryEventID string         `json:"sentry_event_id,omitempty"`
	UserID        string         `json:"user_id,omitempty"`
	UserEmail     string         `json:"user_email,omitempty"`

	// Details is an opaque client payload carried into the stored ticket.
	Details map[string]interface{} `json:"details,omitempty"`
	History []query.Turn           `json:"conversation_history,omitempty"`
	Forced  bool                   `json:"force_ticket,omitempty"`
}

// Anonymous reports whether the submission carries no user identity.
func (in *TicketInput) Anonymous() bool {
	return in.UserID == "" && in.UserEmail == ""
}

// AnswerInput is a question-only request that never creates a ticket.
type AnswerInput struct {
	AppSlug string       `json:"app_slug"`
	Message string       `json:"message"`
	Route   string       `json:"route,omitempty"`
	History []query.Turn `json:"conversation_history,omitempty"`
}

// Source identifies a document that backed an answer.
type Source struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Answered is the payload returned when the knowledge base resolved the
// question without a ticket.
type Answered struct {
	Answer    string               `json:"answer"`
	Generated bool                 `json:"generated"`
	Sources   []Source             `json:"sources"`
	Triage    triage.Decision      `json:"triage"`
	Gate      retrieval.GateResult `json:"gate"`
	QueryUsed string               `json:"query_used"`
}

// TicketResult is the payload returned when a ticket was created.
type TicketResult struct {
	TicketID string          `json:"ticket_id"`
	Triage   triage.Decision `json:"triage"`
	Severity store.Severity  `json:"severity"`
}

// Resolution is the outcome of a ticket submission. Exactly one of Answered
// or Ticket is set.
type Resolution struct {
	Resolved bool          `json:"resolved"`
	Answered *Answered     `json:"answered,omitempty"`
	Ticket   *TicketResult `json:"ticket,omitempty"`
}
