// Package store persists tickets, telemetry events and triage reports in Postgres.
package store

import (
	"encoding/json"
	"time"
)

// ==========================
// 1. Severity
// ==========================

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ValidSeverity reports whether s is one of the accepted levels.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// NormalizeSeverity returns medium for empty or unknown input.
func NormalizeSeverity(s Severity) Severity {
	if ValidSeverity(s) {
		return s
	}
	return SeverityMedium
}

// ==========================
// 2. Models
// ==========================

// Ticket is a persisted support submission. Details embeds the triage
// decision as JSON so the schema survives classifier changes.
type Ticket struct {
	ID            string          `json:"id"`
	AppSlug       string          `json:"app_slug"`
	Message       string          `json:"message"`
	Severity      Severity        `json:"severity"`
	PageURL       string          `json:"page_url,omitempty"`
	Route         string          `json:"route,omitempty"`
	UserAgent     string          `json:"user_agent,omitempty"`
	ClientIP      string          `json:"client_ip,omitempty"`
	SentryEventID string          `json:"sentry_event_id,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	UserEmail     string          `json:"user_email,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	AlertedAt     *time.Time      `json:"alerted_at,omitempty"`
}

// Event is a lightweight client telemetry record.
type Event struct {
	ID        string          `json:"id"`
	AppSlug   string          `json:"app_slug"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	ClientIP  string          `json:"client_ip,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Report is a persisted aggregation run.
type Report struct {
	ID          string          `json:"id"`
	AppSlug     string          `json:"app_slug"`
	WindowHours int             `json:"window_hours"`
	TicketCount int             `json:"ticket_count"`
	EventCount  int             `json:"event_count"`
	Body        json.RawMessage `json:"body"`
	CreatedAt   time.Time       `json:"created_at"`
}
