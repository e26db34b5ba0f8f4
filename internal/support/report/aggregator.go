// Package report builds the scheduled triage digest: it clusters recent
// tickets by category, derives operator suggestions from volume thresholds
// and persists the result.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"support-engine/internal/common/logger"
	"support-engine/internal/support/store"
	"support-engine/internal/support/triage"
)

const (
	systemFailureThreshold = 5
	validBugThreshold      = 3
	defaultExampleLimit    = 3
)

// TicketSource provides the tickets and persistence for a run.
type TicketSource interface {
	ListSince(ctx context.Context, appSlug string, since time.Time) ([]store.Ticket, error)
	InsertReport(ctx context.Context, report *store.Report) error
}

// EventSource counts telemetry events in the window.
type EventSource interface {
	CountEventsSince(ctx context.Context, appSlug string, since time.Time) (int, error)
}

// DigestSink receives the rendered digest. Delivery is best effort.
type DigestSink interface {
	PostDigest(ctx context.Context, text string)
}

// Summarizer optionally condenses the digest. A nil summarizer or a failed
// call leaves the mechanical digest untouched.
type Summarizer interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Cluster is one category bucket in the report body.
type Cluster struct {
	Category   string         `json:"category"`
	Count      int            `json:"count"`
	Severities map[string]int `json:"severities"`
	Examples   []string       `json:"examples"`
}

// Body is the persisted report payload.
type Body struct {
	Clusters    []Cluster `json:"clusters"`
	Suggestions []string  `json:"suggestions"`
	Summary     string    `json:"summary,omitempty"`
}

// Aggregator runs the scheduled triage aggregation.
type Aggregator struct {
	tickets      TicketSource
	events       EventSource
	sink         DigestSink
	summarizer   Summarizer
	exampleLimit int
	logger       logger.Logger
}

func NewAggregator(tickets TicketSource, events EventSource, sink DigestSink, summarizer Summarizer, exampleLimit int, log logger.Logger) *Aggregator {
	if exampleLimit <= 0 {
		exampleLimit = defaultExampleLimit
	}
	return &Aggregator{
		tickets:      tickets,
		events:       events,
		sink:         sink,
		summarizer:   summarizer,
		exampleLimit: exampleLimit,
		logger:       log.WithFields(map[string]interface{}{"component": "aggregator"}),
	}
}

// Run aggregates the lookback window for one app slug and persists the
// report. An empty window still produces a report so the schedule leaves an
// audit trail.
func (a *Aggregator) Run(ctx context.Context, appSlug string, lookback time.Duration) (*store.Report, error) {
	since := time.Now().UTC().Add(-lookback)

	tickets, err := a.tickets.ListSince(ctx, appSlug, since)
	if err != nil {
		return nil, fmt.Errorf("aggregation load failed: %w", err)
	}

	eventCount := 0
	if a.events != nil {
		eventCount, err = a.events.CountEventsSince(ctx, appSlug, since)
		if err != nil {
			a.logger.Warn("event count unavailable", map[string]interface{}{
				"error": err.Error(),
			})
			eventCount = 0
		}
	}

	body := a.buildBody(ctx, tickets)

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("report marshal failed: %w", err)
	}

	rep := &store.Report{
		AppSlug:     appSlug,
		WindowHours: int(lookback.Hours()),
		TicketCount: len(tickets),
		EventCount:  eventCount,
		Body:        bodyJSON,
	}
	if err := a.tickets.InsertReport(ctx, rep); err != nil {
		return nil, err
	}

	if a.sink != nil {
		a.sink.PostDigest(ctx, renderDigest(appSlug, rep, body))
	}

	a.logger.Info("aggregation complete", map[string]interface{}{
		"appSlug":     appSlug,
		"ticketCount": len(tickets),
		"eventCount":  eventCount,
		"clusters":    len(body.Clusters),
	})
	return rep, nil
}

func (a *Aggregator) buildBody(ctx context.Context, tickets []store.Ticket) Body {
	clusters := clusterByCategory(tickets, a.exampleLimit)
	body := Body{
		Clusters:    clusters,
		Suggestions: suggestions(clusters, tickets),
	}

	if a.summarizer != nil && len(tickets) > 0 {
		summary, err := a.summarizer.Generate(ctx,
			"You summarize support ticket digests for operators. Two sentences, plain text.",
			digestPrompt(clusters))
		if err != nil {
			a.logger.Warn("digest summary skipped", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			body.Summary = strings.TrimSpace(summary)
		}
	}
	return body
}

// clusterByCategory buckets tickets by their stored triage category. Tickets
// without a parsable decision land in "unclassified".
func clusterByCategory(tickets []store.Ticket, exampleLimit int) []Cluster {
	buckets := map[string]*Cluster{}
	var order []string

	for _, t := range tickets {
		category := ticketCategory(t)
		c, ok := buckets[category]
		if !ok {
			c = &Cluster{Category: category, Severities: map[string]int{}}
			buckets[category] = c
			order = append(order, category)
		}
		c.Count++
		c.Severities[string(t.Severity)]++
		if len(c.Examples) < exampleLimit {
			c.Examples = append(c.Examples, snippet(t.Message))
		}
	}

	clusters := make([]Cluster, 0, len(order))
	for _, category := range order {
		clusters = append(clusters, *buckets[category])
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Count > clusters[j].Count
	})
	return clusters
}

func ticketCategory(t store.Ticket) string {
	var details struct {
		Triage triage.Decision `json:"triage"`
	}
	if len(t.Details) == 0 || json.Unmarshal(t.Details, &details) != nil || details.Triage.Category == "" {
		return "unclassified"
	}
	return string(details.Triage.Category)
}

func suggestions(clusters []Cluster, tickets []store.Ticket) []string {
	var out []string
	for _, c := range clusters {
		switch {
		case c.Category == string(triage.CategorySystemFailure) && c.Count > systemFailureThreshold:
			out = append(out, fmt.Sprintf("investigate infrastructure: %d system failures in window", c.Count))
		case c.Category == string(triage.CategoryValidBug) && c.Count > validBugThreshold:
			out = append(out, fmt.Sprintf("triage bug backlog: %d bug reports in window", c.Count))
		}
	}
	for _, t := range tickets {
		if t.Severity == store.SeverityCritical {
			out = append(out, "page on-call: critical ticket in window")
			break
		}
	}
	return out
}

func digestPrompt(clusters []Cluster) string {
	var b strings.Builder
	for _, c := range clusters {
		fmt.Fprintf(&b, "%s: %d tickets\n", c.Category, c.Count)
		for _, ex := range c.Examples {
			b.WriteString("  - " + ex + "\n")
		}
	}
	return b.String()
}

func renderDigest(appSlug string, rep *store.Report, body Body) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Triage digest for %s (last %dh): %d tickets, %d events\n",
		appSlug, rep.WindowHours, rep.TicketCount, rep.EventCount)
	for _, c := range body.Clusters {
		fmt.Fprintf(&b, "• %s: %d\n", c.Category, c.Count)
	}
	for _, s := range body.Suggestions {
		b.WriteString("⚠ " + s + "\n")
	}
	if body.Summary != "" {
		b.WriteString(body.Summary + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func snippet(message string) string {
	message = strings.Join(strings.Fields(message), " ")
	if len(message) > 120 {
		return message[:120] + "..."
	}
	return message
}
