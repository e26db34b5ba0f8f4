package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-engine/internal/common/logger"
	"support-engine/internal/support/store"
)

// ==========================
// Test Helpers
// ==========================

type fakeTicketSource struct {
	tickets    []store.Ticket
	listErr    error
	inserted   *store.Report
	insertErr  error
}

func (f *fakeTicketSource) ListSince(ctx context.Context, appSlug string, since time.Time) ([]store.Ticket, error) {
	return f.tickets, f.listErr
}

func (f *fakeTicketSource) InsertReport(ctx context.Context, report *store.Report) error {
	f.inserted = report
	return f.insertErr
}

type fakeEventSource struct {
	count int
	err   error
}

func (f *fakeEventSource) CountEventsSince(ctx context.Context, appSlug string, since time.Time) (int, error) {
	return f.count, f.err
}

type fakeSink struct {
	digests []string
}

func (f *fakeSink) PostDigest(ctx context.Context, text string) {
	f.digests = append(f.digests, text)
}

type fakeSummarizer struct {
	text string
	err  error
}

func (f *fakeSummarizer) Generate(ctx context.Context, system, prompt string) (string, error) {
	return f.text, f.err
}

func ticketWith(category string, severity store.Severity, message string) store.Ticket {
	details, _ := json.Marshal(map[string]interface{}{
		"triage": map[string]string{"category": category},
	})
	return store.Ticket{
		AppSlug:  "resume-app",
		Message:  message,
		Severity: severity,
		Details:  details,
	}
}

func decodeBody(t *testing.T, report *store.Report) Body {
	var body Body
	require.NoError(t, json.Unmarshal(report.Body, &body))
	return body
}

// ==========================
// Run Tests
// ==========================

func TestAggregator_Run_ClustersByCategory(t *testing.T) {
	source := &fakeTicketSource{tickets: []store.Ticket{
		ticketWith("valid_bug", store.SeverityMedium, "export button broken"),
		ticketWith("valid_bug", store.SeverityHigh, "pdf render wrong"),
		ticketWith("user_error", store.SeverityLow, "how do I log in"),
	}}
	sink := &fakeSink{}
	a := NewAggregator(source, &fakeEventSource{count: 4}, sink, nil, 3, logger.NewTestLogger(t))

	report, err := a.Run(context.Background(), "resume-app", 24*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, 3, report.TicketCount)
	assert.Equal(t, 4, report.EventCount)
	assert.Equal(t, 24, report.WindowHours)

	body := decodeBody(t, report)
	require.Len(t, body.Clusters, 2)
	// Largest cluster sorts first.
	assert.Equal(t, "valid_bug", body.Clusters[0].Category)
	assert.Equal(t, 2, body.Clusters[0].Count)
	assert.Equal(t, 1, body.Clusters[0].Severities["high"])
	assert.Len(t, body.Clusters[0].Examples, 2)

	require.Len(t, sink.digests, 1)
	assert.Contains(t, sink.digests[0], "valid_bug: 2")
}

func TestAggregator_Run_SuggestionThresholds(t *testing.T) {
	var tickets []store.Ticket
	for i := 0; i < 6; i++ {
		tickets = append(tickets, ticketWith("system_failure", store.SeverityMedium, "502 on save"))
	}
	tickets = append(tickets, ticketWith("user_error", store.SeverityCritical, "locked out"))

	source := &fakeTicketSource{tickets: tickets}
	a := NewAggregator(source, &fakeEventSource{}, nil, nil, 3, logger.NewTestLogger(t))

	report, err := a.Run(context.Background(), "*", 24*time.Hour)

	require.NoError(t, err)
	body := decodeBody(t, report)
	assert.Contains(t, body.Suggestions, "investigate infrastructure: 6 system failures in window")
	assert.Contains(t, body.Suggestions, "page on-call: critical ticket in window")
}

func TestAggregator_Run_ExampleLimitRespected(t *testing.T) {
	var tickets []store.Ticket
	for i := 0; i < 5; i++ {
		tickets = append(tickets, ticketWith("user_error", store.SeverityLow, "question"))
	}

	source := &fakeTicketSource{tickets: tickets}
	a := NewAggregator(source, &fakeEventSource{}, nil, nil, 2, logger.NewTestLogger(t))

	report, err := a.Run(context.Background(), "*", time.Hour)

	require.NoError(t, err)
	body := decodeBody(t, report)
	require.Len(t, body.Clusters, 1)
	assert.Len(t, body.Clusters[0].Examples, 2)
	assert.Equal(t, 5, body.Clusters[0].Count)
}

func TestAggregator_Run_UnparsableDetailsGoUnclassified(t *testing.T) {
	source := &fakeTicketSource{tickets: []store.Ticket{
		{AppSlug: "resume-app", Message: "mystery", Severity: store.SeverityMedium, Details: json.RawMessage(`not json`)},
		{AppSlug: "resume-app", Message: "blank", Severity: store.SeverityMedium},
	}}
	a := NewAggregator(source, &fakeEventSource{}, nil, nil, 3, logger.NewTestLogger(t))

	report, err := a.Run(context.Background(), "resume-app", time.Hour)

	require.NoError(t, err)
	body := decodeBody(t, report)
	require.Len(t, body.Clusters, 1)
	assert.Equal(t, "unclassified", body.Clusters[0].Category)
	assert.Equal(t, 2, body.Clusters[0].Count)
}

func TestAggregator_Run_SummarizerFailureIsNonFatal(t *testing.T) {
	source := &fakeTicketSource{tickets: []store.Ticket{
		ticketWith("user_error", store.SeverityLow, "question"),
	}}
	a := NewAggregator(source, &fakeEventSource{}, nil, &fakeSummarizer{err: errors.New("model down")}, 3, logger.NewTestLogger(t))

	report, err := a.Run(context.Background(), "*", time.Hour)

	require.NoError(t, err)
	body := decodeBody(t, report)
	assert.Empty(t, body.Summary)
}

func TestAggregator_Run_SummaryIncluded(t *testing.T) {
	source := &fakeTicketSource{tickets: []store.Ticket{
		ticketWith("user_error", store.SeverityLow, "question"),
	}}
	a := NewAggregator(source, &fakeEventSource{}, nil, &fakeSummarizer{text: " Mostly login questions. "}, 3, logger.NewTestLogger(t))

	report, err := a.Run(context.Background(), "*", time.Hour)

	require.NoError(t, err)
	body := decodeBody(t, report)
	assert.Equal(t, "Mostly login questions.", body.Summary)
}

func TestAggregator_Run_EventCountErrorDegradesToZero(t *testing.T) {
	source := &fakeTicketSource{}
	a := NewAggregator(source, &fakeEventSource{err: errors.New("db down")}, nil, nil, 3, logger.NewTestLogger(t))

	report, err := a.Run(context.Background(), "*", time.Hour)

	require.NoError(t, err)
	assert.Equal(t, 0, report.EventCount)
	assert.Equal(t, 0, report.TicketCount)
}

func TestAggregator_Run_ListErrorFailsRun(t *testing.T) {
	source := &fakeTicketSource{listErr: errors.New("db down")}
	a := NewAggregator(source, &fakeEventSource{}, nil, nil, 3, logger.NewTestLogger(t))

	_, err := a.Run(context.Background(), "*", time.Hour)

	require.Error(t, err)
}
