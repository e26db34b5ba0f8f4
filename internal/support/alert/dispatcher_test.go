package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-engine/internal/common/config"
	"support-engine/internal/common/logger"
	"support-engine/internal/support/store"
	"support-engine/internal/support/triage"
)

// ==========================
// Test Helpers
// ==========================

type mockSES struct {
	calls []*ses.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.calls = append(m.calls, params)
	return &ses.SendEmailOutput{}, m.err
}

type mockSNS struct {
	calls []*sns.PublishInput
	err   error
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls = append(m.calls, params)
	return &sns.PublishOutput{}, m.err
}

type mockStamper struct {
	stamped bool
	err     error
	calls   int
}

func (m *mockStamper) StampAlert(ctx context.Context, ticketID string) (bool, error) {
	m.calls++
	return m.stamped, m.err
}

func alertConfig(slackURL string) config.AlertsConfig {
	cfg := config.AlertsConfig{Timeout: 2000}
	cfg.Slack.Enabled = slackURL != ""
	cfg.Slack.WebhookURL = slackURL
	cfg.SNS.Enabled = true
	cfg.SNS.TopicARN = "arn:aws:sns:us-east-1:000000000000:support-alerts"
	cfg.SES.Enabled = true
	cfg.SES.FromEmail = "alerts@example.com"
	cfg.SES.ToEmail = "oncall@example.com"
	return cfg
}

func highTicket() *store.Ticket {
	return &store.Ticket{
		ID:       "t1",
		AppSlug:  "resume-app",
		Message:  "every request returns a 502",
		Severity: store.SeverityHigh,
		Route:    "/editor",
	}
}

// ==========================
// ShouldAlert Tests
// ==========================

func TestShouldAlert(t *testing.T) {
	tests := []struct {
		name     string
		category triage.Category
		severity store.Severity
		want     bool
	}{
		{name: "system failure always alerts", category: triage.CategorySystemFailure, severity: store.SeverityLow, want: true},
		{name: "high severity alerts", category: triage.CategoryValidBug, severity: store.SeverityHigh, want: true},
		{name: "critical severity alerts", category: triage.CategoryUserError, severity: store.SeverityCritical, want: true},
		{name: "medium bug stays quiet", category: triage.CategoryValidBug, severity: store.SeverityMedium, want: false},
		{name: "low feature request stays quiet", category: triage.CategoryFeatureRequest, severity: store.SeverityLow, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldAlert(tt.category, tt.severity))
		})
	}
}

// ==========================
// Notify Tests
// ==========================

func TestDispatcher_Notify_SendsSlackAndSNS(t *testing.T) {
	var slackPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&slackPayload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	snsMock := &mockSNS{}
	sesMock := &mockSES{}
	stamper := &mockStamper{stamped: true}
	d := NewDispatcher(alertConfig(server.URL), stamper, sesMock, snsMock, logger.NewTestLogger(t))

	d.Notify(context.Background(), highTicket(), triage.CategorySystemFailure)

	assert.Equal(t, 1, stamper.calls)
	assert.Contains(t, slackPayload["text"], "resume-app")
	require.Len(t, snsMock.calls, 1)
	assert.Contains(t, *snsMock.calls[0].Message, "502")
	// High severity does not reach email, only critical does.
	assert.Empty(t, sesMock.calls)
}

func TestDispatcher_Notify_CriticalSendsEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sesMock := &mockSES{}
	d := NewDispatcher(alertConfig(server.URL), &mockStamper{stamped: true}, sesMock, &mockSNS{}, logger.NewTestLogger(t))

	ticket := highTicket()
	ticket.Severity = store.SeverityCritical
	d.Notify(context.Background(), ticket, triage.CategorySystemFailure)

	require.Len(t, sesMock.calls, 1)
	assert.Equal(t, []string{"oncall@example.com"}, sesMock.calls[0].Destination.ToAddresses)
}

func TestDispatcher_Notify_SkipsWhenAlreadyStamped(t *testing.T) {
	snsMock := &mockSNS{}
	stamper := &mockStamper{}
	d := NewDispatcher(alertConfig(""), stamper, &mockSES{}, snsMock, logger.NewTestLogger(t))

	ticket := highTicket()
	alertedAt := time.Now().UTC()
	ticket.AlertedAt = &alertedAt
	d.Notify(context.Background(), ticket, triage.CategorySystemFailure)

	assert.Empty(t, snsMock.calls)
	assert.Zero(t, stamper.calls)
}

func TestDispatcher_Notify_StampsOnlyAfterSuccessfulSend(t *testing.T) {
	snsMock := &mockSNS{}
	stamper := &mockStamper{stamped: true}
	d := NewDispatcher(alertConfig(""), stamper, &mockSES{}, snsMock, logger.NewTestLogger(t))

	d.Notify(context.Background(), highTicket(), triage.CategorySystemFailure)

	assert.Len(t, snsMock.calls, 1)
	assert.Equal(t, 1, stamper.calls)
}

func TestDispatcher_Notify_FailedDeliveryLeavesTicketUnstamped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	snsMock := &mockSNS{err: errors.New("topic gone")}
	stamper := &mockStamper{stamped: true}
	d := NewDispatcher(alertConfig(server.URL), stamper, &mockSES{}, snsMock, logger.NewTestLogger(t))

	d.Notify(context.Background(), highTicket(), triage.CategorySystemFailure)

	// Every channel failed, so the ticket stays eligible for a later alert.
	assert.Zero(t, stamper.calls)
}

func TestDispatcher_Notify_StampErrorAfterSendIsNonFatal(t *testing.T) {
	snsMock := &mockSNS{}
	stamper := &mockStamper{err: errors.New("db down")}
	d := NewDispatcher(alertConfig(""), stamper, &mockSES{}, snsMock, logger.NewTestLogger(t))

	assert.NotPanics(t, func() {
		d.Notify(context.Background(), highTicket(), triage.CategorySystemFailure)
	})
	assert.Len(t, snsMock.calls, 1)
	assert.Equal(t, 1, stamper.calls)
}

// ==========================
// Digest Tests
// ==========================

func TestDispatcher_PostDigest(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewDispatcher(alertConfig(server.URL), nil, nil, nil, logger.NewTestLogger(t))
	d.PostDigest(context.Background(), "daily triage digest")

	assert.Equal(t, "daily triage digest", payload["text"])
}
