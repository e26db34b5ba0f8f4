// Package alert delivers operator notifications for tickets that need
// immediate attention. Delivery is best effort: a failed channel is logged
// and never fails the ticket submission.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"support-engine/internal/common/config"
	"support-engine/internal/common/httpclient"
	"support-engine/internal/common/logger"
	"support-engine/internal/common/metrics"
	"support-engine/internal/support/store"
	"support-engine/internal/support/triage"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// AlertStamper marks a ticket as alerted so concurrent dispatchers fire once.
type AlertStamper interface {
	StampAlert(ctx context.Context, ticketID string) (bool, error)
}

// Dispatcher fans a ticket alert out to the configured channels.
type Dispatcher struct {
	cfg       config.AlertsConfig
	stamper   AlertStamper
	webClient *httpclient.Client
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
}

func NewDispatcher(cfg config.AlertsConfig, stamper AlertStamper, sesClient SESService, snsClient SNSService, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		stamper:   stamper,
		webClient: httpclient.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		sesClient: sesClient,
		snsClient: snsClient,
		logger:    log.WithFields(map[string]interface{}{"component": "alert_dispatcher"}),
	}
}

// ShouldAlert reports whether a ticket warrants an operator notification.
// System failures always alert, as does anything high or critical.
func ShouldAlert(category triage.Category, severity store.Severity) bool {
	if category == triage.CategorySystemFailure {
		return true
	}
	return severity == store.SeverityHigh || severity == store.SeverityCritical
}

// Notify sends the ticket to every enabled channel. A prior alert stamp
// suppresses re-delivery; the stamp itself is written only after at least one
// channel accepted the message, so a failed delivery stays eligible for a
// later attempt.
func (d *Dispatcher) Notify(ctx context.Context, ticket *store.Ticket, category triage.Category) {
	if ticket.AlertedAt != nil {
		d.logger.Debug("ticket already alerted", map[string]interface{}{
			"ticketId": ticket.ID,
		})
		return
	}

	subject, body := formatAlert(ticket, category)
	sent := false

	if d.cfg.Slack.Enabled {
		if err := d.sendSlack(ctx, ticket, category, body); err != nil {
			d.logger.Error("slack alert failed", map[string]interface{}{
				"ticketId": ticket.ID,
				"error":    err.Error(),
			})
		} else {
			sent = true
			metrics.AlertsSent.WithLabelValues("slack").Inc()
		}
	}

	if d.cfg.SNS.Enabled && d.snsClient != nil {
		if err := d.sendSNS(ctx, subject, body); err != nil {
			d.logger.Error("sns alert failed", map[string]interface{}{
				"ticketId": ticket.ID,
				"error":    err.Error(),
			})
		} else {
			sent = true
			metrics.AlertsSent.WithLabelValues("sns").Inc()
		}
	}

	// Email is reserved for critical tickets so the inbox stays readable.
	if d.cfg.SES.Enabled && d.sesClient != nil && ticket.Severity == store.SeverityCritical {
		if err := d.sendEmail(ctx, subject, body); err != nil {
			d.logger.Error("ses alert failed", map[string]interface{}{
				"ticketId": ticket.ID,
				"error":    err.Error(),
			})
		} else {
			sent = true
			metrics.AlertsSent.WithLabelValues("ses").Inc()
		}
	}

	if !sent || d.stamper == nil {
		return
	}
	if _, err := d.stamper.StampAlert(ctx, ticket.ID); err != nil {
		d.logger.Warn("alert stamp failed", map[string]interface{}{
			"ticketId": ticket.ID,
			"error":    err.Error(),
		})
	}
}

// PostDigest delivers an aggregation digest to Slack. Best effort.
func (d *Dispatcher) PostDigest(ctx context.Context, text string) {
	if !d.cfg.Slack.Enabled {
		return
	}
	if err := d.postSlackText(ctx, text); err != nil {
		d.logger.Error("digest post failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.AlertsSent.WithLabelValues("slack").Inc()
}

func (d *Dispatcher) sendSlack(ctx context.Context, ticket *store.Ticket, category triage.Category, body string) error {
	payload := map[string]interface{}{
		"text": fmt.Sprintf(":rotating_light: *%s* ticket for `%s`", ticket.Severity, ticket.AppSlug),
		"blocks": []map[string]interface{}{
			{
				"type": "section",
				"text": map[string]interface{}{
					"type": "mrkdwn",
					"text": body,
				},
			},
			{
				"type": "context",
				"elements": []map[string]interface{}{
					{
						"type": "mrkdwn",
						"text": fmt.Sprintf("ticket `%s` | category `%s`", ticket.ID, category),
					},
				},
			},
		},
	}
	return d.postSlackJSON(ctx, payload)
}

func (d *Dispatcher) postSlackText(ctx context.Context, text string) error {
	return d.postSlackJSON(ctx, map[string]interface{}{"text": text})
}

func (d *Dispatcher) postSlackJSON(ctx context.Context, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.cfg.Slack.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.webClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) sendSNS(ctx context.Context, subject, body string) error {
	_, err := d.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(d.cfg.SNS.TopicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
	})
	return err
}

func (d *Dispatcher) sendEmail(ctx context.Context, subject, body string) error {
	_, err := d.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{d.cfg.SES.ToEmail},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(d.cfg.SES.FromEmail),
	})
	return err
}

func formatAlert(ticket *store.Ticket, category triage.Category) (subject, body string) {
	subject = fmt.Sprintf("[%s] %s ticket: %s", ticket.AppSlug, ticket.Severity, truncate(ticket.Message, 60))

	body = fmt.Sprintf("*App:* %s\n*Severity:* %s\n*Category:* %s\n*Message:* %s",
		ticket.AppSlug, ticket.Severity, category, truncate(ticket.Message, 500))
	if ticket.Route != "" {
		body += "\n*Route:* " + ticket.Route
	}
	if ticket.SentryEventID != "" {
		body += "\n*Sentry:* " + ticket.SentryEventID
	}
	if ticket.UserEmail != "" {
		body += "\n*Contact:* " + ticket.UserEmail
	}
	return subject, body
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
