package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"support-engine/internal/common/logger"
)

var (
	ErrTicketInsertFailed = errors.New("TICKET_INSERT_FAILED")
	ErrStorageUnavailable = errors.New("STORAGE_UNAVAILABLE")
)

// TicketStore persists support tickets and triage reports.
type TicketStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewTicketStore(db *sql.DB, log logger.Logger) *TicketStore {
	return &TicketStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "ticket_store"}),
	}
}

// InsertTicket stores a ticket and returns it with ID and CreatedAt populated.
func (s *TicketStore) InsertTicket(ctx context.Context, ticket *Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.New().String()
	}
	ticket.Severity = NormalizeSeverity(ticket.Severity)
	ticket.CreatedAt = time.Now().UTC()

	details := ticket.Details
	if len(details) == 0 {
		details = []byte("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (
			id, app_slug, message, severity, page_url, route,
			user_agent, client_ip, sentry_event_id, user_id, user_email,
			details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ticket.ID,
		ticket.AppSlug,
		ticket.Message,
		string(ticket.Severity),
		ticket.PageURL,
		ticket.Route,
		ticket.UserAgent,
		ticket.ClientIP,
		ticket.SentryEventID,
		ticket.UserID,
		ticket.UserEmail,
		[]byte(details),
		ticket.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert failed: %v", ErrTicketInsertFailed, err)
	}
	return nil
}

// StampAlert marks a ticket as alerted. Returns false when another dispatcher
// already stamped it, which keeps alert delivery single-shot.
func (s *TicketStore) StampAlert(ctx context.Context, ticketID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET alerted_at = $1
		WHERE id = $2 AND alerted_at IS NULL`,
		time.Now().UTC(), ticketID,
	)
	if err != nil {
		return false, fmt.Errorf("%w: alert stamp failed: %v", ErrStorageUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: alert stamp result: %v", ErrStorageUnavailable, err)
	}
	return affected == 1, nil
}

// ListSince returns tickets created within the lookback window, newest first.
// The wildcard slug matches every application.
func (s *TicketStore) ListSince(ctx context.Context, appSlug string, since time.Time) ([]Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app_slug, message, severity, page_url, route,
		       user_agent, client_ip, sentry_event_id, user_id, user_email,
		       details, created_at, alerted_at
		FROM tickets
		WHERE created_at >= $1 AND ($2 = '*' OR app_slug = $2)
		ORDER BY created_at DESC`,
		since, appSlug,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ticket list failed: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		var t Ticket
		var severity string
		if err := rows.Scan(
			&t.ID, &t.AppSlug, &t.Message, &severity, &t.PageURL, &t.Route,
			&t.UserAgent, &t.ClientIP, &t.SentryEventID, &t.UserID, &t.UserEmail,
			&t.Details, &t.CreatedAt, &t.AlertedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: ticket scan failed: %v", ErrStorageUnavailable, err)
		}
		t.Severity = Severity(severity)
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: ticket iteration failed: %v", ErrStorageUnavailable, err)
	}

	return tickets, nil
}

// InsertReport persists one aggregation run.
func (s *TicketStore) InsertReport(ctx context.Context, report *Report) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	report.CreatedAt = time.Now().UTC()

	body := report.Body
	if len(body) == 0 {
		body = []byte("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO triage_reports (
			id, app_slug, window_hours, ticket_count, event_count, body, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		report.ID,
		report.AppSlug,
		report.WindowHours,
		report.TicketCount,
		report.EventCount,
		[]byte(body),
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: report insert failed: %v", ErrStorageUnavailable, err)
	}
	return nil
}
