package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"support-engine/internal/common/logger"
)

// TelemetryStore persists client telemetry events.
type TelemetryStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewTelemetryStore(db *sql.DB, log logger.Logger) *TelemetryStore {
	return &TelemetryStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "telemetry_store"}),
	}
}

// InsertEvent stores one telemetry event.
func (s *TelemetryStore) InsertEvent(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.CreatedAt = time.Now().UTC()

	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, app_slug, kind, payload, client_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID,
		event.AppSlug,
		event.Kind,
		[]byte(payload),
		event.ClientIP,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: event insert failed: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// CountEventsSince returns the number of events in the lookback window.
func (s *TelemetryStore) CountEventsSince(ctx context.Context, appSlug string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE created_at >= $1 AND ($2 = '*' OR app_slug = $2)`,
		since, appSlug,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: event count failed: %v", ErrStorageUnavailable, err)
	}
	return count, nil
}
