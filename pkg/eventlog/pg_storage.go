package eventlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStorage is a PostgreSQL implementation of Storage backed by pgx.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage creates a Postgres-backed event storage.
func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	return &PGStorage{pool: pool}
}

func (s *PGStorage) Append(ctx context.Context, event Event) error {
	if event.NotificationID == uuid.Nil {
		return ErrNotificationIDRequired
	}
	if !event.Kind.Valid() {
		return ErrInvalidKind
	}

	var details []byte
	if len(event.Details) > 0 {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal event details: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_events (id, notification_id, event, details, ip_address, user_agent, occurred_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)`,
		event.ID, event.NotificationID, event.Kind, details, event.IPAddress, event.UserAgent, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *PGStorage) ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, notification_id, event, details, COALESCE(ip_address, ''), COALESCE(user_agent, ''), occurred_at
		FROM notification_events
		WHERE notification_id = $1
		ORDER BY occurred_at, id`, notificationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e       Event
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.NotificationID, &e.Kind, &details, &e.IPAddress, &e.UserAgent, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStorage) Stats(ctx context.Context, notificationID uuid.UUID) (Stats, error) {
	var stats Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE event = 'sent'),
			count(*) FILTER (WHERE event = 'opened'),
			count(*) FILTER (WHERE event = 'clicked'),
			count(*) FILTER (WHERE event = 'failed'),
			count(*) FILTER (WHERE event = 'bounced'),
			max(occurred_at) FILTER (WHERE event = 'opened'),
			max(occurred_at) FILTER (WHERE event = 'clicked')
		FROM notification_events
		WHERE notification_id = $1`, notificationID).
		Scan(&stats.Sent, &stats.Opened, &stats.Clicked, &stats.Failed, &stats.Bounced,
			&stats.LastOpenedAt, &stats.LastClickedAt)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate event stats: %w", err)
	}
	return stats, nil
}

func (s *PGStorage) DeleteByNotification(ctx context.Context, notificationID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM notification_events WHERE notification_id = $1`, notificationID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}
