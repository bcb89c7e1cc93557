package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schooldesk/notifier/pkg/pg"
)

// PGStorage is a PostgreSQL implementation of Storage backed by pgx.
// Status transitions use conditional UPDATEs that verify the current status
// in the WHERE clause, so concurrent workers cannot double-apply a
// transition; a zero-row result is mapped to the relevant conflict error.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage creates a Postgres-backed notification storage.
func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	return &PGStorage{pool: pool}
}

const notificationColumns = `id, template_id, type, status, recipient_email, recipient_name,
	subject, body, variables, scheduled_at, sent_at, retry_count, error_message, created_at, updated_at`

func (s *PGStorage) Create(ctx context.Context, n *Notification) error {
	vars, err := json.Marshal(n.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal notification variables: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, template_id, type, status, recipient_email, recipient_name,
			subject, body, variables, scheduled_at, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING created_at, updated_at`,
		n.ID, n.TemplateID, n.Type, n.Status, n.RecipientEmail, n.RecipientName,
		n.Subject, n.Body, vars, n.ScheduledAt, n.RetryCount,
	)
	if err := row.Scan(&n.CreatedAt, &n.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *PGStorage) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)

	n, err := scanNotification(row)
	if pg.IsNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

func (s *PGStorage) List(ctx context.Context, filter Filter) ([]Notification, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.RecipientEmail != "" {
		args = append(args, filter.RecipientEmail)
		conds = append(conds, fmt.Sprintf("recipient_email = $%d", len(args)))
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *PGStorage) UpdateDraft(ctx context.Context, n *Notification) error {
	row := s.pool.QueryRow(ctx, `
		UPDATE notifications
		SET recipient_email = $2, recipient_name = $3, subject = $4, body = $5,
			scheduled_at = $6, updated_at = now()
		WHERE id = $1 AND status = $7
		RETURNING updated_at`,
		n.ID, n.RecipientEmail, n.RecipientName, n.Subject, n.Body, n.ScheduledAt, StatusDraft,
	)
	if err := row.Scan(&n.UpdatedAt); err != nil {
		if pg.IsNotFoundError(err) {
			return s.conflictOrNotFound(ctx, n.ID, ErrNotDraft)
		}
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return nil
}

func (s *PGStorage) PromoteToScheduled(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, `
		UPDATE notifications SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`,
		[]any{id, StatusScheduled, StatusDraft}, ErrNotDraft)
}

func (s *PGStorage) ResetForRetry(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, `
		UPDATE notifications SET status = $2, error_message = NULL, updated_at = now()
		WHERE id = $1 AND status = $3`,
		[]any{id, StatusScheduled, StatusFailed}, ErrNotFailed)
}

func (s *PGStorage) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return s.transition(ctx, id, `
		UPDATE notifications SET status = $2, sent_at = $3, updated_at = now()
		WHERE id = $1 AND status = $4`,
		[]any{id, StatusSent, sentAt, StatusScheduled}, ErrNotScheduled)
}

func (s *PGStorage) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return s.transition(ctx, id, `
		UPDATE notifications SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1 AND status = $4`,
		[]any{id, StatusFailed, errorMessage, StatusScheduled}, ErrNotScheduled)
}

func (s *PGStorage) RecordFailure(ctx context.Context, id uuid.UUID, errorMessage string) (int, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE notifications
		SET retry_count = retry_count + 1, error_message = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING retry_count`,
		id, errorMessage, StatusScheduled,
	)

	var retryCount int
	if err := row.Scan(&retryCount); err != nil {
		if pg.IsNotFoundError(err) {
			return 0, s.conflictOrNotFound(ctx, id, ErrNotScheduled)
		}
		return 0, fmt.Errorf("failed to record notification failure: %w", err)
	}
	return retryCount, nil
}

func (s *PGStorage) Delete(ctx context.Context, id uuid.UUID, allowed ...Status) error {
	query := `DELETE FROM notifications WHERE id = $1`
	args := []any{id}
	if len(allowed) > 0 {
		args = append(args, allowed)
		query += ` AND status = ANY($2)`
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.conflictOrNotFound(ctx, id, ErrNotDeletable)
	}
	return nil
}

// transition runs a conditional status UPDATE and maps a zero-row result to
// either ErrNotFound or the given conflict error depending on whether the
// record still exists.
func (s *PGStorage) transition(ctx context.Context, id uuid.UUID, query string, args []any, conflict error) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to transition notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.conflictOrNotFound(ctx, id, conflict)
	}
	return nil
}

func (s *PGStorage) conflictOrNotFound(ctx context.Context, id uuid.UUID, conflict error) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check notification existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return conflict
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var (
		n    Notification
		vars []byte
	)
	err := row.Scan(
		&n.ID, &n.TemplateID, &n.Type, &n.Status, &n.RecipientEmail, &n.RecipientName,
		&n.Subject, &n.Body, &vars, &n.ScheduledAt, &n.SentAt, &n.RetryCount,
		&n.ErrorMessage, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &n.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification variables: %w", err)
		}
	}
	return &n, nil
}
