package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schooldesk/notifier/pkg/pg"
)

// PGStorage is a PostgreSQL implementation of Storage backed by pgx.
// The single-active-per-type invariant is enforced by a partial unique index
// on (type) where is_active, so resolution never depends on query order.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage creates a Postgres-backed template storage.
func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	return &PGStorage{pool: pool}
}

const templateColumns = `id, name, type, subject, body, variables, is_active, created_at, updated_at`

func (s *PGStorage) Create(ctx context.Context, tpl Template) error {
	if err := tpl.Validate(); err != nil {
		return err
	}

	vars, err := json.Marshal(tpl.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal template variables: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO templates (id, name, type, subject, body, variables, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`,
		tpl.ID, tpl.Name, tpl.Type, tpl.Subject, tpl.Body, vars, tpl.IsActive,
	)
	if pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w %q", ErrDuplicateActive, tpl.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

func (s *PGStorage) Update(ctx context.Context, tpl Template) error {
	if err := tpl.Validate(); err != nil {
		return err
	}

	vars, err := json.Marshal(tpl.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal template variables: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE templates
		SET name = $2, type = $3, subject = $4, body = $5, variables = $6, is_active = $7, updated_at = now()
		WHERE id = $1`,
		tpl.ID, tpl.Name, tpl.Type, tpl.Subject, tpl.Body, vars, tpl.IsActive,
	)
	if pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w %q", ErrDuplicateActive, tpl.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (s *PGStorage) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id)

	tpl, err := scanTemplate(row)
	if pg.IsNotFoundError(err) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tpl, nil
}

func (s *PGStorage) FindActiveByType(ctx context.Context, kind string) (*Template, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM templates
		WHERE type = $1 AND is_active
		ORDER BY created_at, id
		LIMIT 1`, kind)

	tpl, err := scanTemplate(row)
	if pg.IsNotFoundError(err) {
		return nil, fmt.Errorf("%w %q", ErrNotFound, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active template: %w", err)
	}
	return tpl, nil
}

func (s *PGStorage) List(ctx context.Context) ([]Template, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		out = append(out, *tpl)
	}
	return out, rows.Err()
}

func (s *PGStorage) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func scanTemplate(row pgx.Row) (*Template, error) {
	var (
		tpl  Template
		vars []byte
	)
	err := row.Scan(&tpl.ID, &tpl.Name, &tpl.Type, &tpl.Subject, &tpl.Body, &vars, &tpl.IsActive, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &tpl.Variables); err != nil {
			return nil, errors.Join(errors.New("failed to unmarshal template variables"), err)
		}
	}
	return &tpl, nil
}
