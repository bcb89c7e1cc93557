package template

import (
	"context"

	"github.com/google/uuid"
)

// Storage handles template persistence and active-template resolution.
//
// Implementations must enforce the single-active-per-type invariant: storing
// or activating a template while another active template exists for the same
// type fails with ErrDuplicateActive. Resolution is therefore unambiguous and
// never depends on query order.
type Storage interface {
	// Create stores a new template.
	Create(ctx context.Context, tpl Template) error

	// Update replaces an existing template.
	Update(ctx context.Context, tpl Template) error

	// GetByID retrieves a template by id.
	GetByID(ctx context.Context, id uuid.UUID) (*Template, error)

	// FindActiveByType returns the active template for the given notification
	// type, or ErrNotFound when none exists.
	FindActiveByType(ctx context.Context, kind string) (*Template, error)

	// List returns all templates in creation order.
	List(ctx context.Context) ([]Template, error)

	// Delete removes a template. Notifications built from it keep their
	// rendered content; only the reference becomes dangling.
	Delete(ctx context.Context, id uuid.UUID) error
}
