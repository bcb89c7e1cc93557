package template

import "errors"

var (
	// ErrNotFound is returned when no active template exists for a type.
	ErrNotFound = errors.New("no active template found for type")

	// ErrDuplicateActive is returned when storing a template would leave more
	// than one active template for the same type.
	ErrDuplicateActive = errors.New("an active template already exists for type")

	// ErrTemplateNotFound is returned when a template id is unknown.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrNameRequired is returned when a template has no name.
	ErrNameRequired = errors.New("template name is required")

	// ErrTypeRequired is returned when a template has no type.
	ErrTypeRequired = errors.New("template type is required")

	// ErrSubjectRequired is returned when a template has no subject.
	ErrSubjectRequired = errors.New("template subject is required")

	// ErrBodyRequired is returned when a template has no body.
	ErrBodyRequired = errors.New("template body is required")
)
