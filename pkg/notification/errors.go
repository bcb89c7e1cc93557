package notification

import "errors"

var (
	// ErrNotFound is returned when a notification id is unknown.
	ErrNotFound = errors.New("notification not found")

	// ErrNotDraft is returned when editing a notification that is no longer a
	// draft. The record is left unchanged.
	ErrNotDraft = errors.New("only draft notifications can be modified")

	// ErrNotFailed is returned when retrying a notification that has not
	// failed.
	ErrNotFailed = errors.New("only failed notifications can be retried")

	// ErrNotDeletable is returned when deleting a sent or scheduled
	// notification. Scheduled ones would race a pending delivery attempt.
	ErrNotDeletable = errors.New("only draft or failed notifications can be deleted")

	// ErrNotScheduled is returned by conditional storage updates when the
	// notification is no longer scheduled. Delivery treats it as evidence of
	// a concurrent transition and aborts without side effects.
	ErrNotScheduled = errors.New("notification is not scheduled")

	// ErrTemplateMissing is returned when no active template exists for the
	// requested type. No notification is persisted in that case.
	ErrTemplateMissing = errors.New("no active template")

	// ErrInvalidType is returned for unrecognized notification types.
	ErrInvalidType = errors.New("unrecognized notification type")

	// ErrRecipientEmailInvalid is returned when the recipient address fails
	// validation.
	ErrRecipientEmailInvalid = errors.New("recipient email is invalid")

	// ErrRecipientNameRequired is returned when the recipient name is empty.
	ErrRecipientNameRequired = errors.New("recipient name is required")

	// ErrStorageNil is returned when a nil dependency is provided.
	ErrStorageNil = errors.New("storage cannot be nil")
)
