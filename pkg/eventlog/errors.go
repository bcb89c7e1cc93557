package eventlog

import "errors"

var (
	// ErrStorageNil is returned when a nil storage is provided.
	ErrStorageNil = errors.New("storage cannot be nil")

	// ErrNotificationIDRequired is returned when an event has no owning
	// notification reference.
	ErrNotificationIDRequired = errors.New("owning notification id is required")

	// ErrInvalidKind is returned for unrecognized event kinds.
	ErrInvalidKind = errors.New("unrecognized event kind")
)
