package entity

import "errors"

// Domain errors for the entity package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, entity.ErrInvalidMode) {
//	    // reject before any registry mutation
//	}
var (
	// ErrInvalidEntity is returned when entity validation fails.
	ErrInvalidEntity = errors.New("entity: invalid")

	// ErrInvalidID is returned when an entity ID is empty after trimming.
	ErrInvalidID = errors.New("entity: invalid id")

	// ErrInvalidKind is returned when a kind value is not recognised.
	ErrInvalidKind = errors.New("entity: invalid kind")

	// ErrInvalidMode is returned when a mode value is not recognised or
	// does not belong to the entity's kind.
	ErrInvalidMode = errors.New("entity: invalid mode")

	// ErrInvalidTrigger is returned when a trigger type is not recognised.
	ErrInvalidTrigger = errors.New("entity: invalid trigger")

	// ErrInvalidPriority is returned when a priority value is not recognised.
	ErrInvalidPriority = errors.New("entity: invalid priority")

	// ErrInvalidNotification is returned when a notification spec fails
	// shape validation.
	ErrInvalidNotification = errors.New("entity: invalid notification")

	// ErrInvalidInterval is returned when an interval is out of bounds.
	ErrInvalidInterval = errors.New("entity: invalid interval")

	// ErrInvalidConnection is returned when a connection config fails
	// shape validation.
	ErrInvalidConnection = errors.New("entity: invalid connection config")

	// ErrInvalidMTU is returned when a requested MTU is out of bounds.
	ErrInvalidMTU = errors.New("entity: invalid mtu")
)
