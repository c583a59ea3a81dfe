package av

import "errors"

var (
	// ErrPermission is returned when the session's identity may not perform an action.
	ErrPermission = errors.New("permission denied")

	// ErrValidation is returned for rejected input. No state is mutated.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNothingToPublish is returned when a publish request selects no files.
	ErrNothingToPublish = errors.New("only files can be published; select at least one file")

	// ErrInvalidTransition is returned when a lifecycle event is not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAncestryUnavailable is returned by repositories that cannot answer the
	// ancestor-path query. Callers fall back to walking parent links.
	ErrAncestryUnavailable = errors.New("ancestry query unavailable")

	// ErrBadPassphrase is returned when a passphrase does not unlock the private key.
	ErrBadPassphrase = errors.New("incorrect passphrase")

	// ErrLocked is returned when reading from an encrypted store that has not been unlocked.
	ErrLocked = errors.New("object store is locked")
)
