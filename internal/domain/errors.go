package domain

import "errors"

// Error taxonomy shared across the core. Services wrap these with context via
// fmt.Errorf("%w: ...") and the HTTP layer maps them to status codes, so only
// the enumerated reason ever reaches a client.
var (
	// ErrValidation covers malformed or missing input, including a candidate
	// that does not belong to the given election/constituency pair.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound covers unknown elections, sessions, candidates or receipts.
	ErrNotFound = errors.New("not found")

	// ErrConflict covers single-use violations: a session that already voted,
	// a superseded token, or an election that is not accepting votes.
	ErrConflict = errors.New("conflict")

	// ErrExpired covers lapsed sessions and closed voting windows.
	ErrExpired = errors.New("expired")

	// ErrFlaggedDevice marks a device barred by the external fraud review.
	ErrFlaggedDevice = errors.New("device flagged")

	// ErrUnavailable signals the backing store could not be reached. Identity
	// and vote paths fail closed on it.
	ErrUnavailable = errors.New("storage unavailable")
)
