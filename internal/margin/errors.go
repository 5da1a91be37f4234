package margin

import "errors"

var (
	// ErrNotFound indicates an id that is not part of the session's record set.
	ErrNotFound = errors.New("record not found")
	// ErrValidation indicates a malformed parameter such as an out-of-range rate.
	ErrValidation = errors.New("validation failed")
	// ErrIntegrity indicates asymmetry in the sale/cost link graph. It is
	// unreachable through the Index mutation path and exists for defensive checks.
	ErrIntegrity = errors.New("association graph out of sync")
)
