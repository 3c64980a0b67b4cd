/*
errors.go - Centralized error types for the insurance domain

All sentinel errors live here so the API layer can classify them uniformly:
NotFound errors surface as 404, client errors as 400, anything else as 500.
Store implementations wrap these with additional context via fmt.Errorf %w.
*/
package insurance

import "errors"

var (
	// ErrCarNotFound is returned when a referenced car does not exist.
	ErrCarNotFound = errors.New("car not found")

	// ErrPolicyNotFound is returned when a referenced policy does not exist.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrInvalidDate is returned for date text that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidAmount is returned for non-positive claim amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrAlreadyProcessed is returned when inserting a ledger row for a
	// policy id that is already recorded. The unique index on the ledger is
	// the hard backstop against duplicate expiration processing; callers
	// must treat this as a conflict, never as success.
	ErrAlreadyProcessed = errors.New("expiration already processed")
)

// IsNotFound reports whether err indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCarNotFound) || errors.Is(err, ErrPolicyNotFound)
}

// IsClientError reports whether err is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) || errors.Is(err, ErrInvalidAmount)
}
