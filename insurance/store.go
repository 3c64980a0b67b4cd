/*
store.go - Storage interfaces consumed by the domain logic

The interfaces are intentionally narrow: the validity checker only needs car
existence and a car's policies, the scanner only needs end-date lookups and
the ledger. The sqlite package implements all of them on one Store.
*/
package insurance

import (
	"context"
	"time"
)

// CarStore provides car lookups.
type CarStore interface {
	CarExists(ctx context.Context, carID int64) (bool, error)
}

// PolicyStore provides policy queries.
type PolicyStore interface {
	PoliciesByCar(ctx context.Context, carID int64) ([]InsurancePolicy, error)
	// PoliciesEndingOn returns all policies whose inclusive end date equals
	// the given date exactly.
	PoliciesEndingOn(ctx context.Context, date Date) ([]InsurancePolicy, error)
}

// ClaimStore provides claim queries.
type ClaimStore interface {
	ClaimsByCar(ctx context.Context, carID int64) ([]Claim, error)
}

// ExpirationLedger is the append-only idempotence record of handled
// expirations. Implementations must reject a second row for the same policy
// id with ErrAlreadyProcessed, and AppendProcessed must be all-or-nothing.
type ExpirationLedger interface {
	ProcessedPolicyIDs(ctx context.Context, policyIDs []int64) (map[int64]bool, error)
	AppendProcessed(ctx context.Context, rows []ProcessedExpiration) error
}

// ScanRunStore persists scanner audit records.
type ScanRunStore interface {
	SaveScanRun(ctx context.Context, run ScanRun) error
}

// Clock abstracts wall-clock time so the scanner's window gating is
// deterministic under test. Now returns local time; the scanner derives the
// UTC processing timestamp from it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
