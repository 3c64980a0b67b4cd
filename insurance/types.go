package insurance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Owner is a car owner. An owner has zero or more cars.
type Owner struct {
	ID    int64
	Name  string
	Email string
}

// Car is a registered vehicle. VIN uniqueness is deliberately not enforced;
// see the store schema.
type Car struct {
	ID                int64
	VIN               string
	Make              string
	Model             string
	YearOfManufacture int
	OwnerID           int64
}

// CarWithOwner is a car joined with its owner's contact fields, as returned
// by the car listing.
type CarWithOwner struct {
	Car
	OwnerName  string
	OwnerEmail string
}

// InsurancePolicy is a coverage record for a car. Both StartDate and EndDate
// are inclusive. start <= end is intended but not enforced, and overlapping
// or duplicate policies for the same car are permitted.
type InsurancePolicy struct {
	ID        int64
	CarID     int64
	Provider  string
	StartDate Date
	EndDate   Date
}

// Claim is a monetary event against a car on a given date. Amount is a
// positive decimal with two meaningful places.
type Claim struct {
	ID          int64
	CarID       int64
	ClaimDate   Date
	Description string
	Amount      decimal.Decimal
}

// ProcessedExpiration is one row of the append-only idempotence ledger. The
// existence of a row for a policy id means that policy's expiration has been
// handled and must not be logged again. EndDate is denormalized for audit.
type ProcessedExpiration struct {
	ID             int64
	PolicyID       int64
	EndDate        Date
	ProcessedAtUTC time.Time
}

// ScanRun records one processing pass of the expiry scanner that ran inside
// its window, for audit and operational inspection.
type ScanRun struct {
	ID          string
	ScannedFor  Date // the "yesterday" the pass looked at
	Found       int  // policies that ended on ScannedFor
	Recorded    int  // newly added ledger rows
	Status      string
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// Scan run statuses.
const (
	ScanRunCompleted = "completed"
	ScanRunFailed    = "failed"
)

// EventKind discriminates history events.
type EventKind string

const (
	EventPolicyStart EventKind = "policy_start"
	EventPolicyEnd   EventKind = "policy_end"
	EventClaim       EventKind = "claim"
)

// HistoryEvent is one entry of a car's merged timeline. Label carries the
// provider name for policy events and is empty for claims.
type HistoryEvent struct {
	Kind        EventKind
	Date        Date
	Label       string
	Description string
}
