package insurance

import (
	"context"
	"fmt"
)

// ValidityChecker answers "is this car insured on date X". Read-only.
type ValidityChecker struct {
	Cars     CarStore
	Policies PolicyStore
}

// NewValidityChecker creates a checker over the given stores.
func NewValidityChecker(cars CarStore, policies PolicyStore) *ValidityChecker {
	return &ValidityChecker{Cars: cars, Policies: policies}
}

// IsValid reports whether at least one policy of the car covers the date.
// Both policy bounds are inclusive. Returns ErrCarNotFound if the car does
// not exist.
func (v *ValidityChecker) IsValid(ctx context.Context, carID int64, date Date) (bool, error) {
	exists, err := v.Cars.CarExists(ctx, carID)
	if err != nil {
		return false, fmt.Errorf("checking car %d: %w", carID, err)
	}
	if !exists {
		return false, fmt.Errorf("car %d: %w", carID, ErrCarNotFound)
	}

	policies, err := v.Policies.PoliciesByCar(ctx, carID)
	if err != nil {
		return false, fmt.Errorf("loading policies for car %d: %w", carID, err)
	}

	for _, p := range policies {
		if p.StartDate.BeforeOrEqual(date) && p.EndDate.AfterOrEqual(date) {
			return true, nil
		}
	}
	return false, nil
}
