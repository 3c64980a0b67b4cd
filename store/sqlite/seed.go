package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/Calin1302/ProjectCarInsurance/insurance"
)

// Seed populates an empty database with development data: two owners, two
// cars, and a handful of policies. It is a no-op when owners already exist.
//
// The duplicate Allianz policy for the second car is intentional (the
// schema permits overlapping and duplicate policies), and the TestDev
// policy ends yesterday so the expiry scanner has something to pick up on
// a fresh database.
func (s *Store) Seed(ctx context.Context, now time.Time) error {
	count, err := s.CountOwners(ctx)
	if err != nil {
		return fmt.Errorf("failed to check seed state: %w", err)
	}
	if count > 0 {
		return nil
	}

	ana, err := s.SaveOwner(ctx, insurance.Owner{Name: "Ana Pop", Email: "ana.pop@example.com"})
	if err != nil {
		return err
	}
	bogdan, err := s.SaveOwner(ctx, insurance.Owner{Name: "Bogdan Ionescu", Email: "bogdan.ionescu@example.com"})
	if err != nil {
		return err
	}

	car1, err := s.SaveCar(ctx, insurance.Car{
		VIN: "VIN12345", Make: "Dacia", Model: "Logan", YearOfManufacture: 2018, OwnerID: ana,
	})
	if err != nil {
		return err
	}
	car2, err := s.SaveCar(ctx, insurance.Car{
		VIN: "VIN67890", Make: "VW", Model: "Golf", YearOfManufacture: 2021, OwnerID: bogdan,
	})
	if err != nil {
		return err
	}

	yesterday := insurance.DateOf(now).AddDays(-1)

	policies := []insurance.InsurancePolicy{
		{CarID: car1, Provider: "Allianz", StartDate: insurance.NewDate(2024, 1, 1), EndDate: insurance.NewDate(2024, 12, 31)},
		{CarID: car1, Provider: "Groupama", StartDate: insurance.NewDate(2025, 1, 1), EndDate: insurance.NewDate(2025, 10, 31)},
		{CarID: car2, Provider: "Allianz", StartDate: insurance.NewDate(2025, 3, 1), EndDate: insurance.NewDate(2025, 9, 30)},
		{CarID: car2, Provider: "Allianz", StartDate: insurance.NewDate(2025, 3, 1), EndDate: insurance.NewDate(2025, 9, 30)},
		{CarID: car1, Provider: "TestDev", StartDate: insurance.NewDate(2025, 1, 1), EndDate: yesterday},
	}
	for _, p := range policies {
		if _, err := s.SavePolicy(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
