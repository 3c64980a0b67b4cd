/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces in the insurance package.

SCHEMA NOTES:
  owners, cars, policies, claims:   regular CRUD tables
  processed_expirations:            append-only idempotence ledger; the
                                    UNIQUE index on policy_id is the hard
                                    backstop against duplicate expiration
                                    processing, even under concurrent writers
  scan_runs:                        scanner audit records

  cars.vin is intentionally NOT unique. Deleting a car cascades to its
  claims (foreign_keys is enabled on open).

CONCURRENCY:
  Opened in WAL mode. A sync.RWMutex serializes writers; each request and
  each scanner tick opens its own short-lived transaction, no long-held
  locks.

Dates are stored as YYYY-MM-DD text, claim amounts as decimal text,
timestamps as RFC3339 UTC.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Calin1302/ProjectCarInsurance/insurance"
)

// Store implements all insurance storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a store backed by the database at dbPath. Use ":memory:" for
// an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS owners (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cars (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		vin TEXT NOT NULL,
		make TEXT NOT NULL,
		model TEXT NOT NULL,
		year_of_manufacture INTEGER NOT NULL,
		owner_id INTEGER NOT NULL REFERENCES owners(id)
	);

	-- vin deliberately not unique; uniqueness is deferred until VIN
	-- conflicts get a resolution story
	CREATE INDEX IF NOT EXISTS idx_cars_vin ON cars(vin);
	CREATE INDEX IF NOT EXISTS idx_cars_owner ON cars(owner_id);

	CREATE TABLE IF NOT EXISTS policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		car_id INTEGER NOT NULL REFERENCES cars(id),
		provider TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policies_car ON policies(car_id);
	-- hot path for the expiry scanner's end_date equality query
	CREATE INDEX IF NOT EXISTS idx_policies_end_date ON policies(end_date);

	CREATE TABLE IF NOT EXISTS claims (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		car_id INTEGER NOT NULL REFERENCES cars(id) ON DELETE CASCADE,
		claim_date TEXT NOT NULL,
		description TEXT,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_claims_car ON claims(car_id);

	-- Append-only idempotence ledger. The unique index on policy_id is the
	-- correctness invariant: a second insert for the same policy must fail.
	CREATE TABLE IF NOT EXISTS processed_expirations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		policy_id INTEGER NOT NULL,
		end_date TEXT NOT NULL,
		processed_at_utc TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_processed_expirations_policy
		ON processed_expirations(policy_id);

	CREATE TABLE IF NOT EXISTS scan_runs (
		id TEXT PRIMARY KEY,
		scanned_for TEXT NOT NULL,
		found INTEGER NOT NULL DEFAULT 0,
		recorded INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scan_runs_scanned_for ON scan_runs(scanned_for);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// OWNERS
// =============================================================================

// SaveOwner inserts an owner and returns its id.
func (s *Store) SaveOwner(ctx context.Context, owner insurance.Owner) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO owners (name, email) VALUES (?, ?)",
		owner.Name, owner.Email,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save owner: %w", err)
	}
	return res.LastInsertId()
}

// CountOwners returns the number of owners. Used by seeding to detect an
// already-populated database.
func (s *Store) CountOwners(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM owners").Scan(&count)
	return count, err
}

// =============================================================================
// CARS
// =============================================================================

// SaveCar inserts a car and returns its id.
func (s *Store) SaveCar(ctx context.Context, car insurance.Car) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO cars (vin, make, model, year_of_manufacture, owner_id) VALUES (?, ?, ?, ?, ?)",
		car.VIN, car.Make, car.Model, car.YearOfManufacture, car.OwnerID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save car: %w", err)
	}
	return res.LastInsertId()
}

// CarExists reports whether a car with the given id exists.
func (s *Store) CarExists(ctx context.Context, carID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cars WHERE id = ?", carID,
	).Scan(&count)
	return count > 0, err
}

// ListCars returns all cars joined with their owner's name and email.
func (s *Store) ListCars(ctx context.Context) ([]insurance.CarWithOwner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.vin, c.make, c.model, c.year_of_manufacture, c.owner_id, o.name, o.email
		FROM cars c
		JOIN owners o ON o.id = c.owner_id
		ORDER BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cars: %w", err)
	}
	defer rows.Close()

	var cars []insurance.CarWithOwner
	for rows.Next() {
		var c insurance.CarWithOwner
		if err := rows.Scan(&c.ID, &c.VIN, &c.Make, &c.Model, &c.YearOfManufacture,
			&c.OwnerID, &c.OwnerName, &c.OwnerEmail); err != nil {
			return nil, fmt.Errorf("failed to scan car: %w", err)
		}
		cars = append(cars, c)
	}
	return cars, rows.Err()
}

// DeleteCar removes a car. Its claims are deleted by the cascade; policies
// are kept as historical records.
func (s *Store) DeleteCar(ctx context.Context, carID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM cars WHERE id = ?", carID)
	return err
}

// =============================================================================
// POLICIES
// =============================================================================

// SavePolicy inserts a policy and returns its id.
func (s *Store) SavePolicy(ctx context.Context, p insurance.InsurancePolicy) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO policies (car_id, provider, start_date, end_date) VALUES (?, ?, ?, ?)",
		p.CarID, p.Provider, p.StartDate.String(), p.EndDate.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save policy: %w", err)
	}
	return res.LastInsertId()
}

// PoliciesByCar returns all policies for a car in insertion order.
func (s *Store) PoliciesByCar(ctx context.Context, carID int64) ([]insurance.InsurancePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryPolicies(ctx,
		"SELECT id, car_id, provider, start_date, end_date FROM policies WHERE car_id = ? ORDER BY id",
		carID)
}

// PoliciesEndingOn returns all policies whose end date equals the given
// date exactly.
func (s *Store) PoliciesEndingOn(ctx context.Context, date insurance.Date) ([]insurance.InsurancePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryPolicies(ctx,
		"SELECT id, car_id, provider, start_date, end_date FROM policies WHERE end_date = ? ORDER BY id",
		date.String())
}

func (s *Store) queryPolicies(ctx context.Context, query string, args ...any) ([]insurance.InsurancePolicy, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []insurance.InsurancePolicy
	for rows.Next() {
		var (
			p          insurance.InsurancePolicy
			start, end string
		)
		if err := rows.Scan(&p.ID, &p.CarID, &p.Provider, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		if p.StartDate, err = insurance.ParseDate(start); err != nil {
			return nil, fmt.Errorf("policy %d has malformed start_date: %w", p.ID, err)
		}
		if p.EndDate, err = insurance.ParseDate(end); err != nil {
			return nil, fmt.Errorf("policy %d has malformed end_date: %w", p.ID, err)
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// =============================================================================
// CLAIMS
// =============================================================================

// AppendClaim inserts a claim and returns its id.
func (s *Store) AppendClaim(ctx context.Context, c insurance.Claim) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO claims (car_id, claim_date, description, amount) VALUES (?, ?, ?, ?)",
		c.CarID, c.ClaimDate.String(), nullString(c.Description), c.Amount.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append claim: %w", err)
	}
	return res.LastInsertId()
}

// ClaimsByCar returns all claims for a car in insertion order.
func (s *Store) ClaimsByCar(ctx context.Context, carID int64) ([]insurance.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, car_id, claim_date, description, amount FROM claims WHERE car_id = ? ORDER BY id",
		carID)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	var claims []insurance.Claim
	for rows.Next() {
		var (
			c           insurance.Claim
			date        string
			description sql.NullString
			amount      string
		)
		if err := rows.Scan(&c.ID, &c.CarID, &date, &description, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		if c.ClaimDate, err = insurance.ParseDate(date); err != nil {
			return nil, fmt.Errorf("claim %d has malformed claim_date: %w", c.ID, err)
		}
		if c.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("claim %d has malformed amount: %w", c.ID, err)
		}
		c.Description = description.String
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// =============================================================================
// PROCESSED-EXPIRATION LEDGER
// =============================================================================

// ProcessedPolicyIDs returns which of the given policy ids already have a
// ledger row.
func (s *Store) ProcessedPolicyIDs(ctx context.Context, policyIDs []int64) (map[int64]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	processed := make(map[int64]bool, len(policyIDs))
	if len(policyIDs) == 0 {
		return processed, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(policyIDs)), ",")
	args := make([]any, len(policyIDs))
	for i, id := range policyIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT policy_id FROM processed_expirations WHERE policy_id IN ("+placeholders+")",
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query processed expirations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan processed expiration: %w", err)
		}
		processed[id] = true
	}
	return processed, rows.Err()
}

// AppendProcessed inserts ledger rows in one transaction. If any row's
// policy id is already present the whole batch fails with
// insurance.ErrAlreadyProcessed and nothing is written.
func (s *Store) AppendProcessed(ctx context.Context, rows []insurance.ProcessedExpiration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO processed_expirations (policy_id, end_date, processed_at_utc) VALUES (?, ?, ?)",
			row.PolicyID, row.EndDate.String(),
			row.ProcessedAtUTC.UTC().Format(time.RFC3339),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("policy %d: %w", row.PolicyID, insurance.ErrAlreadyProcessed)
			}
			return fmt.Errorf("failed to append processed expiration: %w", err)
		}
	}
	return tx.Commit()
}

// ListProcessedExpirations returns the full ledger in processing order.
func (s *Store) ListProcessedExpirations(ctx context.Context) ([]insurance.ProcessedExpiration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, policy_id, end_date, processed_at_utc FROM processed_expirations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query processed expirations: %w", err)
	}
	defer rows.Close()

	var out []insurance.ProcessedExpiration
	for rows.Next() {
		var (
			pe          insurance.ProcessedExpiration
			endDate     string
			processedAt string
		)
		if err := rows.Scan(&pe.ID, &pe.PolicyID, &endDate, &processedAt); err != nil {
			return nil, fmt.Errorf("failed to scan processed expiration: %w", err)
		}
		if pe.EndDate, err = insurance.ParseDate(endDate); err != nil {
			return nil, fmt.Errorf("ledger row %d has malformed end_date: %w", pe.ID, err)
		}
		if pe.ProcessedAtUTC, err = time.Parse(time.RFC3339, processedAt); err != nil {
			return nil, fmt.Errorf("ledger row %d has malformed processed_at_utc: %w", pe.ID, err)
		}
		out = append(out, pe)
	}
	return out, rows.Err()
}

// =============================================================================
// SCAN RUNS
// =============================================================================

// SaveScanRun persists a scanner audit record.
func (s *Store) SaveScanRun(ctx context.Context, run insurance.ScanRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_runs (id, scanned_for, found, recorded, status, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ScannedFor.String(), run.Found, run.Recorded,
		run.Status, nullString(run.Error),
		run.StartedAt.UTC().Format(time.RFC3339),
		run.CompletedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save scan run: %w", err)
	}
	return nil
}

// ListScanRuns returns scan runs, most recent first.
func (s *Store) ListScanRuns(ctx context.Context) ([]insurance.ScanRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scanned_for, found, recorded, status, error, started_at, completed_at
		FROM scan_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan runs: %w", err)
	}
	defer rows.Close()

	var runs []insurance.ScanRun
	for rows.Next() {
		var (
			run                    insurance.ScanRun
			scannedFor             string
			errText                sql.NullString
			startedAt, completedAt string
		)
		if err := rows.Scan(&run.ID, &scannedFor, &run.Found, &run.Recorded,
			&run.Status, &errText, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if run.ScannedFor, err = insurance.ParseDate(scannedFor); err != nil {
			return nil, fmt.Errorf("scan run %s has malformed scanned_for: %w", run.ID, err)
		}
		run.Error = errText.String
		if run.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
			return nil, fmt.Errorf("scan run %s has malformed started_at: %w", run.ID, err)
		}
		if run.CompletedAt, err = time.Parse(time.RFC3339, completedAt); err != nil {
			return nil, fmt.Errorf("scan run %s has malformed completed_at: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
