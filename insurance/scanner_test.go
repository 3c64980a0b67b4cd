package insurance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Calin1302/ProjectCarInsurance/insurance"
	"github.com/Calin1302/ProjectCarInsurance/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// bucharest stands in for the host's local zone; the scanner's window is
// defined in the clock's zone, not UTC.
var bucharest = time.FixedZone("EET", 2*60*60)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newScannerFixture(t *testing.T) (*insurance.ExpiryScanner, *sqlite.Store, *fakeClock) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &fakeClock{}
	scanner := insurance.NewExpiryScanner(store, store, store, zap.NewNop())
	scanner.Clock = clock
	return scanner, store, clock
}

func seedCarWithPolicy(t *testing.T, store *sqlite.Store, end insurance.Date) int64 {
	ctx := context.Background()

	ownerID, err := store.SaveOwner(ctx, insurance.Owner{Name: "Test Owner", Email: "owner@test.com"})
	require.NoError(t, err)

	carID, err := store.SaveCar(ctx, insurance.Car{
		VIN: "TESTVIN", Make: "Make", Model: "Model", YearOfManufacture: 2020, OwnerID: ownerID,
	})
	require.NoError(t, err)

	policyID, err := store.SavePolicy(ctx, insurance.InsurancePolicy{
		CarID:     carID,
		Provider:  "TestIns",
		StartDate: insurance.NewDate(2024, time.January, 1),
		EndDate:   end,
	})
	require.NoError(t, err)
	return policyID
}

// =============================================================================
// WINDOW GATING
// =============================================================================

func TestScanOnce_OutsideWindow_DoesNothing(t *testing.T) {
	// Policy expired yesterday, but the tick fires at 01:30 with a
	// [00:00, 01:00) window: nothing may be written.
	scanner, store, clock := newScannerFixture(t)
	seedCarWithPolicy(t, store, insurance.NewDate(2025, time.January, 5))

	clock.Set(time.Date(2025, time.January, 6, 1, 30, 0, 0, bucharest))

	require.NoError(t, scanner.ScanOnce(context.Background()))

	rows, err := store.ListProcessedExpirations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestScanOnce_WindowEndIsExclusive(t *testing.T) {
	scanner, store, clock := newScannerFixture(t)
	seedCarWithPolicy(t, store, insurance.NewDate(2025, time.January, 5))

	// Exactly at window end: still outside.
	clock.Set(time.Date(2025, time.January, 6, 1, 0, 0, 0, bucharest))
	require.NoError(t, scanner.ScanOnce(context.Background()))

	rows, err := store.ListProcessedExpirations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestScanOnce_WidenedWindow(t *testing.T) {
	// WindowHours=24 lets the scanner act at any time of day.
	scanner, store, clock := newScannerFixture(t)
	scanner.WindowHours = 24
	seedCarWithPolicy(t, store, insurance.NewDate(2025, time.January, 5))

	clock.Set(time.Date(2025, time.January, 6, 15, 45, 0, 0, bucharest))
	require.NoError(t, scanner.ScanOnce(context.Background()))

	rows, err := store.ListProcessedExpirations(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// =============================================================================
// IDEMPOTENCE
// =============================================================================

func TestScanOnce_RecordsExpiredPolicyExactlyOnce(t *testing.T) {
	// Policy ends 2025-01-05; tick at 2025-01-06T00:30 inside [00:00,01:00)
	// records it; a second tick at 00:45 is a no-op.
	scanner, store, clock := newScannerFixture(t)
	policyID := seedCarWithPolicy(t, store, insurance.NewDate(2025, time.January, 5))
	ctx := context.Background()

	clock.Set(time.Date(2025, time.January, 6, 0, 30, 0, 0, bucharest))
	require.NoError(t, scanner.ScanOnce(ctx))

	rows, err := store.ListProcessedExpirations(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, policyID, rows[0].PolicyID)
	assert.Equal(t, "2025-01-05", rows[0].EndDate.String())

	clock.Set(time.Date(2025, time.January, 6, 0, 45, 0, 0, bucharest))
	require.NoError(t, scanner.ScanOnce(ctx))

	rows, err = store.ListProcessedExpirations(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "second tick must not add a ledger row")
}

func TestScanOnce_OnlyExactYesterdayMatches(t *testing.T) {
	scanner, store, clock := newScannerFixture(t)
	ctx := context.Background()

	seedCarWithPolicy(t, store, insurance.NewDate(2025, time.January, 4)) // two days ago
	seedCarWithPolicy(t, store, insurance.NewDate(2025, time.January, 6)) // today

	clock.Set(time.Date(2025, time.January, 6, 0, 10, 0, 0, bucharest))
	require.NoError(t, scanner.ScanOnce(ctx))

	rows, err := store.ListProcessedExpirations(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows, "only policies ending exactly yesterday are processed")
}

func TestScanOnce_RecordsScanRun(t *testing.T) {
	scanner, store, clock := newScannerFixture(t)
	seedCarWithPolicy(t, store, insurance.NewDate(2025, time.January, 5))
	ctx := context.Background()

	clock.Set(time.Date(2025, time.January, 6, 0, 30, 0, 0, bucharest))
	require.NoError(t, scanner.ScanOnce(ctx))

	runs, err := store.ListScanRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, insurance.ScanRunCompleted, runs[0].Status)
	assert.Equal(t, "2025-01-05", runs[0].ScannedFor.String())
	assert.Equal(t, 1, runs[0].Found)
	assert.Equal(t, 1, runs[0].Recorded)
	assert.NotEmpty(t, runs[0].ID)
}

// =============================================================================
// FAULT ISOLATION
// =============================================================================

type failingLedger struct {
	insurance.ExpirationLedger
	fail bool
}

func (f *failingLedger) AppendProcessed(ctx context.Context, rows []insurance.ProcessedExpiration) error {
	if f.fail {
		return errors.New("disk on fire")
	}
	return f.ExpirationLedger.AppendProcessed(ctx, rows)
}

type failingPolicies struct {
	insurance.PolicyStore
}

func (f *failingPolicies) PoliciesEndingOn(ctx context.Context, d insurance.Date) ([]insurance.InsurancePolicy, error) {
	return nil, errors.New("query timeout")
}

func TestScanOnce_PolicyQueryFailureIsAudited(t *testing.T) {
	// An in-window pass that cannot even list expired policies still leaves a
	// failed scan-run row.
	scanner, store, clock := newScannerFixture(t)
	scanner.Policies = &failingPolicies{PolicyStore: store}
	ctx := context.Background()

	clock.Set(time.Date(2025, time.January, 6, 0, 30, 0, 0, bucharest))
	require.Error(t, scanner.ScanOnce(ctx))

	runs, err := store.ListScanRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, insurance.ScanRunFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "query timeout")
	assert.Equal(t, 0, runs[0].Found)
	assert.Equal(t, 0, runs[0].Recorded)
}

func TestScanOnce_FailedTickIsRetriedNextTick(t *testing.T) {
	// A failing ledger write abandons the tick without poisoning state; once
	// the store recovers, the same policy is found and recorded.
	scanner, store, clock := newScannerFixture(t)
	ledger := &failingLedger{ExpirationLedger: store, fail: true}
	scanner.Ledger = ledger
	seedCarWithPolicy(t, store, insurance.NewDate(2025, time.January, 5))
	ctx := context.Background()

	clock.Set(time.Date(2025, time.January, 6, 0, 30, 0, 0, bucharest))
	require.Error(t, scanner.ScanOnce(ctx))

	rows, err := store.ListProcessedExpirations(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Failure is visible in the audit trail.
	runs, err := store.ListScanRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, insurance.ScanRunFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "disk on fire")

	ledger.fail = false
	require.NoError(t, scanner.ScanOnce(ctx))

	rows, err = store.ListProcessedExpirations(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestScanner_StartStop(t *testing.T) {
	scanner, store, clock := newScannerFixture(t)
	scanner.Interval = 10 * time.Millisecond
	policyID := seedCarWithPolicy(t, store, insurance.NewDate(2025, time.January, 5))

	clock.Set(time.Date(2025, time.January, 6, 0, 30, 0, 0, bucharest))

	scanner.Start()
	// The first tick runs immediately; give the loop a few periods anyway
	// to exercise repeated no-op ticks.
	time.Sleep(50 * time.Millisecond)
	scanner.Stop()

	rows, err := store.ListProcessedExpirations(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1, "repeated ticks must record the policy exactly once")
	assert.Equal(t, policyID, rows[0].PolicyID)
}

func TestScanner_StopWithoutStart(t *testing.T) {
	scanner, _, _ := newScannerFixture(t)
	scanner.Stop() // must not panic or block
}

func TestScanner_StopIsPrompt(t *testing.T) {
	scanner, _, clock := newScannerFixture(t)
	scanner.Interval = time.Hour // loop spends its life in the timer wait
	clock.Set(time.Date(2025, time.January, 6, 12, 0, 0, 0, bucharest))

	scanner.Start()

	done := make(chan struct{})
	go func() {
		scanner.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while scanner was waiting on its timer")
	}
}
