/*
scanner.go - Policy expiration scanner

Periodically looks for policies whose coverage ended yesterday (local time)
and records each one exactly once in the processed-expiration ledger.

DESIGN:
  - Runs a background goroutine with a configurable fixed interval
  - Processes only inside a daily window [00:00, 00:00+N hours) local time
  - Skips policies already present in the ledger
  - Ledger rows are written in one transaction; a failed tick leaves no
    partial state and is naturally retried on the next tick
  - The clock is injected so window gating is deterministic under test

A tick that fails is logged and does not stop the loop. Stop cancels the
in-flight tick's context and waits for the goroutine to exit.
*/
package insurance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Calin1302/ProjectCarInsurance/metrics"
)

// ExpiryScanner is the recurring expiration-processing task.
type ExpiryScanner struct {
	Policies PolicyStore
	Ledger   ExpirationLedger
	Runs     ScanRunStore

	// Clock supplies local wall-clock time. Defaults to SystemClock.
	Clock Clock
	// Interval between ticks. Defaults to 300 seconds.
	Interval time.Duration
	// WindowHours widens the daily processing window [00:00, 00:00+N).
	// Defaults to 1, i.e. the first hour of the day.
	WindowHours int
	// Metrics is optional; when nil no counters are recorded.
	Metrics *metrics.ScannerMetrics

	logger *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewExpiryScanner creates a scanner with default interval, window and clock.
func NewExpiryScanner(policies PolicyStore, ledger ExpirationLedger, runs ScanRunStore, logger *zap.Logger) *ExpiryScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpiryScanner{
		Policies:    policies,
		Ledger:      ledger,
		Runs:        runs,
		Clock:       SystemClock{},
		Interval:    300 * time.Second,
		WindowHours: 1,
		logger:      logger,
		stop:        make(chan struct{}),
	}
}

// Start launches the background loop. The first tick runs immediately.
func (s *ExpiryScanner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return // already running
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stop = make(chan struct{})
	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)

	go s.run(ctx)

	s.logger.Info("expiry scanner started",
		zap.Duration("interval", s.Interval),
		zap.Int("window_hours", s.WindowHours))
}

// Stop signals the loop to exit and waits for it. The in-flight tick's
// context is cancelled, so store waits are abandoned rather than drained.
func (s *ExpiryScanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}

	s.ticker.Stop()
	s.cancel()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.logger.Info("expiry scanner stopped")
}

func (s *ExpiryScanner) run(ctx context.Context) {
	defer s.wg.Done()

	s.tick(ctx)

	for {
		select {
		case <-s.ticker.C:
			s.tick(ctx)
		case <-s.stop:
			return
		}
	}
}

// tick wraps one scan pass with fault isolation: an error is logged and
// counted, never propagated, so the loop keeps running.
func (s *ExpiryScanner) tick(ctx context.Context) {
	if err := s.ScanOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return // shutting down, not a failure
		}
		s.logger.Error("expiry scan failed", zap.Error(err))
		if s.Metrics != nil {
			s.Metrics.ScanFailures.Inc()
		}
	}
}

// ScanOnce performs a single scan pass. Outside the processing window it is
// a no-op and returns nil. Inside the window it records every policy that
// ended yesterday and is not yet in the ledger, in one transaction, and
// appends a scan-run audit row.
func (s *ExpiryScanner) ScanOnce(ctx context.Context) error {
	now := s.Clock.Now()
	today := DateOf(now)
	yesterday := today.AddDays(-1)

	// The expiration moment is 00:00 on the day after EndDate; process only
	// in the first WindowHours of that day.
	windowStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	windowEnd := windowStart.Add(time.Duration(s.WindowHours) * time.Hour)

	if s.Metrics != nil {
		s.Metrics.ScansTotal.Inc()
	}

	if now.Before(windowStart) || !now.Before(windowEnd) {
		s.logger.Debug("outside processing window",
			zap.Time("window_start", windowStart),
			zap.Time("window_end", windowEnd),
			zap.Time("now", now))
		if s.Metrics != nil {
			s.Metrics.ScansSkipped.Inc()
		}
		return nil
	}

	expired, err := s.Policies.PoliciesEndingOn(ctx, yesterday)
	if err != nil {
		return s.finishRun(ctx, yesterday, 0, 0, err)
	}
	if len(expired) == 0 {
		s.logger.Debug("no policies expired", zap.Stringer("date", yesterday))
		return nil
	}

	ids := make([]int64, len(expired))
	for i, p := range expired {
		ids[i] = p.ID
	}
	processed, err := s.Ledger.ProcessedPolicyIDs(ctx, ids)
	if err != nil {
		return s.finishRun(ctx, yesterday, len(expired), 0, err)
	}

	var rows []ProcessedExpiration
	for _, p := range expired {
		if processed[p.ID] {
			continue
		}
		s.logger.Info("policy expired",
			zap.Int64("policy_id", p.ID),
			zap.Int64("car_id", p.CarID),
			zap.String("provider", p.Provider),
			zap.Stringer("end_date", p.EndDate))
		rows = append(rows, ProcessedExpiration{
			PolicyID:       p.ID,
			EndDate:        p.EndDate,
			ProcessedAtUTC: now.UTC(),
		})
	}
	if len(rows) == 0 {
		return nil
	}

	if err := s.Ledger.AppendProcessed(ctx, rows); err != nil {
		return s.finishRun(ctx, yesterday, len(expired), 0, err)
	}

	if s.Metrics != nil {
		s.Metrics.ExpirationsRecorded.Add(float64(len(rows)))
	}
	return s.finishRun(ctx, yesterday, len(expired), len(rows), nil)
}

// finishRun persists the audit record for a pass that acted inside the
// window. Audit failures are logged but never fail the tick; the ledger is
// the source of truth, the run record is operational convenience.
func (s *ExpiryScanner) finishRun(ctx context.Context, target Date, found, recorded int, scanErr error) error {
	run := ScanRun{
		ID:          uuid.NewString(),
		ScannedFor:  target,
		Found:       found,
		Recorded:    recorded,
		Status:      ScanRunCompleted,
		StartedAt:   s.Clock.Now().UTC(),
		CompletedAt: s.Clock.Now().UTC(),
	}
	if scanErr != nil {
		run.Status = ScanRunFailed
		run.Error = scanErr.Error()
	}
	if s.Runs != nil {
		if err := s.Runs.SaveScanRun(ctx, run); err != nil && ctx.Err() == nil {
			s.logger.Warn("failed to save scan run", zap.Error(err))
		}
	}
	return scanErr
}
