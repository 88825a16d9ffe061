/*
scheduler.go - Automated monthly billing scheduler

PURPOSE:
  Periodically runs the monthly billing batch so fees land without
  anyone pressing a button. The batch itself is idempotent, so running
  it more often than strictly needed is harmless.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick invokes BillingBatch.Run for today's date
  - Enrollments before their billing day, or already charged this
    month, are skipped by the batch

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewBillingScheduler(batch, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunBilling endpoint (manual trigger)
  - finance/billing.go: BillingBatch
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/omadli/tagayev-uz/finance"
	"github.com/omadli/tagayev-uz/timetable"
)

// BillingScheduler runs the monthly billing batch in the background.
type BillingScheduler struct {
	Billing       *finance.BillingBatch
	CheckInterval time.Duration
	Enabled       bool
	Logger        zerolog.Logger

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBillingScheduler creates a new scheduler.
func NewBillingScheduler(batch *finance.BillingBatch, logger zerolog.Logger) *BillingScheduler {
	return &BillingScheduler{
		Billing:       batch,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Logger:        logger,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (bs *BillingScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		bs.Logger.Info().Msg("billing scheduler disabled, not starting")
		return
	}

	bs.ticker = time.NewTicker(bs.CheckInterval)
	bs.wg.Add(1)

	go bs.run()

	bs.Logger.Info().Dur("interval", bs.CheckInterval).Msg("billing scheduler started")
}

// Stop stops the scheduler.
func (bs *BillingScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		bs.Logger.Info().Msg("billing scheduler stopped")
	}
}

func (bs *BillingScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.runBatch()

	for {
		select {
		case <-bs.ticker.C:
			bs.runBatch()
		case <-bs.stop:
			return
		}
	}
}

func (bs *BillingScheduler) runBatch() {
	ctx := context.Background()
	today := timetable.Today()

	report, err := bs.Billing.Run(ctx, today)
	if err != nil {
		bs.Logger.Error().Err(err).Msg("billing batch failed")
		return
	}
	if report.Created > 0 || len(report.Failures) > 0 {
		bs.Logger.Info().
			Int("created", report.Created).
			Int("skipped", report.Skipped).
			Int("failures", len(report.Failures)).
			Msg("billing batch completed")
	}
}
