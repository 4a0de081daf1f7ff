package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Runner drives the periodic collect-and-report cycle. Reports that cannot
// reach the server are handed to the spool; reports the server rejects are
// dropped, since a rejected document never becomes acceptable by waiting.
type Runner struct {
	collector *Collector
	client    *Client
	spool     *Spool
	interval  time.Duration
	logger    zerolog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRunner creates a new report runner. The spool is optional; without one
// reports that fail in transit are lost.
func NewRunner(collector *Collector, client *Client, spool *Spool, interval time.Duration, logger zerolog.Logger) *Runner {
	return &Runner{
		collector: collector,
		client:    client,
		spool:     spool,
		interval:  interval,
		logger:    logger.With().Str("component", "runner").Logger(),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the reporting loop.
func (r *Runner) Start(ctx context.Context) {
	if r.spool != nil {
		r.spool.Start(ctx)
	}

	r.wg.Add(1)
	go r.run(ctx)

	r.logger.Info().Dur("interval", r.interval).Msg("agent reporting started")
}

// Stop gracefully stops the reporting loop.
func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	if r.spool != nil {
		r.spool.Stop()
	}
	r.logger.Info().Msg("agent reporting stopped")
}

// run is the main reporting loop.
func (r *Runner) run(ctx context.Context) {
	defer r.wg.Done()

	// Report immediately on start
	if err := r.ReportOnce(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("initial report failed")
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if err := r.ReportOnce(ctx); err != nil {
				r.logger.Warn().Err(err).Msg("report failed")
			}
		}
	}
}

// ReportOnce collects telemetry and attempts a single delivery.
func (r *Runner) ReportOnce(ctx context.Context) error {
	doc, err := r.collector.Collect(ctx)
	if err != nil {
		return fmt.Errorf("collect telemetry: %w", err)
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	ack, err := r.client.ReportRaw(ctx, payload)
	switch {
	case err == nil:
		r.logger.Debug().
			Str("machine_id", ack.MachineID).
			Str("snapshot_id", ack.SnapshotID).
			Msg("report delivered")
		return nil
	case errors.Is(err, ErrRejected):
		return err
	default:
		if r.spool == nil {
			return err
		}
		if _, spoolErr := r.spool.Enqueue(ctx, payload); spoolErr != nil {
			return fmt.Errorf("spool report after delivery failure: %w", spoolErr)
		}
		r.logger.Debug().Err(err).Msg("server unreachable, report spooled")
		return nil
	}
}
