package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Errors
var (
	// ErrSpoolFull is returned when the spool has reached its maximum size.
	ErrSpoolFull = errors.New("report spool is full")
	// ErrServerUnreachable is returned when the server cannot be contacted.
	ErrServerUnreachable = errors.New("server is unreachable")
	// ErrReportNotFound is returned when a spooled report cannot be found.
	ErrReportNotFound = errors.New("spooled report not found")
)

// Report is one collected telemetry payload awaiting delivery.
type Report struct {
	ID          uuid.UUID
	Payload     []byte
	CollectedAt time.Time
	Attempts    int
	LastError   string
}

// SpoolStore defines the interface for spool persistence operations.
type SpoolStore interface {
	// Append stores a new report at the tail of the spool.
	Append(ctx context.Context, report *Report) error
	// ListOldest returns up to limit reports, oldest first.
	ListOldest(ctx context.Context, limit int) ([]*Report, error)
	// MarkFailed records a delivery failure against a report.
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error
	// Delete removes a report from the spool.
	Delete(ctx context.Context, id uuid.UUID) error
	// Count returns the number of spooled reports.
	Count(ctx context.Context) (int, error)
	// Close closes the store connection.
	Close() error
}

// Reporter is the server-facing side the spool needs for delivery.
type Reporter interface {
	CheckHealth(ctx context.Context) error
	ReportRaw(ctx context.Context, payload []byte) (*ReportAck, error)
}

// SpoolConfig holds configuration for the offline report spool.
type SpoolConfig struct {
	// MaxReports caps how many undelivered reports are kept. Enqueue
	// returns ErrSpoolFull beyond it; old reports are never evicted.
	MaxReports int
	// FlushInterval is how often the background loop attempts delivery.
	FlushInterval time.Duration
	// FlushBatch is how many reports one flush pass loads at a time.
	FlushBatch int
}

// DefaultSpoolConfig returns sensible default configuration.
func DefaultSpoolConfig() SpoolConfig {
	return SpoolConfig{
		MaxReports:    1000,
		FlushInterval: 30 * time.Second,
		FlushBatch:    50,
	}
}

// Spool buffers telemetry reports locally while the server is unreachable
// and drains them oldest-first once it comes back.
type Spool struct {
	store  SpoolStore
	client Reporter
	config SpoolConfig
	logger zerolog.Logger

	mu              sync.RWMutex
	serverReachable bool
	lastFlush       time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSpool creates a new report spool.
func NewSpool(store SpoolStore, client Reporter, config SpoolConfig, logger zerolog.Logger) *Spool {
	return &Spool{
		store:  store,
		client: client,
		config: config,
		logger: logger.With().Str("component", "spool").Logger(),
		stopCh: make(chan struct{}),
	}
}

// Start begins the background flush loop.
func (s *Spool) Start(ctx context.Context) {
	if err := s.checkServerHealth(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("initial server health check failed, starting in offline mode")
	}

	s.wg.Add(1)
	go s.flushLoop()

	s.logger.Info().
		Int("max_reports", s.config.MaxReports).
		Dur("flush_interval", s.config.FlushInterval).
		Msg("report spool started")
}

// Stop gracefully stops the flush loop.
func (s *Spool) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("report spool stopped")
}

// Enqueue adds a serialized report to the spool.
func (s *Spool) Enqueue(ctx context.Context, payload []byte) (*Report, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count spooled reports: %w", err)
	}
	if count >= s.config.MaxReports {
		return nil, ErrSpoolFull
	}

	report := &Report{
		ID:          uuid.New(),
		Payload:     payload,
		CollectedAt: time.Now().UTC(),
	}
	if err := s.store.Append(ctx, report); err != nil {
		return nil, fmt.Errorf("append report: %w", err)
	}

	s.logger.Debug().
		Str("report_id", report.ID.String()).
		Int("spooled", count+1).
		Msg("report spooled for later delivery")

	return report, nil
}

// IsServerReachable returns true if the last health check succeeded.
func (s *Spool) IsServerReachable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverReachable
}

// FlushNow attempts to deliver all spooled reports immediately.
func (s *Spool) FlushNow(ctx context.Context) error {
	if err := s.checkServerHealth(ctx); err != nil {
		return ErrServerUnreachable
	}
	return s.flush(ctx)
}

// checkServerHealth probes the server and records reachability.
func (s *Spool) checkServerHealth(ctx context.Context) error {
	err := s.client.CheckHealth(ctx)

	s.mu.Lock()
	wasReachable := s.serverReachable
	s.serverReachable = err == nil
	s.mu.Unlock()

	if err != nil {
		s.logger.Debug().Err(err).Msg("server health check failed")
		return err
	}
	if !wasReachable {
		s.logger.Info().Msg("server connection restored")
	}
	return nil
}

// flush drains the spool oldest-first. Accepted and rejected reports are
// both removed; a rejected report would never be accepted on retry, so
// holding it only blocks the queue. Transport failures stop the pass and
// leave the remainder spooled.
func (s *Spool) flush(ctx context.Context) error {
	s.mu.Lock()
	s.lastFlush = time.Now()
	s.mu.Unlock()

	var delivered, dropped int
	for {
		reports, err := s.store.ListOldest(ctx, s.config.FlushBatch)
		if err != nil {
			return fmt.Errorf("list spooled reports: %w", err)
		}
		if len(reports) == 0 {
			break
		}

		for _, report := range reports {
			_, err := s.client.ReportRaw(ctx, report.Payload)
			switch {
			case err == nil:
				delivered++
			case errors.Is(err, ErrRejected):
				s.logger.Warn().
					Err(err).
					Str("report_id", report.ID.String()).
					Msg("spooled report rejected, dropping")
				dropped++
			default:
				if markErr := s.store.MarkFailed(ctx, report.ID, report.Attempts+1, err.Error()); markErr != nil {
					s.logger.Warn().Err(markErr).Str("report_id", report.ID.String()).Msg("failed to record delivery failure")
				}
				s.mu.Lock()
				s.serverReachable = false
				s.mu.Unlock()
				return fmt.Errorf("deliver report: %w", err)
			}

			// Stop the pass if the report cannot be removed, otherwise the
			// next ListOldest would fetch and deliver it again.
			if err := s.store.Delete(ctx, report.ID); err != nil && !errors.Is(err, ErrReportNotFound) {
				s.logger.Warn().Err(err).Str("report_id", report.ID.String()).Msg("failed to remove delivered report")
				return fmt.Errorf("remove delivered report: %w", err)
			}
		}

		if len(reports) < s.config.FlushBatch {
			break
		}
	}

	if delivered > 0 || dropped > 0 {
		s.logger.Info().
			Int("delivered", delivered).
			Int("dropped", dropped).
			Msg("spool flushed")
	}
	return nil
}

// flushLoop periodically attempts to drain the spool.
func (s *Spool) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			if err := s.FlushNow(ctx); err != nil && !errors.Is(err, ErrServerUnreachable) {
				s.logger.Debug().Err(err).Msg("periodic flush failed")
			}
			cancel()
		}
	}
}
