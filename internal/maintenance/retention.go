// Package maintenance runs scheduled cleanup of stored telemetry.
package maintenance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// RetentionStore defines the interface for retention cleanup data access.
type RetentionStore interface {
	TrimSnapshotsPerMachine(ctx context.Context, keep int) (int64, error)
	DeleteSnapshotsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionConfig controls what the cleanup keeps.
type RetentionConfig struct {
	// KeepPerMachine is the number of newest snapshots retained per machine.
	KeepPerMachine int
	// MaxAgeDays additionally drops snapshots older than this many days.
	// Zero disables the age-based cut.
	MaxAgeDays int
}

// DefaultRetentionConfig returns the default retention policy.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		KeepPerMachine: 10000,
		MaxAgeDays:     0,
	}
}

// RetentionScheduler runs periodic cleanup of old snapshots.
type RetentionScheduler struct {
	store   RetentionStore
	config  RetentionConfig
	cron    *cron.Cron
	logger  zerolog.Logger
	mu      sync.Mutex
	running bool
}

// NewRetentionScheduler creates a new retention cleanup scheduler.
func NewRetentionScheduler(store RetentionStore, config RetentionConfig, logger zerolog.Logger) *RetentionScheduler {
	return &RetentionScheduler{
		store:  store,
		config: config,
		cron:   cron.New(),
		logger: logger.With().Str("component", "retention").Logger(),
	}
}

// Start begins the retention cleanup schedule, every six hours.
func (s *RetentionScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("retention scheduler already running")
	}

	_, err := s.cron.AddFunc("0 */6 * * *", s.runCleanup)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Int("keep_per_machine", s.config.KeepPerMachine).
		Int("max_age_days", s.config.MaxAgeDays).
		Msg("retention scheduler started (every 6 hours)")

	return nil
}

// Stop stops the retention scheduler gracefully.
func (s *RetentionScheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.running = false
	s.logger.Info().Msg("stopping retention scheduler")
	return s.cron.Stop()
}

// runCleanup executes the snapshot cleanup.
func (s *RetentionScheduler) runCleanup() {
	ctx := context.Background()

	s.logger.Info().
		Int("keep_per_machine", s.config.KeepPerMachine).
		Msg("starting snapshot cleanup")

	trimmed, err := s.store.TrimSnapshotsPerMachine(ctx, s.config.KeepPerMachine)
	if err != nil {
		s.logger.Error().Err(err).Msg("snapshot trim failed")
		return
	}

	var aged int64
	if s.config.MaxAgeDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -s.config.MaxAgeDays)
		aged, err = s.store.DeleteSnapshotsOlderThan(ctx, cutoff)
		if err != nil {
			s.logger.Error().Err(err).Msg("age-based snapshot cleanup failed")
			return
		}
	}

	s.logger.Info().
		Int64("trimmed_rows", trimmed).
		Int64("aged_rows", aged).
		Msg("snapshot cleanup completed")
}

// RunNow triggers an immediate cleanup (useful for testing).
func (s *RetentionScheduler) RunNow() {
	s.runCleanup()
}
