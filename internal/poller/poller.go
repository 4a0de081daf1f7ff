// Package poller periodically pulls telemetry from registered machines that
// expose a local stats API, complementing the push-based webhook path.
package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/machinehub/machinehub/internal/models"
	"github.com/machinehub/machinehub/internal/telemetry"
	"github.com/rs/zerolog"
)

// maxResponseBody caps the accepted stats API response size.
const maxResponseBody = 4 << 20 // 4 MiB

// Store defines the database operations needed by the poller.
type Store interface {
	GetActiveMachines(ctx context.Context) ([]*models.Machine, error)
	InsertSnapshot(ctx context.Context, s *models.Snapshot, hostname, osName, osVersion string) error
}

// Config holds the configuration for the poller.
type Config struct {
	// Interval is how often to poll all active machines.
	Interval time.Duration
	// Timeout bounds a single machine's poll request.
	Timeout time.Duration
	// Port is the stats API port on each machine.
	Port int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
		Port:     61208,
	}
}

// Poller runs the periodic pull loop.
type Poller struct {
	store  Store
	config Config
	client *http.Client
	logger zerolog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPoller creates a new Poller instance.
func NewPoller(store Store, config Config, logger zerolog.Logger) *Poller {
	return &Poller{
		store:  store,
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("component", "poller").Logger(),
		stopCh: make(chan struct{}),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
	p.logger.Info().
		Dur("interval", p.config.Interval).
		Int("port", p.config.Port).
		Msg("poller started")
}

// Stop gracefully stops the polling loop.
func (p *Poller) Stop() {
	close(p.stopCh)
	p.wg.Wait()
	p.logger.Info().Msg("poller stopped")
}

// run is the main polling loop.
func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	// Run immediately on start
	p.pollAll(ctx)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

// pollAll polls every active machine concurrently.
func (p *Poller) pollAll(ctx context.Context) {
	machines, err := p.store.GetActiveMachines(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to list active machines")
		return
	}

	var wg sync.WaitGroup
	for _, machine := range machines {
		wg.Add(1)
		go func(m *models.Machine) {
			defer wg.Done()
			if err := p.pollMachine(ctx, m); err != nil {
				p.logger.Debug().
					Err(err).
					Str("machine_id", m.ID.String()).
					Str("ip_address", m.IPAddress).
					Msg("poll failed")
			}
		}(machine)
	}
	wg.Wait()
}

// pollMachine fetches the machine's stats API and records a snapshot.
func (p *Poller) pollMachine(ctx context.Context, machine *models.Machine) error {
	url := fmt.Sprintf("http://%s:%d/api/4/all", machine.IPAddress, p.config.Port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stats API returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	doc, err := telemetry.Parse(body)
	if err != nil {
		return fmt.Errorf("parse stats: %w", err)
	}

	snapshot := telemetry.Normalize(doc, machine.ID, models.SourceAPI)
	hostname, osName, osVersion := doc.Identity()

	if err := p.store.InsertSnapshot(ctx, snapshot, hostname, osName, osVersion); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	p.logger.Debug().
		Str("machine_id", machine.ID.String()).
		Str("snapshot_id", snapshot.ID.String()).
		Msg("polled snapshot recorded")

	return nil
}
