package connector

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const defaultPollInterval = 300 * time.Second

// Scheduler runs every registered connector on a fixed cadence,
// re-reading settings each cycle so enable/disable toggles take effect
// without a restart.
type Scheduler struct {
	registry *Registry
	settings *SettingsStore
	interval time.Duration
	log      zerolog.Logger
}

// NewScheduler creates a scheduler. An interval of zero or less uses the
// five minute default.
func NewScheduler(registry *Registry, settings *SettingsStore, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Scheduler{
		registry: registry,
		settings: settings,
		interval: interval,
		log:      log.With().Str("component", "connector-scheduler").Logger(),
	}
}

// Run polls until ctx is cancelled. The first cycle starts immediately.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle runs each enabled connector once. A failing connector is
// recorded in the status store and never blocks the others.
func (s *Scheduler) runCycle(ctx context.Context) {
	settings := s.settings.Get()
	for _, c := range s.registry.All() {
		if ctx.Err() != nil {
			return
		}
		if !settings.IsEnabled(c.Key()) {
			continue
		}

		start := time.Now()
		if err := c.Run(ctx, settings); err != nil {
			s.registry.ReportFailure(c.Key(), err)
			s.log.Warn().Err(err).Str("key", c.Key()).Msg("connector run failed")
			continue
		}
		s.registry.ReportSuccess(c.Key())
		s.log.Debug().
			Str("key", c.Key()).
			Dur("elapsed", time.Since(start)).
			Msg("connector run complete")
	}
}
