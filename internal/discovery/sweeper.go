package discovery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
)

// StaleMarker is the slice of the device service the sweeper needs.
type StaleMarker interface {
	MarkOfflineIfStale(ctx context.Context, threshold time.Duration) ([]domain.Device, error)
}

// Sweeper periodically demotes devices that stopped being observed to
// offline. Runs independently of ingestion.
type Sweeper struct {
	marker    StaleMarker
	cadence   time.Duration
	threshold time.Duration
	log       zerolog.Logger
}

// NewSweeper creates a presence sweeper. Zero cadence/threshold select
// the defaults (30s cadence, 2m threshold).
func NewSweeper(marker StaleMarker, cadence, threshold time.Duration, log zerolog.Logger) *Sweeper {
	if cadence <= 0 {
		cadence = 30 * time.Second
	}
	if threshold <= 0 {
		threshold = 2 * time.Minute
	}
	return &Sweeper{
		marker:    marker,
		cadence:   cadence,
		threshold: threshold,
		log:       log.With().Str("component", "sweeper").Logger(),
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			transitioned, err := s.marker.MarkOfflineIfStale(ctx, s.threshold)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Error().Err(err).Msg("stale sweep failed")
				}
				continue
			}
			if len(transitioned) > 0 {
				s.log.Info().Int("count", len(transitioned)).Msg("devices marked offline")
			}
		case <-ctx.Done():
			return
		}
	}
}
