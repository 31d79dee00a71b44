package app

import (
	"context"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/metrics"
	"github.com/rs/zerolog/log"
)

const DefaultSweepInterval = 300 * time.Second

// Sweeper deletes expired rooms once at start and then on every tick.
// A failed sweep is logged and left for the next tick.
type Sweeper struct {
	store    core.RoomStore
	interval time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
}

func NewSweeper(store core.RoomStore, interval time.Duration, now func() time.Time, m *metrics.Metrics) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Sweeper{store: store, interval: interval, now: now, metrics: m}
}

// Run blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Str("module", "app.sweeper").Dur("interval", s.interval).Msg("sweeper started")
	_, _ = s.SweepOnce(ctx)

	for {
		select {
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		case <-ctx.Done():
			log.Info().Str("module", "app.sweeper").Msg("sweeper stopped")
			return nil
		}
	}
}

// SweepOnce computes now once and removes every room expired at that instant.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	started := time.Now()
	now := s.now()
	n, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		s.metrics.SweepFailed()
		log.Error().Err(err).Str("module", "app.sweeper").Dur("took", time.Since(started)).Msg("sweep failed")
		return 0, err
	}
	s.metrics.Swept(n)
	log.Debug().Str("module", "app.sweeper").Int("removed", n).Dur("took", time.Since(started)).Msg("sweep done")
	return n, nil
}
