// Package sweeper expires stale pending bookings so abandoned submissions
// do not hold inventory forever.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"costamar/internal/config"
	"costamar/internal/events"
	"costamar/internal/metrics"
	"costamar/internal/store"
)

// Sweeper cancels bookings stuck in pending status past the TTL, releasing
// their occupancy.
type Sweeper struct {
	db       *store.DB
	interval time.Duration
	ttl      time.Duration
	bus      *events.Bus
	logger   *zerolog.Logger
	enabled  bool
}

// New builds the sweeper from config.
func New(db *store.DB, cfg *config.Config, bus *events.Bus, logger *zerolog.Logger) *Sweeper {
	return &Sweeper{
		db:       db,
		interval: time.Duration(cfg.Sweeper.IntervalMinutes) * time.Minute,
		ttl:      time.Duration(cfg.Sweeper.PendingTTLHours) * time.Hour,
		bus:      bus,
		logger:   logger,
		enabled:  cfg.Sweeper.Enabled,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.enabled {
		s.logger.Info().Msg("pending booking sweeper disabled")
		return
	}

	s.logger.Info().
		Dur("interval", s.interval).
		Dur("pending_ttl", s.ttl).
		Msg("pending booking sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("pending booking sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep pass, cancelling every pending booking older
// than the TTL.
func (s *Sweeper) RunOnce(ctx context.Context) {
	start := time.Now()
	cutoff := start.Add(-s.ttl)

	pending, err := s.db.ListBookings(ctx, "", "pending")
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep: list pending bookings failed")
		return
	}

	var expired int
	for i := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b := &pending[i]
		if !b.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.db.CancelBooking(ctx, b.ID); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("sweep: cancel failed")
			continue
		}
		expired++
		metrics.IncBookingMutation("expired", string(b.Category))
		s.bus.Publish(events.TypeBookingCancelled, b)
		s.logger.Info().
			Int64("booking_id", b.ID).
			Str("reference", b.Reference).
			Time("created_at", b.CreatedAt).
			Msg("expired stale pending booking")
	}

	if expired > 0 || len(pending) > 0 {
		s.logger.Info().
			Int("pending", len(pending)).
			Int("expired", expired).
			Dur("duration", time.Since(start)).
			Msg("sweep pass finished")
	}
}
