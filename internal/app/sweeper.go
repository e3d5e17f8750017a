package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

// Sweeper is the use case the periodic runner drives.
type Sweeper interface {
	Sweep(ctx context.Context) (domain.SweepResult, error)
}

// AbandonmentSweeper runs the abandonment sweep on an interval inside the
// server process. Each run is idempotent, so several instances may run it.
type AbandonmentSweeper struct {
	sweeper  Sweeper
	interval time.Duration
	timeout  time.Duration
}

// NewAbandonmentSweeper returns nil when sweeper is nil.
func NewAbandonmentSweeper(sweeper Sweeper, interval time.Duration) *AbandonmentSweeper {
	if sweeper == nil {
		return nil
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	timeout := interval / 2
	if timeout > time.Minute {
		timeout = time.Minute
	}
	return &AbandonmentSweeper{sweeper: sweeper, interval: interval, timeout: timeout}
}

// Run sweeps immediately and then every interval until ctx is done.
func (s *AbandonmentSweeper) Run(ctx context.Context) {
	if s == nil || s.sweeper == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("abandonment sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *AbandonmentSweeper) sweepOnce(ctx context.Context) {
	ctx, span := otel.Tracer("sessions.sweeper").Start(ctx, "AbandonmentSweeper.sweepOnce")
	defer span.End()
	span.SetAttributes(attribute.Float64("sweeper.interval_seconds", s.interval.Seconds()))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.sweeper.Sweep(ctx); err != nil {
		span.RecordError(err)
		slog.Error("abandonment sweep failed", slog.Any("error", err))
	}
}
