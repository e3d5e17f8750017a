package usecase

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/screening-gate/internal/adapter/observability"
	"github.com/fairyhunter13/screening-gate/internal/domain"
)

// Default abandonment thresholds.
const (
	DefaultInProgressTTL = 24 * time.Hour
	DefaultPassedTTL     = 48 * time.Hour
)

// SweepService moves stale sessions to ABANDONED. It is idempotent and safe
// to run concurrently with request handling.
type SweepService struct {
	Sessions      domain.SessionRepository
	InProgressTTL time.Duration
	PassedTTL     time.Duration
	Clock         domain.Clock
}

// NewSweepService constructs a SweepService, defaulting non-positive TTLs.
func NewSweepService(s domain.SessionRepository, inProgressTTL, passedTTL time.Duration) SweepService {
	if inProgressTTL <= 0 {
		inProgressTTL = DefaultInProgressTTL
	}
	if passedTTL <= 0 {
		passedTTL = DefaultPassedTTL
	}
	return SweepService{Sessions: s, InProgressTTL: inProgressTTL, PassedTTL: passedTTL}
}

// Sweep abandons IN_PROGRESS sessions older than InProgressTTL and PASSED
// sessions without an application older than PassedTTL.
func (s SweepService) Sweep(ctx domain.Context) (domain.SweepResult, error) {
	ctx, span := otel.Tracer("usecase.sweep").Start(ctx, "SweepService.Sweep")
	defer span.End()

	now := s.Clock.Now()
	res, err := s.Sessions.SweepAbandoned(ctx, now.Add(-s.InProgressTTL), now.Add(-s.PassedTTL))
	if err != nil {
		span.RecordError(err)
		return domain.SweepResult{}, err
	}
	span.SetAttributes(
		attribute.Int64("sessions.in_progress_swept", res.InProgressSwept),
		attribute.Int64("sessions.orphaned_passed_swept", res.OrphanedPassedSwept),
	)
	observability.RecordSweep(res)
	observability.LoggerFromContext(ctx).Info("abandoned sessions swept",
		slog.Int64("in_progress_swept", res.InProgressSwept),
		slog.Int64("orphaned_passed_swept", res.OrphanedPassedSwept),
	)
	return res, nil
}
