package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

const (
	sweepInProgressSQL = `UPDATE application_sessions SET status='ABANDONED'
WHERE status='IN_PROGRESS' AND created_at < $1`
	sweepOrphanedPassedSQL = `UPDATE application_sessions SET status='ABANDONED'
WHERE status='PASSED' AND application_id IS NULL AND created_at < $1`
)

// SweepAbandoned moves stale IN_PROGRESS sessions and PASSED sessions that
// never got an application to ABANDONED using two set-based updates in one
// transaction. Re-running it is a no-op beyond its first effect.
func (r *SessionRepo) SweepAbandoned(ctx domain.Context, inProgressBefore, passedBefore time.Time) (domain.SweepResult, error) {
	ctx, span := otel.Tracer("repo.sessions").Start(ctx, "sessions.SweepAbandoned")
	defer span.End()
	dbAttrs(span, "UPDATE", "application_sessions")

	var res domain.SweepResult
	err := withTx(ctx, r.Pool, "session.sweep", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, sweepInProgressSQL, inProgressBefore)
		if err != nil {
			return fmt.Errorf("op=session.sweep_in_progress: %w", err)
		}
		res.InProgressSwept = tag.RowsAffected()
		tag, err = tx.Exec(ctx, sweepOrphanedPassedSQL, passedBefore)
		if err != nil {
			return fmt.Errorf("op=session.sweep_passed: %w", err)
		}
		res.OrphanedPassedSwept = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return domain.SweepResult{}, err
	}
	span.SetAttributes(
		attribute.Int64("sessions.in_progress_swept", res.InProgressSwept),
		attribute.Int64("sessions.orphaned_passed_swept", res.OrphanedPassedSwept),
	)
	return res, nil
}
