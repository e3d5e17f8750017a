package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

// ApplicationRepo persists applications. Duplicate prevention relies on the
// UNIQUE (job_id, candidate_email) constraint.
type ApplicationRepo struct{ Pool PgxPool }

// NewApplicationRepo constructs an ApplicationRepo with the given pool.
func NewApplicationRepo(p PgxPool) *ApplicationRepo { return &ApplicationRepo{Pool: p} }

// FindByJobAndCandidate returns the candidate's application for the job or ErrNotFound.
func (r *ApplicationRepo) FindByJobAndCandidate(ctx domain.Context, jobID, candidateEmail string) (domain.Application, error) {
	ctx, span := otel.Tracer("repo.applications").Start(ctx, "applications.FindByJobAndCandidate")
	defer span.End()
	dbAttrs(span, "SELECT", "applications")
	span.SetAttributes(attribute.String("job.id", jobID))

	q := `SELECT id, job_id, candidate_email, candidate_name, resume_ref, session_token, channel, created_at
FROM applications WHERE job_id=$1 AND candidate_email=$2`
	var a domain.Application
	if err := r.Pool.QueryRow(ctx, q, jobID, candidateEmail).Scan(
		&a.ID, &a.JobID, &a.CandidateEmail, &a.CandidateName, &a.ResumeRef, &a.SessionToken, &a.Channel, &a.CreatedAt,
	); err != nil {
		return domain.Application{}, notFound("application.find", err)
	}
	return a, nil
}

// CreateAndLink inserts the application and, when it carries a session
// token, sets that session's application_id in the same transaction. The
// link only applies to a PASSED session that is not linked yet; otherwise
// the whole write is rolled back.
func (r *ApplicationRepo) CreateAndLink(ctx domain.Context, app domain.Application) (domain.Application, error) {
	ctx, span := otel.Tracer("repo.applications").Start(ctx, "applications.CreateAndLink")
	defer span.End()
	dbAttrs(span, "INSERT", "applications")
	span.SetAttributes(attribute.String("job.id", app.JobID), attribute.Bool("application.linked", app.SessionToken != nil))

	err := withTx(ctx, r.Pool, "application.create", func(tx pgx.Tx) error {
		q := `INSERT INTO applications (id, job_id, candidate_email, candidate_name, resume_ref, session_token, channel, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
		if _, err := tx.Exec(ctx, q, app.ID, app.JobID, app.CandidateEmail, app.CandidateName, app.ResumeRef, app.SessionToken, app.Channel, app.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("op=application.create: %w", domain.ErrDuplicateApplication)
			}
			return fmt.Errorf("op=application.create: %w", err)
		}
		if app.SessionToken == nil {
			return nil
		}
		tag, err := tx.Exec(ctx,
			`UPDATE application_sessions SET application_id=$2 WHERE token=$1 AND status='PASSED' AND application_id IS NULL`,
			*app.SessionToken, app.ID,
		)
		if err != nil {
			return fmt.Errorf("op=application.link_session: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
		return linkFailure(ctx, tx, *app.SessionToken)
	})
	if err != nil {
		span.RecordError(err)
		return domain.Application{}, err
	}
	return app, nil
}

// linkFailure explains why a session could not be linked.
func linkFailure(ctx domain.Context, tx pgx.Tx, token string) error {
	var status domain.SessionStatus
	var linked *string
	err := tx.QueryRow(ctx, `SELECT status, application_id FROM application_sessions WHERE token=$1`, token).Scan(&status, &linked)
	if err != nil {
		return notFound("application.link_session", err)
	}
	if status == domain.SessionPassed && linked != nil {
		return fmt.Errorf("op=application.link_session: session already linked: %w", domain.ErrDuplicateApplication)
	}
	return &domain.StateError{Op: "application.link_session", Status: status}
}
