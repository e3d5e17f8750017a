package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

// SessionRepo persists application sessions. All status transitions are
// conditional updates keyed on the expected prior status.
type SessionRepo struct{ Pool PgxPool }

// NewSessionRepo constructs a SessionRepo with the given pool.
func NewSessionRepo(p PgxPool) *SessionRepo { return &SessionRepo{Pool: p} }

// Create inserts a new session.
func (r *SessionRepo) Create(ctx domain.Context, s domain.ApplicationSession) error {
	ctx, span := otel.Tracer("repo.sessions").Start(ctx, "sessions.Create")
	defer span.End()
	dbAttrs(span, "INSERT", "application_sessions")

	answers, err := marshalAnswers(s.Answers)
	if err != nil {
		return fmt.Errorf("op=session.create: %w", err)
	}
	q := `INSERT INTO application_sessions (token, job_id, status, answers, created_at) VALUES ($1,$2,$3,$4,$5)`
	if _, err := r.Pool.Exec(ctx, q, s.Token, s.JobID, s.Status, answers, s.CreatedAt); err != nil {
		return fmt.Errorf("op=session.create: %w", err)
	}
	return nil
}

// Get loads a session by token.
func (r *SessionRepo) Get(ctx domain.Context, token string) (domain.ApplicationSession, error) {
	ctx, span := otel.Tracer("repo.sessions").Start(ctx, "sessions.Get")
	defer span.End()
	dbAttrs(span, "SELECT", "application_sessions")

	q := `SELECT token, job_id, status, answers, created_at, completed_at, application_id FROM application_sessions WHERE token=$1`
	var s domain.ApplicationSession
	var raw []byte
	if err := r.Pool.QueryRow(ctx, q, token).Scan(&s.Token, &s.JobID, &s.Status, &raw, &s.CreatedAt, &s.CompletedAt, &s.ApplicationID); err != nil {
		return domain.ApplicationSession{}, notFound("session.get", err)
	}
	answers, err := unmarshalAnswers(raw)
	if err != nil {
		return domain.ApplicationSession{}, fmt.Errorf("op=session.get: %w", err)
	}
	s.Answers = answers
	return s, nil
}

// CompleteEvaluation freezes answers and moves the session out of
// IN_PROGRESS. It reports false when another caller already did.
func (r *SessionRepo) CompleteEvaluation(ctx domain.Context, token string, answers domain.AnswerSet, status domain.SessionStatus, completedAt time.Time) (bool, error) {
	ctx, span := otel.Tracer("repo.sessions").Start(ctx, "sessions.CompleteEvaluation")
	defer span.End()
	dbAttrs(span, "UPDATE", "application_sessions")

	raw, err := marshalAnswers(answers)
	if err != nil {
		return false, fmt.Errorf("op=session.complete: %w", err)
	}
	q := `UPDATE application_sessions SET status=$2, answers=$3, completed_at=$4 WHERE token=$1 AND status='IN_PROGRESS'`
	tag, err := r.Pool.Exec(ctx, q, token, status, raw, completedAt)
	if err != nil {
		return false, fmt.Errorf("op=session.complete: %w", err)
	}
	won := tag.RowsAffected() == 1
	span.SetAttributes(attribute.Bool("session.transition_won", won))
	return won, nil
}

func marshalAnswers(a domain.AnswerSet) ([]byte, error) {
	if a == nil {
		a = domain.AnswerSet{}
	}
	return json.Marshal(a)
}

func unmarshalAnswers(raw []byte) (domain.AnswerSet, error) {
	out := domain.AnswerSet{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
