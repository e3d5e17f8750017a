// Package usecase contains application business logic services.
package usecase

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/screening-gate/internal/adapter/observability"
	"github.com/fairyhunter13/screening-gate/internal/domain"
	"github.com/fairyhunter13/screening-gate/internal/gate"
)

// EvaluationOutcome is the response shape of a session evaluation.
type EvaluationOutcome struct {
	Passed      bool                   `json:"passed"`
	Status      domain.SessionStatus   `json:"status"`
	FailedRules []domain.FailureDetail `json:"failed_rules"`
}

// SessionService owns the lifecycle of application sessions:
// IN_PROGRESS -> PASSED | FAILED, then optionally linked to an application.
type SessionService struct {
	Jobs           domain.JobRepository
	Questionnaires domain.QuestionnaireRepository
	Sessions       domain.SessionRepository
	Applications   ApplicationService
	Events         domain.EventPublisher
	Clock          domain.Clock
}

// NewSessionService constructs a SessionService with its dependencies.
func NewSessionService(j domain.JobRepository, q domain.QuestionnaireRepository, s domain.SessionRepository, apps ApplicationService, ev domain.EventPublisher) SessionService {
	return SessionService{Jobs: j, Questionnaires: q, Sessions: s, Applications: apps, Events: ev}
}

// Start creates an IN_PROGRESS session for a live job.
func (s SessionService) Start(ctx domain.Context, jobID string) (domain.ApplicationSession, error) {
	ctx, span := otel.Tracer("usecase.session").Start(ctx, "SessionService.Start")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	if jobID == "" {
		return domain.ApplicationSession{}, fmt.Errorf("%w: job id required", domain.ErrInvalidArgument)
	}
	job, err := s.Jobs.Get(ctx, jobID)
	if err != nil {
		return domain.ApplicationSession{}, err
	}
	now := s.Clock.Now()
	if !job.IsLive(now) {
		return domain.ApplicationSession{}, fmt.Errorf("%w: job %s", domain.ErrJobExpired, jobID)
	}
	token, err := newSessionToken()
	if err != nil {
		return domain.ApplicationSession{}, fmt.Errorf("op=session.start: %w", err)
	}
	sess := domain.ApplicationSession{
		Token:     token,
		JobID:     jobID,
		Status:    domain.SessionInProgress,
		CreatedAt: now,
	}
	if err := s.Sessions.Create(ctx, sess); err != nil {
		return domain.ApplicationSession{}, err
	}
	observability.LoggerFromContext(ctx).Info("session started", slog.String("job_id", jobID))
	return sess, nil
}

// Get returns a session by token.
func (s SessionService) Get(ctx domain.Context, token string) (domain.ApplicationSession, error) {
	if token == "" {
		return domain.ApplicationSession{}, fmt.Errorf("%w: session token required", domain.ErrInvalidArgument)
	}
	return s.Sessions.Get(ctx, token)
}

// Evaluate runs the gate for an IN_PROGRESS session exactly once. A session
// that has already left IN_PROGRESS is replayed from its stored answers and
// the caller's answers are ignored.
func (s SessionService) Evaluate(ctx domain.Context, token string, answers domain.AnswerSet) (EvaluationOutcome, error) {
	ctx, span := otel.Tracer("usecase.session").Start(ctx, "SessionService.Evaluate")
	defer span.End()

	sess, err := s.Get(ctx, token)
	if err != nil {
		return EvaluationOutcome{}, err
	}
	span.SetAttributes(attribute.String("job.id", sess.JobID), attribute.String("session.status", string(sess.Status)))
	qn, err := s.Questionnaires.GetCurrentByJob(ctx, sess.JobID)
	if err != nil {
		return EvaluationOutcome{}, err
	}
	if sess.Status != domain.SessionInProgress {
		return replay(sess, qn), nil
	}

	job, err := s.Jobs.Get(ctx, sess.JobID)
	if err != nil {
		return EvaluationOutcome{}, err
	}
	now := s.Clock.Now()
	if !job.IsLive(now) {
		return EvaluationOutcome{}, fmt.Errorf("%w: job %s", domain.ErrJobExpired, sess.JobID)
	}
	if answers == nil {
		answers = domain.AnswerSet{}
	}
	if err := gate.ValidateAnswers(qn.Questions, answers); err != nil {
		return EvaluationOutcome{}, err
	}
	return s.transition(ctx, sess, qn, answers)
}

// transition applies IN_PROGRESS -> PASSED|FAILED with a conditional update.
// When another request won the race, the stored result is replayed instead.
func (s SessionService) transition(ctx domain.Context, sess domain.ApplicationSession, qn domain.Questionnaire, answers domain.AnswerSet) (EvaluationOutcome, error) {
	res := gate.Evaluate(qn.Rules, qn.Questions, answers)
	status := domain.SessionFailed
	if res.Passed {
		status = domain.SessionPassed
	}
	now := s.Clock.Now()
	won, err := s.Sessions.CompleteEvaluation(ctx, sess.Token, answers, status, now)
	if err != nil {
		return EvaluationOutcome{}, err
	}
	lg := observability.LoggerFromContext(ctx)
	if !won {
		current, err := s.Sessions.Get(ctx, sess.Token)
		if err != nil {
			return EvaluationOutcome{}, err
		}
		lg.Info("session already evaluated; replaying stored result", slog.String("job_id", sess.JobID), slog.String("status", string(current.Status)))
		return replay(current, qn), nil
	}
	observability.RecordGateEvaluation(status)
	lg.Info("session evaluated", slog.String("job_id", sess.JobID), slog.String("status", string(status)), slog.Int("failed_rules", len(res.FailedRules)))
	if s.Events != nil {
		ev := domain.SessionEvaluated{JobID: sess.JobID, Status: status, FailedRules: len(res.FailedRules), EvaluatedAt: now}
		if err := s.Events.PublishSessionEvaluated(ctx, ev); err != nil {
			lg.Warn("publish session evaluated failed", slog.Any("error", err))
		}
	}
	return EvaluationOutcome{Passed: res.Passed, Status: status, FailedRules: res.FailedRules}, nil
}

// replay recomputes failure detail from the session's frozen answers against
// the current rules and questions. The stored status is returned unchanged.
func replay(sess domain.ApplicationSession, qn domain.Questionnaire) EvaluationOutcome {
	res := gate.Evaluate(qn.Rules, qn.Questions, sess.Answers)
	return EvaluationOutcome{
		Passed:      sess.Status == domain.SessionPassed,
		Status:      sess.Status,
		FailedRules: res.FailedRules,
	}
}

// Submit links a PASSED session to a newly created application. Any other
// status yields a *domain.StateError naming the actual status.
func (s SessionService) Submit(ctx domain.Context, token string, profile domain.CandidateProfile) (domain.Application, error) {
	ctx, span := otel.Tracer("usecase.session").Start(ctx, "SessionService.Submit")
	defer span.End()

	sess, err := s.Get(ctx, token)
	if err != nil {
		return domain.Application{}, err
	}
	if sess.Status != domain.SessionPassed {
		return domain.Application{}, &domain.StateError{Op: "session.submit", Status: sess.Status}
	}
	if sess.ApplicationID != nil {
		return domain.Application{}, fmt.Errorf("%w: session already linked to an application", domain.ErrDuplicateApplication)
	}
	app, err := s.Applications.Create(ctx, domain.Application{
		JobID:          sess.JobID,
		CandidateEmail: profile.Email,
		CandidateName:  profile.Name,
		ResumeRef:      profile.ResumeRef,
		SessionToken:   &sess.Token,
		Channel:        domain.ChannelQuestionnaire,
	})
	if err != nil {
		var se *domain.StateError
		if errors.As(err, &se) {
			span.SetAttributes(attribute.String("session.status", string(se.Status)))
		}
		return domain.Application{}, err
	}
	return app, nil
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
