package usecase

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/screening-gate/internal/adapter/observability"
	"github.com/fairyhunter13/screening-gate/internal/domain"
	"github.com/fairyhunter13/screening-gate/internal/gate"
)

// OneClickRequest carries an already-authenticated candidate and optional
// freshly supplied gate answers.
type OneClickRequest struct {
	JobID     string
	Candidate domain.CandidateProfile
	Provided  domain.AnswerSet
}

// OneClickResult is exactly one of: applied, answers required, or gate failed.
type OneClickResult struct {
	Applied       bool
	ApplicationID string

	RequiresGateAnswers bool
	Questions           []domain.Question
	MissingKeys         []string
	PrefillAnswers      domain.AnswerSet

	GateFailed   bool
	FailedRules  []domain.FailureDetail
	SessionToken string
}

// OneClickService applies with previously saved answers, asking only for
// what is missing and re-running the gate each time.
type OneClickService struct {
	Jobs           domain.JobRepository
	Questionnaires domain.QuestionnaireRepository
	GateAnswers    domain.GateAnswerRepository
	Sessions       SessionService
	Applications   ApplicationService
}

// NewOneClickService constructs a OneClickService.
func NewOneClickService(j domain.JobRepository, q domain.QuestionnaireRepository, ga domain.GateAnswerRepository, sessions SessionService, apps ApplicationService) OneClickService {
	return OneClickService{Jobs: j, Questionnaires: q, GateAnswers: ga, Sessions: sessions, Applications: apps}
}

// Apply runs the one-click branch:
//  1. no gate rules: apply immediately;
//  2. answers provided: save them, evaluate the merged set;
//  3. nothing provided and keys missing: return the questions to ask;
//  4. nothing provided and nothing missing: evaluate the saved set.
func (s OneClickService) Apply(ctx domain.Context, req OneClickRequest) (OneClickResult, error) {
	ctx, span := otel.Tracer("usecase.oneclick").Start(ctx, "OneClickService.Apply")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", req.JobID))

	email := domain.NormalizeEmail(req.Candidate.Email)
	ve := &domain.ValidationError{}
	if req.JobID == "" {
		ve.Add("job_id", "REQUIRED", "job id is required")
	}
	if email == "" {
		ve.Add("candidate_email", "REQUIRED", "authenticated candidate email is required")
	}
	if req.Candidate.ResumeRef == "" {
		ve.Add("resume_ref", "REQUIRED", "a resume reference is required")
	}
	if err := ve.OrNil(); err != nil {
		return OneClickResult{}, err
	}

	job, err := s.Jobs.Get(ctx, req.JobID)
	if err != nil {
		return OneClickResult{}, err
	}
	if !job.IsLive(s.Sessions.Clock.Now()) {
		return OneClickResult{}, fmt.Errorf("%w: job %s", domain.ErrJobExpired, req.JobID)
	}
	if err := s.Applications.CheckNotApplied(ctx, req.JobID, email); err != nil {
		return OneClickResult{}, err
	}
	qn, err := s.Questionnaires.GetCurrentByJob(ctx, req.JobID)
	if err != nil {
		return OneClickResult{}, err
	}
	lg := observability.LoggerFromContext(ctx).With(slog.String("job_id", req.JobID))

	if len(qn.Rules) == 0 {
		span.SetAttributes(attribute.String("oneclick.branch", "no_rules"))
		return s.apply(ctx, req, email, nil)
	}

	saved, err := s.GateAnswers.ListByCandidate(ctx, email)
	if err != nil {
		return OneClickResult{}, err
	}
	required := gate.RequiredKeys(qn.Questions, qn.Rules)
	res := gate.Resolve(required, saved, req.Provided)

	switch {
	case len(req.Provided) > 0:
		span.SetAttributes(attribute.String("oneclick.branch", "provided"))
		if err := gate.ValidateAnswers(qn.Questions, req.Provided); err != nil {
			return OneClickResult{}, err
		}
		if err := s.GateAnswers.Upsert(ctx, email, gate.NonBlank(req.Provided)); err != nil {
			return OneClickResult{}, err
		}
	case len(res.Missing) > 0:
		span.SetAttributes(attribute.String("oneclick.branch", "missing"))
		lg.Info("one-click needs gate answers", slog.Int("missing", len(res.Missing)))
		return OneClickResult{
			RequiresGateAnswers: true,
			Questions:           gate.QuestionsFor(qn.Questions, res.Missing),
			MissingKeys:         res.Missing,
			PrefillAnswers:      gate.Restrict(saved, questionnaireKeys(qn)),
		}, nil
	default:
		span.SetAttributes(attribute.String("oneclick.branch", "saved"))
	}

	sess, err := s.Sessions.Start(ctx, req.JobID)
	if err != nil {
		return OneClickResult{}, err
	}
	outcome, err := s.Sessions.transition(ctx, sess, qn, res.Merged)
	if err != nil {
		return OneClickResult{}, err
	}
	if !outcome.Passed {
		lg.Info("one-click gate failed", slog.Int("failed_rules", len(outcome.FailedRules)))
		return OneClickResult{GateFailed: true, FailedRules: outcome.FailedRules, SessionToken: sess.Token}, nil
	}
	return s.apply(ctx, req, email, &sess.Token)
}

func (s OneClickService) apply(ctx domain.Context, req OneClickRequest, email string, token *string) (OneClickResult, error) {
	app, err := s.Applications.Create(ctx, domain.Application{
		JobID:          req.JobID,
		CandidateEmail: email,
		CandidateName:  req.Candidate.Name,
		ResumeRef:      req.Candidate.ResumeRef,
		SessionToken:   token,
		Channel:        domain.ChannelOneClick,
	})
	if err != nil {
		return OneClickResult{}, err
	}
	out := OneClickResult{Applied: true, ApplicationID: app.ID}
	if token != nil {
		out.SessionToken = *token
	}
	return out, nil
}

// questionnaireKeys lists every key the questionnaire asks or gates on.
func questionnaireKeys(qn domain.Questionnaire) []string {
	keys := make([]string, 0, len(qn.Questions)+len(qn.Rules))
	for _, q := range qn.Questions {
		keys = append(keys, q.Key)
	}
	for _, r := range qn.Rules {
		keys = append(keys, r.QuestionKey)
	}
	return keys
}
