package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/screening-gate/internal/adapter/observability"
	"github.com/fairyhunter13/screening-gate/internal/domain"
	"github.com/fairyhunter13/screening-gate/pkg/textx"
)

const maxCandidateNameLen = 200

// ApplicationService creates applications with duplicate prevention.
// The pre-check avoids a write in the common case; the storage unique
// constraint on (job_id, candidate_email) decides races.
type ApplicationService struct {
	Apps   domain.ApplicationRepository
	Events domain.EventPublisher
	Clock  domain.Clock
}

// NewApplicationService constructs an ApplicationService.
func NewApplicationService(apps domain.ApplicationRepository, ev domain.EventPublisher) ApplicationService {
	return ApplicationService{Apps: apps, Events: ev}
}

// CheckNotApplied returns ErrDuplicateApplication when the candidate already
// applied to the job.
func (s ApplicationService) CheckNotApplied(ctx domain.Context, jobID, email string) error {
	existing, err := s.Apps.FindByJobAndCandidate(ctx, jobID, domain.NormalizeEmail(email))
	switch {
	case err == nil && existing.ID != "":
		return fmt.Errorf("%w: candidate already applied to job %s", domain.ErrDuplicateApplication, jobID)
	case err == nil, errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

// Create validates, pre-checks and persists an application, linking its
// session in the same storage transaction when SessionToken is set.
func (s ApplicationService) Create(ctx domain.Context, app domain.Application) (domain.Application, error) {
	ctx, span := otel.Tracer("usecase.application").Start(ctx, "ApplicationService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", app.JobID), attribute.String("application.channel", app.Channel))

	app.CandidateEmail = domain.NormalizeEmail(app.CandidateEmail)
	app.CandidateName = textx.Truncate(textx.SingleLine(app.CandidateName), maxCandidateNameLen)
	app.ResumeRef = strings.TrimSpace(app.ResumeRef)
	ve := &domain.ValidationError{}
	if app.JobID == "" {
		ve.Add("job_id", "REQUIRED", "job id is required")
	}
	if app.CandidateEmail == "" {
		ve.Add("candidate_email", "REQUIRED", "authenticated candidate email is required")
	}
	if app.ResumeRef == "" {
		ve.Add("resume_ref", "REQUIRED", "a resume reference is required")
	}
	if err := ve.OrNil(); err != nil {
		return domain.Application{}, err
	}

	if err := s.CheckNotApplied(ctx, app.JobID, app.CandidateEmail); err != nil {
		if errors.Is(err, domain.ErrDuplicateApplication) {
			observability.RecordDuplicateApplication(app.Channel)
		}
		return domain.Application{}, err
	}
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	app.CreatedAt = s.Clock.Now()
	created, err := s.Apps.CreateAndLink(ctx, app)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateApplication) {
			observability.RecordDuplicateApplication(app.Channel)
		}
		return domain.Application{}, err
	}
	observability.RecordApplicationCreated(created.Channel)
	lg := observability.LoggerFromContext(ctx)
	lg.Info("application created", slog.String("application_id", created.ID), slog.String("job_id", created.JobID), slog.String("channel", created.Channel))

	if s.Events != nil {
		ev := domain.ApplicationSubmitted{
			ApplicationID:  created.ID,
			JobID:          created.JobID,
			CandidateEmail: created.CandidateEmail,
			Channel:        created.Channel,
			SubmittedAt:    created.CreatedAt,
		}
		if created.SessionToken != nil {
			ev.SessionToken = *created.SessionToken
		}
		if err := s.Events.PublishApplicationSubmitted(ctx, ev); err != nil {
			lg.Warn("publish application submitted failed", slog.String("application_id", created.ID), slog.Any("error", err))
		}
	}
	return created, nil
}
