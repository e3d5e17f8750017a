package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/screening-gate/internal/adapter/repo/memory"
	"github.com/fairyhunter13/screening-gate/internal/domain"
	"github.com/fairyhunter13/screening-gate/internal/usecase"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu        sync.Mutex
	submitted []domain.ApplicationSubmitted
	evaluated []domain.SessionEvaluated
	err       error
}

func (p *recordingPublisher) PublishApplicationSubmitted(_ context.Context, ev domain.ApplicationSubmitted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted = append(p.submitted, ev)
	return p.err
}

func (p *recordingPublisher) PublishSessionEvaluated(_ context.Context, ev domain.SessionEvaluated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evaluated = append(p.evaluated, ev)
	return p.err
}

type harness struct {
	store    *memory.Store
	events   *recordingPublisher
	apps     usecase.ApplicationService
	sessions usecase.SessionService
	oneClick usecase.OneClickService
	sweep    usecase.SweepService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := memory.NewStore()
	ev := &recordingPublisher{}
	clock := domain.Clock(func() time.Time { return fixedNow })

	apps := usecase.NewApplicationService(st.Applications(), ev)
	apps.Clock = clock
	sessions := usecase.NewSessionService(st.Jobs(), st.Questionnaires(), st.Sessions(), apps, ev)
	sessions.Clock = clock
	sweep := usecase.NewSweepService(st.Sessions(), 0, 0)
	sweep.Clock = clock
	return &harness{
		store:    st,
		events:   ev,
		apps:     apps,
		sessions: sessions,
		oneClick: usecase.NewOneClickService(st.Jobs(), st.Questionnaires(), st.GateAnswers(), sessions, apps),
		sweep:    sweep,
	}
}

// screeningQuestionnaire gates on work authorization, at least three years
// of experience and Go among the candidate's languages.
func screeningQuestionnaire(jobID string) domain.Questionnaire {
	return domain.Questionnaire{
		JobID: jobID,
		Questions: []domain.Question{
			{Key: "authorized", Label: "Authorized to work?", Type: domain.QuestionBoolean, Required: true, OrderIndex: 0},
			{Key: "years", Label: "Years of experience", Type: domain.QuestionNumber, Required: true, OrderIndex: 1},
			{Key: "langs", Label: "Languages", Type: domain.QuestionMultiSelect, Options: []string{"go", "rust", "python"}, OrderIndex: 2},
			{Key: "nickname", Label: "Nickname", Type: domain.QuestionCountry, OrderIndex: 3},
		},
		Rules: []domain.GateRule{
			{QuestionKey: "authorized", Value: domain.EqValue{Want: true}, OrderIndex: 0},
			{QuestionKey: "years", Value: domain.GteValue{Min: 3}, OrderIndex: 1},
			{QuestionKey: "langs", Value: domain.IncludesAnyValue{Set: []string{"go"}}, OrderIndex: 2},
		},
	}
}

func (h *harness) seedJob(t *testing.T, job domain.Job, qn *domain.Questionnaire) {
	t.Helper()
	ctx := context.Background()
	if job.Status == "" {
		job.Status = domain.JobActive
	}
	require.NoError(t, h.store.Jobs().Upsert(ctx, job))
	if qn != nil {
		_, err := h.store.Questionnaires().Save(ctx, *qn)
		require.NoError(t, err)
	}
}

func passingAnswers() domain.AnswerSet {
	return domain.AnswerSet{"authorized": true, "years": 5.0, "langs": []any{"go", "rust"}}
}

func profile(email string) domain.CandidateProfile {
	return domain.CandidateProfile{Email: email, Name: "Ada Lovelace", ResumeRef: "s3://resumes/ada.pdf"}
}
