//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fairyhunter13/screening-gate/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/screening-gate/internal/domain"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "app"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(90 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })
	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return "postgres://postgres:postgres@" + host + ":" + port.Port() + "/app?sslmode=disable"
}

func TestPostgres_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))
	// second run is a no-op
	require.NoError(t, postgres.Migrate(ctx, pool))

	jobs := postgres.NewJobRepo(pool)
	sessions := postgres.NewSessionRepo(pool)
	apps := postgres.NewApplicationRepo(pool)
	questionnaires := postgres.NewQuestionnaireRepo(pool)
	answers := postgres.NewGateAnswerRepo(pool)

	require.NoError(t, jobs.Upsert(ctx, domain.Job{ID: "job-1", Title: "Go Engineer", Status: domain.JobActive}))
	_, err = questionnaires.Save(ctx, domain.Questionnaire{
		JobID:     "job-1",
		Questions: []domain.Question{{Key: "years", Label: "Years", Type: domain.QuestionNumber, Required: true}},
		Rules:     []domain.GateRule{{QuestionKey: "years", Value: domain.GteValue{Min: 3}}},
	})
	require.NoError(t, err)
	qn, err := questionnaires.GetCurrentByJob(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, qn.Rules, 1)
	assert.Equal(t, domain.GteValue{Min: 3}, qn.Rules[0].Value)

	now := time.Now().UTC()
	require.NoError(t, sessions.Create(ctx, domain.ApplicationSession{Token: "tok-1", JobID: "job-1", Status: domain.SessionInProgress, CreatedAt: now}))

	// concurrent transitions: exactly one wins
	var wg sync.WaitGroup
	wins := make(chan bool, 2)
	for _, st := range []domain.SessionStatus{domain.SessionPassed, domain.SessionFailed} {
		wg.Add(1)
		go func(st domain.SessionStatus) {
			defer wg.Done()
			won, err := sessions.CompleteEvaluation(ctx, "tok-1", domain.AnswerSet{"years": 5}, st, now)
			assert.NoError(t, err)
			wins <- won
		}(st)
	}
	wg.Wait()
	close(wins)
	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	assert.Equal(t, 1, won)

	s, err := sessions.Get(ctx, "tok-1")
	require.NoError(t, err)
	if s.Status == domain.SessionPassed {
		token := "tok-1"
		_, err = apps.CreateAndLink(ctx, domain.Application{ID: "app-1", JobID: "job-1", CandidateEmail: "ada@example.com", ResumeRef: "cv", SessionToken: &token, Channel: domain.ChannelQuestionnaire, CreatedAt: now})
		require.NoError(t, err)
	}
	_, err = apps.CreateAndLink(ctx, domain.Application{ID: "app-2", JobID: "job-1", CandidateEmail: "ada@example.com", ResumeRef: "cv", Channel: domain.ChannelOneClick, CreatedAt: now})
	if s.Status == domain.SessionPassed {
		require.ErrorIs(t, err, domain.ErrDuplicateApplication)
	} else {
		require.NoError(t, err)
	}

	require.NoError(t, answers.Upsert(ctx, "ada@example.com", domain.AnswerSet{"years": 5}))
	require.NoError(t, answers.Upsert(ctx, "ada@example.com", domain.AnswerSet{"years": 6}))
	saved, err := answers.ListByCandidate(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, float64(6), saved["years"])

	require.NoError(t, sessions.Create(ctx, domain.ApplicationSession{Token: "old", JobID: "job-1", Status: domain.SessionInProgress, CreatedAt: now.Add(-25 * time.Hour)}))
	res, err := sessions.SweepAbandoned(ctx, now.Add(-24*time.Hour), now.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.InProgressSwept)
	res, err = sessions.SweepAbandoned(ctx, now.Add(-24*time.Hour), now.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.SweepResult{}, res)
}
