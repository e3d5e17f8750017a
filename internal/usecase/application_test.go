package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

func TestApplicationService_Create(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedJob(t, domain.Job{ID: "job-1"}, nil)

	app, err := h.apps.Create(ctx, domain.Application{
		JobID:          "job-1",
		CandidateEmail: " Grace@Example.com",
		CandidateName:  "Grace\n  Hopper\x00",
		ResumeRef:      " s3://cv/grace.pdf ",
		Channel:        domain.ChannelOneClick,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, app.ID)
	assert.Equal(t, "grace@example.com", app.CandidateEmail)
	assert.Equal(t, "Grace Hopper", app.CandidateName)
	assert.Equal(t, "s3://cv/grace.pdf", app.ResumeRef)
	assert.Equal(t, fixedNow, app.CreatedAt)

	require.NoError(t, h.apps.CheckNotApplied(ctx, "job-1", "other@example.com"))
	require.ErrorIs(t, h.apps.CheckNotApplied(ctx, "job-1", "GRACE@example.com"), domain.ErrDuplicateApplication)

	_, err = h.apps.Create(ctx, domain.Application{JobID: "job-1", CandidateEmail: "grace@example.com", ResumeRef: "x", Channel: domain.ChannelOneClick})
	require.ErrorIs(t, err, domain.ErrDuplicateApplication)
	assert.Len(t, h.events.submitted, 1)
}

func TestApplicationService_Create_Validation(t *testing.T) {
	h := newHarness(t)
	_, err := h.apps.Create(context.Background(), domain.Application{CandidateEmail: "   "})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	fields := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"candidate_email", "job_id", "resume_ref"}, fields)
}

func TestApplicationService_PublishFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.events.err = errors.New("broker down")
	_, err := h.apps.Create(context.Background(), domain.Application{JobID: "job-1", CandidateEmail: "a@example.com", ResumeRef: "cv", Channel: domain.ChannelOneClick})
	require.NoError(t, err)
}
