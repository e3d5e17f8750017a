package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/screening-gate/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/screening-gate/internal/domain"
)

func TestJobRepo_Get(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	exp := created.Add(72 * time.Hour)

	pool := &poolStub{rows: []rowStub{{values: []any{"job-1", "Backend Engineer", "ACTIVE", &exp, created}}}}
	job, err := postgres.NewJobRepo(pool).Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, domain.JobActive, job.Status)
	require.NotNil(t, job.ExpiresAt)
	assert.True(t, job.ExpiresAt.Equal(exp))

	pool = &poolStub{rows: []rowStub{{err: pgx.ErrNoRows}}}
	_, err = postgres.NewJobRepo(pool).Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "op=job.get")

	pool = &poolStub{rows: []rowStub{{err: assert.AnError}}}
	_, err = postgres.NewJobRepo(pool).Get(ctx, "job-1")
	require.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestJobRepo_Upsert(t *testing.T) {
	ctx := context.Background()
	pool := &poolStub{}
	require.NoError(t, postgres.NewJobRepo(pool).Upsert(ctx, domain.Job{Title: "QA"}))
	require.Len(t, pool.calls, 1)
	assert.Contains(t, pool.calls[0].sql, "ON CONFLICT (id) DO UPDATE")
	assert.NotEmpty(t, pool.calls[0].args[0], "id generated")
	assert.Equal(t, domain.JobActive, pool.calls[0].args[2])

	pool = &poolStub{execScript: execScript{results: []execResult{{err: assert.AnError}}}}
	err := postgres.NewJobRepo(pool).Upsert(ctx, domain.Job{ID: "j"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=job.upsert")
}
