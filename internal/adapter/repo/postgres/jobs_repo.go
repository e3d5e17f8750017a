package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

// JobRepo persists and loads job postings.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

// Get loads a job by id.
func (r *JobRepo) Get(ctx domain.Context, id string) (domain.Job, error) {
	ctx, span := otel.Tracer("repo.jobs").Start(ctx, "jobs.Get")
	defer span.End()
	dbAttrs(span, "SELECT", "jobs")
	span.SetAttributes(attribute.String("job.id", id))

	q := `SELECT id, title, status, expires_at, created_at FROM jobs WHERE id=$1`
	var j domain.Job
	if err := r.Pool.QueryRow(ctx, q, id).Scan(&j.ID, &j.Title, &j.Status, &j.ExpiresAt, &j.CreatedAt); err != nil {
		return domain.Job{}, notFound("job.get", err)
	}
	return j, nil
}

// Upsert inserts a job or updates its title, status and expiry.
func (r *JobRepo) Upsert(ctx domain.Context, j domain.Job) error {
	ctx, span := otel.Tracer("repo.jobs").Start(ctx, "jobs.Upsert")
	defer span.End()
	dbAttrs(span, "INSERT", "jobs")

	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = domain.JobActive
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	q := `INSERT INTO jobs (id, title, status, expires_at, created_at) VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, status=EXCLUDED.status, expires_at=EXCLUDED.expires_at`
	if _, err := r.Pool.Exec(ctx, q, j.ID, j.Title, j.Status, j.ExpiresAt, j.CreatedAt); err != nil {
		return fmt.Errorf("op=job.upsert: %w", err)
	}
	return nil
}
