package postgres

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

// GateAnswerRepo stores each candidate's reusable gate answers, one row per
// (candidate_email, question_key).
type GateAnswerRepo struct{ Pool PgxPool }

// NewGateAnswerRepo constructs a GateAnswerRepo with the given pool.
func NewGateAnswerRepo(p PgxPool) *GateAnswerRepo { return &GateAnswerRepo{Pool: p} }

// ListByCandidate returns every saved answer of the candidate keyed by question key.
func (r *GateAnswerRepo) ListByCandidate(ctx domain.Context, email string) (domain.AnswerSet, error) {
	ctx, span := otel.Tracer("repo.gate_answers").Start(ctx, "gate_answers.ListByCandidate")
	defer span.End()
	dbAttrs(span, "SELECT", "candidate_gate_answers")

	rows, err := r.Pool.Query(ctx, `SELECT question_key, value FROM candidate_gate_answers WHERE candidate_email=$1`, email)
	if err != nil {
		return nil, fmt.Errorf("op=gate_answers.list: %w", err)
	}
	defer rows.Close()
	out := domain.AnswerSet{}
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("op=gate_answers.list: %w", err)
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("op=gate_answers.list: key %s: %w", key, err)
		}
		out[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=gate_answers.list: %w", err)
	}
	span.SetAttributes(attribute.Int("gate_answers.count", len(out)))
	return out, nil
}

// Upsert writes the given answers, replacing existing values per key.
func (r *GateAnswerRepo) Upsert(ctx domain.Context, email string, answers domain.AnswerSet) error {
	ctx, span := otel.Tracer("repo.gate_answers").Start(ctx, "gate_answers.Upsert")
	defer span.End()
	dbAttrs(span, "INSERT", "candidate_gate_answers")
	if len(answers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	// stable key order keeps concurrent upserts from deadlocking
	sort.Strings(keys)
	now := time.Now().UTC()
	return withTx(ctx, r.Pool, "gate_answers.upsert", func(tx pgx.Tx) error {
		for _, k := range keys {
			raw, err := json.Marshal(answers[k])
			if err != nil {
				return fmt.Errorf("op=gate_answers.upsert: key %s: %w", k, err)
			}
			q := `INSERT INTO candidate_gate_answers (candidate_email, question_key, value, updated_at) VALUES ($1,$2,$3,$4)
ON CONFLICT (candidate_email, question_key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`
			if _, err := tx.Exec(ctx, q, email, k, raw, now); err != nil {
				return fmt.Errorf("op=gate_answers.upsert: %w", err)
			}
		}
		return nil
	})
}
