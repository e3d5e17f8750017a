package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

// QuestionnaireRepo loads the current questionnaire of a job together with
// its questions and decoded gate rules.
type QuestionnaireRepo struct{ Pool PgxPool }

// NewQuestionnaireRepo constructs a QuestionnaireRepo with the given pool.
func NewQuestionnaireRepo(p PgxPool) *QuestionnaireRepo { return &QuestionnaireRepo{Pool: p} }

// GetCurrentByJob returns the most recently created questionnaire for the job.
// A job without one yields an empty questionnaire.
func (r *QuestionnaireRepo) GetCurrentByJob(ctx domain.Context, jobID string) (domain.Questionnaire, error) {
	ctx, span := otel.Tracer("repo.questionnaires").Start(ctx, "questionnaires.GetCurrentByJob")
	defer span.End()
	dbAttrs(span, "SELECT", "questionnaires")
	span.SetAttributes(attribute.String("job.id", jobID))

	qn := domain.Questionnaire{JobID: jobID}
	err := r.Pool.QueryRow(ctx,
		`SELECT id, created_at FROM questionnaires WHERE job_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		jobID,
	).Scan(&qn.ID, &qn.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return qn, nil
	}
	if err != nil {
		return domain.Questionnaire{}, fmt.Errorf("op=questionnaire.get_current: %w", err)
	}
	if qn.Questions, err = r.listQuestions(ctx, qn.ID); err != nil {
		return domain.Questionnaire{}, err
	}
	if qn.Rules, err = r.listRules(ctx, qn.ID); err != nil {
		return domain.Questionnaire{}, err
	}
	span.SetAttributes(attribute.Int("questionnaire.questions", len(qn.Questions)), attribute.Int("questionnaire.rules", len(qn.Rules)))
	return qn, nil
}

func (r *QuestionnaireRepo) listQuestions(ctx domain.Context, questionnaireID string) ([]domain.Question, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT id, key, label, type, required, options, order_index FROM questions WHERE questionnaire_id=$1 ORDER BY order_index, key`,
		questionnaireID,
	)
	if err != nil {
		return nil, fmt.Errorf("op=questionnaire.list_questions: %w", err)
	}
	defer rows.Close()
	out := []domain.Question{}
	for rows.Next() {
		q := domain.Question{QuestionnaireID: questionnaireID}
		var opts []byte
		if err := rows.Scan(&q.ID, &q.Key, &q.Label, &q.Type, &q.Required, &opts, &q.OrderIndex); err != nil {
			return nil, fmt.Errorf("op=questionnaire.list_questions: %w", err)
		}
		if len(opts) > 0 {
			if err := json.Unmarshal(opts, &q.Options); err != nil {
				return nil, fmt.Errorf("op=questionnaire.list_questions: question %s options: %w", q.Key, err)
			}
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=questionnaire.list_questions: %w", err)
	}
	return out, nil
}

func (r *QuestionnaireRepo) listRules(ctx domain.Context, questionnaireID string) ([]domain.GateRule, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT id, question_key, operator, value, order_index FROM gate_rules WHERE questionnaire_id=$1 ORDER BY order_index, id`,
		questionnaireID,
	)
	if err != nil {
		return nil, fmt.Errorf("op=questionnaire.list_rules: %w", err)
	}
	defer rows.Close()
	out := []domain.GateRule{}
	for rows.Next() {
		g := domain.GateRule{QuestionnaireID: questionnaireID}
		var op string
		var raw []byte
		if err := rows.Scan(&g.ID, &g.QuestionKey, &op, &raw, &g.OrderIndex); err != nil {
			return nil, fmt.Errorf("op=questionnaire.list_rules: %w", err)
		}
		parsed, err := domain.ParseOperator(op)
		if err != nil {
			return nil, fmt.Errorf("op=questionnaire.list_rules: rule %s: %w", g.ID, err)
		}
		if g.Value, err = domain.DecodeRuleValue(parsed, raw); err != nil {
			return nil, fmt.Errorf("op=questionnaire.list_rules: rule %s: %w", g.ID, err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=questionnaire.list_rules: %w", err)
	}
	return out, nil
}

// Save stores a new questionnaire version with its questions and rules in
// one transaction and returns its id. Older versions are kept.
func (r *QuestionnaireRepo) Save(ctx domain.Context, qn domain.Questionnaire) (string, error) {
	ctx, span := otel.Tracer("repo.questionnaires").Start(ctx, "questionnaires.Save")
	defer span.End()
	dbAttrs(span, "INSERT", "questionnaires")

	id := qn.ID
	if id == "" {
		id = uuid.New().String()
	}
	created := qn.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	err := withTx(ctx, r.Pool, "questionnaire.save", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO questionnaires (id, job_id, created_at) VALUES ($1,$2,$3)`, id, qn.JobID, created); err != nil {
			return fmt.Errorf("op=questionnaire.save: %w", err)
		}
		for _, q := range qn.Questions {
			qid := q.ID
			if qid == "" {
				qid = uuid.New().String()
			}
			opts := q.Options
			if opts == nil {
				opts = []string{}
			}
			optsJSON, err := json.Marshal(opts)
			if err != nil {
				return fmt.Errorf("op=questionnaire.save: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO questions (id, questionnaire_id, key, label, type, required, options, order_index) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				qid, id, q.Key, q.Label, q.Type, q.Required, optsJSON, q.OrderIndex,
			); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("op=questionnaire.save: duplicate question key %q: %w", q.Key, domain.ErrInvalidArgument)
				}
				return fmt.Errorf("op=questionnaire.save: %w", err)
			}
		}
		for _, g := range qn.Rules {
			gid := g.ID
			if gid == "" {
				gid = uuid.New().String()
			}
			raw, err := domain.EncodeRuleValue(g.Value)
			if err != nil {
				return fmt.Errorf("op=questionnaire.save: rule %s: %w", g.QuestionKey, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO gate_rules (id, questionnaire_id, question_key, operator, value, order_index) VALUES ($1,$2,$3,$4,$5,$6)`,
				gid, id, g.QuestionKey, string(g.Operator()), raw, g.OrderIndex,
			); err != nil {
				return fmt.Errorf("op=questionnaire.save: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}
