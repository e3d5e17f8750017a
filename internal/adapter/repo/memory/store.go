// Package memory implements the repository ports in process memory with the
// same atomicity as the postgres adapter: conditional status updates, a
// unique (job, candidate) application key and transactional session linking.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

type appKey struct{ jobID, email string }

// Store holds every table behind one mutex and is safe for concurrent use.
type Store struct {
	mu             sync.RWMutex
	jobs           map[string]domain.Job
	questionnaires map[string][]domain.Questionnaire // by job, oldest first
	sessions       map[string]domain.ApplicationSession
	apps           map[appKey]domain.Application
	answers        map[string]domain.AnswerSet
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		jobs:           make(map[string]domain.Job),
		questionnaires: make(map[string][]domain.Questionnaire),
		sessions:       make(map[string]domain.ApplicationSession),
		apps:           make(map[appKey]domain.Application),
		answers:        make(map[string]domain.AnswerSet),
	}
}

func (s *Store) Jobs() *JobRepo                     { return &JobRepo{s} }
func (s *Store) Questionnaires() *QuestionnaireRepo { return &QuestionnaireRepo{s} }
func (s *Store) Sessions() *SessionRepo             { return &SessionRepo{s} }
func (s *Store) Applications() *ApplicationRepo     { return &ApplicationRepo{s} }
func (s *Store) GateAnswers() *GateAnswerRepo       { return &GateAnswerRepo{s} }

// JobRepo implements domain.JobRepository.
type JobRepo struct{ s *Store }

// Get returns the job or ErrNotFound.
func (r *JobRepo) Get(ctx context.Context, id string) (domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return domain.Job{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
	}
	return j, nil
}

// Upsert stores the job, keeping the original creation time.
func (r *JobRepo) Upsert(ctx context.Context, j domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = domain.JobActive
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if prev, ok := r.s.jobs[j.ID]; ok {
		j.CreatedAt = prev.CreatedAt
	} else if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	r.s.jobs[j.ID] = j
	return nil
}

// QuestionnaireRepo implements domain.QuestionnaireRepository.
type QuestionnaireRepo struct{ s *Store }

// GetCurrentByJob returns the latest saved questionnaire or an empty one.
func (r *QuestionnaireRepo) GetCurrentByJob(ctx context.Context, jobID string) (domain.Questionnaire, error) {
	if err := ctx.Err(); err != nil {
		return domain.Questionnaire{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	versions := r.s.questionnaires[jobID]
	if len(versions) == 0 {
		return domain.Questionnaire{JobID: jobID}, nil
	}
	return copyQuestionnaire(versions[len(versions)-1]), nil
}

// Save appends a new questionnaire version for its job.
func (r *QuestionnaireRepo) Save(ctx context.Context, qn domain.Questionnaire) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	seen := make(map[string]bool, len(qn.Questions))
	for _, q := range qn.Questions {
		if seen[q.Key] {
			return "", fmt.Errorf("op=questionnaire.save: duplicate question key %q: %w", q.Key, domain.ErrInvalidArgument)
		}
		seen[q.Key] = true
	}
	qn = copyQuestionnaire(qn)
	if qn.ID == "" {
		qn.ID = uuid.New().String()
	}
	if qn.CreatedAt.IsZero() {
		qn.CreatedAt = time.Now().UTC()
	}
	for i := range qn.Questions {
		qn.Questions[i].QuestionnaireID = qn.ID
		if qn.Questions[i].ID == "" {
			qn.Questions[i].ID = uuid.New().String()
		}
	}
	for i := range qn.Rules {
		qn.Rules[i].QuestionnaireID = qn.ID
		if qn.Rules[i].ID == "" {
			qn.Rules[i].ID = uuid.New().String()
		}
	}
	sort.SliceStable(qn.Questions, func(i, j int) bool { return qn.Questions[i].OrderIndex < qn.Questions[j].OrderIndex })
	sort.SliceStable(qn.Rules, func(i, j int) bool { return qn.Rules[i].OrderIndex < qn.Rules[j].OrderIndex })

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.questionnaires[qn.JobID] = append(r.s.questionnaires[qn.JobID], qn)
	return qn.ID, nil
}

func copyQuestionnaire(qn domain.Questionnaire) domain.Questionnaire {
	out := qn
	out.Questions = make([]domain.Question, len(qn.Questions))
	for i, q := range qn.Questions {
		q.Options = append([]string(nil), q.Options...)
		out.Questions[i] = q
	}
	out.Rules = append([]domain.GateRule{}, qn.Rules...)
	return out
}

// SessionRepo implements domain.SessionRepository.
type SessionRepo struct{ s *Store }

// Create stores a new session; tokens must be unique.
func (r *SessionRepo) Create(ctx context.Context, sess domain.ApplicationSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[sess.Token]; ok {
		return fmt.Errorf("op=session.create: token already exists")
	}
	sess.Answers = sess.Answers.Clone()
	r.s.sessions[sess.Token] = sess
	return nil
}

// Get returns the session or ErrNotFound.
func (r *SessionRepo) Get(ctx context.Context, token string) (domain.ApplicationSession, error) {
	if err := ctx.Err(); err != nil {
		return domain.ApplicationSession{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[token]
	if !ok {
		return domain.ApplicationSession{}, fmt.Errorf("op=session.get: %w", domain.ErrNotFound)
	}
	sess.Answers = sess.Answers.Clone()
	return sess, nil
}

// CompleteEvaluation applies the transition only while the session is IN_PROGRESS.
func (r *SessionRepo) CompleteEvaluation(ctx context.Context, token string, answers domain.AnswerSet, status domain.SessionStatus, completedAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[token]
	if !ok || sess.Status != domain.SessionInProgress {
		return false, nil
	}
	sess.Status = status
	sess.Answers = answers.Clone()
	sess.CompletedAt = &completedAt
	r.s.sessions[token] = sess
	return true, nil
}

// SweepAbandoned applies both abandonment rules under one lock.
func (r *SessionRepo) SweepAbandoned(ctx context.Context, inProgressBefore, passedBefore time.Time) (domain.SweepResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.SweepResult{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var res domain.SweepResult
	for token, sess := range r.s.sessions {
		switch {
		case sess.Status == domain.SessionInProgress && sess.CreatedAt.Before(inProgressBefore):
			res.InProgressSwept++
		case sess.Status == domain.SessionPassed && sess.ApplicationID == nil && sess.CreatedAt.Before(passedBefore):
			res.OrphanedPassedSwept++
		default:
			continue
		}
		sess.Status = domain.SessionAbandoned
		r.s.sessions[token] = sess
	}
	return res, nil
}

// ApplicationRepo implements domain.ApplicationRepository.
type ApplicationRepo struct{ s *Store }

// FindByJobAndCandidate returns the application or ErrNotFound.
func (r *ApplicationRepo) FindByJobAndCandidate(ctx context.Context, jobID, candidateEmail string) (domain.Application, error) {
	if err := ctx.Err(); err != nil {
		return domain.Application{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.apps[appKey{jobID, candidateEmail}]
	if !ok {
		return domain.Application{}, fmt.Errorf("op=application.find: %w", domain.ErrNotFound)
	}
	return a, nil
}

// CreateAndLink inserts the application and links its session atomically.
func (r *ApplicationRepo) CreateAndLink(ctx context.Context, app domain.Application) (domain.Application, error) {
	if err := ctx.Err(); err != nil {
		return domain.Application{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := appKey{app.JobID, app.CandidateEmail}
	if _, ok := r.s.apps[key]; ok {
		return domain.Application{}, fmt.Errorf("op=application.create: %w", domain.ErrDuplicateApplication)
	}
	if app.SessionToken != nil {
		sess, ok := r.s.sessions[*app.SessionToken]
		switch {
		case !ok:
			return domain.Application{}, fmt.Errorf("op=application.link_session: %w", domain.ErrNotFound)
		case sess.Status == domain.SessionPassed && sess.ApplicationID != nil:
			return domain.Application{}, fmt.Errorf("op=application.link_session: session already linked: %w", domain.ErrDuplicateApplication)
		case sess.Status != domain.SessionPassed:
			return domain.Application{}, &domain.StateError{Op: "application.link_session", Status: sess.Status}
		}
		id := app.ID
		sess.ApplicationID = &id
		r.s.sessions[*app.SessionToken] = sess
	}
	r.s.apps[key] = app
	return app, nil
}

// GateAnswerRepo implements domain.GateAnswerRepository.
type GateAnswerRepo struct{ s *Store }

// ListByCandidate returns a copy of the candidate's saved answers.
func (r *GateAnswerRepo) ListByCandidate(ctx context.Context, email string) (domain.AnswerSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.answers[email].Clone(), nil
}

// Upsert overwrites the given keys and keeps the rest.
func (r *GateAnswerRepo) Upsert(ctx context.Context, email string, answers domain.AnswerSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur := r.s.answers[email]
	if cur == nil {
		cur = domain.AnswerSet{}
	}
	for k, v := range answers.Clone() {
		cur[k] = v
	}
	r.s.answers[email] = cur
	return nil
}

// compile-time port checks
var (
	_ domain.JobRepository           = (*JobRepo)(nil)
	_ domain.QuestionnaireRepository = (*QuestionnaireRepo)(nil)
	_ domain.SessionRepository       = (*SessionRepo)(nil)
	_ domain.ApplicationRepository   = (*ApplicationRepo)(nil)
	_ domain.GateAnswerRepository    = (*GateAnswerRepo)(nil)
)
