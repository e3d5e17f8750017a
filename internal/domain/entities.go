// Package domain holds the screening gate entities, repository ports and the
// error taxonomy shared by use cases and adapters.
package domain

import (
	"context"
	"strings"
	"time"
)

// QuestionType enumerates the declared answer shapes of a question.
type QuestionType string

const (
	QuestionBoolean      QuestionType = "BOOLEAN"
	QuestionSingleSelect QuestionType = "SINGLE_SELECT"
	QuestionMultiSelect  QuestionType = "MULTI_SELECT"
	QuestionNumber       QuestionType = "NUMBER"
	QuestionCountry      QuestionType = "COUNTRY"
)

// Valid reports whether t is one of the supported question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionBoolean, QuestionSingleSelect, QuestionMultiSelect, QuestionNumber, QuestionCountry:
		return true
	}
	return false
}

// Question is immutable once created and owned by a Questionnaire.
// Key is unique within its questionnaire.
type Question struct {
	ID              string
	QuestionnaireID string
	Key             string
	Label           string
	Type            QuestionType
	Required        bool
	Options         []string
	OrderIndex      int
}

// GateRule is a single pass/fail condition over one question key.
// QuestionKey is a soft reference resolved at evaluation time; the question may be absent.
type GateRule struct {
	ID              string
	QuestionnaireID string
	QuestionKey     string
	Value           RuleValue
	OrderIndex      int
}

// Operator returns the rule's operator, derived from its decoded value.
func (r GateRule) Operator() Operator {
	if r.Value == nil {
		return ""
	}
	return r.Value.Operator()
}

// Questionnaire is the ordered set of questions and gate rules attached to a job.
type Questionnaire struct {
	ID        string
	JobID     string
	Questions []Question
	Rules     []GateRule
	CreatedAt time.Time
}

// QuestionByKey returns the question with the given key, if any.
func (q Questionnaire) QuestionByKey(key string) (Question, bool) {
	for _, qq := range q.Questions {
		if qq.Key == key {
			return qq, true
		}
	}
	return Question{}, false
}

// JobStatus is the publication status of a job posting.
type JobStatus string

const (
	JobActive JobStatus = "ACTIVE"
	JobPaused JobStatus = "PAUSED"
	JobClosed JobStatus = "CLOSED"
)

// Job is the minimal view of a job posting the gate needs.
type Job struct {
	ID        string
	Title     string
	Status    JobStatus
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// IsLive reports whether the job is active and not expired at now.
func (j Job) IsLive(now time.Time) bool {
	if j.Status != JobActive {
		return false
	}
	if j.ExpiresAt != nil && !now.Before(*j.ExpiresAt) {
		return false
	}
	return true
}

// AnswerSet maps question keys to answers whose runtime shape follows the
// question type: bool, float64, string or []any of strings (JSON-decoded).
type AnswerSet map[string]any

// Clone returns a deep copy of the answer set. List and nested map answers
// are copied so the result shares no mutable state with a.
func (a AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for k, v := range a {
		out[k] = cloneAnswer(v)
	}
	return out
}

func cloneAnswer(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, it := range t {
			out[i] = cloneAnswer(it)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, it := range t {
			out[k] = cloneAnswer(it)
		}
		return out
	case AnswerSet:
		return t.Clone()
	}
	return v
}

// CandidateGateAnswer is the most recent answer a candidate gave to a question key.
// Unique on (CandidateEmail, QuestionKey).
type CandidateGateAnswer struct {
	CandidateEmail string
	QuestionKey    string
	Value          any
	UpdatedAt      time.Time
}

// SessionStatus enumerates application session states.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionPassed     SessionStatus = "PASSED"
	SessionFailed     SessionStatus = "FAILED"
	SessionAbandoned  SessionStatus = "ABANDONED"
)

// ApplicationSession is one candidate's attempt at one job's questionnaire.
// Token is a capability: possession is the only authorization.
// Answers is frozen once the session leaves IN_PROGRESS.
type ApplicationSession struct {
	Token         string
	JobID         string
	Status        SessionStatus
	Answers       AnswerSet
	CreatedAt     time.Time
	CompletedAt   *time.Time
	ApplicationID *string
}

// Application is the terminal artifact of a successful session.
// Unique on (JobID, CandidateEmail) at the storage layer.
type Application struct {
	ID             string
	JobID          string
	CandidateEmail string
	CandidateName  string
	ResumeRef      string
	SessionToken   *string
	Channel        string
	CreatedAt      time.Time
}

// Application channels.
const (
	ChannelQuestionnaire = "questionnaire"
	ChannelOneClick      = "one_click"
)

// CandidateProfile is the already-authenticated identity supplied by the caller.
type CandidateProfile struct {
	Email     string
	Name      string
	ResumeRef string
}

// NormalizeEmail trims and lower-cases an email for lookups and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FailureDetail describes one failing rule for display to the candidate.
// Actual holds the answer as supplied, or NotProvided when absent.
type FailureDetail struct {
	QuestionKey string   `json:"question_key"`
	Label       string   `json:"label"`
	Operator    Operator `json:"operator"`
	Expected    any      `json:"expected"`
	Actual      any      `json:"actual"`
}

// NotProvided is reported as the actual value of an unanswered question.
const NotProvided = "not provided"

// GateResult is the outcome of evaluating a rule set against an answer set.
type GateResult struct {
	Passed      bool
	FailedRules []FailureDetail
}

// SweepResult counts sessions moved to ABANDONED by one sweep.
type SweepResult struct {
	InProgressSwept     int64 `json:"in_progress_swept"`
	OrphanedPassedSwept int64 `json:"orphaned_passed_swept"`
}

// Repositories (ports)

type JobRepository interface {
	Get(ctx Context, id string) (Job, error)
	Upsert(ctx Context, j Job) error
}

type QuestionnaireRepository interface {
	// GetCurrentByJob returns the job's current questionnaire; a job with no
	// questionnaire yields an empty one rather than ErrNotFound.
	GetCurrentByJob(ctx Context, jobID string) (Questionnaire, error)
	Save(ctx Context, q Questionnaire) (string, error)
}

type SessionRepository interface {
	Create(ctx Context, s ApplicationSession) error
	Get(ctx Context, token string) (ApplicationSession, error)
	// CompleteEvaluation freezes answers and sets a terminal status only if the
	// session is still IN_PROGRESS. It reports whether this call won the transition.
	CompleteEvaluation(ctx Context, token string, answers AnswerSet, status SessionStatus, completedAt time.Time) (bool, error)
	// SweepAbandoned applies both abandonment rules as set-based conditional updates.
	SweepAbandoned(ctx Context, inProgressBefore, passedBefore time.Time) (SweepResult, error)
}

type ApplicationRepository interface {
	FindByJobAndCandidate(ctx Context, jobID, candidateEmail string) (Application, error)
	// CreateAndLink inserts the application and, when app.SessionToken is set,
	// links it to that PASSED session within one transaction.
	CreateAndLink(ctx Context, app Application) (Application, error)
}

type GateAnswerRepository interface {
	ListByCandidate(ctx Context, candidateEmail string) (AnswerSet, error)
	Upsert(ctx Context, candidateEmail string, answers AnswerSet) error
}

// EventPublisher emits integration events after state changes commit.
type EventPublisher interface {
	PublishApplicationSubmitted(ctx Context, ev ApplicationSubmitted) error
	PublishSessionEvaluated(ctx Context, ev SessionEvaluated) error
}

// ApplicationSubmitted is published once an application row is committed.
type ApplicationSubmitted struct {
	ApplicationID  string    `json:"application_id"`
	JobID          string    `json:"job_id"`
	CandidateEmail string    `json:"candidate_email"`
	Channel        string    `json:"channel"`
	SessionToken   string    `json:"session_token,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// SessionEvaluated is published after the IN_PROGRESS transition is won.
type SessionEvaluated struct {
	JobID       string        `json:"job_id"`
	Status      SessionStatus `json:"status"`
	FailedRules int           `json:"failed_rules"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

// Clock abstracts time for the state machine and sweeper.
type Clock func() time.Time

// Now returns the current UTC time, or the wrapped clock's time.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}

// Context is an alias so ports read naturally without importing context everywhere.
type Context = context.Context
