package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/screening-gate/internal/config"
	"github.com/fairyhunter13/screening-gate/internal/domain"
	"github.com/fairyhunter13/screening-gate/internal/service/ratelimiter"
	"github.com/fairyhunter13/screening-gate/internal/usecase"
)

// CandidateEmailHeader carries the candidate identity asserted by the
// upstream identity provider.
const CandidateEmailHeader = "X-Candidate-Email"

// Rate limiter scopes.
const (
	ScopeEvaluate = "evaluate"
	ScopeOneClick = "oneclick"
)

// Server aggregates handlers dependencies.
type Server struct {
	Cfg            config.Config
	Jobs           domain.JobRepository
	Questionnaires domain.QuestionnaireRepository
	Sessions       usecase.SessionService
	OneClick       usecase.OneClickService
	Sweep          usecase.SweepService
	Limiter        ratelimiter.Limiter
	DBCheck        func(ctx context.Context) error
	RedisCheck     func(ctx context.Context) error
	KafkaCheck     func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers wired. Readiness
// checks are attached by the caller.
func NewServer(cfg config.Config, jobs domain.JobRepository, qs domain.QuestionnaireRepository, sessions usecase.SessionService, oneClick usecase.OneClickService, sweep usecase.SweepService, limiter ratelimiter.Limiter) *Server {
	return &Server{
		Cfg:            cfg,
		Jobs:           jobs,
		Questionnaires: qs,
		Sessions:       sessions,
		OneClick:       oneClick,
		Sweep:          sweep,
		Limiter:        limiter,
	}
}

func (s *Server) maxBody() int64 {
	if s.Cfg.MaxBodyBytes > 0 {
		return s.Cfg.MaxBodyBytes
	}
	return 1 << 20
}

type questionView struct {
	Key      string              `json:"key"`
	Label    string              `json:"label"`
	Type     domain.QuestionType `json:"type"`
	Required bool                `json:"required"`
	Options  []string            `json:"options,omitempty"`
}

func toQuestionViews(qs []domain.Question) []questionView {
	out := make([]questionView, 0, len(qs))
	for _, q := range qs {
		out = append(out, questionView{Key: q.Key, Label: q.Label, Type: q.Type, Required: q.Required, Options: q.Options})
	}
	return out
}

type sessionView struct {
	SessionToken  string               `json:"session_token"`
	JobID         string               `json:"job_id"`
	Status        domain.SessionStatus `json:"status"`
	Answers       domain.AnswerSet     `json:"answers,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	CompletedAt   *time.Time           `json:"completed_at,omitempty"`
	ApplicationID *string              `json:"application_id,omitempty"`
}

// QuestionnaireHandler returns the questions of the job's current questionnaire.
// Rules stay server-side.
func (s *Server) QuestionnaireHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		if err := ValidateJobID(jobID); err != nil {
			writeError(w, r, err, nil)
			return
		}
		job, err := s.Jobs.Get(r.Context(), jobID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		qn, err := s.Questionnaires.GetCurrentByJob(r.Context(), jobID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":           job.ID,
			"title":            job.Title,
			"job_status":       job.Status,
			"questionnaire_id": qn.ID,
			"questions":        toQuestionViews(qn.Questions),
			"gated":            len(qn.Rules) > 0,
		})
	}
}

// StartSessionHandler opens an IN_PROGRESS session for a live job.
func (s *Server) StartSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		if err := ValidateJobID(jobID); err != nil {
			writeError(w, r, err, nil)
			return
		}
		sess, err := s.Sessions.Start(r.Context(), jobID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"session_token": sess.Token,
			"job_id":        sess.JobID,
			"status":        sess.Status,
		})
	}
}

// GetSessionHandler returns session status and its linked application.
func (s *Server) GetSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := SessionTokenParam(r)
		if err := ValidateSessionToken(token); err != nil {
			writeError(w, r, err, nil)
			return
		}
		sess, err := s.Sessions.Get(r.Context(), token)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionView{
			SessionToken:  sess.Token,
			JobID:         sess.JobID,
			Status:        sess.Status,
			Answers:       sess.Answers,
			CreatedAt:     sess.CreatedAt,
			CompletedAt:   sess.CompletedAt,
			ApplicationID: sess.ApplicationID,
		})
	}
}

// EvaluateHandler runs the gate once. A failed gate is a 200 with passed=false.
func (s *Server) EvaluateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := SessionTokenParam(r)
		if err := ValidateSessionToken(token); err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req evaluateRequest
		if err := decodeJSON(w, r, s.maxBody(), &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		out, err := s.Sessions.Evaluate(r.Context(), token, req.Answers)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if out.FailedRules == nil {
			out.FailedRules = []domain.FailureDetail{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// SubmitHandler turns a PASSED session into an application for the
// candidate named in CandidateEmailHeader.
func (s *Server) SubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := SessionTokenParam(r)
		if err := ValidateSessionToken(token); err != nil {
			writeError(w, r, err, nil)
			return
		}
		email := CandidateEmail(r)
		if err := ValidateCandidateEmail(email); err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req submitRequest
		if err := decodeJSON(w, r, s.maxBody(), &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		app, err := s.Sessions.Submit(r.Context(), token, domain.CandidateProfile{
			Email:     email,
			Name:      req.CandidateName,
			ResumeRef: req.ResumeRef,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"success":        true,
			"application_id": app.ID,
		})
	}
}

// OneClickApplyHandler applies with saved gate answers, or reports which
// answers are still needed, or why the gate failed.
func (s *Server) OneClickApplyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		if err := ValidateJobID(jobID); err != nil {
			writeError(w, r, err, nil)
			return
		}
		email := CandidateEmail(r)
		if err := ValidateCandidateEmail(email); err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req oneClickRequest
		if err := decodeJSON(w, r, s.maxBody(), &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		res, err := s.OneClick.Apply(r.Context(), usecase.OneClickRequest{
			JobID:     jobID,
			Candidate: domain.CandidateProfile{Email: email, Name: req.CandidateName, ResumeRef: req.ResumeRef},
			Provided:  req.Answers,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		switch {
		case res.Applied:
			writeJSON(w, http.StatusCreated, map[string]any{
				"success":        true,
				"application_id": res.ApplicationID,
			})
		case res.RequiresGateAnswers:
			prefill := res.PrefillAnswers
			if prefill == nil {
				prefill = domain.AnswerSet{}
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"success":               false,
				"requires_gate_answers": true,
				"questions":             toQuestionViews(res.Questions),
				"missing_keys":          res.MissingKeys,
				"prefill_answers":       prefill,
			})
		default:
			writeJSON(w, http.StatusOK, map[string]any{
				"success":       false,
				"error":         "did not meet requirements",
				"failed_rules":  res.FailedRules,
				"session_token": res.SessionToken,
			})
		}
	}
}

// SweepHandler abandons stale sessions on demand.
func (s *Server) SweepHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.Sweep.Sweep(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// ReadyzHandler reports each configured dependency; any failure yields 503.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		probes := []struct {
			name string
			fn   func(context.Context) error
		}{
			{"db", s.DBCheck},
			{"redis", s.RedisCheck},
			{"kafka", s.KafkaCheck},
		}
		checks := make([]check, 0, len(probes))
		ok := true
		for _, p := range probes {
			if p.fn == nil {
				continue
			}
			if err := p.fn(ctx); err != nil {
				ok = false
				checks = append(checks, check{Name: p.name, OK: false, Details: err.Error()})
				continue
			}
			checks = append(checks, check{Name: p.name, OK: true})
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
