package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountAPI registers the /v1 routes. mutating middlewares (typically a
// per-IP limiter) wrap every POST route.
func (s *Server) MountAPI(r chi.Router, mutating ...func(http.Handler) http.Handler) {
	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/jobs/{jobID}/questionnaire", s.QuestionnaireHandler())
		v1.Get("/sessions/{token}", s.GetSessionHandler())

		v1.Group(func(w chi.Router) {
			w.Use(mutating...)
			w.Post("/jobs/{jobID}/sessions", s.StartSessionHandler())
			w.With(CandidateRateLimit(s.Limiter, ScopeEvaluate, SessionTokenParam)).
				Post("/sessions/{token}/evaluate", s.EvaluateHandler())
			w.Post("/sessions/{token}/submit", s.SubmitHandler())
			w.With(CandidateRateLimit(s.Limiter, ScopeOneClick, CandidateEmail)).
				Post("/jobs/{jobID}/one-click-apply", s.OneClickApplyHandler())
		})

		v1.Group(func(a chi.Router) {
			a.Use(AdminGuard(s.Cfg.AdminUsername, s.Cfg.AdminPasswordHash))
			a.Post("/admin/sweep-abandoned", s.SweepHandler())
		})
	})
}
