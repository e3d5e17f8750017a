package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/screening-gate/internal/adapter/repo/memory"
	"github.com/fairyhunter13/screening-gate/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/screening-gate/internal/config"
	"github.com/fairyhunter13/screening-gate/internal/domain"
	"github.com/fairyhunter13/screening-gate/internal/usecase"
)

// Storage bundles the repository ports of one storage driver. Pool is nil
// for the memory driver.
type Storage struct {
	Jobs           domain.JobRepository
	Questionnaires domain.QuestionnaireRepository
	Sessions       domain.SessionRepository
	Applications   domain.ApplicationRepository
	GateAnswers    domain.GateAnswerRepository
	Pool           *pgxpool.Pool
}

// Close releases the database pool, if any.
func (s Storage) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// Pinger returns the pool as a readiness Pinger, or nil for the memory driver.
func (s Storage) Pinger() Pinger {
	if s.Pool == nil {
		return nil
	}
	return s.Pool
}

// OpenStorage connects the configured driver and, for postgres, applies
// migrations when migrate is true.
func OpenStorage(ctx context.Context, cfg config.Config, migrate bool) (Storage, error) {
	if cfg.UseMemoryStore() {
		st := memory.NewStore()
		slog.Warn("using in-memory storage; data is lost on restart")
		return Storage{
			Jobs:           st.Jobs(),
			Questionnaires: st.Questionnaires(),
			Sessions:       st.Sessions(),
			Applications:   st.Applications(),
			GateAnswers:    st.GateAnswers(),
		}, nil
	}
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return Storage{}, fmt.Errorf("db connect: %w", err)
	}
	if migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return Storage{}, fmt.Errorf("db migrate: %w", err)
		}
	}
	return Storage{
		Jobs:           postgres.NewJobRepo(pool),
		Questionnaires: postgres.NewQuestionnaireRepo(pool),
		Sessions:       postgres.NewSessionRepo(pool),
		Applications:   postgres.NewApplicationRepo(pool),
		GateAnswers:    postgres.NewGateAnswerRepo(pool),
		Pool:           pool,
	}, nil
}

// Services are the use cases the HTTP layer and the CLI drive.
type Services struct {
	Applications usecase.ApplicationService
	Sessions     usecase.SessionService
	OneClick     usecase.OneClickService
	Sweep        usecase.SweepService
}

// BuildServices wires the use cases over st, publishing to events.
func BuildServices(cfg config.Config, st Storage, events domain.EventPublisher) Services {
	apps := usecase.NewApplicationService(st.Applications, events)
	sessions := usecase.NewSessionService(st.Jobs, st.Questionnaires, st.Sessions, apps, events)
	return Services{
		Applications: apps,
		Sessions:     sessions,
		OneClick:     usecase.NewOneClickService(st.Jobs, st.Questionnaires, st.GateAnswers, sessions, apps),
		Sweep:        usecase.NewSweepService(st.Sessions, cfg.SessionAbandonAfter, cfg.PassedAbandonAfter),
	}
}
