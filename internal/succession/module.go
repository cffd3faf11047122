// Package succession provides the lead ownership succession bounded context:
// staleness detection, the transactional reassignment executor, the periodic
// sweep, and manual supervisor overrides.
package succession

import (
	"leaddesk_backend/internal/events"
	apphttp "leaddesk_backend/internal/http"
	"leaddesk_backend/internal/succession/handler"
	"leaddesk_backend/internal/succession/repository"
	"leaddesk_backend/internal/succession/service"
	"leaddesk_backend/internal/succession/sweep"
	"leaddesk_backend/platform/config"
	"leaddesk_backend/platform/logger"
	"leaddesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the succession bounded context implementing http.Module.
type Module struct {
	handler    *handler.Handler
	service    *service.Service
	sweeper    *sweep.Sweeper
	repository *repository.Repository
}

// NewModule creates and initializes the succession module. The directory is
// injected as a port so the engine never depends on the directory module's
// internals.
func NewModule(pool *pgxpool.Pool, directory service.Directory, eventBus events.Bus, val *validator.Validator, cfg config.SweepConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, directory, eventBus, log)
	sweeper := sweep.New(svc, log, cfg.GetSweepCandidateTimeout(), cfg.GetSweepConcurrency())
	h := handler.New(svc, sweeper, val)

	return &Module{
		handler:    h,
		service:    svc,
		sweeper:    sweeper,
		repository: repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "succession"
}

// Service returns the succession service for cross-module use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Sweeper returns the sweeper for scheduler wiring.
func (m *Module) Sweeper() *sweep.Sweeper {
	return m.sweeper
}

// Repository returns the succession repository for adapter wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repository
}

// RegisterRoutes mounts the succession routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterLeadRoutes(ctx.Protected.Group("/leads"))
	m.handler.RegisterEscalationRoutes(ctx.Protected.Group("/escalations"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
