// Package leads manages the lead records that the succession engine
// operates on, including intake, lifecycle status and activity recording.
package leads

import (
	"leaddesk_backend/internal/events"
	apphttp "leaddesk_backend/internal/http"
	"leaddesk_backend/internal/leads/handler"
	"leaddesk_backend/internal/leads/repository"
	"leaddesk_backend/internal/leads/service"
	"leaddesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, activity service.ActivityWriter, agents service.AgentChecker, eventBus events.Bus, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, activity, agents, eventBus)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "leads"
}

func (m *Module) RegisterRoutes(r *apphttp.RouterContext) {
	m.handler.RegisterRoutes(r.Protected.Group("/leads"))
}

// Service exposes the lead service for other modules.
func (m *Module) Service() *service.Service {
	return m.service
}
