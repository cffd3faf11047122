// Package directory provides the agent hierarchy bounded context module.
package directory

import (
	"leaddesk_backend/internal/directory/handler"
	"leaddesk_backend/internal/directory/repository"
	"leaddesk_backend/internal/directory/service"
	apphttp "leaddesk_backend/internal/http"
	"leaddesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the directory bounded context implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the directory module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "directory"
}

// Service returns the directory service for cross-module use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the directory repository for adapter wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts directory routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/agents"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
