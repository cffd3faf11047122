// Package service implements agent directory operations.
package service

import (
	"context"
	"errors"

	"leaddesk_backend/internal/directory/repository"
	"leaddesk_backend/internal/succession/domain"
	"leaddesk_backend/platform/apperr"

	"github.com/google/uuid"
)

type Service struct {
	repo *repository.Repository
}

func New(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new agent. A supervisor hop is only attachable to role
// agent, and the referenced supervisor must actually hold the supervisor
// role in the same organization.
func (s *Service) Create(ctx context.Context, params repository.CreateAgentParams) (repository.Agent, error) {
	if !params.Role.Valid() {
		return repository.Agent{}, apperr.Validation("unknown role: " + string(params.Role))
	}

	if params.SupervisorID != nil {
		if params.Role != domain.RoleAgent {
			return repository.Agent{}, apperr.Validation("only agents can have a supervisor")
		}
		supervisor, err := s.repo.GetByID(ctx, *params.SupervisorID, params.OrganizationID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return repository.Agent{}, apperr.Validation("supervisor not found")
			}
			return repository.Agent{}, err
		}
		if supervisor.Role != domain.RoleSupervisor {
			return repository.Agent{}, apperr.Validation("referenced supervisor does not hold the supervisor role")
		}
	}

	return s.repo.Create(ctx, params)
}

func (s *Service) GetByID(ctx context.Context, id, organizationID uuid.UUID) (repository.Agent, error) {
	agent, err := s.repo.GetByID(ctx, id, organizationID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Agent{}, apperr.NotFound("agent not found")
	}
	return agent, err
}

func (s *Service) List(ctx context.Context, organizationID uuid.UUID) ([]repository.Agent, error) {
	return s.repo.List(ctx, organizationID)
}
