// Package adapters contains anti-corruption-layer glue between bounded
// contexts, so each module depends only on its own ports.
package adapters

import (
	"context"
	"errors"

	directoryrepo "leaddesk_backend/internal/directory/repository"
	"leaddesk_backend/internal/succession/service"

	"github.com/google/uuid"
)

// HierarchyDirectory adapts the directory repository to the succession
// engine's Directory port.
type HierarchyDirectory struct {
	repo *directoryrepo.Repository
}

func NewHierarchyDirectory(repo *directoryrepo.Repository) *HierarchyDirectory {
	return &HierarchyDirectory{repo: repo}
}

func (d *HierarchyDirectory) GetAgent(ctx context.Context, agentID, organizationID uuid.UUID) (*service.AgentInfo, error) {
	agent, err := d.repo.GetByID(ctx, agentID, organizationID)
	if err != nil {
		if errors.Is(err, directoryrepo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &service.AgentInfo{
		ID:             agent.ID,
		OrganizationID: agent.OrganizationID,
		FirstName:      agent.FirstName,
		LastName:       agent.LastName,
		Email:          agent.Email,
		Role:           agent.Role,
		SupervisorID:   agent.SupervisorID,
	}, nil
}

func (d *HierarchyDirectory) ResolveSupervisor(ctx context.Context, agentID, organizationID uuid.UUID) (*uuid.UUID, error) {
	supervisorID, err := d.repo.ResolveSupervisor(ctx, agentID, organizationID)
	if err != nil {
		if errors.Is(err, directoryrepo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return supervisorID, nil
}

// Compile-time check against the succession port.
var _ service.Directory = (*HierarchyDirectory)(nil)
