package adapters

import (
	"context"
	"errors"

	directoryrepo "leaddesk_backend/internal/directory/repository"
	leadsvc "leaddesk_backend/internal/leads/service"

	"github.com/google/uuid"
)

// DirectoryAgentChecker answers existence checks against the agent directory.
type DirectoryAgentChecker struct {
	repo *directoryrepo.Repository
}

func NewDirectoryAgentChecker(repo *directoryrepo.Repository) *DirectoryAgentChecker {
	return &DirectoryAgentChecker{repo: repo}
}

func (c *DirectoryAgentChecker) AgentExists(ctx context.Context, agentID, organizationID uuid.UUID) (bool, error) {
	_, err := c.repo.GetByID(ctx, agentID, organizationID)
	if errors.Is(err, directoryrepo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var _ leadsvc.AgentChecker = (*DirectoryAgentChecker)(nil)
