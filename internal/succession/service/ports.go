package service

import (
	"context"
	"time"

	"leaddesk_backend/internal/succession/domain"
	"leaddesk_backend/internal/succession/repository"

	"github.com/google/uuid"
)

// Store is the persistence surface the engine needs: ownership reads, the
// detector query, the transactional reassignment, the audit log, and the
// rule registry. *repository.Repository is the production implementation;
// tests substitute an in-memory fake with the same CAS semantics.
type Store interface {
	GetOwnership(ctx context.Context, leadID, organizationID uuid.UUID) (repository.Ownership, error)
	FindStaleLeads(ctx context.Context, organizationID uuid.UUID, rule repository.Rule, now time.Time) ([]repository.Candidate, error)
	ListPendingEscalations(ctx context.Context, organizationID uuid.UUID, rule repository.Rule, now time.Time) ([]repository.Ownership, error)
	Reassign(ctx context.Context, params repository.ReassignParams) (repository.ReassignResult, error)
	ListActivityEvents(ctx context.Context, leadID, organizationID uuid.UUID) ([]repository.ActivityEvent, error)
	GetActiveRule(ctx context.Context, organizationID uuid.UUID) (*repository.Rule, error)
	ListOrganizationsWithActiveRules(ctx context.Context) ([]uuid.UUID, error)
	SetRule(ctx context.Context, params repository.SetRuleParams) (repository.Rule, error)
}

// AgentInfo is the directory's view of an operator, as the engine needs it.
type AgentInfo struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	FirstName      string
	LastName       string
	Email          string
	Role           domain.Role
	SupervisorID   *uuid.UUID
}

// Directory resolves agents and the one-hop supervisor relationship. It is
// read-only here; agent management belongs to the directory module.
type Directory interface {
	// GetAgent returns the agent, or nil when no such agent exists in the
	// organization.
	GetAgent(ctx context.Context, agentID, organizationID uuid.UUID) (*AgentInfo, error)
	// ResolveSupervisor returns the direct supervisor's ID, or nil when the
	// agent has none.
	ResolveSupervisor(ctx context.Context, agentID, organizationID uuid.UUID) (*uuid.UUID, error)
}
