// Package repository provides pgx data access for the agent hierarchy
// directory.
package repository

import (
	"context"
	"errors"
	"time"

	"leaddesk_backend/internal/succession/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("agent not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Agent is one human operator in the two-tier hierarchy. SupervisorID is
// populated only for role agent.
type Agent struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	FirstName      string
	LastName       string
	Email          string
	Role           domain.Role
	SupervisorID   *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CreateAgentParams struct {
	OrganizationID uuid.UUID
	FirstName      string
	LastName       string
	Email          string
	Role           domain.Role
	SupervisorID   *uuid.UUID
}

const agentSelectCols = `
	id, organization_id, first_name, last_name, email, role, supervisor_id, created_at, updated_at`

func scanAgent(row pgx.Row) (Agent, error) {
	var agent Agent
	err := row.Scan(
		&agent.ID, &agent.OrganizationID, &agent.FirstName, &agent.LastName,
		&agent.Email, &agent.Role, &agent.SupervisorID, &agent.CreatedAt, &agent.UpdatedAt,
	)
	return agent, err
}

func (r *Repository) Create(ctx context.Context, params CreateAgentParams) (Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `
		INSERT INTO agents (organization_id, first_name, last_name, email, role, supervisor_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING`+agentSelectCols+`
	`, params.OrganizationID, params.FirstName, params.LastName, params.Email, params.Role, params.SupervisorID))
}

func (r *Repository) GetByID(ctx context.Context, id, organizationID uuid.UUID) (Agent, error) {
	agent, err := scanAgent(r.pool.QueryRow(ctx, `
		SELECT`+agentSelectCols+`
		FROM agents
		WHERE id = $1 AND organization_id = $2
	`, id, organizationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return agent, err
}

func (r *Repository) List(ctx context.Context, organizationID uuid.UUID) ([]Agent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+agentSelectCols+`
		FROM agents
		WHERE organization_id = $1
		ORDER BY last_name ASC, first_name ASC
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Agent, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, agent)
	}
	return items, rows.Err()
}

// ResolveSupervisor returns the direct supervisor's ID for an agent, or nil
// when none is configured. The hierarchy is fixed at one hop.
func (r *Repository) ResolveSupervisor(ctx context.Context, agentID, organizationID uuid.UUID) (*uuid.UUID, error) {
	var supervisorID *uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT supervisor_id
		FROM agents
		WHERE id = $1 AND organization_id = $2
	`, agentID, organizationID).Scan(&supervisorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return supervisorID, nil
}
