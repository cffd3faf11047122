// Package repository provides pgx data access for lead intake and lifecycle
// edits. Ownership mutations are deliberately absent: those flow exclusively
// through the succession engine.
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

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID                uuid.UUID
	OrganizationID    uuid.UUID
	ConsumerFirstName string
	ConsumerLastName  string
	ConsumerPhone     string
	ConsumerEmail     *string
	CurrentOwnerID    uuid.UUID
	PreviousOwnerID   *uuid.UUID
	LastAssignedAt    time.Time
	ReassignmentCount int
	LifecycleStatus   domain.LifecycleStatus
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type CreateLeadParams struct {
	OrganizationID    uuid.UUID
	ConsumerFirstName string
	ConsumerLastName  string
	ConsumerPhone     string
	ConsumerEmail     *string
	CurrentOwnerID    uuid.UUID
}

const leadSelectCols = `
	id, organization_id, consumer_first_name, consumer_last_name, consumer_phone, consumer_email,
	current_owner_id, previous_owner_id, last_assigned_at, reassignment_count, lifecycle_status, version,
	created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.OrganizationID, &lead.ConsumerFirstName, &lead.ConsumerLastName,
		&lead.ConsumerPhone, &lead.ConsumerEmail,
		&lead.CurrentOwnerID, &lead.PreviousOwnerID, &lead.LastAssignedAt,
		&lead.ReassignmentCount, &lead.LifecycleStatus, &lead.Version,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	return lead, err
}

// Create inserts a new lead with its initial owner and a fresh assignment
// timestamp.
func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			organization_id, consumer_first_name, consumer_last_name, consumer_phone, consumer_email,
			current_owner_id, last_assigned_at, lifecycle_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, now(), 'new')
		RETURNING`+leadSelectCols+`
	`, params.OrganizationID, params.ConsumerFirstName, params.ConsumerLastName,
		params.ConsumerPhone, params.ConsumerEmail, params.CurrentOwnerID))
}

func (r *Repository) GetByID(ctx context.Context, id, organizationID uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT`+leadSelectCols+`
		FROM leads
		WHERE id = $1 AND organization_id = $2
	`, id, organizationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) List(ctx context.Context, organizationID uuid.UUID) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+leadSelectCols+`
		FROM leads
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	return items, rows.Err()
}

// UpdateLifecycleStatus moves the lead's funnel position. The version bump
// keeps the succession executor's precondition honest: a status edit that
// races a sweep makes the sweep's observation stale.
func (r *Repository) UpdateLifecycleStatus(ctx context.Context, id, organizationID uuid.UUID, status domain.LifecycleStatus) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads
		SET lifecycle_status = $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND organization_id = $2
		RETURNING`+leadSelectCols+`
	`, id, organizationID, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}
