// Package repository provides pgx data access for the succession engine:
// the ownership store, the staleness detector query, the rule registry, and
// the append-only activity log.
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

// Ownership is the concurrency-relevant slice of a lead row.
type Ownership struct {
	LeadID            uuid.UUID
	OrganizationID    uuid.UUID
	CurrentOwnerID    uuid.UUID
	PreviousOwnerID   *uuid.UUID
	LastAssignedAt    time.Time
	ReassignmentCount int
	LifecycleStatus   domain.LifecycleStatus
	Version           int64
}

// Candidate is one detector hit: the lead plus the owner and version the
// detector observed, captured for the executor's precondition check.
type Candidate struct {
	LeadID          uuid.UUID
	CurrentOwnerID  uuid.UUID
	ObservedVersion int64
}

// GetOwnership reads the ownership fields of a single lead.
func (r *Repository) GetOwnership(ctx context.Context, leadID, organizationID uuid.UUID) (Ownership, error) {
	var own Ownership
	err := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, current_owner_id, previous_owner_id,
			last_assigned_at, reassignment_count, lifecycle_status, version
		FROM leads
		WHERE id = $1 AND organization_id = $2
	`, leadID, organizationID).Scan(
		&own.LeadID, &own.OrganizationID, &own.CurrentOwnerID, &own.PreviousOwnerID,
		&own.LastAssignedAt, &own.ReassignmentCount, &own.LifecycleStatus, &own.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ownership{}, ErrNotFound
	}
	return own, err
}

// FindStaleLeads returns the leads eligible for escalation at the given
// instant: active lifecycle status, owner role covered by the rule, assigned
// longer ago than the threshold, and no qualifying activity since the
// assignment. The query only reads; the captured version feeds the
// executor's optimistic precondition.
func (r *Repository) FindStaleLeads(ctx context.Context, organizationID uuid.UUID, rule Rule, now time.Time) ([]Candidate, error) {
	roles := make([]string, 0, len(rule.ApplicableRoles))
	for _, role := range rule.ApplicableRoles {
		roles = append(roles, string(role))
	}

	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.current_owner_id, l.version
		FROM leads l
		JOIN agents a ON a.id = l.current_owner_id
		WHERE l.organization_id = $1
			AND l.lifecycle_status IN ('new', 'in_progress')
			AND a.role = ANY($2)
			AND l.last_assigned_at < $3::timestamptz - make_interval(mins => $4)
			AND NOT EXISTS (
				SELECT 1 FROM lead_activity_events e
				WHERE e.lead_id = l.id
					AND e.event_type IN ('contacted', 'status_changed')
					AND e.occurred_at > l.last_assigned_at
			)
		ORDER BY l.last_assigned_at ASC
	`, organizationID, roles, now, rule.InactivityThresholdMinutes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Candidate, 0)
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.LeadID, &c.CurrentOwnerID, &c.ObservedVersion); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// ListPendingEscalations returns the full ownership rows for every lead the
// detector would currently surface, for dashboard use.
func (r *Repository) ListPendingEscalations(ctx context.Context, organizationID uuid.UUID, rule Rule, now time.Time) ([]Ownership, error) {
	roles := make([]string, 0, len(rule.ApplicableRoles))
	for _, role := range rule.ApplicableRoles {
		roles = append(roles, string(role))
	}

	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.organization_id, l.current_owner_id, l.previous_owner_id,
			l.last_assigned_at, l.reassignment_count, l.lifecycle_status, l.version
		FROM leads l
		JOIN agents a ON a.id = l.current_owner_id
		WHERE l.organization_id = $1
			AND l.lifecycle_status IN ('new', 'in_progress')
			AND a.role = ANY($2)
			AND l.last_assigned_at < $3::timestamptz - make_interval(mins => $4)
			AND NOT EXISTS (
				SELECT 1 FROM lead_activity_events e
				WHERE e.lead_id = l.id
					AND e.event_type IN ('contacted', 'status_changed')
					AND e.occurred_at > l.last_assigned_at
			)
		ORDER BY l.last_assigned_at ASC
	`, organizationID, roles, now, rule.InactivityThresholdMinutes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Ownership, 0)
	for rows.Next() {
		var own Ownership
		if err := rows.Scan(
			&own.LeadID, &own.OrganizationID, &own.CurrentOwnerID, &own.PreviousOwnerID,
			&own.LastAssignedAt, &own.ReassignmentCount, &own.LifecycleStatus, &own.Version,
		); err != nil {
			return nil, err
		}
		items = append(items, own)
	}
	return items, rows.Err()
}
