package repository

import (
	"context"
	"errors"
	"time"

	"leaddesk_backend/internal/succession/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReassignParams carries one ownership transition attempt. ExpectedOwnerID
// and ExpectedVersion are the caller's observed state; the transaction only
// applies if both still hold. A nil DestinationOwnerID records a
// no-destination skip instead of a transition. A nil ActorID means the
// system performed the transition.
type ReassignParams struct {
	LeadID             uuid.UUID
	OrganizationID     uuid.UUID
	ExpectedOwnerID    uuid.UUID
	ExpectedVersion    int64
	DestinationOwnerID *uuid.UUID
	Reason             string
	Automatic          bool
	ActorID            *uuid.UUID
	Now                time.Time
}

// ReassignResult reports the outcome of one transition attempt. NewOwnerID
// and NewVersion are set only when Outcome is applied.
type ReassignResult struct {
	Outcome    domain.Outcome
	NewOwnerID *uuid.UUID
	NewVersion int64
}

// Reassign applies a single ownership transition inside one transaction.
//
// The row lock taken by SELECT ... FOR UPDATE serializes concurrent attempts
// on the same lead; the subsequent owner/version comparison is the
// compare-and-swap that makes the loser a stale skip rather than a blocked
// writer overwriting fresh state. The audit insert commits atomically with
// the ownership update: a transition without its audit entry cannot exist.
func (r *Repository) Reassign(ctx context.Context, params ReassignParams) (ReassignResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return ReassignResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var currentOwnerID uuid.UUID
	var version int64
	err = tx.QueryRow(ctx, `
		SELECT current_owner_id, version
		FROM leads
		WHERE id = $1 AND organization_id = $2
		FOR UPDATE
	`, params.LeadID, params.OrganizationID).Scan(&currentOwnerID, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		err = ErrNotFound
		return ReassignResult{}, err
	}
	if err != nil {
		return ReassignResult{}, err
	}

	if currentOwnerID != params.ExpectedOwnerID || version != params.ExpectedVersion {
		_ = tx.Rollback(ctx)
		return ReassignResult{Outcome: domain.OutcomeStaleSkip}, nil
	}

	if params.DestinationOwnerID == nil {
		// No supervisor resolvable. Ownership stays put, but the skip is
		// made visible in the audit trail.
		if err = insertActivityEvent(ctx, tx, CreateActivityEventParams{
			LeadID:         params.LeadID,
			OrganizationID: params.OrganizationID,
			EventType:      domain.ActivityReassigned,
			ActorType:      actorType(params.ActorID),
			ActorID:        params.ActorID,
			Automatic:      params.Automatic,
			Metadata: map[string]any{
				"from":    currentOwnerID.String(),
				"to":      nil,
				"reason":  params.Reason,
				"skipped": "no_destination",
			},
			OccurredAt: params.Now,
		}); err != nil {
			return ReassignResult{}, err
		}
		if err = tx.Commit(ctx); err != nil {
			return ReassignResult{}, err
		}
		return ReassignResult{Outcome: domain.OutcomeNoDestinationSkip}, nil
	}

	var newVersion int64
	err = tx.QueryRow(ctx, `
		UPDATE leads
		SET previous_owner_id = current_owner_id,
			current_owner_id = $3,
			last_assigned_at = $4,
			reassignment_count = reassignment_count + 1,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND version = $5
		RETURNING version
	`, params.LeadID, params.OrganizationID, *params.DestinationOwnerID, params.Now, params.ExpectedVersion).Scan(&newVersion)
	if err != nil {
		return ReassignResult{}, err
	}

	if err = insertActivityEvent(ctx, tx, CreateActivityEventParams{
		LeadID:         params.LeadID,
		OrganizationID: params.OrganizationID,
		EventType:      domain.ActivityReassigned,
		ActorType:      actorType(params.ActorID),
		ActorID:        params.ActorID,
		Automatic:      params.Automatic,
		Metadata: map[string]any{
			"from":   currentOwnerID.String(),
			"to":     params.DestinationOwnerID.String(),
			"reason": params.Reason,
		},
		OccurredAt: params.Now,
	}); err != nil {
		return ReassignResult{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return ReassignResult{}, err
	}

	return ReassignResult{
		Outcome:    domain.OutcomeApplied,
		NewOwnerID: params.DestinationOwnerID,
		NewVersion: newVersion,
	}, nil
}

func actorType(actorID *uuid.UUID) string {
	if actorID == nil {
		return domain.ActorSystem
	}
	return domain.ActorAgent
}
