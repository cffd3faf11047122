package repository

import (
	"context"
	"encoding/json"
	"time"

	"leaddesk_backend/internal/succession/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ActivityEvent is one append-only audit entry. Rows are never mutated or
// deleted; this log is the only place "why did ownership change" is answered.
type ActivityEvent struct {
	ID             uuid.UUID
	LeadID         uuid.UUID
	OrganizationID uuid.UUID
	EventType      domain.ActivityType
	ActorType      string
	ActorID        *uuid.UUID
	Automatic      bool
	Metadata       map[string]any
	OccurredAt     time.Time
}

type CreateActivityEventParams struct {
	LeadID         uuid.UUID
	OrganizationID uuid.UUID
	EventType      domain.ActivityType
	ActorType      string
	ActorID        *uuid.UUID
	Automatic      bool
	Metadata       map[string]any
	OccurredAt     time.Time
}

// rowQuerier is satisfied by *pgxpool.Pool and pgx.Tx so activity inserts can
// run standalone or inside the reassignment transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertActivityEvent(ctx context.Context, q rowQuerier, params CreateActivityEventParams) error {
	metadataJSON, err := json.Marshal(params.Metadata)
	if err != nil {
		return err
	}

	occurredAt := params.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	var id uuid.UUID
	return q.QueryRow(ctx, `
		INSERT INTO lead_activity_events (
			lead_id, organization_id, event_type, actor_type, actor_id, automatic, metadata, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, params.LeadID, params.OrganizationID, params.EventType, params.ActorType,
		params.ActorID, params.Automatic, metadataJSON, occurredAt).Scan(&id)
}

// CreateActivityEvent appends a single event outside any transaction. Used by
// the collaborator modules (intake, status edits, contact recording); the
// succession executor writes its events inside its own transaction instead.
func (r *Repository) CreateActivityEvent(ctx context.Context, params CreateActivityEventParams) error {
	return insertActivityEvent(ctx, r.pool, params)
}

// ListActivityEvents returns a lead's full audit history, newest first.
func (r *Repository) ListActivityEvents(ctx context.Context, leadID, organizationID uuid.UUID) ([]ActivityEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, organization_id, event_type, actor_type, actor_id, automatic, metadata, occurred_at
		FROM lead_activity_events
		WHERE lead_id = $1 AND organization_id = $2
		ORDER BY occurred_at DESC
	`, leadID, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]ActivityEvent, 0)
	for rows.Next() {
		var event ActivityEvent
		var rawMetadata []byte
		if err := rows.Scan(
			&event.ID, &event.LeadID, &event.OrganizationID, &event.EventType,
			&event.ActorType, &event.ActorID, &event.Automatic, &rawMetadata, &event.OccurredAt,
		); err != nil {
			return nil, err
		}
		if len(rawMetadata) > 0 {
			_ = json.Unmarshal(rawMetadata, &event.Metadata)
		}
		items = append(items, event)
	}
	return items, rows.Err()
}
