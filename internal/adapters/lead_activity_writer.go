package adapters

import (
	"context"
	"time"

	leadsvc "leaddesk_backend/internal/leads/service"
	"leaddesk_backend/internal/succession/domain"
	successionrepo "leaddesk_backend/internal/succession/repository"
)

// LeadActivityWriter bridges the leads module to the succession module's
// append-only activity log without a direct package dependency.
type LeadActivityWriter struct {
	repo *successionrepo.Repository
}

func NewLeadActivityWriter(repo *successionrepo.Repository) *LeadActivityWriter {
	return &LeadActivityWriter{repo: repo}
}

func (w *LeadActivityWriter) RecordActivity(ctx context.Context, record leadsvc.ActivityRecord) error {
	occurredAt := record.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	actorType := domain.ActorSystem
	if record.ActorID != nil {
		actorType = domain.ActorAgent
	}

	return w.repo.CreateActivityEvent(ctx, successionrepo.CreateActivityEventParams{
		LeadID:         record.LeadID,
		OrganizationID: record.OrganizationID,
		EventType:      record.EventType,
		ActorType:      actorType,
		ActorID:        record.ActorID,
		Automatic:      record.ActorID == nil,
		Metadata:       record.Metadata,
		OccurredAt:     occurredAt,
	})
}

var _ leadsvc.ActivityWriter = (*LeadActivityWriter)(nil)
