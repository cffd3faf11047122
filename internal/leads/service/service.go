// Package service implements lead intake and the activity-producing
// collaborator operations the succession detector reads.
package service

import (
	"context"
	"errors"
	"time"

	"leaddesk_backend/internal/events"
	"leaddesk_backend/internal/leads/repository"
	"leaddesk_backend/internal/succession/domain"
	"leaddesk_backend/platform/apperr"

	"github.com/google/uuid"
)

// ActivityRecord is one append-only audit entry as the leads module writes
// it.
type ActivityRecord struct {
	LeadID         uuid.UUID
	OrganizationID uuid.UUID
	EventType      domain.ActivityType
	ActorID        *uuid.UUID
	Metadata       map[string]any
	OccurredAt     time.Time
}

// ActivityWriter appends to the lead activity log. The succession module's
// repository is the production implementation, wired through an adapter.
type ActivityWriter interface {
	RecordActivity(ctx context.Context, record ActivityRecord) error
}

// AgentChecker verifies that an owner candidate exists in the organization.
type AgentChecker interface {
	AgentExists(ctx context.Context, agentID, organizationID uuid.UUID) (bool, error)
}

type Service struct {
	repo     *repository.Repository
	activity ActivityWriter
	agents   AgentChecker
	bus      events.Bus
}

func New(repo *repository.Repository, activity ActivityWriter, agents AgentChecker, bus events.Bus) *Service {
	return &Service{repo: repo, activity: activity, agents: agents, bus: bus}
}

// Create registers a new lead with its initial owner and writes the
// `assigned` audit event.
func (s *Service) Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	exists, err := s.agents.AgentExists(ctx, params.CurrentOwnerID, params.OrganizationID)
	if err != nil {
		return repository.Lead{}, err
	}
	if !exists {
		return repository.Lead{}, apperr.Validation("initial owner not found")
	}

	lead, err := s.repo.Create(ctx, params)
	if err != nil {
		return repository.Lead{}, err
	}

	if err := s.activity.RecordActivity(ctx, ActivityRecord{
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		EventType:      domain.ActivityAssigned,
		Metadata: map[string]any{
			"to":     lead.CurrentOwnerID.String(),
			"reason": "initial assignment",
		},
		OccurredAt: lead.LastAssignedAt,
	}); err != nil {
		return repository.Lead{}, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadCreated{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         lead.ID,
			OrganizationID: lead.OrganizationID,
			OwnerID:        lead.CurrentOwnerID,
		})
	}

	return lead, nil
}

func (s *Service) GetByID(ctx context.Context, id, organizationID uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id, organizationID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

func (s *Service) List(ctx context.Context, organizationID uuid.UUID) ([]repository.Lead, error) {
	return s.repo.List(ctx, organizationID)
}

// UpdateStatus moves the lead's lifecycle status and appends the
// `status_changed` activity that cancels any impending escalation.
func (s *Service) UpdateStatus(ctx context.Context, id, organizationID uuid.UUID, status domain.LifecycleStatus, actorID uuid.UUID) (repository.Lead, error) {
	if !status.Valid() {
		return repository.Lead{}, apperr.Validation("unknown lifecycle status")
	}

	previous, err := s.GetByID(ctx, id, organizationID)
	if err != nil {
		return repository.Lead{}, err
	}

	lead, err := s.repo.UpdateLifecycleStatus(ctx, id, organizationID, status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("lead not found")
		}
		return repository.Lead{}, err
	}

	if err := s.activity.RecordActivity(ctx, ActivityRecord{
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		EventType:      domain.ActivityStatusChanged,
		ActorID:        &actorID,
		Metadata: map[string]any{
			"from": string(previous.LifecycleStatus),
			"to":   string(status),
		},
	}); err != nil {
		return repository.Lead{}, err
	}

	return lead, nil
}

// RecordContact appends a `contacted` activity event. The succession
// detector treats it as qualifying activity; the lead row itself is
// untouched.
func (s *Service) RecordContact(ctx context.Context, id, organizationID uuid.UUID, actorID uuid.UUID, channel, note string) error {
	if _, err := s.GetByID(ctx, id, organizationID); err != nil {
		return err
	}

	return s.activity.RecordActivity(ctx, ActivityRecord{
		LeadID:         id,
		OrganizationID: organizationID,
		EventType:      domain.ActivityContacted,
		ActorID:        &actorID,
		Metadata: map[string]any{
			"channel": channel,
			"note":    note,
		},
	})
}

// RecordDocument appends a `document_uploaded` activity event. Document
// events are visible in the audit trail but do not reset the staleness
// clock.
func (s *Service) RecordDocument(ctx context.Context, id, organizationID uuid.UUID, actorID uuid.UUID, fileName string) error {
	if _, err := s.GetByID(ctx, id, organizationID); err != nil {
		return err
	}

	return s.activity.RecordActivity(ctx, ActivityRecord{
		LeadID:         id,
		OrganizationID: organizationID,
		EventType:      domain.ActivityDocumentUploaded,
		ActorID:        &actorID,
		Metadata: map[string]any{
			"fileName": fileName,
		},
	})
}
