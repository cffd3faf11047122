// Package service implements the succession engine's operations: the
// transition executor shared by the sweep and manual overrides, the pending
// escalation query, audit history, and rule management.
package service

import (
	"context"
	"errors"
	"time"

	"leaddesk_backend/internal/events"
	"leaddesk_backend/internal/succession/domain"
	"leaddesk_backend/internal/succession/repository"
	"leaddesk_backend/platform/apperr"
	"leaddesk_backend/platform/logger"

	"github.com/google/uuid"
)

type Service struct {
	store     Store
	directory Directory
	bus       events.Bus
	log       *logger.Logger
}

func New(store Store, directory Directory, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		directory: directory,
		bus:       bus,
		log:       log,
	}
}

// ReassignInput is one transition attempt against observed state. A nil
// ActorID marks the system as performer.
type ReassignInput struct {
	LeadID             uuid.UUID
	OrganizationID     uuid.UUID
	ExpectedOwnerID    uuid.UUID
	ExpectedVersion    int64
	DestinationOwnerID *uuid.UUID
	Reason             string
	Automatic          bool
	ActorID            *uuid.UUID
}

// Reassign is the single invariant-preserving transition path. Both the
// automatic sweep and manual overrides come through here, so the
// at-most-one-winner guarantee and the audit coupling hold for both.
func (s *Service) Reassign(ctx context.Context, input ReassignInput) (repository.ReassignResult, error) {
	result, err := s.store.Reassign(ctx, repository.ReassignParams{
		LeadID:             input.LeadID,
		OrganizationID:     input.OrganizationID,
		ExpectedOwnerID:    input.ExpectedOwnerID,
		ExpectedVersion:    input.ExpectedVersion,
		DestinationOwnerID: input.DestinationOwnerID,
		Reason:             input.Reason,
		Automatic:          input.Automatic,
		ActorID:            input.ActorID,
		Now:                time.Now(),
	})
	if err != nil {
		return repository.ReassignResult{}, err
	}

	if result.Outcome == domain.OutcomeApplied && s.bus != nil {
		// Notification happens outside the transaction: an undeliverable
		// email must not roll back a committed transition.
		s.bus.Publish(ctx, events.LeadReassigned{
			BaseEvent:       events.NewBaseEvent(),
			LeadID:          input.LeadID,
			OrganizationID:  input.OrganizationID,
			PreviousOwnerID: input.ExpectedOwnerID,
			NewOwnerID:      *result.NewOwnerID,
			Reason:          input.Reason,
			Automatic:       input.Automatic,
		})
	}

	return result, nil
}

// ManualReassign applies a supervisor-driven transition outside the sweep
// cycle. Validation order: caller authority, lead existence, then the shared
// executor. A lost race surfaces as a retryable conflict instead of the
// sweep's silent skip.
func (s *Service) ManualReassign(ctx context.Context, leadID, organizationID, targetOwnerID, actorID uuid.UUID, reason string) (repository.ReassignResult, error) {
	actor, err := s.directory.GetAgent(ctx, actorID, organizationID)
	if err != nil {
		return repository.ReassignResult{}, err
	}
	if actor == nil || actor.Role != domain.RoleSupervisor {
		return repository.ReassignResult{}, apperr.Forbidden("only supervisors may reassign leads")
	}

	own, err := s.store.GetOwnership(ctx, leadID, organizationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ReassignResult{}, apperr.NotFound("lead not found")
		}
		return repository.ReassignResult{}, err
	}

	target, err := s.directory.GetAgent(ctx, targetOwnerID, organizationID)
	if err != nil {
		return repository.ReassignResult{}, err
	}
	if target == nil {
		return repository.ReassignResult{}, apperr.NotFound("target agent not found")
	}

	result, err := s.Reassign(ctx, ReassignInput{
		LeadID:             leadID,
		OrganizationID:     organizationID,
		ExpectedOwnerID:    own.CurrentOwnerID,
		ExpectedVersion:    own.Version,
		DestinationOwnerID: &targetOwnerID,
		Reason:             reason,
		Automatic:          false,
		ActorID:            &actorID,
	})
	if err != nil {
		return repository.ReassignResult{}, err
	}

	if result.Outcome == domain.OutcomeStaleSkip {
		return result, apperr.Conflict("lead changed concurrently, re-read and retry")
	}

	return result, nil
}

// GetPendingEscalations returns the leads the next sweep would escalate,
// for dashboard display. Empty when the organization has no enabled rule.
func (s *Service) GetPendingEscalations(ctx context.Context, organizationID uuid.UUID, now time.Time) ([]repository.Ownership, error) {
	rule, err := s.store.GetActiveRule(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return []repository.Ownership{}, nil
	}
	return s.store.ListPendingEscalations(ctx, organizationID, *rule, now)
}

// GetActivityHistory returns a lead's full audit trail, newest first.
func (s *Service) GetActivityHistory(ctx context.Context, leadID, organizationID uuid.UUID) ([]repository.ActivityEvent, error) {
	if _, err := s.store.GetOwnership(ctx, leadID, organizationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("lead not found")
		}
		return nil, err
	}
	return s.store.ListActivityEvents(ctx, leadID, organizationID)
}

// ActiveRule returns the organization's effective rule, or nil.
func (s *Service) ActiveRule(ctx context.Context, organizationID uuid.UUID) (*repository.Rule, error) {
	return s.store.GetActiveRule(ctx, organizationID)
}

// OrganizationsDue lists organizations the sweep must visit this tick.
func (s *Service) OrganizationsDue(ctx context.Context) ([]uuid.UUID, error) {
	return s.store.ListOrganizationsWithActiveRules(ctx)
}

// DetectStale runs the staleness detector for one organization under its
// active rule. Returns no candidates when no enabled rule exists; there is
// no implicit default threshold.
func (s *Service) DetectStale(ctx context.Context, organizationID uuid.UUID, now time.Time) (*repository.Rule, []repository.Candidate, error) {
	rule, err := s.store.GetActiveRule(ctx, organizationID)
	if err != nil {
		return nil, nil, err
	}
	if rule == nil {
		return nil, nil, nil
	}

	candidates, err := s.store.FindStaleLeads(ctx, organizationID, *rule, now)
	if err != nil {
		return nil, nil, err
	}
	return rule, candidates, nil
}

// ResolveSupervisor exposes the one-hop destination lookup for sweep use.
func (s *Service) ResolveSupervisor(ctx context.Context, agentID, organizationID uuid.UUID) (*uuid.UUID, error) {
	return s.directory.ResolveSupervisor(ctx, agentID, organizationID)
}

// SetRule validates and records a new escalation rule for the organization.
func (s *Service) SetRule(ctx context.Context, params repository.SetRuleParams) (repository.Rule, error) {
	if params.InactivityThresholdMinutes <= 0 {
		return repository.Rule{}, apperr.Validation("inactivity threshold must be positive")
	}
	if !params.NotificationChannel.Valid() {
		return repository.Rule{}, apperr.Validation("unknown notification channel")
	}
	if len(params.ApplicableRoles) == 0 {
		params.ApplicableRoles = []domain.Role{domain.RoleAgent}
	}
	for _, role := range params.ApplicableRoles {
		if !role.Valid() {
			return repository.Rule{}, apperr.Validation("unknown role: " + string(role))
		}
	}
	return s.store.SetRule(ctx, params)
}
