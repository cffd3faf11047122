// Package transport defines the HTTP request/response shapes for the
// succession module.
package transport

import (
	"time"

	"leaddesk_backend/internal/succession/domain"
	"leaddesk_backend/internal/succession/repository"

	"github.com/google/uuid"
)

type ReassignRequest struct {
	TargetOwnerID uuid.UUID `json:"targetOwnerId" validate:"required"`
	Reason        string    `json:"reason" validate:"required,max=400"`
}

type TransitionResponse struct {
	Outcome    domain.Outcome `json:"outcome"`
	NewOwnerID *uuid.UUID     `json:"newOwnerId,omitempty"`
	NewVersion int64          `json:"newVersion,omitempty"`
}

func ToTransitionResponse(result repository.ReassignResult) TransitionResponse {
	return TransitionResponse{
		Outcome:    result.Outcome,
		NewOwnerID: result.NewOwnerID,
		NewVersion: result.NewVersion,
	}
}

type PendingEscalationResponse struct {
	LeadID            uuid.UUID              `json:"leadId"`
	CurrentOwnerID    uuid.UUID              `json:"currentOwnerId"`
	PreviousOwnerID   *uuid.UUID             `json:"previousOwnerId,omitempty"`
	LastAssignedAt    time.Time              `json:"lastAssignedAt"`
	ReassignmentCount int                    `json:"reassignmentCount"`
	LifecycleStatus   domain.LifecycleStatus `json:"lifecycleStatus"`
}

func ToPendingEscalationResponses(items []repository.Ownership) []PendingEscalationResponse {
	out := make([]PendingEscalationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, PendingEscalationResponse{
			LeadID:            item.LeadID,
			CurrentOwnerID:    item.CurrentOwnerID,
			PreviousOwnerID:   item.PreviousOwnerID,
			LastAssignedAt:    item.LastAssignedAt,
			ReassignmentCount: item.ReassignmentCount,
			LifecycleStatus:   item.LifecycleStatus,
		})
	}
	return out
}

type ActivityEventResponse struct {
	ID         uuid.UUID           `json:"id"`
	LeadID     uuid.UUID           `json:"leadId"`
	EventType  domain.ActivityType `json:"eventType"`
	ActorType  string              `json:"actorType"`
	ActorID    *uuid.UUID          `json:"actorId,omitempty"`
	Automatic  bool                `json:"automatic"`
	Metadata   map[string]any      `json:"metadata,omitempty"`
	OccurredAt time.Time           `json:"occurredAt"`
}

func ToActivityEventResponses(items []repository.ActivityEvent) []ActivityEventResponse {
	out := make([]ActivityEventResponse, 0, len(items))
	for _, item := range items {
		out = append(out, ActivityEventResponse{
			ID:         item.ID,
			LeadID:     item.LeadID,
			EventType:  item.EventType,
			ActorType:  item.ActorType,
			ActorID:    item.ActorID,
			Automatic:  item.Automatic,
			Metadata:   item.Metadata,
			OccurredAt: item.OccurredAt,
		})
	}
	return out
}

type SetRuleRequest struct {
	Enabled                    bool     `json:"enabled"`
	InactivityThresholdMinutes int      `json:"inactivityThresholdMinutes" validate:"required,gt=0"`
	ApplicableRoles            []string `json:"applicableRoles" validate:"omitempty,dive,oneof=agent supervisor admin"`
	NotificationChannel        string   `json:"notificationChannel" validate:"required,oneof=email none"`
}

type RuleResponse struct {
	ID                         uuid.UUID `json:"id"`
	Enabled                    bool      `json:"enabled"`
	InactivityThresholdMinutes int       `json:"inactivityThresholdMinutes"`
	ApplicableRoles            []string  `json:"applicableRoles"`
	NotificationChannel        string    `json:"notificationChannel"`
	CreatedAt                  time.Time `json:"createdAt"`
	UpdatedAt                  time.Time `json:"updatedAt"`
}

func ToRuleResponse(rule repository.Rule) RuleResponse {
	roles := make([]string, 0, len(rule.ApplicableRoles))
	for _, role := range rule.ApplicableRoles {
		roles = append(roles, string(role))
	}
	return RuleResponse{
		ID:                         rule.ID,
		Enabled:                    rule.Enabled,
		InactivityThresholdMinutes: rule.InactivityThresholdMinutes,
		ApplicableRoles:            roles,
		NotificationChannel:        string(rule.NotificationChannel),
		CreatedAt:                  rule.CreatedAt,
		UpdatedAt:                  rule.UpdatedAt,
	}
}
