// Package transport defines the HTTP request/response shapes for the leads
// module.
package transport

import (
	"time"

	"leaddesk_backend/internal/leads/repository"

	"github.com/google/uuid"
)

type CreateLeadRequest struct {
	FirstName string    `json:"firstName" validate:"required,max=100"`
	LastName  string    `json:"lastName" validate:"required,max=100"`
	Phone     string    `json:"phone" validate:"required,max=32"`
	Email     string    `json:"email" validate:"omitempty,email"`
	OwnerID   uuid.UUID `json:"ownerId" validate:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new in_progress qualified closed lost"`
}

type RecordContactRequest struct {
	Channel string `json:"channel" validate:"required,oneof=phone email sms whatsapp in_person"`
	Note    string `json:"note" validate:"max=400"`
}

type RecordDocumentRequest struct {
	FileName string `json:"fileName" validate:"required,max=255"`
}

type LeadResponse struct {
	ID                uuid.UUID  `json:"id"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	Phone             string     `json:"phone"`
	Email             *string    `json:"email,omitempty"`
	CurrentOwnerID    uuid.UUID  `json:"currentOwnerId"`
	PreviousOwnerID   *uuid.UUID `json:"previousOwnerId,omitempty"`
	LastAssignedAt    time.Time  `json:"lastAssignedAt"`
	ReassignmentCount int        `json:"reassignmentCount"`
	LifecycleStatus   string     `json:"lifecycleStatus"`
	Version           int64      `json:"version"`
	CreatedAt         time.Time  `json:"createdAt"`
}

func ToLeadResponse(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:                lead.ID,
		FirstName:         lead.ConsumerFirstName,
		LastName:          lead.ConsumerLastName,
		Phone:             lead.ConsumerPhone,
		Email:             lead.ConsumerEmail,
		CurrentOwnerID:    lead.CurrentOwnerID,
		PreviousOwnerID:   lead.PreviousOwnerID,
		LastAssignedAt:    lead.LastAssignedAt,
		ReassignmentCount: lead.ReassignmentCount,
		LifecycleStatus:   string(lead.LifecycleStatus),
		Version:           lead.Version,
		CreatedAt:         lead.CreatedAt,
	}
}

func ToLeadResponses(leads []repository.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, ToLeadResponse(lead))
	}
	return out
}
