package events

import "github.com/google/uuid"

// LeadCreated fires when intake registers a new lead with its initial owner.
type LeadCreated struct {
	BaseEvent
	LeadID         uuid.UUID
	OrganizationID uuid.UUID
	OwnerID        uuid.UUID
}

func (LeadCreated) EventName() string { return "lead.created" }

// LeadReassigned fires whenever an ownership transition commits, whether the
// periodic sweep or a manual override drove it.
type LeadReassigned struct {
	BaseEvent
	LeadID          uuid.UUID
	OrganizationID  uuid.UUID
	PreviousOwnerID uuid.UUID
	NewOwnerID      uuid.UUID
	Reason          string
	Automatic       bool
}

func (LeadReassigned) EventName() string { return "lead.reassigned" }
