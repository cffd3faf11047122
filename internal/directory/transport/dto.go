// Package transport defines the HTTP request/response shapes for the
// directory module.
package transport

import (
	"time"

	"leaddesk_backend/internal/directory/repository"

	"github.com/google/uuid"
)

type CreateAgentRequest struct {
	FirstName    string     `json:"firstName" validate:"required,max=100"`
	LastName     string     `json:"lastName" validate:"required,max=100"`
	Email        string     `json:"email" validate:"required,email"`
	Role         string     `json:"role" validate:"required,oneof=agent supervisor admin"`
	SupervisorID *uuid.UUID `json:"supervisorId,omitempty"`
}

type AgentResponse struct {
	ID           uuid.UUID  `json:"id"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	SupervisorID *uuid.UUID `json:"supervisorId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func ToAgentResponse(agent repository.Agent) AgentResponse {
	return AgentResponse{
		ID:           agent.ID,
		FirstName:    agent.FirstName,
		LastName:     agent.LastName,
		Email:        agent.Email,
		Role:         string(agent.Role),
		SupervisorID: agent.SupervisorID,
		CreatedAt:    agent.CreatedAt,
	}
}

func ToAgentResponses(agents []repository.Agent) []AgentResponse {
	out := make([]AgentResponse, 0, len(agents))
	for _, agent := range agents {
		out = append(out, ToAgentResponse(agent))
	}
	return out
}
