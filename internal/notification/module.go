// Package notification provides event handlers for sending notifications in
// response to domain events. This module subscribes to events and inverts the
// dependency: domain modules no longer need to know about email providers or
// templates.
package notification

import (
	"context"
	"strings"

	directoryrepo "leaddesk_backend/internal/directory/repository"
	"leaddesk_backend/internal/email"
	"leaddesk_backend/internal/events"
	"leaddesk_backend/internal/succession/domain"
	successionrepo "leaddesk_backend/internal/succession/repository"
	"leaddesk_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RuleReader resolves the active reassignment rule for an organization.
type RuleReader interface {
	ActiveRule(ctx context.Context, organizationID uuid.UUID) (*successionrepo.Rule, error)
}

// AgentReader resolves agent contact details for notification delivery.
type AgentReader interface {
	GetByID(ctx context.Context, id, organizationID uuid.UUID) (directoryrepo.Agent, error)
}

// Module handles all notification-related event subscriptions.
type Module struct {
	pool   *pgxpool.Pool
	sender email.Sender
	log    *logger.Logger
	rules  RuleReader
	agents AgentReader
}

// New creates a new notification module.
func New(pool *pgxpool.Pool, sender email.Sender, log *logger.Logger) *Module {
	return &Module{
		pool:   pool,
		sender: sender,
		log:    log,
	}
}

// SetRuleReader injects the reader for active reassignment rules.
func (m *Module) SetRuleReader(r RuleReader) { m.rules = r }

// SetAgentReader injects the reader for agent contact details.
func (m *Module) SetAgentReader(r AgentReader) { m.agents = r }

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.LeadReassigned{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadReassigned:
		return m.handleLeadReassigned(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

// handleLeadReassigned emails the new owner after an ownership transition when
// the organization's active rule asks for email delivery. Delivery failures
// are logged but never propagated: the transition has already committed.
func (m *Module) handleLeadReassigned(ctx context.Context, e events.LeadReassigned) error {
	if m.rules == nil || m.agents == nil {
		m.log.Debug("notification readers not configured; skipping", "leadId", e.LeadID)
		return nil
	}

	rule, err := m.rules.ActiveRule(ctx, e.OrganizationID)
	if err != nil {
		m.log.Warn("failed to resolve active rule for notification", "organizationId", e.OrganizationID, "error", err)
		return nil
	}
	if rule == nil || rule.NotificationChannel != domain.ChannelEmail {
		m.log.Debug("email notifications disabled for organization", "organizationId", e.OrganizationID, "leadId", e.LeadID)
		return nil
	}

	owner, err := m.agents.GetByID(ctx, e.NewOwnerID, e.OrganizationID)
	if err != nil {
		m.log.Warn("failed to resolve new owner for notification",
			"organizationId", e.OrganizationID,
			"newOwnerId", e.NewOwnerID,
			"error", err,
		)
		return nil
	}
	if strings.TrimSpace(owner.Email) == "" {
		m.log.Debug("new owner has no email address", "newOwnerId", e.NewOwnerID)
		return nil
	}

	leadName := m.resolveLeadName(ctx, e.LeadID, e.OrganizationID)
	ownerName := strings.TrimSpace(owner.FirstName + " " + owner.LastName)

	if e.Automatic && owner.Role == domain.RoleSupervisor {
		if err := m.sender.SendEscalationNoticeEmail(ctx, owner.Email, ownerName, leadName); err != nil {
			m.log.Error("failed to send escalation notice email",
				"leadId", e.LeadID,
				"newOwnerId", e.NewOwnerID,
				"error", err,
			)
			return nil
		}
		m.log.Info("escalation notice email sent", "leadId", e.LeadID, "newOwnerId", e.NewOwnerID)
		return nil
	}

	if err := m.sender.SendLeadReassignedEmail(ctx, owner.Email, ownerName, leadName, e.Reason); err != nil {
		m.log.Error("failed to send lead reassigned email",
			"leadId", e.LeadID,
			"newOwnerId", e.NewOwnerID,
			"error", err,
		)
		return nil
	}
	m.log.Info("lead reassigned email sent", "leadId", e.LeadID, "newOwnerId", e.NewOwnerID)
	return nil
}

// resolveLeadName fetches the consumer's display name for the email body.
func (m *Module) resolveLeadName(ctx context.Context, leadID, organizationID uuid.UUID) string {
	if m.pool == nil || leadID == uuid.Nil {
		return "onbekende lead"
	}
	var first, last string
	err := m.pool.QueryRow(ctx,
		`SELECT consumer_first_name, consumer_last_name FROM leads WHERE id = $1 AND organization_id = $2`,
		leadID, organizationID,
	).Scan(&first, &last)
	if err != nil {
		return "onbekende lead"
	}
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		return "onbekende lead"
	}
	return name
}
