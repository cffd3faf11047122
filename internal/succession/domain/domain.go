// Package domain holds the vocabulary of the lead ownership succession
// engine: lifecycle statuses, agent roles, activity event types, and the
// outcome of an ownership transition.
package domain

// LifecycleStatus is a lead's position in the sales funnel. The succession
// engine reads it but never writes it; status edits arrive through the leads
// module.
type LifecycleStatus string

const (
	StatusNew        LifecycleStatus = "new"
	StatusInProgress LifecycleStatus = "in_progress"
	StatusQualified  LifecycleStatus = "qualified"
	StatusClosed     LifecycleStatus = "closed"
	StatusLost       LifecycleStatus = "lost"
)

// Active reports whether the lead is still eligible for staleness evaluation.
// Closed and lost leads are retired from escalation, qualified leads are kept
// out of the detector's candidate set as well.
func (s LifecycleStatus) Active() bool {
	return s == StatusNew || s == StatusInProgress
}

// Valid reports whether the status is one of the known funnel positions.
func (s LifecycleStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusQualified, StatusClosed, StatusLost:
		return true
	}
	return false
}

// Role is an agent's position in the two-tier hierarchy.
type Role string

const (
	RoleAgent      Role = "agent"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	return r == RoleAgent || r == RoleSupervisor || r == RoleAdmin
}

// ActivityType categorizes entries in the append-only activity log.
type ActivityType string

const (
	ActivityContacted        ActivityType = "contacted"
	ActivityStatusChanged    ActivityType = "status_changed"
	ActivityDocumentUploaded ActivityType = "document_uploaded"
	ActivityAssigned         ActivityType = "assigned"
	ActivityReassigned       ActivityType = "reassigned"
)

// Qualifying reports whether the activity cancels an impending escalation.
// Only events that show an agent actually worked the lead count; uploads and
// assignment changes do not reset the staleness clock.
func (t ActivityType) Qualifying() bool {
	return t == ActivityContacted || t == ActivityStatusChanged
}

// ActorSystem is the sentinel actor for automatic transitions.
const ActorSystem = "system"

// ActorAgent marks activity performed by a human operator.
const ActorAgent = "agent"

// Outcome classifies the result of one reassignment attempt.
type Outcome string

const (
	// OutcomeApplied means the ownership transition committed.
	OutcomeApplied Outcome = "applied"
	// OutcomeStaleSkip means the precondition no longer held: another writer
	// changed the lead between observation and execution. Not an error.
	OutcomeStaleSkip Outcome = "stale_skip"
	// OutcomeNoDestinationSkip means no supervisor was resolvable for the
	// current owner. The skip is recorded in the audit trail; ownership is
	// unchanged. Not an error.
	OutcomeNoDestinationSkip Outcome = "no_destination_skip"
)

// NotificationChannel selects how an applied escalation is announced.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelNone  NotificationChannel = "none"
)

// Valid reports whether the channel is supported.
func (c NotificationChannel) Valid() bool {
	return c == ChannelEmail || c == ChannelNone
}
