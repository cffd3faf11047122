package sweep

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"leaddesk_backend/internal/succession/domain"
	"leaddesk_backend/internal/succession/repository"
	"leaddesk_backend/internal/succession/service"
	"leaddesk_backend/platform/logger"

	"github.com/google/uuid"
)

// sweepStore is an in-memory Store. Reassign keeps the repository's
// compare-and-swap semantics and FindStaleLeads applies the same filtering as
// the detector query: active status, owner role covered by the rule, assigned
// before the threshold cutoff, no qualifying activity since assignment.
type sweepStore struct {
	mu          sync.Mutex
	leads       map[uuid.UUID]*repository.Ownership
	ownerRoles  map[uuid.UUID]domain.Role
	eventLog    []repository.ActivityEvent
	rule        *repository.Rule
	afterDetect func()
}

func newSweepStore() *sweepStore {
	return &sweepStore{
		leads:      make(map[uuid.UUID]*repository.Ownership),
		ownerRoles: make(map[uuid.UUID]domain.Role),
	}
}

func (f *sweepStore) addLead(own repository.Ownership) {
	copied := own
	f.leads[own.LeadID] = &copied
}

func (f *sweepStore) GetOwnership(_ context.Context, leadID, organizationID uuid.UUID) (repository.Ownership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	own, ok := f.leads[leadID]
	if !ok || own.OrganizationID != organizationID {
		return repository.Ownership{}, repository.ErrNotFound
	}
	return *own, nil
}

func (f *sweepStore) FindStaleLeads(_ context.Context, organizationID uuid.UUID, rule repository.Rule, now time.Time) ([]repository.Candidate, error) {
	f.mu.Lock()
	cutoff := now.Add(-time.Duration(rule.InactivityThresholdMinutes) * time.Minute)
	out := make([]repository.Candidate, 0)
	for _, own := range f.leads {
		if own.OrganizationID != organizationID || !own.LifecycleStatus.Active() {
			continue
		}
		if !slices.Contains(rule.ApplicableRoles, f.ownerRoles[own.CurrentOwnerID]) {
			continue
		}
		if !own.LastAssignedAt.Before(cutoff) {
			continue
		}
		if f.qualifyingActivitySince(own.LeadID, own.LastAssignedAt) {
			continue
		}
		out = append(out, repository.Candidate{
			LeadID:          own.LeadID,
			CurrentOwnerID:  own.CurrentOwnerID,
			ObservedVersion: own.Version,
		})
	}
	f.mu.Unlock()

	if f.afterDetect != nil {
		f.afterDetect()
	}
	return out, nil
}

func (f *sweepStore) qualifyingActivitySince(leadID uuid.UUID, since time.Time) bool {
	for _, event := range f.eventLog {
		if event.LeadID == leadID && event.EventType.Qualifying() && event.OccurredAt.After(since) {
			return true
		}
	}
	return false
}

func (f *sweepStore) ListPendingEscalations(_ context.Context, _ uuid.UUID, _ repository.Rule, _ time.Time) ([]repository.Ownership, error) {
	return nil, nil
}

func (f *sweepStore) Reassign(_ context.Context, params repository.ReassignParams) (repository.ReassignResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	own, ok := f.leads[params.LeadID]
	if !ok || own.OrganizationID != params.OrganizationID {
		return repository.ReassignResult{}, repository.ErrNotFound
	}
	if own.CurrentOwnerID != params.ExpectedOwnerID || own.Version != params.ExpectedVersion {
		return repository.ReassignResult{Outcome: domain.OutcomeStaleSkip}, nil
	}
	if params.DestinationOwnerID == nil {
		f.eventLog = append(f.eventLog, repository.ActivityEvent{
			LeadID:     params.LeadID,
			EventType:  domain.ActivityReassigned,
			Automatic:  params.Automatic,
			OccurredAt: params.Now,
		})
		return repository.ReassignResult{Outcome: domain.OutcomeNoDestinationSkip}, nil
	}

	previous := own.CurrentOwnerID
	own.PreviousOwnerID = &previous
	own.CurrentOwnerID = *params.DestinationOwnerID
	own.LastAssignedAt = params.Now
	own.ReassignmentCount++
	own.Version++
	f.eventLog = append(f.eventLog, repository.ActivityEvent{
		LeadID:     params.LeadID,
		EventType:  domain.ActivityReassigned,
		Automatic:  params.Automatic,
		OccurredAt: params.Now,
	})

	return repository.ReassignResult{
		Outcome:    domain.OutcomeApplied,
		NewOwnerID: params.DestinationOwnerID,
		NewVersion: own.Version,
	}, nil
}

func (f *sweepStore) ListActivityEvents(_ context.Context, leadID, _ uuid.UUID) ([]repository.ActivityEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.ActivityEvent, 0)
	for _, event := range f.eventLog {
		if event.LeadID == leadID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (f *sweepStore) GetActiveRule(_ context.Context, _ uuid.UUID) (*repository.Rule, error) {
	return f.rule, nil
}

func (f *sweepStore) ListOrganizationsWithActiveRules(_ context.Context) ([]uuid.UUID, error) {
	if f.rule == nil {
		return nil, nil
	}
	return []uuid.UUID{f.rule.OrganizationID}, nil
}

func (f *sweepStore) SetRule(_ context.Context, _ repository.SetRuleParams) (repository.Rule, error) {
	return repository.Rule{}, errors.New("not implemented")
}

type sweepDirectory struct {
	supervisors map[uuid.UUID]*uuid.UUID
	failFor     map[uuid.UUID]error
}

func (d *sweepDirectory) GetAgent(_ context.Context, agentID, organizationID uuid.UUID) (*service.AgentInfo, error) {
	return &service.AgentInfo{ID: agentID, OrganizationID: organizationID, Role: domain.RoleAgent}, nil
}

func (d *sweepDirectory) ResolveSupervisor(_ context.Context, agentID, _ uuid.UUID) (*uuid.UUID, error) {
	if err, ok := d.failFor[agentID]; ok {
		return nil, err
	}
	return d.supervisors[agentID], nil
}

type sweepHarness struct {
	store *sweepStore
	dir   *sweepDirectory
	sw    *Sweeper
	orgID uuid.UUID
}

func newSweepHarness(t *testing.T) *sweepHarness {
	t.Helper()

	h := &sweepHarness{
		store: newSweepStore(),
		dir: &sweepDirectory{
			supervisors: make(map[uuid.UUID]*uuid.UUID),
			failFor:     make(map[uuid.UUID]error),
		},
		orgID: uuid.New(),
	}
	svc := service.New(h.store, h.dir, nil, logger.New("development"))
	h.sw = New(svc, logger.New("development"), time.Second, 4)
	return h
}

// enableRule configures a 120-minute inactivity rule for agent-owned leads.
func (h *sweepHarness) enableRule() {
	h.store.rule = &repository.Rule{
		ID:                         uuid.New(),
		OrganizationID:             h.orgID,
		Enabled:                    true,
		InactivityThresholdMinutes: 120,
		ApplicableRoles:            []domain.Role{domain.RoleAgent},
		NotificationChannel:        domain.ChannelNone,
	}
}

func (h *sweepHarness) addLead(status domain.LifecycleStatus, role domain.Role, assignedAt time.Time, supervisorID *uuid.UUID) (leadID, ownerID uuid.UUID) {
	leadID = uuid.New()
	ownerID = uuid.New()
	h.store.addLead(repository.Ownership{
		LeadID:          leadID,
		OrganizationID:  h.orgID,
		CurrentOwnerID:  ownerID,
		LastAssignedAt:  assignedAt,
		LifecycleStatus: status,
		Version:         1,
	})
	h.store.ownerRoles[ownerID] = role
	if supervisorID != nil {
		h.dir.supervisors[ownerID] = supervisorID
	}
	return leadID, ownerID
}

// addStaleLead registers an agent-owned in-progress lead assigned well past
// the rule's threshold, and optionally a supervisor for the owner.
func (h *sweepHarness) addStaleLead(supervisorID *uuid.UUID) (leadID, ownerID uuid.UUID) {
	return h.addLead(domain.StatusInProgress, domain.RoleAgent, time.Now().Add(-3*time.Hour), supervisorID)
}

func (h *sweepHarness) recordActivity(leadID uuid.UUID, eventType domain.ActivityType, at time.Time) {
	h.store.eventLog = append(h.store.eventLog, repository.ActivityEvent{
		LeadID:         leadID,
		OrganizationID: h.orgID,
		EventType:      eventType,
		OccurredAt:     at,
	})
}

func TestRunOnceWithoutRule(t *testing.T) {
	h := newSweepHarness(t)

	result, err := h.sw.RunOnce(context.Background(), h.orgID)
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if result != (Result{}) {
		t.Fatalf("no rule must yield a zero result, got %+v", result)
	}
}

func TestRunOnceEscalatesStaleLeads(t *testing.T) {
	h := newSweepHarness(t)
	h.enableRule()

	supervisor := uuid.New()
	leadA, _ := h.addStaleLead(&supervisor)
	leadB, _ := h.addStaleLead(&supervisor)

	result, err := h.sw.RunOnce(context.Background(), h.orgID)
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if result.Applied != 2 || result.StaleSkipped != 0 || result.NoDestinationSkipped != 0 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 2 applied", result)
	}

	for _, leadID := range []uuid.UUID{leadA, leadB} {
		own, err := h.store.GetOwnership(context.Background(), leadID, h.orgID)
		if err != nil {
			t.Fatalf("GetOwnership returned error: %v", err)
		}
		if own.CurrentOwnerID != supervisor {
			t.Fatalf("lead %s not escalated to supervisor", leadID)
		}
		if own.Version != 2 || own.ReassignmentCount != 1 {
			t.Fatalf("lead %s version=%d count=%d, want 2/1", leadID, own.Version, own.ReassignmentCount)
		}
	}
}

func TestRunOnceSkipsRecentlyContactedLead(t *testing.T) {
	h := newSweepHarness(t)
	h.enableRule()
	h.store.rule.InactivityThresholdMinutes = 15

	// Assigned 16 minutes ago, contacted 6 minutes ago: the contact resets
	// the staleness clock, so the sweep must leave the lead alone.
	supervisor := uuid.New()
	assignedAt := time.Now().Add(-16 * time.Minute)
	leadID, _ := h.addLead(domain.StatusInProgress, domain.RoleAgent, assignedAt, &supervisor)
	h.recordActivity(leadID, domain.ActivityContacted, assignedAt.Add(10*time.Minute))

	result, err := h.sw.RunOnce(context.Background(), h.orgID)
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if result != (Result{}) {
		t.Fatalf("contacted lead must not escalate, result = %+v", result)
	}

	own, _ := h.store.GetOwnership(context.Background(), leadID, h.orgID)
	if own.Version != 1 || own.ReassignmentCount != 0 {
		t.Fatalf("lead was touched: version=%d count=%d", own.Version, own.ReassignmentCount)
	}
}

func TestRunOnceIgnoresNonQualifyingActivity(t *testing.T) {
	h := newSweepHarness(t)
	h.enableRule()

	// A document upload after assignment does not reset the clock.
	supervisor := uuid.New()
	leadID, _ := h.addStaleLead(&supervisor)
	h.recordActivity(leadID, domain.ActivityDocumentUploaded, time.Now().Add(-10*time.Minute))

	result, err := h.sw.RunOnce(context.Background(), h.orgID)
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if result.Applied != 1 {
		t.Fatalf("upload must not cancel the escalation, result = %+v", result)
	}
}

func TestRunOnceIgnoresRetiredLeads(t *testing.T) {
	h := newSweepHarness(t)
	h.enableRule()

	supervisor := uuid.New()
	longAgo := time.Now().Add(-48 * time.Hour)
	closed, _ := h.addLead(domain.StatusClosed, domain.RoleAgent, longAgo, &supervisor)
	lost, _ := h.addLead(domain.StatusLost, domain.RoleAgent, longAgo, &supervisor)
	qualified, _ := h.addLead(domain.StatusQualified, domain.RoleAgent, longAgo, &supervisor)

	result, err := h.sw.RunOnce(context.Background(), h.orgID)
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if result != (Result{}) {
		t.Fatalf("retired leads must never surface, result = %+v", result)
	}

	for _, leadID := range []uuid.UUID{closed, lost, qualified} {
		own, _ := h.store.GetOwnership(context.Background(), leadID, h.orgID)
		if own.Version != 1 {
			t.Fatalf("lead %s was touched", leadID)
		}
	}
}

func TestRunOnceHonorsRoleFilter(t *testing.T) {
	h := newSweepHarness(t)
	h.enableRule()

	// The rule covers agents only; a supervisor-owned lead sits outside it no
	// matter how stale it gets.
	supervisor := uuid.New()
	h.addLead(domain.StatusInProgress, domain.RoleSupervisor, time.Now().Add(-48*time.Hour), &supervisor)

	result, err := h.sw.RunOnce(context.Background(), h.orgID)
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if result != (Result{}) {
		t.Fatalf("out-of-rule owner must not escalate, result = %+v", result)
	}
}

func TestRunOnceHonorsThreshold(t *testing.T) {
	h := newSweepHarness(t)
	h.enableRule()
	h.store.rule.InactivityThresholdMinutes = 15

	supervisor := uuid.New()
	fresh, _ := h.addLead(domain.StatusInProgress, domain.RoleAgent, time.Now().Add(-14*time.Minute), &supervisor)
	stale, _ := h.addLead(domain.StatusInProgress, domain.RoleAgent, time.Now().Add(-16*time.Minute), &supervisor)

	result, err := h.sw.RunOnce(context.Background(), h.orgID)
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if result.Applied != 1 {
		t.Fatalf("result = %+v, want exactly the over-threshold lead applied", result)
	}

	freshOwn, _ := h.store.GetOwnership(context.Background(), fresh, h.orgID)
	if freshOwn.Version != 1 {
		t.Fatalf("under-threshold lead was escalated")
	}
	staleOwn, _ := h.store.GetOwnership(context.Background(), stale, h.orgID)
	if staleOwn.CurrentOwnerID != supervisor {
		t.Fatalf("over-threshold lead was not escalated")
	}
}

func TestRunOnceSkipsWithoutDestination(t *testing.T) {
	h := newSweepHarness(t)
	h.enableRule()

	leadID, _ := h.addStaleLead(nil)

	result, err := h.sw.RunOnce(context.Background(), h.orgID)
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if result.NoDestinationSkipped != 1 || result.Applied != 0 {
		t.Fatalf("result = %+v, want 1 no-destination skip", result)
	}

	own, _ := h.store.GetOwnership(context.Background(), leadID, h.orgID)
	if own.Version != 1 {
		t.Fatalf("no-destination skip must not bump the version")
	}
	events, _ := h.store.ListActivityEvents(context.Background(), leadID, h.orgID)
	if len(events) != 1 {
		t.Fatalf("skip must be audited, got %d events", len(events))
	}
}

func TestRunOnceCountsStaleSkips(t *testing.T) {
	h := newSweepHarness(t)
	h.enableRule()

	supervisor := uuid.New()
	leadID, _ := h.addStaleLead(&supervisor)

	// The lead changes between detection and execution: the observation is
	// outdated by the time the executor runs.
	h.store.afterDetect = func() {
		h.store.mu.Lock()
		h.store.leads[leadID].Version = 5
		h.store.mu.Unlock()
	}

	result, err := h.sw.RunOnce(context.Background(), h.orgID)
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if result.StaleSkipped != 1 || result.Applied != 0 {
		t.Fatalf("result = %+v, want 1 stale skip", result)
	}
	if h.store.leads[leadID].CurrentOwnerID == supervisor {
		t.Fatalf("stale skip must not transfer ownership")
	}
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	h := newSweepHarness(t)
	h.enableRule()

	supervisor := uuid.New()
	_, brokenOwner := h.addStaleLead(nil)
	h.dir.failFor[brokenOwner] = errors.New("directory unavailable")
	healthyLead, _ := h.addStaleLead(&supervisor)

	result, err := h.sw.RunOnce(context.Background(), h.orgID)
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("result = %+v, want 1 failure", result)
	}
	if result.Applied != 1 {
		t.Fatalf("a failing candidate must not block the others, result = %+v", result)
	}

	own, _ := h.store.GetOwnership(context.Background(), healthyLead, h.orgID)
	if own.CurrentOwnerID != supervisor {
		t.Fatalf("healthy candidate was not escalated")
	}
}

func TestRunOnceIsIdempotent(t *testing.T) {
	h := newSweepHarness(t)
	h.enableRule()

	supervisor := uuid.New()
	leadID, _ := h.addStaleLead(&supervisor)

	first, err := h.sw.RunOnce(context.Background(), h.orgID)
	if err != nil {
		t.Fatalf("first RunOnce returned error: %v", err)
	}
	if first.Applied != 1 {
		t.Fatalf("first sweep result = %+v, want 1 applied", first)
	}

	// The escalation reset the assignment clock and moved the lead to a
	// supervisor outside the rule; a second pass must find nothing.
	second, err := h.sw.RunOnce(context.Background(), h.orgID)
	if err != nil {
		t.Fatalf("second RunOnce returned error: %v", err)
	}
	if second != (Result{}) {
		t.Fatalf("second sweep result = %+v, want nothing to do", second)
	}

	own, _ := h.store.GetOwnership(context.Background(), leadID, h.orgID)
	if own.Version != 2 || own.ReassignmentCount != 1 {
		t.Fatalf("repeat sweeps must not stack transitions: version=%d count=%d", own.Version, own.ReassignmentCount)
	}
}

func TestRunAllAggregatesOrganizations(t *testing.T) {
	h := newSweepHarness(t)
	h.enableRule()

	supervisor := uuid.New()
	h.addStaleLead(&supervisor)
	h.addStaleLead(nil)

	result, err := h.sw.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll returned error: %v", err)
	}
	if result.Applied != 1 || result.NoDestinationSkipped != 1 {
		t.Fatalf("result = %+v, want 1 applied and 1 no-destination skip", result)
	}
}
