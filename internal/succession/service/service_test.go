package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"leaddesk_backend/internal/events"
	"leaddesk_backend/internal/succession/domain"
	"leaddesk_backend/internal/succession/repository"
	"leaddesk_backend/platform/apperr"
	"leaddesk_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store with the same compare-and-swap semantics as
// the pgx repository: the owner/version comparison and the mutation happen
// under one lock, so concurrent attempts see exactly one winner.
type fakeStore struct {
	mu          sync.Mutex
	leads       map[uuid.UUID]*repository.Ownership
	eventLog    []repository.ActivityEvent
	rule        *repository.Rule
	candidates  []repository.Candidate
	reassignErr error

	// afterGetOwnership runs after a successful ownership read, letting tests
	// interleave a competing write between the read and the transition.
	afterGetOwnership func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{leads: make(map[uuid.UUID]*repository.Ownership)}
}

func (f *fakeStore) addLead(own repository.Ownership) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := own
	f.leads[own.LeadID] = &copied
}

func (f *fakeStore) lead(id uuid.UUID) repository.Ownership {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.leads[id]
}

func (f *fakeStore) GetOwnership(_ context.Context, leadID, organizationID uuid.UUID) (repository.Ownership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	own, ok := f.leads[leadID]
	if !ok || own.OrganizationID != organizationID {
		return repository.Ownership{}, repository.ErrNotFound
	}
	snapshot := *own
	if f.afterGetOwnership != nil {
		f.afterGetOwnership()
	}
	return snapshot, nil
}

func (f *fakeStore) FindStaleLeads(_ context.Context, _ uuid.UUID, _ repository.Rule, _ time.Time) ([]repository.Candidate, error) {
	return f.candidates, nil
}

func (f *fakeStore) ListPendingEscalations(_ context.Context, organizationID uuid.UUID, _ repository.Rule, _ time.Time) ([]repository.Ownership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.Ownership, 0)
	for _, c := range f.candidates {
		if own, ok := f.leads[c.LeadID]; ok && own.OrganizationID == organizationID {
			out = append(out, *own)
		}
	}
	return out, nil
}

func (f *fakeStore) Reassign(_ context.Context, params repository.ReassignParams) (repository.ReassignResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.reassignErr != nil {
		return repository.ReassignResult{}, f.reassignErr
	}

	own, ok := f.leads[params.LeadID]
	if !ok || own.OrganizationID != params.OrganizationID {
		return repository.ReassignResult{}, repository.ErrNotFound
	}

	if own.CurrentOwnerID != params.ExpectedOwnerID || own.Version != params.ExpectedVersion {
		return repository.ReassignResult{Outcome: domain.OutcomeStaleSkip}, nil
	}

	actorType := domain.ActorSystem
	if params.ActorID != nil {
		actorType = domain.ActorAgent
	}

	if params.DestinationOwnerID == nil {
		f.eventLog = append(f.eventLog, repository.ActivityEvent{
			ID:             uuid.New(),
			LeadID:         params.LeadID,
			OrganizationID: params.OrganizationID,
			EventType:      domain.ActivityReassigned,
			ActorType:      actorType,
			ActorID:        params.ActorID,
			Automatic:      params.Automatic,
			Metadata:       map[string]any{"skipped": "no_destination", "reason": params.Reason},
			OccurredAt:     params.Now,
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
		ID:             uuid.New(),
		LeadID:         params.LeadID,
		OrganizationID: params.OrganizationID,
		EventType:      domain.ActivityReassigned,
		ActorType:      actorType,
		ActorID:        params.ActorID,
		Automatic:      params.Automatic,
		Metadata:       map[string]any{"from": previous.String(), "to": params.DestinationOwnerID.String(), "reason": params.Reason},
		OccurredAt:     params.Now,
	})

	return repository.ReassignResult{
		Outcome:    domain.OutcomeApplied,
		NewOwnerID: params.DestinationOwnerID,
		NewVersion: own.Version,
	}, nil
}

func (f *fakeStore) ListActivityEvents(_ context.Context, leadID, _ uuid.UUID) ([]repository.ActivityEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.ActivityEvent, 0)
	for i := len(f.eventLog) - 1; i >= 0; i-- {
		if f.eventLog[i].LeadID == leadID {
			out = append(out, f.eventLog[i])
		}
	}
	return out, nil
}

func (f *fakeStore) GetActiveRule(_ context.Context, _ uuid.UUID) (*repository.Rule, error) {
	return f.rule, nil
}

func (f *fakeStore) ListOrganizationsWithActiveRules(_ context.Context) ([]uuid.UUID, error) {
	if f.rule == nil {
		return nil, nil
	}
	return []uuid.UUID{f.rule.OrganizationID}, nil
}

func (f *fakeStore) SetRule(_ context.Context, params repository.SetRuleParams) (repository.Rule, error) {
	rule := repository.Rule{
		ID:                         uuid.New(),
		OrganizationID:             params.OrganizationID,
		Enabled:                    params.Enabled,
		InactivityThresholdMinutes: params.InactivityThresholdMinutes,
		ApplicableRoles:            params.ApplicableRoles,
		NotificationChannel:        params.NotificationChannel,
		CreatedAt:                  time.Now(),
	}
	f.mu.Lock()
	f.rule = &rule
	f.mu.Unlock()
	return rule, nil
}

type fakeDirectory struct {
	agents map[uuid.UUID]AgentInfo
}

func (d *fakeDirectory) GetAgent(_ context.Context, agentID, organizationID uuid.UUID) (*AgentInfo, error) {
	agent, ok := d.agents[agentID]
	if !ok || agent.OrganizationID != organizationID {
		return nil, nil
	}
	return &agent, nil
}

func (d *fakeDirectory) ResolveSupervisor(_ context.Context, agentID, organizationID uuid.UUID) (*uuid.UUID, error) {
	agent, ok := d.agents[agentID]
	if !ok || agent.OrganizationID != organizationID {
		return nil, nil
	}
	return agent.SupervisorID, nil
}

type captureBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *captureBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	b.published = append(b.published, event)
	b.mu.Unlock()
}

func (b *captureBus) PublishSync(_ context.Context, event events.Event) error {
	b.Publish(context.Background(), event)
	return nil
}

func (b *captureBus) Subscribe(string, events.Handler) {}

func (b *captureBus) events() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.published...)
}

type harness struct {
	store *fakeStore
	dir   *fakeDirectory
	bus   *captureBus
	svc   *Service

	orgID        uuid.UUID
	agentID      uuid.UUID
	supervisorID uuid.UUID
	leadID       uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:        newFakeStore(),
		bus:          &captureBus{},
		orgID:        uuid.New(),
		agentID:      uuid.New(),
		supervisorID: uuid.New(),
		leadID:       uuid.New(),
	}
	h.dir = &fakeDirectory{agents: map[uuid.UUID]AgentInfo{
		h.agentID: {
			ID:             h.agentID,
			OrganizationID: h.orgID,
			FirstName:      "Anna",
			LastName:       "de Vries",
			Email:          "anna@example.com",
			Role:           domain.RoleAgent,
			SupervisorID:   &h.supervisorID,
		},
		h.supervisorID: {
			ID:             h.supervisorID,
			OrganizationID: h.orgID,
			FirstName:      "Bram",
			LastName:       "Jansen",
			Email:          "bram@example.com",
			Role:           domain.RoleSupervisor,
		},
	}}

	h.store.addLead(repository.Ownership{
		LeadID:          h.leadID,
		OrganizationID:  h.orgID,
		CurrentOwnerID:  h.agentID,
		LastAssignedAt:  time.Now().Add(-2 * time.Hour),
		LifecycleStatus: domain.StatusInProgress,
		Version:         1,
	})

	h.svc = New(h.store, h.dir, h.bus, logger.New("development"))
	return h
}

func TestManualReassignRequiresSupervisor(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ManualReassign(context.Background(), h.leadID, h.orgID, h.supervisorID, h.agentID, "handover")
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden error for agent caller, got %v", err)
	}
	if got := h.store.lead(h.leadID).CurrentOwnerID; got != h.agentID {
		t.Fatalf("ownership must not change on rejected override, owner = %s", got)
	}
}

func TestManualReassignUnknownLead(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ManualReassign(context.Background(), uuid.New(), h.orgID, h.agentID, h.supervisorID, "handover")
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestManualReassignUnknownTarget(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ManualReassign(context.Background(), h.leadID, h.orgID, uuid.New(), h.supervisorID, "handover")
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found error for unknown target, got %v", err)
	}
}

func TestManualReassignApplied(t *testing.T) {
	h := newHarness(t)

	result, err := h.svc.ManualReassign(context.Background(), h.leadID, h.orgID, h.supervisorID, h.supervisorID, "vacation handover")
	if err != nil {
		t.Fatalf("ManualReassign returned error: %v", err)
	}
	if result.Outcome != domain.OutcomeApplied {
		t.Fatalf("outcome = %s, want applied", result.Outcome)
	}

	own := h.store.lead(h.leadID)
	if own.CurrentOwnerID != h.supervisorID {
		t.Fatalf("current owner = %s, want %s", own.CurrentOwnerID, h.supervisorID)
	}
	if own.PreviousOwnerID == nil || *own.PreviousOwnerID != h.agentID {
		t.Fatalf("previous owner not recorded")
	}
	if own.Version != 2 {
		t.Fatalf("version = %d, want 2", own.Version)
	}
	if own.ReassignmentCount != 1 {
		t.Fatalf("reassignment count = %d, want 1", own.ReassignmentCount)
	}

	history, err := h.svc.GetActivityHistory(context.Background(), h.leadID, h.orgID)
	if err != nil {
		t.Fatalf("GetActivityHistory returned error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected exactly one audit event, got %d", len(history))
	}
	event := history[0]
	if event.EventType != domain.ActivityReassigned {
		t.Fatalf("event type = %s, want reassigned", event.EventType)
	}
	if event.ActorType != domain.ActorAgent || event.ActorID == nil || *event.ActorID != h.supervisorID {
		t.Fatalf("manual override must record the acting supervisor")
	}
	if event.Automatic {
		t.Fatalf("manual override must not be marked automatic")
	}
}

func TestReassignStaleSkipOnVersionMismatch(t *testing.T) {
	h := newHarness(t)

	// Another writer bumps the version between the caller's read and the
	// attempt.
	h.store.mu.Lock()
	h.store.leads[h.leadID].Version = 7
	h.store.mu.Unlock()

	dest := h.supervisorID
	result, err := h.svc.Reassign(context.Background(), ReassignInput{
		LeadID:             h.leadID,
		OrganizationID:     h.orgID,
		ExpectedOwnerID:    h.agentID,
		ExpectedVersion:    1,
		DestinationOwnerID: &dest,
		Reason:             "stale attempt",
	})
	if err != nil {
		t.Fatalf("Reassign returned error: %v", err)
	}
	if result.Outcome != domain.OutcomeStaleSkip {
		t.Fatalf("outcome = %s, want stale_skip", result.Outcome)
	}
	if own := h.store.lead(h.leadID); own.CurrentOwnerID != h.agentID {
		t.Fatalf("stale skip must not change ownership")
	}
}

func TestManualReassignSurfacesLostRaceAsConflict(t *testing.T) {
	h := newHarness(t)

	// A competing writer wins after ManualReassign's ownership read.
	fired := false
	h.store.afterGetOwnership = func() {
		if !fired {
			fired = true
			h.store.leads[h.leadID].Version++
		}
	}

	_, err := h.svc.ManualReassign(context.Background(), h.leadID, h.orgID, h.supervisorID, h.supervisorID, "handover")
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("lost race must surface as a conflict, got %v", err)
	}

	// A retry with a fresh read succeeds.
	h.store.afterGetOwnership = nil
	result, err := h.svc.ManualReassign(context.Background(), h.leadID, h.orgID, h.supervisorID, h.supervisorID, "handover")
	if err != nil {
		t.Fatalf("retry after conflict must succeed, got %v", err)
	}
	if result.Outcome != domain.OutcomeApplied {
		t.Fatalf("retry outcome = %s, want applied", result.Outcome)
	}
}

func TestReassignNoDestinationSkip(t *testing.T) {
	h := newHarness(t)

	result, err := h.svc.Reassign(context.Background(), ReassignInput{
		LeadID:          h.leadID,
		OrganizationID:  h.orgID,
		ExpectedOwnerID: h.agentID,
		ExpectedVersion: 1,
		Reason:          "120-minute inactivity timeout",
		Automatic:       true,
	})
	if err != nil {
		t.Fatalf("Reassign returned error: %v", err)
	}
	if result.Outcome != domain.OutcomeNoDestinationSkip {
		t.Fatalf("outcome = %s, want no_destination_skip", result.Outcome)
	}

	own := h.store.lead(h.leadID)
	if own.CurrentOwnerID != h.agentID || own.Version != 1 {
		t.Fatalf("no-destination skip must not change ownership or version")
	}

	history, _ := h.svc.GetActivityHistory(context.Background(), h.leadID, h.orgID)
	if len(history) != 1 {
		t.Fatalf("skip must still be audited, got %d events", len(history))
	}
	if history[0].ActorType != domain.ActorSystem {
		t.Fatalf("automatic skip must be attributed to the system")
	}
	if len(h.bus.events()) != 0 {
		t.Fatalf("skips must not publish reassignment events")
	}
}

func TestReassignPublishesEventOnApplied(t *testing.T) {
	h := newHarness(t)

	dest := h.supervisorID
	_, err := h.svc.Reassign(context.Background(), ReassignInput{
		LeadID:             h.leadID,
		OrganizationID:     h.orgID,
		ExpectedOwnerID:    h.agentID,
		ExpectedVersion:    1,
		DestinationOwnerID: &dest,
		Reason:             "120-minute inactivity timeout",
		Automatic:          true,
	})
	if err != nil {
		t.Fatalf("Reassign returned error: %v", err)
	}

	published := h.bus.events()
	if len(published) != 1 {
		t.Fatalf("expected one published event, got %d", len(published))
	}
	reassigned, ok := published[0].(events.LeadReassigned)
	if !ok {
		t.Fatalf("published event has type %T", published[0])
	}
	if reassigned.NewOwnerID != h.supervisorID || reassigned.PreviousOwnerID != h.agentID {
		t.Fatalf("event owners do not match the transition")
	}
	if !reassigned.Automatic {
		t.Fatalf("sweep transition must be marked automatic")
	}
}

func TestConcurrentReassignExactlyOneWinner(t *testing.T) {
	h := newHarness(t)

	dest := h.supervisorID
	input := ReassignInput{
		LeadID:             h.leadID,
		OrganizationID:     h.orgID,
		ExpectedOwnerID:    h.agentID,
		ExpectedVersion:    1,
		DestinationOwnerID: &dest,
		Reason:             "concurrent sweep tick",
		Automatic:          true,
	}

	results := make([]repository.ReassignResult, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			result, err := h.svc.Reassign(context.Background(), input)
			if err != nil {
				t.Errorf("Reassign returned error: %v", err)
				return
			}
			results[idx] = result
		}(i)
	}
	wg.Wait()

	applied, skipped := 0, 0
	for _, result := range results {
		switch result.Outcome {
		case domain.OutcomeApplied:
			applied++
		case domain.OutcomeStaleSkip:
			skipped++
		}
	}
	if applied != 1 || skipped != 1 {
		t.Fatalf("expected exactly one winner and one stale skip, got applied=%d skipped=%d", applied, skipped)
	}

	own := h.store.lead(h.leadID)
	if own.Version != 2 || own.ReassignmentCount != 1 {
		t.Fatalf("double application detected: version=%d count=%d", own.Version, own.ReassignmentCount)
	}

	history, _ := h.svc.GetActivityHistory(context.Background(), h.leadID, h.orgID)
	if len(history) != 1 {
		t.Fatalf("expected one audit event for one applied transition, got %d", len(history))
	}
}

func TestGetPendingEscalationsWithoutRule(t *testing.T) {
	h := newHarness(t)

	pending, err := h.svc.GetPendingEscalations(context.Background(), h.orgID, time.Now())
	if err != nil {
		t.Fatalf("GetPendingEscalations returned error: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("no rule means no pending escalations, got %d", len(pending))
	}
}

func TestDetectStaleWithoutRule(t *testing.T) {
	h := newHarness(t)

	rule, candidates, err := h.svc.DetectStale(context.Background(), h.orgID, time.Now())
	if err != nil {
		t.Fatalf("DetectStale returned error: %v", err)
	}
	if rule != nil || candidates != nil {
		t.Fatalf("no enabled rule must yield no candidates")
	}
}

func TestGetActivityHistoryUnknownLead(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.GetActivityHistory(context.Background(), uuid.New(), h.orgID)
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestSetRuleValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.SetRule(context.Background(), repository.SetRuleParams{
		OrganizationID:             h.orgID,
		Enabled:                    true,
		InactivityThresholdMinutes: 0,
		NotificationChannel:        domain.ChannelEmail,
	})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("zero threshold must be rejected, got %v", err)
	}

	_, err = h.svc.SetRule(context.Background(), repository.SetRuleParams{
		OrganizationID:             h.orgID,
		Enabled:                    true,
		InactivityThresholdMinutes: 60,
		NotificationChannel:        "carrier_pigeon",
	})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("unknown channel must be rejected, got %v", err)
	}

	_, err = h.svc.SetRule(context.Background(), repository.SetRuleParams{
		OrganizationID:             h.orgID,
		Enabled:                    true,
		InactivityThresholdMinutes: 60,
		ApplicableRoles:            []domain.Role{"janitor"},
		NotificationChannel:        domain.ChannelEmail,
	})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("unknown role must be rejected, got %v", err)
	}

	rule, err := h.svc.SetRule(context.Background(), repository.SetRuleParams{
		OrganizationID:             h.orgID,
		Enabled:                    true,
		InactivityThresholdMinutes: 60,
		NotificationChannel:        domain.ChannelNone,
	})
	if err != nil {
		t.Fatalf("SetRule returned error: %v", err)
	}
	if len(rule.ApplicableRoles) != 1 || rule.ApplicableRoles[0] != domain.RoleAgent {
		t.Fatalf("empty roles must default to [agent], got %v", rule.ApplicableRoles)
	}
}
