// Package sweep drives the periodic escalation pass: detector, then the
// executor per candidate, with per-candidate failure isolation.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leaddesk_backend/internal/succession/domain"
	"leaddesk_backend/internal/succession/service"
	"leaddesk_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Result aggregates one tick's outcomes for observability.
type Result struct {
	Applied              int `json:"applied"`
	StaleSkipped         int `json:"staleSkipped"`
	NoDestinationSkipped int `json:"noDestinationSkipped"`
	Failed               int `json:"failed"`
}

func (r *Result) add(other Result) {
	r.Applied += other.Applied
	r.StaleSkipped += other.StaleSkipped
	r.NoDestinationSkipped += other.NoDestinationSkipped
	r.Failed += other.Failed
}

// Sweeper runs escalation sweeps. It holds no per-lead state; the executor's
// transaction is the only synchronization point, so multiple sweeper
// replicas stay correct.
type Sweeper struct {
	svc              *service.Service
	log              *logger.Logger
	candidateTimeout time.Duration
	concurrency      int
}

func New(svc *service.Service, log *logger.Logger, candidateTimeout time.Duration, concurrency int) *Sweeper {
	if candidateTimeout <= 0 {
		candidateTimeout = 10 * time.Second
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Sweeper{
		svc:              svc,
		log:              log,
		candidateTimeout: candidateTimeout,
		concurrency:      concurrency,
	}
}

// RunOnce sweeps a single organization and returns the aggregate result.
// Functionally identical to one scheduled tick for that organization.
func (s *Sweeper) RunOnce(ctx context.Context, organizationID uuid.UUID) (Result, error) {
	started := time.Now()

	rule, candidates, err := s.svc.DetectStale(ctx, organizationID, time.Now())
	if err != nil {
		return Result{}, err
	}
	if rule == nil {
		return Result{}, nil
	}

	reason := fmt.Sprintf("%d-minute inactivity timeout", rule.InactivityThresholdMinutes)

	var mu sync.Mutex
	var result Result

	// Candidates are independent; a failure on one must not touch the rest.
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(s.concurrency)
	for _, candidate := range candidates {
		g.Go(func() error {
			outcome := s.processCandidate(gctx, organizationID, candidate.LeadID, candidate.CurrentOwnerID, candidate.ObservedVersion, reason)
			mu.Lock()
			result.add(outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.log.SweepCompleted(organizationID.String(),
		result.Applied, result.StaleSkipped, result.NoDestinationSkipped, result.Failed,
		float64(time.Since(started).Milliseconds()))

	return result, nil
}

// RunAll sweeps every organization with an enabled rule. Per-organization
// failures are logged and folded into the failure count.
func (s *Sweeper) RunAll(ctx context.Context) (Result, error) {
	orgs, err := s.svc.OrganizationsDue(ctx)
	if err != nil {
		return Result{}, err
	}

	var total Result
	for _, orgID := range orgs {
		partial, err := s.RunOnce(ctx, orgID)
		if err != nil {
			s.log.Error("sweep failed for organization", "organization_id", orgID, "error", err)
			total.Failed++
			continue
		}
		total.add(partial)
	}
	return total, nil
}

func (s *Sweeper) processCandidate(ctx context.Context, organizationID, leadID, ownerID uuid.UUID, observedVersion int64, reason string) Result {
	cctx, cancel := context.WithTimeout(ctx, s.candidateTimeout)
	defer cancel()

	destination, err := s.svc.ResolveSupervisor(cctx, ownerID, organizationID)
	if err != nil {
		s.log.Error("supervisor lookup failed", "lead_id", leadID, "owner_id", ownerID, "error", err)
		return Result{Failed: 1}
	}

	result, err := s.svc.Reassign(cctx, service.ReassignInput{
		LeadID:             leadID,
		OrganizationID:     organizationID,
		ExpectedOwnerID:    ownerID,
		ExpectedVersion:    observedVersion,
		DestinationOwnerID: destination,
		Reason:             reason,
		Automatic:          true,
		ActorID:            nil,
	})
	if err != nil {
		// Transient store failure: counted, retried naturally next tick if
		// the lead is still stale.
		s.log.Error("escalation failed", "lead_id", leadID, "error", err)
		return Result{Failed: 1}
	}

	switch result.Outcome {
	case domain.OutcomeApplied:
		return Result{Applied: 1}
	case domain.OutcomeStaleSkip:
		return Result{StaleSkipped: 1}
	case domain.OutcomeNoDestinationSkip:
		return Result{NoDestinationSkipped: 1}
	}
	return Result{}
}
