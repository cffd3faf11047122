package scheduler

import (
	"context"
	"time"

	"leaddesk_backend/platform/config"
	"leaddesk_backend/platform/logger"

	"github.com/google/uuid"
)

// OrganizationLister enumerates organizations that carry an active
// reassignment rule and are therefore due for sweeping.
type OrganizationLister interface {
	OrganizationsDue(ctx context.Context) ([]uuid.UUID, error)
}

// SweepDispatcher enqueues one sweep task per due organization on a fixed
// interval. The actual sweeping happens in the worker so multiple scheduler
// replicas can share one queue.
type SweepDispatcher struct {
	client   SweepEnqueuer
	orgs     OrganizationLister
	interval time.Duration
	log      *logger.Logger
}

func NewSweepDispatcher(client SweepEnqueuer, orgs OrganizationLister, cfg config.SweepConfig, log *logger.Logger) *SweepDispatcher {
	interval := cfg.GetSweepInterval()
	if interval <= 0 {
		interval = 2 * time.Minute
	}

	return &SweepDispatcher{
		client:   client,
		orgs:     orgs,
		interval: interval,
		log:      log,
	}
}

func (d *SweepDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.orgs == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		d.dispatch(ctx)
	}
}

func (d *SweepDispatcher) dispatch(ctx context.Context) {
	orgs, err := d.orgs.OrganizationsDue(ctx)
	if err != nil {
		d.log.Warn("failed to list organizations for sweep", "error", err)
		return
	}
	if len(orgs) == 0 {
		return
	}

	for _, orgID := range orgs {
		err := d.client.EnqueueSuccessionSweep(ctx, SuccessionSweepPayload{
			OrganizationID: orgID.String(),
		})
		if err != nil {
			d.log.Warn("failed to enqueue succession sweep", "organizationId", orgID, "error", err)
		}
	}
	d.log.Debug("succession sweeps enqueued", "organizations", len(orgs))
}
