package scheduler

import (
	"context"
	"fmt"

	"leaddesk_backend/internal/succession/sweep"
	"leaddesk_backend/platform/config"
	"leaddesk_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	sweeper *sweep.Sweeper
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sweeper *sweep.Sweeper, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		sweeper: sweeper,
		log:     log,
	}

	mux.HandleFunc(TaskSuccessionSweep, w.handleSuccessionSweep)

	return w, nil
}

func (w *Worker) handleSuccessionSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSuccessionSweepPayload(task)
	if err != nil {
		return err
	}

	orgID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		return err
	}

	result, err := w.sweeper.RunOnce(ctx, orgID)
	if err != nil {
		return err
	}

	if result.Failed > 0 {
		w.log.Warn("sweep finished with failures",
			"organizationId", orgID,
			"applied", result.Applied,
			"failed", result.Failed,
		)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
