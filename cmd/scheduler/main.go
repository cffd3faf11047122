package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leaddesk_backend/internal/adapters"
	"leaddesk_backend/internal/directory"
	"leaddesk_backend/internal/email"
	"leaddesk_backend/internal/events"
	"leaddesk_backend/internal/notification"
	"leaddesk_backend/internal/scheduler"
	"leaddesk_backend/internal/succession"
	"leaddesk_backend/platform/config"
	"leaddesk_backend/platform/db"
	"leaddesk_backend/platform/logger"
	"leaddesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	val := validator.New()

	directoryModule := directory.NewModule(pool, val)
	hierarchy := adapters.NewHierarchyDirectory(directoryModule.Repository())
	successionModule := succession.NewModule(pool, hierarchy, eventBus, val, cfg, log)

	notificationModule := notification.New(pool, sender, log)
	notificationModule.RegisterHandlers(eventBus)
	notificationModule.SetRuleReader(successionModule.Service())
	notificationModule.SetAgentReader(directoryModule.Repository())

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	dispatcher := scheduler.NewSweepDispatcher(client, successionModule.Service(), cfg, log)
	go dispatcher.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, successionModule.Sweeper(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
