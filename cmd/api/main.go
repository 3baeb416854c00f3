// The api binary serves the Task API: the user-facing HTTP surface, the
// outbox dispatcher and the embedded reminder scheduler, all in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/taskloop/taskloop/internal/application/reminder"
	"github.com/taskloop/taskloop/internal/application/task"
	"github.com/taskloop/taskloop/internal/auth"
	"github.com/taskloop/taskloop/internal/bus"
	"github.com/taskloop/taskloop/internal/config"
	httpserver "github.com/taskloop/taskloop/internal/infrastructure/http"
	"github.com/taskloop/taskloop/internal/infrastructure/http/handler"
	"github.com/taskloop/taskloop/internal/infrastructure/persistence/postgres"
	"github.com/taskloop/taskloop/internal/outbox"
	"github.com/taskloop/taskloop/internal/scheduler"
	"github.com/taskloop/taskloop/pkg/observability"
)

const serviceName = "taskloop-api"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadAPI()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	telemetry, err := observability.Init(ctx, serviceName, cfg.Observability.OTelEnabled)
	if err != nil {
		return err
	}
	defer telemetry.Shutdown()

	slog.InfoContext(ctx, "starting task api")

	store, err := postgres.NewTaskStore(ctx, postgres.DBConfig{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close()

	redisOpts, err := redis.ParseURL(cfg.Bus.URL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	eventBus := bus.NewRedisBus(redisClient, bus.Config{Shards: cfg.Bus.Shards})

	taskService := task.NewService(store, task.Config{
		OutboxHighWater: cfg.OutboxHighWater,
	})
	reminderService := reminder.NewService(store, reminder.Config{
		CallbackURL: cfg.CallbackBaseURL + "/internal/jobs/reminder-trigger",
	})

	apiHandler := handler.NewTaskHandler(taskService, reminderService)
	internalHandler := handler.NewInternalHandler(taskService, reminderService)
	validator := auth.NewTokenValidator(cfg.JWTSecret)

	server := httpserver.NewAPIServer(
		apiHandler.Routes(),
		internalHandler.Routes(),
		validator,
		httpserver.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
		},
	)

	dispatcher := outbox.NewDispatcher(store, eventBus, outbox.Config{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	})
	schedulerWorker := scheduler.NewWorker(store, scheduler.Config{
		PollInterval: cfg.SchedulerPollInterval,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := dispatcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("outbox dispatcher failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := schedulerWorker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler worker failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("task api shut down gracefully")
	return nil
}
