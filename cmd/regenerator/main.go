// The regenerator binary consumes task-events and creates the next
// occurrence of completed recurring tasks through the Task API.
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

	"github.com/taskloop/taskloop/internal/application/regen"
	"github.com/taskloop/taskloop/internal/bus"
	"github.com/taskloop/taskloop/internal/config"
	"github.com/taskloop/taskloop/internal/event"
	httpserver "github.com/taskloop/taskloop/internal/infrastructure/http"
	"github.com/taskloop/taskloop/internal/infrastructure/persistence/postgres"
	"github.com/taskloop/taskloop/internal/taskclient"
	"github.com/taskloop/taskloop/pkg/observability"
)

const serviceName = "taskloop-regenerator"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadRegenerator()
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

	slog.InfoContext(ctx, "starting regenerator")

	store, err := postgres.NewRegenStore(ctx, postgres.DBConfig{
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

	consumer := cfg.Bus.Consumer
	if consumer == "" {
		consumer, _ = os.Hostname()
	}
	eventBus := bus.NewRedisBus(redisClient, bus.Config{
		Shards:   cfg.Bus.Shards,
		Group:    cfg.Bus.Group,
		Consumer: consumer,
	})

	client := taskclient.New(cfg.TaskAPIBaseURL)
	regenService := regen.NewService(store, client)

	healthServer := httpserver.NewHealthServer(httpserver.ServerConfig{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := eventBus.Consume(gctx, event.TopicTaskEvents, regenService.Handle); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("task-events consumer failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("regenerator shut down gracefully")
	return nil
}
