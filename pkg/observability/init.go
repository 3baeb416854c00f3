package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// shutdownFunc releases one provider.
type shutdownFunc func(ctx context.Context) error

// Telemetry bundles the initialized providers so services can shut them down
// in one call.
type Telemetry struct {
	shutdowns []shutdownFunc
}

// Init sets up logging, tracing and metrics for one service and installs the
// returned logger as the slog default. Callers must defer Shutdown.
func Init(ctx context.Context, serviceName string, enabled bool) (*Telemetry, error) {
	t := &Telemetry{}

	lp, logger, err := InitLogger(ctx, serviceName, enabled)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	slog.SetDefault(logger)
	t.shutdowns = append(t.shutdowns, lp.Shutdown)

	tp, err := InitTracerProvider(ctx, serviceName, enabled)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracer provider: %w", err)
	}
	t.shutdowns = append(t.shutdowns, tp.Shutdown)

	mp, err := InitMeterProvider(ctx, serviceName, enabled)
	if err != nil {
		return nil, fmt.Errorf("failed to init meter provider: %w", err)
	}
	t.shutdowns = append(t.shutdowns, mp.Shutdown)

	return t, nil
}

// Shutdown flushes and releases all providers. A bounded timeout keeps an
// unreachable collector from hanging process exit.
func (t *Telemetry) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, shutdown := range t.shutdowns {
		if err := shutdown(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to shutdown telemetry provider", "error", err)
		}
	}
}
