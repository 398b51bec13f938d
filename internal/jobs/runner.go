package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Regenerator is the authoritative timeline/distance sweep.
type Regenerator interface {
	Sweep(ctx context.Context) (int, error)
}

// AlertSweeper is the periodic no-signal detection pass.
type AlertSweeper interface {
	SweepNoSignal(ctx context.Context) error
}

// Runner drives the two server-side periodic jobs. They are independent
// tickers and may overlap with each other; per-session exclusivity is the
// regenerator's own advisory lock, not the runner's concern. Each sweep
// runs under a timeout with safe partial progress: whatever committed
// before an interruption stays valid.
type Runner struct {
	regen         Regenerator
	alerts        AlertSweeper
	regenInterval time.Duration
	alertInterval time.Duration
	sweepTimeout  time.Duration
	logger        *slog.Logger
}

func NewRunner(regen Regenerator, alerts AlertSweeper, regenInterval, alertInterval, sweepTimeout time.Duration, logger *slog.Logger) *Runner {
	if regenInterval <= 0 {
		regenInterval = 5 * time.Minute
	}
	if alertInterval <= 0 {
		alertInterval = time.Minute
	}
	if sweepTimeout <= 0 {
		sweepTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		regen:         regen,
		alerts:        alerts,
		regenInterval: regenInterval,
		alertInterval: alertInterval,
		sweepTimeout:  sweepTimeout,
		logger:        logger,
	}
}

// Run blocks until the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		r.loop(ctx, r.regenInterval, r.runRegen)
	}()
	go func() {
		defer wg.Done()
		r.loop(ctx, r.alertInterval, r.runAlerts)
	}()

	wg.Wait()
}

func (r *Runner) loop(ctx context.Context, interval time.Duration, sweep func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, r.sweepTimeout)
			sweep(sweepCtx)
			cancel()
		}
	}
}

func (r *Runner) runRegen(ctx context.Context) {
	start := time.Now()
	regenerated, err := r.regen.Sweep(ctx)
	if err != nil {
		r.logger.Warn("regeneration sweep interrupted",
			"regenerated", regenerated, "elapsed", time.Since(start), "error", err)
		return
	}
	r.logger.Info("regeneration sweep done",
		"regenerated", regenerated, "elapsed", time.Since(start))
}

func (r *Runner) runAlerts(ctx context.Context) {
	if err := r.alerts.SweepNoSignal(ctx); err != nil {
		r.logger.Warn("alert sweep failed", "error", err)
	}
}
