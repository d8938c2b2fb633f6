package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/cradoe/skypay/internal/onboarding"
)

type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (onboarding.SweepReport, error)
}

// StartSweeper runs the sweeper on a fixed interval until the returned scheduler
// is stopped. Runs never overlap.
func (wk *Worker) StartSweeper(sweeper Sweeper, interval time.Duration) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	_, err := scheduler.Every(interval).Do(wk.runSweep, sweeper)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule sweep: %w", err)
	}

	scheduler.StartAsync()

	return scheduler, nil
}

func (wk *Worker) runSweep(sweeper Sweeper) {
	if wk.Ctx.Err() != nil {
		return
	}

	started := time.Now()

	report, err := sweeper.Sweep(wk.Ctx, started.UTC())
	if err != nil {
		wk.Logger.Error("sweep failed", "error", err)
		return
	}

	wk.Logger.Info("sweep completed",
		"scanned", report.Scanned,
		"expired", report.Expired,
		"escalated", report.Escalated,
		"consents_expired", report.ConsentsExpired,
		"reverification", report.Reverification,
		"took", time.Since(started),
	)
}
