// Package scheduler запускает периодическую сверку бюджетов и балансов.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/mmeshcher/engagemart/internal/service"
)

// Reconciler выполняет одну сверку.
type Reconciler interface {
	Reconcile(ctx context.Context) (*service.ReconcileReport, error)
}

// Scheduler: обёртка над gocron с задачей сверки.
type Scheduler struct {
	sched  gocron.Scheduler
	logger *zap.Logger
}

// Start запускает сверку сразу и далее каждые interval. Задачи не накладываются:
// если предыдущая сверка ещё идёт, очередной запуск пропускается.
func Start(ctx context.Context, interval time.Duration, r Reconciler, logger *zap.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("reconcile interval must be positive, got %s", interval)
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	s := &Scheduler{sched: sched, logger: logger}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.reconcile(ctx, r) }),
		gocron.WithName("reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule reconcile: %w", err)
	}

	sched.Start()
	return s, nil
}

func (s *Scheduler) reconcile(ctx context.Context, r Reconciler) {
	if ctx.Err() != nil {
		return
	}

	report, err := r.Reconcile(ctx)
	if err != nil {
		s.logger.Error("reconcile failed", zap.Error(err))
		return
	}

	for _, f := range report.Findings {
		s.logger.Warn("reconcile finding",
			zap.String("entity", f.Entity),
			zap.String("id", f.ID),
			zap.String("problem", f.Problem),
		)
	}
	s.logger.Debug("reconcile finished",
		zap.Int("users", report.CheckedUsers),
		zap.Int("campaigns", report.CheckedCampaigns),
		zap.Int("findings", len(report.Findings)),
	)
}

// Shutdown останавливает планировщик и дожидается выполняющихся задач.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
