package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"timelens/internal/config"
	mem "timelens/pkg/memcache"
)

const reconcileTimeout = 5 * time.Minute

// ReconcileService periodically persists lapsed cancellations back to the
// free plan and evicts expired webhook dedupe entries.
type ReconcileService struct {
	cron          *cron.Cron
	spec          string
	subscriptions SubscriptionServiceInterface
	seen          *mem.SeenEvents
	log           *zap.Logger
}

func NewReconcileService(cfg config.Config, subscriptions SubscriptionServiceInterface, seen *mem.SeenEvents, log *zap.Logger) *ReconcileService {
	return &ReconcileService{
		cron:          cron.New(),
		spec:          cfg.Quota.ReconcileCron,
		subscriptions: subscriptions,
		seen:          seen,
		log:           log.Named("reconcile"),
	}
}

// Start registers the sweep job and starts the scheduler.
func (r *ReconcileService) Start() error {
	if _, err := r.cron.AddFunc(r.spec, r.runJob); err != nil {
		return fmt.Errorf("reconcile: invalid schedule %q: %w", r.spec, err)
	}
	r.cron.Start()
	r.log.Info("reconcile scheduler started", zap.String("schedule", r.spec))
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (r *ReconcileService) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *ReconcileService) runJob() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()
	if _, err := r.RunOnce(ctx); err != nil {
		r.log.Error("reconcile sweep failed", zap.Error(err))
	}
}

// RunOnce performs one sweep and reports how many users reverted to free.
func (r *ReconcileService) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	reverted, err := r.subscriptions.ExpireLapsed(ctx)
	evicted := r.seen.Sweep()
	r.log.Info("reconcile sweep finished",
		zap.Int("reverted", reverted),
		zap.Int("evicted_events", evicted),
		zap.Duration("took", time.Since(start)))
	return reverted, err
}
