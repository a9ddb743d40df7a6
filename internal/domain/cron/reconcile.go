package cron

import (
	"context"
	"time"

	"github.com/scailotto/backend/internal/domain/allocation"
)

// ReconcileCronJob settles tickets which purchase requests left behind:
// processing purchases, timed out finality waits and orphaned reservations.
type ReconcileCronJob struct {
	engine   *allocation.Engine
	interval time.Duration
}

func NewReconcileCronJob(engine *allocation.Engine, interval time.Duration) *ReconcileCronJob {
	return &ReconcileCronJob{engine: engine, interval: interval}
}

func (job *ReconcileCronJob) Do(ctx context.Context) {
	job.engine.ReconcileAll(ctx)
}

func (job *ReconcileCronJob) RunNow() bool {
	return true
}

func (job *ReconcileCronJob) Next() time.Time {
	return time.Now().Add(job.interval)
}
