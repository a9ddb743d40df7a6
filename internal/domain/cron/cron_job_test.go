package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scailotto/backend/pkg/logger"
	"github.com/scailotto/backend/pkg/xcontext"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runNow bool
	count  atomic.Int32
}

func (job *countingJob) Do(context.Context) {
	job.count.Add(1)
}

func (job *countingJob) RunNow() bool {
	return job.runNow
}

func (job *countingJob) Next() time.Time {
	return time.Now().Add(10 * time.Millisecond)
}

func Test_CronJobManager(t *testing.T) {
	ctx := xcontext.WithLogger(context.Background(), logger.NewNopLogger())
	ctx, cancel := context.WithCancel(ctx)

	immediate := &countingJob{runNow: true}
	delayed := &countingJob{}

	manager := NewCronJobManager()
	manager.Register(immediate)
	manager.Register(delayed)

	stopped := make(chan struct{})
	go func() {
		manager.Start(ctx)
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		return immediate.count.Load() >= 3 && delayed.count.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop")
	}

	// Nothing runs after the manager stopped.
	count := immediate.count.Load()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, count, immediate.count.Load())
}
