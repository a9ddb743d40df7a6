package cron

import (
	"context"
	"sync"
	"time"

	"github.com/scailotto/backend/pkg/xcontext"
)

type CronJob interface {
	Do(context.Context)
	RunNow() bool
	Next() time.Time
}

type CronJobManager struct {
	mutex   sync.Mutex
	wait    sync.WaitGroup
	jobs    map[CronJob]*time.Timer
	stopped bool
}

func NewCronJobManager() *CronJobManager {
	return &CronJobManager{jobs: make(map[CronJob]*time.Timer)}
}

func (m *CronJobManager) Register(job CronJob) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.jobs[job] = nil
}

// Start schedules every registered job and blocks until ctx is done and the
// running jobs returned.
func (m *CronJobManager) Start(ctx context.Context) {
	xcontext.Logger(ctx).Infof("Cron job manager started")

	m.mutex.Lock()
	for job := range m.jobs {
		job := job

		delay := time.Duration(0)
		if !job.RunNow() {
			delay = time.Until(job.Next())
		}
		m.jobs[job] = time.AfterFunc(delay, func() { m.run(ctx, job) })
	}
	m.mutex.Unlock()

	<-ctx.Done()
	m.Cancel(ctx)
	m.wait.Wait()

	xcontext.Logger(ctx).Infof("Cron job manager stopped")
}

func (m *CronJobManager) Cancel(ctx context.Context) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.stopped = true
	for job, timer := range m.jobs {
		if timer == nil {
			xcontext.Logger(ctx).Warnf("Stop a job that hasn't started: %T", job)
			continue
		}

		timer.Stop()
	}
}

func (m *CronJobManager) run(ctx context.Context, job CronJob) {
	m.mutex.Lock()
	if m.stopped {
		m.mutex.Unlock()
		return
	}
	m.wait.Add(1)
	m.mutex.Unlock()
	defer m.wait.Done()

	xcontext.Logger(ctx).Debugf("%T is running...", job)
	job.Do(ctx)
	xcontext.Logger(ctx).Debugf("%T ok", job)

	m.schedule(ctx, job)
}

func (m *CronJobManager) schedule(ctx context.Context, job CronJob) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// Jobs are not scheduled again once the manager stopped.
	if _, ok := m.jobs[job]; ok && !m.stopped {
		m.jobs[job] = time.AfterFunc(time.Until(job.Next()), func() { m.run(ctx, job) })
	}
}
