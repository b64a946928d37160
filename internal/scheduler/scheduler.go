// Package scheduler is the background ticker that executes scheduled tool
// jobs (§4.4 supplemented feature): the schedule_tool built-in queues a job,
// and this ticker — owned by the host process, not the Agent Runtime —
// polls for due jobs and runs them straight through the Tool Registry, with
// no further model involvement. Grounded on the teacher's
// internal/tools.ToolCallScheduler, adapted from its ToolContext/policy
// allowlist shape to invoke directly against toolregistry.Registry.
package scheduler

import (
	"context"
	"time"

	"github.com/corehost/agentcore/internal/hostlog"
	"github.com/corehost/agentcore/internal/sessionstore"
	"github.com/corehost/agentcore/internal/toolregistry"
)

// DefaultInterval is how often the ticker polls for due jobs.
const DefaultInterval = 30 * time.Second

// Store is the persistence surface the scheduler needs — satisfied by
// *sessionstore.Store.
type Store interface {
	DueJobs(now time.Time, limit int) ([]sessionstore.ScheduledJob, error)
	CompleteJob(id string, next time.Time, recurring bool, result, errText string) error
}

// Scheduler polls Store for due jobs and executes them via Registry.
type Scheduler struct {
	store    Store
	registry *toolregistry.Registry
	log      *hostlog.Logger
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a Scheduler. A non-positive interval falls back to DefaultInterval.
func New(store Store, registry *toolregistry.Registry, log *hostlog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{store: store, registry: registry, log: log, interval: interval}
}

// Start begins the background polling loop. Safe to call once; a second
// call is a no-op until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.runOnce(ctx)
		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

// Stop halts the polling loop and waits for the in-flight tick to finish.
func (s *Scheduler) Stop() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.stopCh = nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	jobs, err := s.store.DueJobs(time.Now(), 25)
	if err != nil {
		s.log.Printf("scheduler: list due jobs: %v", err)
		return
	}
	for _, job := range jobs {
		res, invokeErr := s.registry.Invoke(ctx, job.Tool, job.ArgsJSON)
		next, recurring := nextRecurringTime(job.Recurrence, job.ScheduledFor)

		if invokeErr != nil {
			s.complete(job.ID, next, recurring, "", invokeErr.Error())
			continue
		}
		if !res.OK {
			s.complete(job.ID, next, recurring, string(res.Value), res.Msg)
			continue
		}
		s.complete(job.ID, next, recurring, string(res.Value), "")
	}
}

func (s *Scheduler) complete(id string, next time.Time, recurring bool, result, errText string) {
	if err := s.store.CompleteJob(id, next, recurring, result, errText); err != nil {
		s.log.Printf("scheduler: complete job %s: %v", id, err)
	}
}

func nextRecurringTime(recurrence string, from time.Time) (time.Time, bool) {
	switch recurrence {
	case "daily":
		return from.Add(24 * time.Hour), true
	case "hourly":
		return from.Add(time.Hour), true
	default:
		return time.Time{}, false
	}
}
