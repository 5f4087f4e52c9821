package worker

import (
	"context"
	"log"
	"time"
)

// Scheduler enqueues a sync-cycle job at a fixed interval so pending
// operations drain even when nobody calls POST /sync.
type Scheduler struct {
	jobs     *JobQueue
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(jobs *JobQueue, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{jobs: jobs, interval: interval}
}

func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.jobs.Enqueue(QueueDefault, JobTypeSyncCycle, nil); err != nil {
					log.Printf("[Scheduler] Failed to enqueue sync cycle: %v", err)
				}
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}
