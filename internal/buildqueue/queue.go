package buildqueue

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Job struct {
	DeploymentID string
	Fn           func(ctx context.Context) error
}

// Queue runs jobs on a fixed pool of workers. Jobs for different
// deployments may run concurrently; each job runs exactly once.
type Queue struct {
	ch      chan Job
	workers int
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.RWMutex
	closed  bool
}

func New(workers, bufSize int) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		ch:      make(chan Job, bufSize),
		workers: workers,
	}
}

func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func(worker int) {
			defer q.wg.Done()
			for {
				select {
				case job, ok := <-q.ch:
					if !ok {
						return
					}
					zap.S().Infof("buildqueue: worker %d starting %s", worker, job.DeploymentID)
					if err := job.Fn(ctx); err != nil {
						zap.S().Warnf("buildqueue: job %s failed: %v", job.DeploymentID, err)
					} else {
						zap.S().Infof("buildqueue: job %s completed", job.DeploymentID)
					}
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}
}

// Enqueue adds job without blocking. It returns false when the queue is
// full or stopped.
func (q *Queue) Enqueue(job Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- job:
		return true
	default:
		return false
	}
}

func (q *Queue) Len() int {
	return len(q.ch)
}

func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}
