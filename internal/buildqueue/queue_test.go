package buildqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueRunsJobs(t *testing.T) {
	q := New(2, 8)
	q.Start(context.Background())
	defer q.Stop()

	var mu sync.Mutex
	ran := map[string]bool{}
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		id := id
		ok := q.Enqueue(Job{DeploymentID: id, Fn: func(context.Context) error {
			defer wg.Done()
			mu.Lock()
			ran[id] = true
			mu.Unlock()
			if id == "b" {
				return errors.New("boom")
			}
			return nil
		}})
		if !ok {
			t.Fatalf("enqueue %s rejected", id)
		}
	}
	wg.Wait()

	if len(ran) != 3 {
		t.Fatalf("ran = %v", ran)
	}
}

func TestQueueRunsConcurrently(t *testing.T) {
	q := New(2, 4)
	q.Start(context.Background())
	defer q.Stop()

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	for i := 0; i < 2; i++ {
		q.Enqueue(Job{DeploymentID: "job", Fn: func(context.Context) error {
			started <- struct{}{}
			<-release
			return nil
		}})
	}

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("second worker never picked up a job")
		}
	}
	close(release)
}

func TestEnqueueFull(t *testing.T) {
	q := New(1, 1) // not started: nothing drains the buffer
	noop := func(context.Context) error { return nil }
	if !q.Enqueue(Job{DeploymentID: "1", Fn: noop}) {
		t.Fatal("first enqueue should fit the buffer")
	}
	if q.Enqueue(Job{DeploymentID: "2", Fn: noop}) {
		t.Fatal("second enqueue should be rejected")
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d", q.Len())
	}
}

func TestStopCancelsRunningJobs(t *testing.T) {
	q := New(1, 1)
	q.Start(context.Background())

	running := make(chan struct{})
	done := make(chan error, 1)
	q.Enqueue(Job{DeploymentID: "long", Fn: func(ctx context.Context) error {
		close(running)
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}})
	<-running
	q.Stop()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("job saw %v, want context.Canceled", err)
	}
	if q.Enqueue(Job{DeploymentID: "late", Fn: func(context.Context) error { return nil }}) {
		t.Fatal("enqueue after Stop should fail")
	}
	q.Stop() // idempotent
}
