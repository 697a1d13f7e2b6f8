package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, id)
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestQueueProcessesJobs(t *testing.T) {
	rec := &recorder{}
	done := make(chan struct{}, 2)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		rec.add(job.ID)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.NoError(t, q.Enqueue(Job{ID: "b"}))
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job not processed in time")
		}
	}
	assert.ElementsMatch(t, []string{"a", "b"}, rec.ids())
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "early"})
	require.Error(t, err)
}

func TestQueueRejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	// First job occupies the worker, second fills the buffer; the third
	// must be rejected instead of blocking the caller.
	require.NoError(t, q.Enqueue(Job{ID: "running"}))
	require.Eventually(t, func() bool {
		return q.Enqueue(Job{ID: "buffered"}) == nil
	}, time.Second, 10*time.Millisecond)
	err := q.Enqueue(Job{ID: "overflow"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 5, RetryDelay: 5 * time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "flaky"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to success")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("permanent")
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "doomed"}))
	time.Sleep(100 * time.Millisecond)
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	// Initial attempt plus two retries.
	assert.Equal(t, 3, attempts)
}

func TestQueueStopAbortsPendingRetries(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	first := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		attempts++
		if attempts == 1 {
			close(first)
		}
		mu.Unlock()
		return errors.New("transient")
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Minute})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "slow-retry"}))
	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not attempted")
	}

	// Stop must not sit out the minute-long backoff.
	start := time.Now()
	q.Stop()
	assert.Less(t, time.Since(start), 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, attempts)
}

func TestQueueStopDrainsBufferedJobs(t *testing.T) {
	rec := &recorder{}
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		time.Sleep(time.Millisecond)
		rec.add(job.ID)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 16})

	q.Start(context.Background())
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, q.Enqueue(Job{ID: id}))
	}
	q.Stop()

	assert.Len(t, rec.ids(), 4)
	require.Error(t, q.Enqueue(Job{ID: "late"}))
}
