package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelojr/votemap/internal/domain"
)

func TestRecomputeQueue_EnqueueAndConsume_ShouldDeliverJob(t *testing.T) {
	client, _ := setupRedis(t)
	queue := NewRecomputeQueue(client, "queue:recompute")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	job := domain.RecomputeJob{
		ElectionID:     "election-1",
		ConstituencyID: "const-1",
		Attempt:        0,
	}

	var received *domain.RecomputeJob
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		handler := func(_ context.Context, j domain.RecomputeJob) error {
			mu.Lock()
			received = &j
			mu.Unlock()
			cancel()
			return nil
		}

		err := queue.Consume(ctx, handler)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("unexpected consume error: %v", err)
		}
	}()

	// Give the consumer a moment to block on the pop.
	time.Sleep(100 * time.Millisecond)

	err := queue.Enqueue(ctx, job)
	require.NoError(t, err)

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, received)
	assert.Equal(t, job.ElectionID, received.ElectionID)
	assert.Equal(t, job.ConstituencyID, received.ConstituencyID)
	assert.Equal(t, job.Attempt, received.Attempt)
}

func TestRecomputeQueue_Consume_WhenMultipleJobs_ShouldDeliverInOrder(t *testing.T) {
	client, _ := setupRedis(t)
	queue := NewRecomputeQueue(client, "queue:recompute")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	jobs := []domain.RecomputeJob{
		{ElectionID: "election-1", ConstituencyID: "const-1"},
		{ElectionID: "election-1", ConstituencyID: "const-2"},
		{ElectionID: "election-2", ConstituencyID: "const-9"},
	}
	for _, job := range jobs {
		require.NoError(t, queue.Enqueue(ctx, job))
	}

	var received []domain.RecomputeJob
	var mu sync.Mutex
	handler := func(_ context.Context, j domain.RecomputeJob) error {
		mu.Lock()
		received = append(received, j)
		done := len(received) == len(jobs)
		mu.Unlock()
		if done {
			cancel()
		}
		return nil
	}

	err := queue.Consume(ctx, handler)
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected consume error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, len(jobs))
	assert.Equal(t, jobs, received)
}

func TestRecomputeQueue_Consume_WhenHandlerFails_ShouldStopAndReturnError(t *testing.T) {
	client, _ := setupRedis(t)
	queue := NewRecomputeQueue(client, "queue:recompute")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, queue.Enqueue(ctx, domain.RecomputeJob{ElectionID: "election-1", ConstituencyID: "const-1"}))

	boom := errors.New("aggregation broke")
	err := queue.Consume(ctx, func(context.Context, domain.RecomputeJob) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
}
