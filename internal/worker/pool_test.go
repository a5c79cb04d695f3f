package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls int32
	block chan struct{}
}

func (r *countingRunner) RunTask(ctx context.Context, t Task) error {
	atomic.AddInt32(&r.calls, 1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}
	return nil
}

func TestPoolDispatchesEnqueuedTask(t *testing.T) {
	broker := NewMemoryBroker()
	runner := &countingRunner{}
	pool := NewPool(broker, runner, 2)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer func() {
		cancel()
		pool.Stop()
	}()

	require.NoError(t, pool.Enqueue(context.Background(), Task{ProjectID: uuid.New(), Kind: domain.TaskProcess, Priority: PriorityProcessing}))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runner.calls) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPoolEnforcesPerProjectConcurrencyOne(t *testing.T) {
	broker := NewMemoryBroker()
	block := make(chan struct{})
	runner := &countingRunner{block: block}
	pool := NewPool(broker, runner, 4)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer func() {
		close(block)
		cancel()
		pool.Stop()
	}()

	projectID := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Enqueue(context.Background(), Task{ProjectID: projectID, Kind: domain.TaskProcess, Priority: PriorityProcessing})
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return pool.InFlightCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPoolCancelIsNoOpWhenNothingInFlight(t *testing.T) {
	pool := NewPool(NewMemoryBroker(), &countingRunner{}, 1)
	require.False(t, pool.Cancel(uuid.New()))
}

func TestMemoryBrokerDequeuesHighestPriorityFirst(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()
	low := Task{ID: uuid.New(), Priority: PriorityMaintenance}
	high := Task{ID: uuid.New(), Priority: PriorityProcessing}
	require.NoError(t, b.Enqueue(ctx, low))
	require.NoError(t, b.Enqueue(ctx, high))

	first, ok, err := b.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, high.ID, first.ID)
}
