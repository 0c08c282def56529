package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type faults struct {
	mu   sync.Mutex
	errs map[string][]error
}

func (f *faults) record(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string][]error)
	}
	f.errs[name] = append(f.errs[name], err)
}

func (f *faults) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errs[name])
}

func TestPoolRunsTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewPool(context.Background(), 4, 16, nil)
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	p.Close()
	assert.Equal(t, int32(10), ran.Load())
	assert.Equal(t, 4, p.Size())
}

func TestPoolReportsErrorsAndPanicsOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &faults{}
	p := NewPool(context.Background(), 2, 8, f.record)

	require.NoError(t, p.Submit("fails", func(ctx context.Context) error {
		return errors.New("boom")
	}))
	require.NoError(t, p.Submit("panics", func(ctx context.Context) error {
		panic("kaboom")
	}))
	require.NoError(t, p.Submit("fine", func(ctx context.Context) error {
		return nil
	}))
	p.Close()

	assert.Equal(t, 1, f.count("fails"))
	assert.Equal(t, 1, f.count("panics"))
	assert.Equal(t, 0, f.count("fine"))
	assert.Contains(t, f.errs["panics"][0].Error(), "kaboom")
}

func TestPoolSubmitNeverBlocks(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	p := NewPool(context.Background(), 1, 1, nil)

	block := func(ctx context.Context) error {
		<-release
		return nil
	}
	require.NoError(t, p.Submit("running", block))
	// wait for the worker to pick up the first task so the queue is empty
	require.Eventually(t, func() bool { return len(p.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, p.Submit("queued", block))

	start := time.Now()
	err := p.Submit("rejected", block)
	assert.ErrorIs(t, err, ErrPoolSaturated)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	p.Close()
	assert.ErrorIs(t, p.Submit("late", block), ErrPoolClosed)
	p.Close()
}

func TestPoolDrainAbandonsSlowTasks(t *testing.T) {
	release := make(chan struct{})
	p := NewPool(context.Background(), 1, 1, nil)
	require.NoError(t, p.Submit("slow", func(ctx context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Drain(ctx), context.DeadlineExceeded)

	close(release)
	p.Close()
}
