package trigger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_RegistersEntries(t *testing.T) {
	sched := NewScheduler(0)
	noop := func(context.Context) error { return nil }

	require.NoError(t, sched.Add(context.Background(), "nightly", "0 2 * * *", noop))
	require.NoError(t, sched.Add(context.Background(), "hourly", "@hourly", noop))
	assert.Equal(t, 2, sched.Entries())
}

func TestAdd_InvalidCron(t *testing.T) {
	sched := NewScheduler(0)
	err := sched.Add(context.Background(), "bad", "not a valid cron", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, 0, sched.Entries())
}

func TestRun_FiresJob(t *testing.T) {
	sched := NewScheduler(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	var deadline atomic.Bool
	require.NoError(t, sched.Add(ctx, "every", "@every 1s", func(runCtx context.Context) error {
		_, ok := runCtx.Deadline()
		deadline.Store(ok)
		calls.Add(1)
		return errors.New("failures are logged, not fatal")
	}))

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
	assert.True(t, deadline.Load(), "runs carry the scheduler timeout")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCancelledContextSuppressesRuns(t *testing.T) {
	sched := NewScheduler(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	require.NoError(t, sched.Add(ctx, "every", "@every 1s", func(context.Context) error {
		calls.Add(1)
		return nil
	}))
	sched.Start()
	time.Sleep(1500 * time.Millisecond)
	sched.Stop()
	assert.Equal(t, int32(0), calls.Load())
}

func TestStartStop(t *testing.T) {
	sched := NewScheduler(0)
	sched.Start()
	sched.Stop()
}
