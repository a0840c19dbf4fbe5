package unwind

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAsyncRunner_StartAndWait(t *testing.T) {
	ctx := context.Background()
	eng := NewInMemoryEngine()

	saga := New("async-sample").
		Step("compute", PureStep(func(ctx context.Context, rc *RunContext, input any) (any, error) {
			return input.(int) * 2, nil
		}), nil)
	require.NoError(t, saga.Register(eng))

	runner := NewAsyncRunner(eng, 4)

	handles := make([]*RunHandle, 5)
	for i := range handles {
		handles[i] = runner.Start(ctx, saga.Name(), i, nil)
	}

	for i, h := range handles {
		run, err := h.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, StatusSucceeded, run.Status)
		require.Equal(t, i*2, run.Output)
	}

	runner.Drain()
}

func TestAsyncRunner_LimitsConcurrency(t *testing.T) {
	ctx := context.Background()
	eng := NewInMemoryEngine()

	var inFlight, peak atomic.Int32
	saga := New("async-capped").
		Step("slow", func(ctx context.Context, rc *RunContext, input any) (any, any, error) {
			cur := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			return input, nil, nil
		}, nil)
	require.NoError(t, saga.Register(eng))

	runner := NewAsyncRunner(eng, 2)
	for i := 0; i < 6; i++ {
		runner.Start(ctx, saga.Name(), i, nil)
	}
	runner.Drain()

	require.LessOrEqual(t, peak.Load(), int32(2))
	require.Positive(t, peak.Load())
}

func TestAsyncRunner_WaitHonoursContext(t *testing.T) {
	eng := NewInMemoryEngine()

	release := make(chan struct{})
	saga := New("async-blocked").
		Step("block", func(ctx context.Context, rc *RunContext, input any) (any, any, error) {
			<-release
			return nil, nil, nil
		}, nil)
	require.NoError(t, saga.Register(eng))

	runner := NewAsyncRunner(eng, 1)
	h := runner.Start(context.Background(), saga.Name(), nil, nil)

	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := h.Wait(waitCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The run itself was not cancelled; releasing it lets it finish.
	close(release)
	run, err := h.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, run.Status)
}

func TestAsyncRunner_SurfacesRunErrors(t *testing.T) {
	ctx := context.Background()
	eng := NewInMemoryEngine()
	runner := NewAsyncRunner(eng, 1)

	h := runner.Start(ctx, "never-registered", nil, nil)
	_, err := h.Wait(ctx)
	require.ErrorContains(t, err, "unknown saga")
}
