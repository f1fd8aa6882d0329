package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct{ Values []string }

func (result) PipelineResponse() {}

func appendStage(name, suffix string, opts ...StageOption) Stage {
	return NewStage(name, func(_ context.Context, in string) (string, error) {
		return in + suffix, nil
	}, opts...)
}

func collect(name string) Stage {
	return NewStage(name, func(_ context.Context, in ParallelOutputs) (result, error) {
		var vals []string
		for _, o := range in.Outputs {
			vals = append(vals, o.(string))
		}
		sort.Strings(vals)
		return result{Values: append([]string{in.Input.(string)}, vals...)}, nil
	})
}

func TestExecute_SequentialFold(t *testing.T) {
	p, err := New("seq", []Stage{
		appendStage("a", "a"),
		appendStage("b", "b"),
		NewStage("wrap", func(_ context.Context, in string) (result, error) {
			return result{Values: []string{in}}, nil
		}),
	})
	require.NoError(t, err)
	defer p.Close()

	resp, err := p.Execute(context.Background(), ">")
	require.NoError(t, err)
	assert.Equal(t, result{Values: []string{">ab"}}, resp)
}

func TestExecute_ParallelGroupSharesInput(t *testing.T) {
	p, err := New("par", []Stage{
		appendStage("prep", "!"),
		appendStage("x", "x", Parallelizable()),
		appendStage("y", "y", Parallelizable()),
		appendStage("z", "z", Parallelizable()),
		collect("merge"),
	})
	require.NoError(t, err)
	defer p.Close()
	require.Len(t, p.Groups(), 3)

	resp, err := p.Execute(context.Background(), "in")
	require.NoError(t, err)
	assert.Equal(t, result{Values: []string{"in!", "in!x", "in!y", "in!z"}}, resp)
}

func TestExecute_ParallelFailFast(t *testing.T) {
	boom := errors.New("boom")
	var ran atomic.Int32
	slow := NewStage("slow", func(ctx context.Context, in string) (string, error) {
		ran.Add(1)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(2 * time.Second):
			return in, nil
		}
	}, Parallelizable())
	failing := NewStage("failing", func(_ context.Context, in string) (string, error) {
		return "", boom
	}, Parallelizable())

	p, err := New("failfast", []Stage{slow, failing, collect("merge")})
	require.NoError(t, err)
	defer p.Close()

	start := time.Now()
	_, err = p.Execute(context.Background(), "in")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "stage failing")
	assert.Less(t, time.Since(start), time.Second)
}

func TestExecute_NotResponse(t *testing.T) {
	p, err := New("bad", []Stage{appendStage("a", "a")})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Execute(context.Background(), "x")
	require.ErrorIs(t, err, ErrNotResponse)
	assert.True(t, IsFatal(err))
}

func TestExecute_TypeMismatch(t *testing.T) {
	p, err := New("mismatch", []Stage{appendStage("a", "a")})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Execute(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected string, got int")
	assert.False(t, IsFatal(err))
}

func TestExecute_StagePanicBecomesError(t *testing.T) {
	p, err := New("panics", []Stage{
		NewStage("explode", func(_ context.Context, in string) (result, error) { panic("kaboom") }),
	})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Execute(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestNew_Validation(t *testing.T) {
	_, err := New("empty", nil)
	assert.ErrorIs(t, err, ErrInvalidPipeline)

	_, err = New("dangling", []Stage{appendStage("a", "a"), appendStage("p", "p", Parallelizable())})
	assert.ErrorIs(t, err, ErrInvalidPipeline)
}

func TestObserverSeesEveryStage(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	p, err := New("obs", []Stage{
		appendStage("x", "x", Parallelizable()),
		appendStage("y", "y", Parallelizable()),
		collect("merge"),
	}, WithObserver(func(pipeline, stage string, _ time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "obs", pipeline)
		assert.NoError(t, err)
		seen = append(seen, stage)
	}))
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Execute(context.Background(), "")
	require.NoError(t, err)
	sort.Strings(seen)
	assert.Equal(t, []string{"merge", "x", "y"}, seen)
}

func TestSharedPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(2)
	var inFlight, peak atomic.Int32
	track := func(name string) Stage {
		return NewStage(name, func(_ context.Context, in string) (string, error) {
			n := inFlight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return in, nil
		}, Parallelizable())
	}
	stages := []Stage{track("a"), track("b"), track("c"), track("d"), collect("merge")}

	p1, err := New("one", stages, WithPool(pool))
	require.NoError(t, err)
	p2, err := New("two", stages, WithPool(pool))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, p := range []*Pipeline{p1, p2} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Execute(context.Background(), "x")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))

	// Shared pools outlive the pipelines that use them.
	require.NoError(t, p1.Close())
	require.NoError(t, pool.Acquire(context.Background()))
	pool.Release()

	require.NoError(t, pool.Close())
	assert.ErrorIs(t, pool.Acquire(context.Background()), ErrPoolClosed)
}

func TestOwnedPoolClosedWithPipeline(t *testing.T) {
	p, err := New("owned", []Stage{appendStage("x", "x", Parallelizable()), collect("merge")})
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.Execute(context.Background(), "in")
	assert.ErrorIs(t, err, ErrPoolClosed)
}
