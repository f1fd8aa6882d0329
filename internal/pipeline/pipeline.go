package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotResponse means the last stage did not produce a Response. It is a
	// configuration error and must not be retried.
	ErrNotResponse = errors.New("pipeline: final value is not a response")
	// ErrInvalidPipeline is returned by New for unusable stage lists.
	ErrInvalidPipeline = errors.New("pipeline: invalid stage configuration")
)

// IsFatal reports whether err indicates a misconfigured pipeline rather than bad input.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNotResponse) || errors.Is(err, ErrInvalidPipeline)
}

// StageObserver is told about every stage invocation.
type StageObserver func(pipeline, stage string, elapsed time.Duration, err error)

// Pipeline executes planned stage groups. Create with New and release with Close.
type Pipeline struct {
	name     string
	groups   []Group
	pool     *Pool
	ownsPool bool
	observe  StageObserver
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPool runs parallel groups on a shared pool. The pipeline does not close it.
func WithPool(pool *Pool) Option {
	return func(p *Pipeline) {
		if pool != nil {
			p.pool = pool
			p.ownsPool = false
		}
	}
}

// WithObserver installs a per-stage hook (metrics, tracing).
func WithObserver(fn StageObserver) Option {
	return func(p *Pipeline) { p.observe = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New plans stages into groups. Every parallel group must be followed by a
// stage that merges its ParallelOutputs. Without WithPool the pipeline owns a
// pool sized to its widest parallel group.
func New(name string, stages []Stage, opts ...Option) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: %s has no stages", ErrInvalidPipeline, name)
	}
	groups := Plan(stages)
	if groups[len(groups)-1].Parallel {
		return nil, fmt.Errorf("%w: %s ends in a parallel group with no merge stage", ErrInvalidPipeline, name)
	}

	p := &Pipeline{name: name, groups: groups, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	if p.pool == nil {
		width := 1
		for _, g := range groups {
			if g.Parallel && len(g.Stages) > width {
				width = len(g.Stages)
			}
		}
		p.pool = NewPool(width)
		p.ownsPool = true
	}
	return p, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Groups returns the execution plan.
func (p *Pipeline) Groups() []Group { return p.groups }

// Execute runs req through every group and returns the terminal response.
// The first stage error fails the whole execution.
func (p *Pipeline) Execute(ctx context.Context, req any) (Response, error) {
	start := time.Now()
	current := req
	for _, g := range p.groups {
		var err error
		if g.Parallel {
			current, err = p.runParallel(ctx, g, current)
		} else {
			current, err = p.runSequential(ctx, g, current)
		}
		if err != nil {
			p.logger.Debug("pipeline failed", "pipeline", p.name, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
			return nil, err
		}
	}

	resp, ok := current.(Response)
	if !ok {
		p.logger.Error("pipeline produced non-response value", "pipeline", p.name, "type", fmt.Sprintf("%T", current))
		return nil, fmt.Errorf("%w: %s returned %T", ErrNotResponse, p.name, current)
	}
	p.logger.Debug("pipeline completed", "pipeline", p.name, "elapsed_ms", time.Since(start).Milliseconds())
	return resp, nil
}

func (p *Pipeline) runSequential(ctx context.Context, g Group, in any) (any, error) {
	current := in
	for _, st := range g.Stages {
		out, err := p.runStage(ctx, st, current)
		if err != nil {
			return nil, err
		}
		current = out
	}
	return current, nil
}

func (p *Pipeline) runParallel(ctx context.Context, g Group, in any) (any, error) {
	outputs := make([]any, len(g.Stages))
	eg, egctx := errgroup.WithContext(ctx)
	for i, st := range g.Stages {
		eg.Go(func() error {
			if err := p.pool.Acquire(egctx); err != nil {
				return fmt.Errorf("stage %s: %w", st.Name(), err)
			}
			defer p.pool.Release()
			out, err := p.runStage(egctx, st, in)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return ParallelOutputs{Input: in, Outputs: outputs}, nil
}

func (p *Pipeline) runStage(ctx context.Context, st Stage, in any) (out any, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", st.Name(), r)
		}
		if p.observe != nil {
			p.observe(p.name, st.Name(), time.Since(start), err)
		}
	}()
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	out, err = st.Process(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", st.Name(), err)
	}
	return out, nil
}

// Close releases the pool if the pipeline owns it.
func (p *Pipeline) Close() error {
	if p.ownsPool {
		return p.pool.Close()
	}
	return nil
}
