// Package pipeline runs ordered stages, fanning consecutive parallel-eligible
// stages out against the same input and handing their outputs to the next
// (merge) stage as a ParallelOutputs envelope.
package pipeline

import (
	"context"
	"fmt"
)

// Stage is one unit of work. Implementations must not share mutable state
// across invocations.
type Stage interface {
	Name() string
	Process(ctx context.Context, in any) (any, error)
	// Parallel reports whether the stage may run concurrently with adjacent
	// parallel stages against the same input.
	Parallel() bool
}

// Response marks the terminal value of a pipeline.
type Response interface {
	PipelineResponse()
}

// ParallelOutputs is what a parallel group hands to the following stage:
// the group's shared input plus each member's output. Outputs carry no
// ordering guarantee.
type ParallelOutputs struct {
	Input   any
	Outputs []any
}

// ConvertFunc converts a typed input into a typed output.
type ConvertFunc[In, Out any] func(ctx context.Context, in In) (Out, error)

type typedStage[In, Out any] struct {
	name     string
	parallel bool
	fn       ConvertFunc[In, Out]
}

// StageOption configures a stage built with NewStage.
type StageOption func(*stageOptions)

type stageOptions struct {
	parallel bool
}

// Parallelizable lets the stage join a parallel group.
func Parallelizable() StageOption {
	return func(o *stageOptions) { o.parallel = true }
}

// NewStage adapts a typed function to the Stage contract. A mismatched input
// type is reported as an error rather than a panic.
func NewStage[In, Out any](name string, fn ConvertFunc[In, Out], opts ...StageOption) Stage {
	var o stageOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &typedStage[In, Out]{name: name, parallel: o.parallel, fn: fn}
}

func (s *typedStage[In, Out]) Name() string   { return s.name }
func (s *typedStage[In, Out]) Parallel() bool { return s.parallel }

func (s *typedStage[In, Out]) Process(ctx context.Context, in any) (any, error) {
	v, ok := in.(In)
	if !ok {
		var zero In
		return nil, fmt.Errorf("expected %T, got %T", zero, in)
	}
	return s.fn(ctx, v)
}
