package jobdesc

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/jobcopilot/internal/pipeline"
)

// Name identifies the job description pipeline in logs and metrics.
const Name = "jobdesc"

// Stages returns the ordered stage list. Every stage is sequential.
func Stages(scoring DomainScoring) []pipeline.Stage {
	return []pipeline.Stage{
		pipeline.NewStage("normalize", normalize),
		pipeline.NewStage("block-label", label),
		pipeline.NewStage("seniority", grade),
		pipeline.NewStage("domain", scoring.classify),
		pipeline.NewStage("skills", extractSkills),
		pipeline.NewStage("merge", merge),
	}
}

// NewPipeline builds the job description pipeline.
func NewPipeline(scoring DomainScoring, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	return pipeline.New(Name, Stages(scoring), opts...)
}

// Parse runs text through p and returns the typed result.
func Parse(ctx context.Context, p *pipeline.Pipeline, text string) (*Result, error) {
	resp, err := p.Execute(ctx, Request{Text: text})
	if err != nil {
		return nil, err
	}
	res, ok := resp.(*Result)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", pipeline.ErrNotResponse, p.Name(), resp)
	}
	return res, nil
}
