package resume

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/jobcopilot/internal/pipeline"
)

const (
	TextPipelineName = "resume-text"
	PDFPipelineName  = "resume-pdf"
)

func extractionStages(o Options) []pipeline.Stage {
	return []pipeline.Stage{
		pipeline.NewStage("normalize", normalize),
		pipeline.NewStage("sectionize", sectionize),
		pipeline.NewStage("years-of-experience", o.yearsOfExperience, pipeline.Parallelizable()),
		pipeline.NewStage("experience", experience, pipeline.Parallelizable()),
		pipeline.NewStage("education", o.education, pipeline.Parallelizable()),
		pipeline.NewStage("skills", skills, pipeline.Parallelizable()),
		pipeline.NewStage("merge", merge),
	}
}

// TextStages returns the stage list for plain text input (TextRequest).
func TextStages(o Options) []pipeline.Stage {
	return extractionStages(o)
}

// PDFStages prepends PDF text extraction (PDFRequest input).
func PDFStages(pdf TextExtractor, o Options) []pipeline.Stage {
	return append([]pipeline.Stage{pipeline.NewStage("pdf-to-text", pdfToText(pdf))}, extractionStages(o)...)
}

func NewTextPipeline(o Options, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	return pipeline.New(TextPipelineName, TextStages(o), opts...)
}

func NewPDFPipeline(pdf TextExtractor, o Options, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	if pdf == nil {
		return nil, fmt.Errorf("%w: %s needs a pdf text extractor", pipeline.ErrInvalidPipeline, PDFPipelineName)
	}
	return pipeline.New(PDFPipelineName, PDFStages(pdf, o), opts...)
}

// Parse runs req (TextRequest or PDFRequest) through p.
func Parse(ctx context.Context, p *pipeline.Pipeline, req any) (*Result, error) {
	resp, err := p.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	res, ok := resp.(*Result)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", pipeline.ErrNotResponse, p.Name(), resp)
	}
	return res, nil
}
