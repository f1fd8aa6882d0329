package resume

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/jobcopilot/internal/pipeline"
)

// Result is the terminal output of the résumé pipelines.
type Result struct {
	RawText           string
	NormalizedText    string
	Educations        []Education
	Experiences       []Experience
	Skills            []Skill
	YearsOfExperience *int
}

func (*Result) PipelineResponse() {}

// merge folds the parallel extractor outputs into a Result. Each output kind
// owns distinct fields, so arrival order does not matter.
func merge(_ context.Context, in pipeline.ParallelOutputs) (*Result, error) {
	src, ok := in.Input.(Sectioned)
	if !ok {
		return nil, fmt.Errorf("merge input: expected %T, got %T", src, in.Input)
	}
	res := &Result{RawText: src.RawText, NormalizedText: src.NormalizedText}
	for _, out := range in.Outputs {
		ex, ok := out.(Extraction)
		if !ok {
			return nil, fmt.Errorf("merge: unexpected output %T", out)
		}
		switch v := ex.(type) {
		case YearsOutput:
			res.YearsOfExperience = v.Years
		case ExperienceOutput:
			res.Experiences = v.Entries
		case EducationOutput:
			res.Educations = v.Entries
		case SkillsOutput:
			res.Skills = v.Skills
		default:
			return nil, fmt.Errorf("merge: unhandled extraction %T", ex)
		}
	}
	return res, nil
}
