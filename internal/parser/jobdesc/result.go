package jobdesc

import (
	"context"

	"github.com/joseph-ayodele/jobcopilot/internal/entity"
)

// Result is the terminal output of the job description pipeline.
type Result struct {
	RawText          string
	NormalizedText   string
	Seniority        Seniority
	SeniorityReason  string
	Domain           Domain
	DomainReason     string
	RequiredSkills   []string
	PreferredSkills  []string
	TechStack        []string
	Responsibilities []string
	SkillMentions    []SkillMention
}

func (*Result) PipelineResponse() {}

func merge(_ context.Context, in Skilled) (*Result, error) {
	return &Result{
		RawText:          in.RawText,
		NormalizedText:   in.Text,
		Seniority:        in.Seniority,
		SeniorityReason:  in.SeniorityReason,
		Domain:           in.Domain,
		DomainReason:     in.DomainReason,
		RequiredSkills:   in.Required,
		PreferredSkills:  in.Preferred,
		TechStack:        in.TechStack,
		Responsibilities: responsibilities(in.Lines),
		SkillMentions:    in.Mentions,
	}, nil
}

// Extracted converts the result into the persisted job document shape.
func (r *Result) Extracted() *entity.Extracted {
	out := &entity.Extracted{
		Seniority:        string(r.Seniority),
		Domain:           string(r.Domain),
		RequiredSkills:   r.RequiredSkills,
		PreferredSkills:  r.PreferredSkills,
		TechStack:        r.TechStack,
		Responsibilities: r.Responsibilities,
		Signals: &entity.Signals{
			SeniorityReason: r.SeniorityReason,
			DomainReason:    r.DomainReason,
		},
	}
	if len(r.SkillMentions) > 0 {
		out.Raw = &entity.Raw{SkillMentions: make([]entity.SkillMention, 0, len(r.SkillMentions))}
		for _, m := range r.SkillMentions {
			out.Raw.SkillMentions = append(out.Raw.SkillMentions, entity.SkillMention{Name: m.Name, Count: m.Count})
		}
	}
	return out
}
