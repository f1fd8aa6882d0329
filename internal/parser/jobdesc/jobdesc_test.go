package jobdesc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/jobcopilot/internal/core/textnorm"
)

func parse(t *testing.T, text string) *Result {
	t.Helper()
	p, err := NewPipeline(DefaultDomainScoring())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	res, err := Parse(context.Background(), p, text)
	require.NoError(t, err)
	return res
}

func labeled(text string) Labeled {
	n, _ := normalize(context.Background(), Request{Text: text})
	l, _ := label(context.Background(), n)
	return l
}

func TestSeniority_PrecedenceBeatsPosition(t *testing.T) {
	g, err := grade(context.Background(), labeled("Senior Lead Engineer\nResponsibilities\n"))
	require.NoError(t, err)
	assert.Equal(t, SeniorityLead, g.Seniority)
	assert.Equal(t, "matched 'lead' in title", g.SeniorityReason)
}

func TestSeniority_BodyFallbackAndUnknown(t *testing.T) {
	g, _ := grade(context.Background(), labeled("Software Engineer\n\nYou will mentor junior developers."))
	assert.Equal(t, SeniorityJunior, g.Seniority)
	assert.Equal(t, "matched 'junior' in body", g.SeniorityReason)

	g, _ = grade(context.Background(), labeled("Software Engineer\n\nBuild things."))
	assert.Equal(t, SeniorityUnknown, g.Seniority)
	assert.Equal(t, "no seniority match", g.SeniorityReason)

	g, _ = grade(context.Background(), labeled("   "))
	assert.Equal(t, SeniorityUnknown, g.Seniority)
	assert.Equal(t, "empty text", g.SeniorityReason)
}

func classifyText(scoring DomainScoring, text string) Classified {
	g, _ := grade(context.Background(), labeled(text))
	c, _ := scoring.classify(context.Background(), g)
	return c
}

func TestDomain(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   Domain
		reason string
	}{
		{"title signals", "Backend microservices API server", DomainBackend, "title signals: backend, microservices, api, server"},
		{"fullstack title", "Full Stack Developer\n\nreact backend", DomainFullstack, "title:fullstack"},
		{"body winner", "Overview\n\nbackend server api, react", DomainBackend, "matched: backend, api, server"},
		{"tie", "Overview\n\nbackend server, react ui", DomainUnknown, "weak or tied domain signal"},
		{"weak", "Overview\n\nwe have an api", DomainUnknown, "weak or tied domain signal"},
		{"empty", "", DomainUnknown, "empty text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classifyText(DefaultDomainScoring(), tt.text)
			assert.Equal(t, tt.want, c.Domain)
			assert.Equal(t, tt.reason, c.DomainReason)
		})
	}
}

func TestDomain_MinScoreIsConfigurable(t *testing.T) {
	text := "Overview\n\nbackend server api, react"
	c := classifyText(DomainScoring{TitleWeight: 2, MinScore: 4}, text)
	assert.Equal(t, DomainUnknown, c.Domain)
}

func TestLabel_HeadersOpenBlocks(t *testing.T) {
	l := labeled("Intro\nRequirements:\n- Java\nNice to have\n- Kafka\nThis sentence mentions requirements but is far too long to be a header line")
	want := []Label{LabelOther, LabelOther, LabelRequirements, LabelOther, LabelPreferred, LabelPreferred}
	require.Len(t, l.Lines, len(want))
	for i, w := range want {
		assert.Equal(t, w, l.Lines[i].Label, "line %d %q", i, l.Lines[i].Text)
	}
}

const posting = `Senior Backend Engineer

We use Docker and AWS.

Responsibilities:
• Build microservices in Java
• Own the API layer

Requirements
- 5+ years with Java and Spring Boot
- Experience with PostgreSQL

Nice to have
- Kafka, Kubernetes
`

func TestPipeline_EndToEnd(t *testing.T) {
	res := parse(t, posting)

	assert.Equal(t, posting, res.RawText)
	assert.Equal(t, SenioritySenior, res.Seniority)
	assert.Equal(t, DomainBackend, res.Domain)
	assert.Equal(t, []string{"JAVA", "POSTGRESQL", "SPRING_BOOT"}, res.RequiredSkills)
	assert.Equal(t, []string{"KAFKA", "KUBERNETES"}, res.PreferredSkills)
	assert.Equal(t, []string{"AWS", "DOCKER", "JAVA", "KAFKA", "KUBERNETES", "POSTGRESQL", "SPRING_BOOT"}, res.TechStack)
	assert.Equal(t, []string{"Build microservices in Java", "Own the API layer"}, res.Responsibilities)
	assert.Contains(t, res.SkillMentions, SkillMention{Name: "JAVA", Count: 2})
	assert.NotContains(t, res.TechStack, "SPRING")

	ex := res.Extracted()
	assert.Equal(t, "SENIOR", ex.Seniority)
	require.NotNil(t, ex.Signals)
	assert.Equal(t, "matched 'senior' in title", ex.Signals.SeniorityReason)
	require.NotNil(t, ex.Raw)
}

func TestSkills_CuesOverrideLabels(t *testing.T) {
	res := parse(t, "Engineer\n\nNice to have\nPython is a must have\nRedis would be a plus")
	assert.Equal(t, []string{"PYTHON"}, res.RequiredSkills)
	assert.Equal(t, []string{"REDIS"}, res.PreferredSkills)
}

func TestSkills_AmbiguousAliasOnlyOnRequirementLines(t *testing.T) {
	res := parse(t, "Engineer\n\nLet's go build things with Python\n\nRequirements\n- Go and Terraform")
	assert.Equal(t, []string{"GO", "TERRAFORM"}, res.RequiredSkills)
	assert.Equal(t, []string{"GO", "PYTHON", "TERRAFORM"}, res.TechStack)
	assert.Contains(t, res.SkillMentions, SkillMention{Name: "GO", Count: 1})
}

func TestSkills_AmbiguousAliasIgnoresTheVerb(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"cue line outside any block", "Engineer\n\nYou have to go the extra mile every day."},
		{"verb inside requirements", "Engineer\n\nRequirements\n- Be ready to go above and beyond"},
		{"cue phrase names the language outside a block", "Engineer\n\nYou must have Go experience."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parse(t, tt.text)
			assert.NotContains(t, res.RequiredSkills, "GO")
			assert.NotContains(t, res.TechStack, "GO")
		})
	}
}

func TestSkills_AmbiguousAliasInSkillsBlock(t *testing.T) {
	res := parse(t, "Engineer\n\nTech Stack\nGO, Kafka")
	assert.Equal(t, []string{"GO", "KAFKA"}, res.TechStack)
	assert.Empty(t, res.RequiredSkills)
}

func TestNormalize_FixedPoint(t *testing.T) {
	in := "Title\r\n\t•  Build   APIs —  fast\r  ▪ Ship ｆｕｌｌ width\n"
	once := textnorm.JobDescription(in)
	assert.Equal(t, once, textnorm.JobDescription(once))
	assert.Equal(t, "Title\n- Build APIs - fast\n- Ship full width\n", once)
}
