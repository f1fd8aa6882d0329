package resume

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/jobcopilot/internal/pipeline"
)

var fixedNow = Options{Now: func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }}

const sampleResume = "Jane Doe\n" +
	"jane@example.com\n" +
	"\n" +
	"Summary\n" +
	"Backend engineer with 8+ years of experience building distributed systems.\n" +
	"\n" +
	"Experience\n" +
	"Acme Corp — Senior Engineer — 2019 - Present\n" +
	"• Built payment APIs in Go\n" +
	"• Led migration to Kubernetes\n" +
	"\n" +
	"Globex | Software Developer | Jan 2015 - Dec 2018\n" +
	"- Maintained Java services\n" +
	"\n" +
	"Education\n" +
	"State University\n" +
	"B.Sc. in Computer Science\n" +
	"2014 - 2018\n" +
	"\n" +
	"Skills\n" +
	"Go, Python, PostgreSQL, Docker\n"

func runText(t *testing.T, text string) *Result {
	t.Helper()
	p, err := NewTextPipeline(fixedNow)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	res, err := Parse(context.Background(), p, TextRequest{Text: text})
	require.NoError(t, err)
	return res
}

func TestTextPipeline_EndToEnd(t *testing.T) {
	res := runText(t, sampleResume)

	assert.Equal(t, sampleResume, res.RawText)
	require.NotNil(t, res.YearsOfExperience)
	assert.Equal(t, 8, *res.YearsOfExperience)

	require.Len(t, res.Experiences, 2)
	acme := res.Experiences[0]
	assert.Equal(t, "Acme Corp", acme.Company)
	assert.Equal(t, "Senior Engineer", acme.Role)
	require.NotNil(t, acme.StartYear)
	assert.Equal(t, 2019, *acme.StartYear)
	assert.True(t, acme.IsCurrent)
	assert.Nil(t, acme.EndYear)
	assert.Equal(t, []string{"Built payment APIs in Go", "Led migration to Kubernetes"}, acme.Details)

	globex := res.Experiences[1]
	assert.Equal(t, "Globex", globex.Company)
	assert.Equal(t, "Software Developer", globex.Role)
	assert.Equal(t, 2015, *globex.StartYear)
	assert.Equal(t, 2018, *globex.EndYear)
	assert.False(t, globex.IsCurrent)

	require.Len(t, res.Educations, 1)
	edu := res.Educations[0]
	assert.Contains(t, edu.Institution, "State University")
	assert.Contains(t, edu.Degree, "B.Sc")
	assert.Contains(t, edu.Field, "Computer Science")
	assert.Equal(t, 2014, *edu.StartYear)
	assert.Equal(t, 2018, *edu.EndYear)

	assert.Equal(t, []Skill{"JAVA", "POSTGRESQL", "DOCKER", "KUBERNETES", "PYTHON", "GOLANG"}, res.Skills)
}

func TestEducation_SingleYearIsEndYear(t *testing.T) {
	out, err := fixedNow.education(context.Background(), Sectioned{Sections: []SectionDetail{{
		Section: SectionEducation,
		Lines:   []string{"Riverside College", "MBA", "2020", "", "Hill Institute of Technology", "Graduated 2031"},
	}}})
	require.NoError(t, err)
	require.Len(t, out.Entries, 2)

	assert.Equal(t, "Riverside College", out.Entries[0].Institution)
	assert.Equal(t, "MBA", out.Entries[0].Degree)
	assert.Nil(t, out.Entries[0].StartYear)
	require.NotNil(t, out.Entries[0].EndYear)
	assert.Equal(t, 2020, *out.Entries[0].EndYear)

	// 2031 is in the future relative to the clock.
	assert.Nil(t, out.Entries[1].EndYear)
	assert.Equal(t, "Hill Institute of Technology", out.Entries[1].Institution)
}

func TestYears_FallsBackToEarliestStart(t *testing.T) {
	out, err := fixedNow.yearsOfExperience(context.Background(), Sectioned{Sections: []SectionDetail{{
		Section: SectionExperience,
		Lines: []string{
			"Acme | Engineer | Mar 2012 - Present",
			"Foo | Developer | 2015 - 2017",
			"Old | Developer | 1985 - 1990",
		},
	}}})
	require.NoError(t, err)
	require.NotNil(t, out.Years)
	assert.Equal(t, 13, *out.Years)

	out, _ = fixedNow.yearsOfExperience(context.Background(), Sectioned{NormalizedText: "no dates here"})
	assert.Nil(t, out.Years)

	out, _ = fixedNow.yearsOfExperience(context.Background(), Sectioned{NormalizedText: "99 yrs experience"})
	assert.Equal(t, 50, *out.Years)
}

func TestExperience_FallbackEntryWithoutHeaders(t *testing.T) {
	entries := experienceEntries([]string{"- Wrote code", "Reviewed pull requests"})
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"Wrote code", "Reviewed pull requests"}, entries[0].Details)
	assert.Empty(t, entries[0].Company)
}

func TestSkills_AmbiguousAliasNeedsSkillsSection(t *testing.T) {
	res := runText(t, "Experience\nAcme | Engineer | 2020 - 2021\n- Let's go ship it with golang and node.js\n")
	assert.Equal(t, []Skill{"GOLANG", "NODEJS"}, res.Skills)

	res = runText(t, "Experience\nAcme | Engineer | 2020 - 2021\n- Let's go ship it\n")
	assert.Empty(t, res.Skills)
}

func TestNormalize(t *testing.T) {
	in := "JANE DOE\r\n\r\nSKILLS:\r\n•\tJava,  Spring Boot\r\nExperience —\nBuilt a system that\nscaled to millions of users\n1) First item\n2) second item\n"
	want := "JANE DOE\n\nSKILLS\n- Java, Spring Boot\nExperience\nBuilt a system that scaled to millions of users\n1) First item\n2) second item"

	once := Normalize(in)
	assert.Equal(t, want, once)
	assert.Equal(t, once, Normalize(once))
	assert.Equal(t, Normalize(sampleResume), Normalize(Normalize(sampleResume)))
}

func TestNormalize_IsStable(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing blank lines", "SUMMARY\nBackend engineer with 5 years of experience.\n\n", "SUMMARY\nBackend engineer with 5 years of experience."},
		{"many trailing newlines", "Skills\nGo, Python\n\n\n\n", "Skills\nGo, Python"},
		{"colons inside header", "TECHNICAL SKILLS : JAVA : GO\n", "TECHNICAL SKILLS JAVA GO"},
		{"unicode space before edge dash", "Skills - \u1680:\n", "Skills"},
		{"blank lines with spaces at end", "EXPERIENCE\nAcme\n \n\t\n", "EXPERIENCE\nAcme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := Normalize(tt.in)
			assert.Equal(t, tt.want, once)
			assert.Equal(t, once, Normalize(once))
		})
	}
}

func TestMerge_IgnoresArrivalOrder(t *testing.T) {
	outputs := []any{
		YearsOutput{Years: intPtr(7)},
		ExperienceOutput{Entries: []Experience{{Company: "Acme"}}},
		EducationOutput{Entries: []Education{{Institution: "State University"}}},
		SkillsOutput{Skills: []Skill{"JAVA"}},
	}
	in := Sectioned{RawText: "raw", NormalizedText: "norm"}
	want, err := merge(context.Background(), pipeline.ParallelOutputs{Input: in, Outputs: outputs})
	require.NoError(t, err)

	for _, perm := range permutations(len(outputs)) {
		shuffled := make([]any, len(outputs))
		for i, j := range perm {
			shuffled[i] = outputs[j]
		}
		got, err := merge(context.Background(), pipeline.ParallelOutputs{Input: in, Outputs: shuffled})
		require.NoError(t, err)
		assert.Equal(t, want, got, "order %v", perm)
	}
}

func TestMerge_RejectsUnknownOutput(t *testing.T) {
	_, err := merge(context.Background(), pipeline.ParallelOutputs{Input: Sectioned{}, Outputs: []any{"stray"}})
	assert.Error(t, err)

	_, err = merge(context.Background(), pipeline.ParallelOutputs{Input: "not sectioned"})
	assert.Error(t, err)
}

func permutations(n int) [][]int {
	if n == 1 {
		return [][]int{{0}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			q := append(append(append([]int{}, p[:i]...), n-1), p[i:]...)
			out = append(out, q)
		}
	}
	return out
}

type fakePDF struct {
	text string
	err  error
}

func (f fakePDF) TextFromPDF(context.Context, []byte) (string, error) { return f.text, f.err }

func TestPDFPipeline(t *testing.T) {
	p, err := NewPDFPipeline(fakePDF{text: sampleResume}, fixedNow)
	require.NoError(t, err)
	defer p.Close()

	res, err := Parse(context.Background(), p, PDFRequest{Data: []byte("%PDF"), FileName: "cv.pdf"})
	require.NoError(t, err)
	assert.Equal(t, sampleResume, res.RawText)
	assert.Len(t, res.Experiences, 2)

	_, err = Parse(context.Background(), p, PDFRequest{})
	assert.ErrorContains(t, err, "pdf bytes are empty")

	broken, err := NewPDFPipeline(fakePDF{err: errors.New("corrupt xref")}, fixedNow)
	require.NoError(t, err)
	defer broken.Close()
	_, err = Parse(context.Background(), broken, PDFRequest{Data: []byte("x")})
	assert.ErrorContains(t, err, "corrupt xref")

	_, err = NewPDFPipeline(nil, fixedNow)
	assert.ErrorIs(t, err, pipeline.ErrInvalidPipeline)
}

func TestPipelinePlan(t *testing.T) {
	p, err := NewTextPipeline(fixedNow)
	require.NoError(t, err)
	defer p.Close()

	groups := p.Groups()
	require.Len(t, groups, 3)
	assert.False(t, groups[0].Parallel)
	assert.True(t, groups[1].Parallel)
	assert.Len(t, groups[1].Stages, 4)
	assert.False(t, groups[2].Parallel)
}
