// Package resume extracts work history, education, skills and years of
// experience from résumé text or PDF bytes.
package resume

import (
	"strings"
	"time"
)

// TextRequest starts the text pipeline.
type TextRequest struct {
	Text string
}

// PDFRequest starts the PDF pipeline.
type PDFRequest struct {
	Data        []byte
	FileName    string
	ContentType string
}

// ExtractedText is the output of the PDF stage.
type ExtractedText struct {
	Text string
}

// textSource is accepted by the normalize stage.
type textSource interface {
	sourceText() string
}

func (r TextRequest) sourceText() string   { return r.Text }
func (e ExtractedText) sourceText() string { return e.Text }

// Normalized carries the raw text and its normalized form.
type Normalized struct {
	RawText string
	Text    string
}

// Section is a canonical résumé section kind.
type Section string

const (
	SectionExperience Section = "EXPERIENCE"
	SectionSkills     Section = "SKILLS"
	SectionEducation  Section = "EDUCATION"
	SectionProjects   Section = "PROJECTS"
	SectionSummary    Section = "SUMMARY"
	SectionAwards     Section = "AWARDS"
)

// SectionDetail is one recognized section. Lines excludes the header line.
type SectionDetail struct {
	Name      string
	Section   Section
	StartLine int
	EndLine   int
	Lines     []string
}

// Sectioned is the shared input of the parallel extractors.
type Sectioned struct {
	RawText        string
	NormalizedText string
	Sections       []SectionDetail
}

func (s Sectioned) first(kind Section) (SectionDetail, bool) {
	for _, d := range s.Sections {
		if d.Section == kind {
			return d, true
		}
	}
	return SectionDetail{}, false
}

// Extraction is implemented by exactly the parallel extractor outputs. The
// merge stage switches over them exhaustively.
type Extraction interface {
	extraction()
}

type YearsOutput struct {
	Years *int
}

type ExperienceOutput struct {
	Entries []Experience
}

type EducationOutput struct {
	Entries []Education
}

type SkillsOutput struct {
	Skills []Skill
}

func (YearsOutput) extraction()      {}
func (ExperienceOutput) extraction() {}
func (EducationOutput) extraction()  {}
func (SkillsOutput) extraction()     {}

type Experience struct {
	Company   string
	Role      string
	StartYear *int
	EndYear   *int
	IsCurrent bool
	Details   []string
}

type Education struct {
	Institution string
	Degree      string
	Field       string
	StartYear   *int
	EndYear     *int
	Lines       []string
}

// Options tune the résumé pipeline.
type Options struct {
	// Now supplies the current year for date plausibility checks.
	Now func() time.Time
}

func (o Options) currentYear() int {
	if o.Now == nil {
		return time.Now().Year()
	}
	return o.Now().Year()
}

// splitLines splits on LF, ignoring any trailing newlines.
func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func intPtr(v int) *int { return &v }
