package resume

import (
	"context"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/jobcopilot/internal/core/textnorm"
)

var sectionAliases = map[string]Section{
	"experience":              SectionExperience,
	"work experience":         SectionExperience,
	"employment":              SectionExperience,
	"professional experience": SectionExperience,
	"work history":            SectionExperience,
	"skills":                  SectionSkills,
	"technical skills":        SectionSkills,
	"core skills":             SectionSkills,
	"key skills":              SectionSkills,
	"technologies":            SectionSkills,
	"education":               SectionEducation,
	"academics":               SectionEducation,
	"qualifications":          SectionEducation,
	"projects":                SectionProjects,
	"personal projects":       SectionProjects,
	"summary":                 SectionSummary,
	"profile":                 SectionSummary,
	"about me":                SectionSummary,
	"professional summary":    SectionSummary,
	"award":                   SectionAwards,
	"awards":                  SectionAwards,
}

var (
	reTrailingDashes = regexp.MustCompile(`[-–—]+$`)
	reWhitespaceRun  = regexp.MustCompile(`\s+`)
)

func aliasKey(header string) string {
	s := strings.TrimSpace(header)
	for strings.HasSuffix(s, ":") {
		s = strings.TrimSpace(strings.TrimSuffix(s, ":"))
	}
	s = strings.TrimSpace(reTrailingDashes.ReplaceAllString(s, ""))
	return strings.ToLower(reWhitespaceRun.ReplaceAllString(s, " "))
}

// sectionOf maps a header line to a known section.
func sectionOf(line string) (Section, bool) {
	if !textnorm.IsLikelyHeader(line) {
		return "", false
	}
	s, ok := sectionAliases[aliasKey(line)]
	return s, ok
}

// sectionize splits the text at recognized section headers. Unrecognized
// header-like lines stay inside the enclosing section.
func sectionize(_ context.Context, in Normalized) (Sectioned, error) {
	lines := splitLines(in.Text)
	out := Sectioned{RawText: in.RawText, NormalizedText: in.Text}

	for i := 0; i < len(lines); {
		kind, ok := sectionOf(lines[i])
		if !ok {
			i++
			continue
		}
		detail := SectionDetail{
			Name:      strings.TrimSpace(lines[i]),
			Section:   kind,
			StartLine: i,
			EndLine:   len(lines) - 1,
		}
		j := i + 1
		for ; j < len(lines); j++ {
			if _, next := sectionOf(lines[j]); next {
				detail.EndLine = j - 1
				break
			}
			detail.Lines = append(detail.Lines, lines[j])
		}
		out.Sections = append(out.Sections, detail)
		i = j
	}
	return out, nil
}
