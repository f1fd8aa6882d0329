package resume

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/jobcopilot/internal/core/textnorm"
)

const (
	maxEducationLines   = 6
	maxFieldChars       = 120
	maxInstitutionChars = 140
)

var (
	reYear          = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	reStudyRange    = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b\s*[-–—]\s*\b(19\d{2}|20\d{2})\b`)
	reDegree        = regexp.MustCompile(`(?i)\b(b\.?\s*tech|b\.?\s*e\.?|b\.?\s*sc|b\.?\s*a|bachelor(?:'s)?|undergraduate|m\.?\s*tech|m\.?\s*sc|m\.?\s*a|mba|master(?:'s)?|postgraduate|ph\.?\s*d|doctorate)\b`)
	reFieldOfStudy  = regexp.MustCompile(`(?i)\b(?:in|major(?:ed)?\s+in|speciali[sz]ation\s+in)\s+(.+)$`)
	reFieldStop     = regexp.MustCompile(`\(|\)|\||—|–|-|\d{4}`)
	reFieldTrailing = regexp.MustCompile(`[,;:.]+$`)
	reFieldLeading  = regexp.MustCompile(`^[,\-–—|:]+\s*`)
	reInstitution   = regexp.MustCompile(`(?i)\b(university|college|institute|school|academy|polytechnic)\b`)
	reNoisePunct    = regexp.MustCompile(`[()\[\],;:|]+`)
	reMultiSpace    = regexp.MustCompile(`\s{2,}`)
)

// educationBlocks groups lines into entries separated by blank lines.
func educationBlocks(lines []string) [][]string {
	var out [][]string
	var current []string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			if len(current) > 0 {
				out = append(out, current)
				current = nil
			}
			continue
		}
		if len(current) < maxEducationLines {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

func (o Options) validYear(s string) (int, bool) {
	y, err := strconv.Atoi(s)
	if err != nil || y < minPlausibleYear || y > o.currentYear() {
		return 0, false
	}
	return y, true
}

// studyYears prefers the first valid range; a lone year is read as the end year.
func (o Options) studyYears(lines []string) (start, end *int) {
	for _, l := range lines {
		m := reStudyRange.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		s, okS := o.validYear(m[1])
		e, okE := o.validYear(m[2])
		if okS && okE && s <= e {
			return intPtr(s), intPtr(e)
		}
	}
	latest := 0
	for _, l := range lines {
		for _, m := range reYear.FindAllStringSubmatch(l, -1) {
			if y, ok := o.validYear(m[1]); ok && y > latest {
				latest = y
			}
		}
	}
	if latest == 0 {
		return nil, nil
	}
	return nil, intPtr(latest)
}

func cleanField(s string) string {
	out := strings.TrimSpace(reFieldStop.Split(strings.TrimSpace(s), 2)[0])
	return strings.TrimSpace(reFieldTrailing.ReplaceAllString(out, ""))
}

func fieldOfStudy(text, degree string) string {
	if m := reFieldOfStudy.FindStringSubmatch(text); m != nil {
		if f := cleanField(m[1]); f != "" {
			return f
		}
	}
	if degree == "" {
		return ""
	}
	loc := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(degree)).FindStringIndex(text)
	if loc == nil {
		return ""
	}
	after := reFieldLeading.ReplaceAllString(strings.TrimSpace(text[loc[1]:]), "")
	after = cleanField(after)
	if after == "" || utf8.RuneCountInString(after) > maxFieldChars {
		return ""
	}
	return after
}

func stripNoise(line, degree, field string) string {
	s := strings.TrimSpace(reYear.ReplaceAllString(strings.TrimSpace(line), ""))
	if degree != "" {
		s = strings.TrimSpace(strings.ReplaceAll(s, degree, ""))
	}
	if field != "" {
		s = strings.TrimSpace(strings.ReplaceAll(s, field, ""))
	}
	s = reNoisePunct.ReplaceAllString(s, " ")
	return strings.TrimSpace(reMultiSpace.ReplaceAllString(s, " "))
}

func institution(lines []string, degree, field string) string {
	for _, l := range lines {
		if reInstitution.MatchString(l) {
			if inst := stripNoise(l, degree, field); inst != "" {
				return inst
			}
		}
	}
	for _, l := range lines {
		cand := stripNoise(l, degree, field)
		if cand == "" || reDegree.MatchString(cand) {
			continue
		}
		if textnorm.MostlyCapitalized(cand, false) && utf8.RuneCountInString(cand) <= maxInstitutionChars {
			return cand
		}
	}
	return ""
}

func (o Options) enrichEducation(lines []string) Education {
	e := Education{Lines: lines}
	e.StartYear, e.EndYear = o.studyYears(lines)

	combined := strings.Join(lines, " | ")
	if m := reDegree.FindStringSubmatch(combined); m != nil {
		e.Degree = strings.TrimSpace(m[1])
	}
	e.Field = fieldOfStudy(combined, e.Degree)
	e.Institution = institution(lines, e.Degree, e.Field)
	return e
}

func (o Options) education(_ context.Context, in Sectioned) (EducationOutput, error) {
	s, ok := in.first(SectionEducation)
	if !ok {
		return EducationOutput{}, nil
	}
	var out EducationOutput
	for _, block := range educationBlocks(s.Lines) {
		out.Entries = append(out.Entries, o.enrichEducation(block))
	}
	return out, nil
}
