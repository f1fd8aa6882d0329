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
	maxDetailChars       = 200
	maxExperienceHeading = 140
)

var (
	reHeaderSeparators = regexp.MustCompile(`(?i)\s*(\||—|–|-|@|\bat\b)\s*`)
	reBulletPrefix     = regexp.MustCompile(`^(?:[-•▪*–—]\s*)+`)

	titleKeywords = []string{"engineer", "developer", "analyst", "manager", "consultant", "lead"}
	roleKeywords  = []string{"engineer", "developer", "analyst", "manager", "consultant", "architect", "lead", "director", "intern"}
)

func containsAnyFold(s string, words []string) bool {
	lower := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func stripBullet(line string) string {
	return strings.TrimSpace(reBulletPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
}

func hasDateRange(line string) bool {
	return reMonthRange.MatchString(line) || reYearRange.MatchString(line)
}

func isExperienceHeader(line string) bool {
	if line == "" || textnorm.StartsWithBullet(line) {
		return false
	}
	if hasDateRange(line) {
		return true
	}
	titleish := containsAnyFold(line, titleKeywords) || textnorm.MostlyCapitalized(line, true)
	return reHeaderSeparators.MatchString(line) && titleish && utf8.RuneCountInString(line) <= maxExperienceHeading
}

func isCurrentToken(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present", "current", "now":
		return true
	}
	return false
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// parseDates reads the first month-year range, else the first year-year range.
func parseDates(line string) (start, end *int, current bool) {
	if m := reMonthRange.FindStringSubmatch(line); m != nil {
		start = atoiPtr(m[1])
		if isCurrentToken(m[2]) {
			return start, nil, true
		}
		return start, atoiPtr(m[3]), false
	}
	if m := reYearRange.FindStringSubmatch(line); m != nil {
		start = atoiPtr(m[1])
		if isCurrentToken(m[2]) {
			return start, nil, true
		}
		return start, atoiPtr(m[2]), false
	}
	return nil, nil, false
}

// parseExperienceHeader splits "Company | Role | dates" style lines. The
// token carrying a role keyword is the role; the first other token is the company.
func parseExperienceHeader(line string) Experience {
	var e Experience
	e.StartYear, e.EndYear, e.IsCurrent = parseDates(line)

	rest := reYearRange.ReplaceAllString(reMonthRange.ReplaceAllString(line, ""), "")
	var tokens []string
	for _, p := range reHeaderSeparators.Split(rest, -1) {
		if t := strings.TrimSpace(p); t != "" {
			tokens = append(tokens, t)
		}
	}

	switch {
	case len(tokens) >= 2:
		role := -1
		for i, t := range tokens {
			if containsAnyFold(t, roleKeywords) {
				role = i
				break
			}
		}
		if role < 0 {
			e.Company, e.Role = tokens[0], tokens[1]
			break
		}
		e.Role = tokens[role]
		for _, t := range tokens {
			if t != e.Role {
				e.Company = t
				break
			}
		}
	case len(tokens) == 1:
		if containsAnyFold(tokens[0], roleKeywords) {
			e.Role = tokens[0]
		} else {
			e.Company = tokens[0]
		}
	}
	return e
}

type experienceBuilder struct {
	entry  Experience
	header bool
}

func (b *experienceBuilder) meaningful() bool {
	e := b.entry
	return b.header || e.Company != "" || e.Role != "" || e.StartYear != nil || len(e.Details) > 0
}

func (b *experienceBuilder) addDetail(line string) {
	if textnorm.StartsWithBullet(line) {
		b.entry.Details = append(b.entry.Details, stripBullet(line))
		return
	}
	if utf8.RuneCountInString(line) <= maxDetailChars {
		b.entry.Details = append(b.entry.Details, line)
	}
}

func experienceEntries(lines []string) []Experience {
	var out []Experience
	var current *experienceBuilder
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if isExperienceHeader(line) {
			if current != nil && current.meaningful() {
				out = append(out, current.entry)
			}
			current = &experienceBuilder{entry: parseExperienceHeader(line), header: true}
			continue
		}
		if current != nil {
			current.addDetail(line)
		}
	}
	if current != nil && current.meaningful() {
		out = append(out, current.entry)
	}
	if len(out) > 0 {
		return out
	}

	// No headers: keep everything as one coarse entry.
	fallback := &experienceBuilder{}
	for _, raw := range lines {
		if line := strings.TrimSpace(raw); line != "" {
			fallback.addDetail(line)
		}
	}
	if fallback.meaningful() {
		out = append(out, fallback.entry)
	}
	return out
}

func experience(_ context.Context, in Sectioned) (ExperienceOutput, error) {
	s, ok := in.first(SectionExperience)
	if !ok {
		return ExperienceOutput{}, nil
	}
	return ExperienceOutput{Entries: experienceEntries(s.Lines)}, nil
}
