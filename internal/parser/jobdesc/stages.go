// Package jobdesc extracts seniority, domain and skills from job description text.
package jobdesc

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/jobcopilot/internal/core/textnorm"
)

// Request is the raw posting text handed to the pipeline.
type Request struct {
	Text string
}

// Normalized carries the original and normalized text.
type Normalized struct {
	RawText string
	Text    string
}

// Label is the block a line belongs to.
type Label string

const (
	LabelRequirements     Label = "REQUIREMENTS"
	LabelPreferred        Label = "PREFERRED"
	LabelResponsibilities Label = "RESPONSIBILITIES"
	LabelSkills           Label = "SKILLS"
	LabelOther            Label = "OTHER"
)

// LabeledLine is one normalized line and the block it sits in.
type LabeledLine struct {
	Text  string
	Label Label
}

// Labeled is the normalized text split into labeled lines.
type Labeled struct {
	Normalized
	Lines []LabeledLine
}

// Graded adds the seniority decision.
type Graded struct {
	Labeled
	Seniority       Seniority
	SeniorityReason string
}

// Classified adds the domain decision.
type Classified struct {
	Graded
	Domain       Domain
	DomainReason string
}

func normalize(_ context.Context, in Request) (Normalized, error) {
	return Normalized{RawText: in.Text, Text: textnorm.JobDescription(in.Text)}, nil
}

type headerCue struct {
	label Label
	cues  []string
}

var headerCues = []headerCue{
	{LabelRequirements, []string{"requirements", "qualifications", "what you'll need", "what you will need"}},
	{LabelPreferred, []string{"preferred", "nice to have", "nice-to-have", "bonus", "good to have", "would be a plus"}},
	{LabelResponsibilities, []string{"responsibilities", "what you'll do", "what you will do", "duties"}},
	{LabelSkills, []string{"skills", "tech stack", "technologies"}},
}

const (
	maxHeaderChars = 60
	maxHeaderWords = 6
)

// headerLabel returns the block a header line opens, if the line is one.
func headerLabel(line string) (Label, bool) {
	t := strings.TrimSpace(line)
	if t == "" || strings.HasPrefix(t, "-") {
		return "", false
	}
	t = strings.TrimSpace(strings.TrimSuffix(t, ":"))
	if utf8.RuneCountInString(t) > maxHeaderChars || textnorm.WordCount(t) > maxHeaderWords {
		return "", false
	}
	lower := strings.ToLower(t)
	for _, hc := range headerCues {
		for _, cue := range hc.cues {
			if strings.Contains(lower, cue) {
				return hc.label, true
			}
		}
	}
	return "", false
}

// label assigns each line the label of the closest header above it. Header
// lines themselves are OTHER.
func label(_ context.Context, in Normalized) (Labeled, error) {
	lines := textnorm.Lines(in.Text)
	out := Labeled{Normalized: in, Lines: make([]LabeledLine, 0, len(lines))}
	current := LabelOther
	for _, line := range lines {
		if l, ok := headerLabel(line); ok {
			current = l
			out.Lines = append(out.Lines, LabeledLine{Text: line, Label: LabelOther})
			continue
		}
		out.Lines = append(out.Lines, LabeledLine{Text: line, Label: current})
	}
	return out, nil
}

const maxTitleLines = 3

// titleLines are the first few non-blank lines before the first blank gap.
func titleLines(text string) []string {
	var out []string
	for _, line := range textnorm.Lines(text) {
		t := strings.TrimSpace(line)
		if t == "" {
			if len(out) > 0 {
				break
			}
			continue
		}
		out = append(out, t)
		if len(out) == maxTitleLines {
			break
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// grade picks the highest ranked seniority mentioned in the title, then in the body.
// Dictionary precedence decides, not position in the line.
func grade(_ context.Context, in Labeled) (Graded, error) {
	out := Graded{Labeled: in, Seniority: SeniorityUnknown}
	if strings.TrimSpace(in.Text) == "" {
		out.SeniorityReason = "empty text"
		return out, nil
	}
	if level, alias, ok := matchSeniority(titleLines(in.Text)); ok {
		out.Seniority, out.SeniorityReason = level, "matched '"+alias+"' in title"
		return out, nil
	}
	if level, alias, ok := matchSeniority([]string{in.Text}); ok {
		out.Seniority, out.SeniorityReason = level, "matched '"+alias+"' in body"
		return out, nil
	}
	out.SeniorityReason = "no seniority match"
	return out, nil
}

func matchSeniority(lines []string) (Seniority, string, bool) {
	for _, entry := range seniorityDictionary {
		for _, line := range lines {
			for _, alias := range entry.aliases {
				if alias.re.MatchString(line) {
					return entry.level, alias.text, true
				}
			}
		}
	}
	return "", "", false
}

var reLeadingBullets = regexp.MustCompile(`^(?:-\s*)+`)

func responsibilities(lines []LabeledLine) []string {
	var out []string
	for _, l := range lines {
		if l.Label != LabelResponsibilities {
			continue
		}
		if t := strings.TrimSpace(reLeadingBullets.ReplaceAllString(strings.TrimSpace(l.Text), "")); t != "" {
			out = append(out, t)
		}
	}
	return out
}
