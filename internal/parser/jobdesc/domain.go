package jobdesc

import (
	"context"
	"strings"
)

// DomainScoring tunes domain classification. A keyword found in the title
// adds TitleWeight on top of its body point; a winner needs MinScore and must
// not tie the runner-up.
type DomainScoring struct {
	TitleWeight int
	MinScore    int
}

// DefaultDomainScoring matches the historical tuning.
func DefaultDomainScoring() DomainScoring {
	return DomainScoring{TitleWeight: 2, MinScore: 2}
}

type domainScore struct {
	domain  Domain
	score   int
	matched []string
	title   []string
}

func firstNonBlankLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

func (s DomainScoring) classify(_ context.Context, in Graded) (Classified, error) {
	out := Classified{Graded: in, Domain: DomainUnknown}
	if strings.TrimSpace(in.Text) == "" {
		out.DomainReason = "empty text"
		return out, nil
	}
	text := strings.ToLower(in.Text)
	title := strings.ToLower(firstNonBlankLine(in.Text))

	scores := make([]domainScore, 0, len(domainDictionary))
	for _, entry := range domainDictionary {
		ds := domainScore{domain: entry.domain}
		for _, kw := range entry.keywords {
			if kw.re.MatchString(text) {
				ds.score++
				ds.matched = append(ds.matched, kw.text)
			}
			if title != "" && kw.re.MatchString(title) {
				ds.score += s.TitleWeight
				ds.title = append(ds.title, kw.text)
			}
		}
		scores = append(scores, ds)
	}

	var best, bestTitle *domainScore
	bestScore, secondScore := 0, 0
	for i := range scores {
		ds := &scores[i]
		if ds.score > bestScore {
			secondScore = bestScore
			bestScore = ds.score
			best = ds
		} else if ds.score > secondScore {
			secondScore = ds.score
		}
		if len(ds.title) > 0 && (bestTitle == nil || len(ds.title) > len(bestTitle.title)) {
			bestTitle = ds
		}
	}

	switch {
	case strings.Contains(title, "full stack") || strings.Contains(title, "fullstack"):
		out.Domain, out.DomainReason = DomainFullstack, "title:fullstack"
	case bestTitle != nil:
		out.Domain, out.DomainReason = bestTitle.domain, "title signals: "+strings.Join(bestTitle.title, ", ")
	case best == nil || bestScore < s.MinScore || bestScore == secondScore:
		out.DomainReason = "weak or tied domain signal"
	default:
		out.Domain, out.DomainReason = best.domain, "matched: "+strings.Join(best.matched, ", ")
	}
	return out, nil
}
