package resume

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

const (
	minPlausibleYear  = 1990
	maxYearsOfService = 50
)

var (
	reYearsPhrase = regexp.MustCompile(`(?i)\b(\d{1,2})\s*\+?\s*(years?|yrs?)\s+(of\s+)?experience\b`)
	reMonthRange  = regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)\s+(19\d{2}|20\d{2})\b\s*[-–—]\s*(present|current|now|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)\s+(19\d{2}|20\d{2}))`)
	reYearRange   = regexp.MustCompile(`(?i)\b(19\d{2}|20\d{2})\b\s*[-–—]\s*\b(19\d{2}|20\d{2}|present|current|now)\b`)
)

func clampYears(y int) int {
	return max(0, min(y, maxYearsOfService))
}

// yearsFromPhrase takes the largest "N years of experience" figure in text.
func yearsFromPhrase(text string) *int {
	best := -1
	for _, m := range reYearsPhrase.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > best {
			best = n
		}
	}
	if best < 0 {
		return nil
	}
	return intPtr(clampYears(best))
}

// yearsFromRanges is currentYear minus the earliest plausible start year of
// any date range.
func yearsFromRanges(text string, currentYear int) *int {
	earliest := 0
	for _, re := range []*regexp.Regexp{reMonthRange, reYearRange} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			y, err := strconv.Atoi(m[1])
			if err != nil || y < minPlausibleYear || y > currentYear {
				continue
			}
			if earliest == 0 || y < earliest {
				earliest = y
			}
		}
	}
	if earliest == 0 {
		return nil
	}
	return intPtr(clampYears(currentYear - earliest))
}

func (o Options) yearsOfExperience(_ context.Context, in Sectioned) (YearsOutput, error) {
	if s, ok := in.first(SectionSummary); ok {
		if y := yearsFromPhrase(strings.Join(s.Lines, "\n")); y != nil {
			return YearsOutput{Years: y}, nil
		}
	}
	if y := yearsFromPhrase(in.NormalizedText); y != nil {
		return YearsOutput{Years: y}, nil
	}
	if s, ok := in.first(SectionExperience); ok {
		if y := yearsFromRanges(strings.Join(s.Lines, "\n"), o.currentYear()); y != nil {
			return YearsOutput{Years: y}, nil
		}
	}
	return YearsOutput{}, nil
}
