package textnorm

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var reEdgeNonLetters = regexp.MustCompile(`^[^\pL]+|[^\pL]+$`)

// IsLikelyHeader scores a résumé line as a section header: short all-caps
// lines, short lines ending in a colon, or short mostly title-cased lines.
// Bullets and sentences are rejected.
func IsLikelyHeader(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" || StartsWithBullet(t) || strings.HasSuffix(t, ".") {
		return false
	}
	if utf8.RuneCountInString(t) > 80 {
		return false
	}
	words := WordCount(t)
	if IsAllCaps(t) && words <= 10 {
		return true
	}
	if strings.HasSuffix(t, ":") && words <= 10 {
		return true
	}
	if strings.Contains(t, ",") && words > 6 {
		return false
	}
	return looksLikeTitleCase(t) && words <= 6
}

// StartsWithBullet reports whether s begins with a bullet glyph or hyphen.
func StartsWithBullet(s string) bool {
	for _, p := range []string{"-", "•", "▪", "*", "–", "—"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// IsAllCaps reports whether s has letters and all of them are upper case.
func IsAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// WordCount counts whitespace separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

func looksLikeTitleCase(s string) bool {
	return MostlyCapitalized(s, false)
}

// MostlyCapitalized reports whether at least 60% (rounded up) of the words
// start with an upper case letter. Edge punctuation is ignored; with
// skipSingleChars, one-character words are not counted.
func MostlyCapitalized(s string, skipSingleChars bool) bool {
	considered, caps := 0, 0
	for _, w := range strings.Fields(s) {
		if skipSingleChars && utf8.RuneCountInString(w) == 1 {
			continue
		}
		cleaned := reEdgeNonLetters.ReplaceAllString(w, "")
		if cleaned == "" {
			continue
		}
		considered++
		r, _ := utf8.DecodeRuneInString(cleaned)
		if unicode.IsUpper(r) {
			caps++
		}
	}
	return considered > 0 && float64(caps) >= math.Ceil(float64(considered)*0.6)
}
