// Package textnorm holds the normalization primitives shared by the job
// description and résumé parsers.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reBullets    = regexp.MustCompile(`[•▪●–—*·>]+`)
	reDashes     = regexp.MustCompile(`[−—–]+`)
)

// UnifyNewlines converts CRLF and lone CR to LF.
func UnifyNewlines(s string) string {
	return reCRLF.ReplaceAllString(s, "\n")
}

// Compose applies Unicode NFKC normalization.
func Compose(s string) string {
	return norm.NFKC.String(s)
}

// FoldBullets replaces runs of bullet glyphs with a single hyphen.
func FoldBullets(s string) string {
	return reBullets.ReplaceAllString(s, "-")
}

// FoldDashes replaces runs of dash variants with a single hyphen.
func FoldDashes(s string) string {
	return reDashes.ReplaceAllString(s, "-")
}

// CollapseSpaces turns tabs into spaces and squeezes space runs.
func CollapseSpaces(s string) string {
	return reMultiSpace.ReplaceAllString(strings.ReplaceAll(s, "\t", " "), " ")
}

// Lines splits on LF.
func Lines(s string) []string {
	return strings.Split(s, "\n")
}

// MapLines applies fn to every line and rejoins.
func MapLines(s string, fn func(string) string) string {
	lines := Lines(s)
	for i := range lines {
		lines[i] = fn(lines[i])
	}
	return strings.Join(lines, "\n")
}

// JobDescription normalizes posting text: newlines, NFKC, then per line tabs,
// bullet glyphs, dash variants and space runs are folded and the line trimmed.
// The result is a fixed point.
func JobDescription(s string) string {
	if s == "" {
		return ""
	}
	s = Compose(UnifyNewlines(s))
	return MapLines(s, func(line string) string {
		line = strings.ReplaceAll(line, "\t", " ")
		line = FoldDashes(FoldBullets(line))
		return strings.TrimSpace(reMultiSpace.ReplaceAllString(line, " "))
	})
}
