package resume

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/jobcopilot/internal/core/textnorm"
)

var reNumberedItem = regexp.MustCompile(`^[0-9]+[).]`)

// Normalize applies the résumé normalization steps in order. The result is a
// fixed point: normalizing it again changes nothing.
func Normalize(text string) string {
	s := textnorm.Compose(textnorm.UnifyNewlines(text))
	s = textnorm.MapLines(textnorm.CollapseSpaces(s), strings.TrimSpace)
	s = textnorm.FoldDashes(textnorm.FoldBullets(s))
	s = repairLineWrapping(s)
	return strings.TrimRight(textnorm.MapLines(s, cleanHeader), "\n")
}

func normalize(_ context.Context, in textSource) (Normalized, error) {
	raw := in.sourceText()
	return Normalized{RawText: raw, Text: Normalize(raw)}, nil
}

// repairLineWrapping joins a line onto the previous one when the break looks
// like a soft wrap inside a sentence.
func repairLineWrapping(s string) string {
	lines := splitLines(s)
	if len(lines) == 0 {
		return ""
	}
	out := make([]string, 0, len(lines))
	current := lines[0]
	for _, next := range lines[1:] {
		if shouldMerge(current, next) {
			current += " " + strings.TrimSpace(next)
			continue
		}
		out = append(out, current)
		current = next
	}
	return strings.Join(append(out, current), "\n")
}

func shouldMerge(prev, next string) bool {
	p, n := strings.TrimSpace(prev), strings.TrimSpace(next)
	switch {
	case p == "" || n == "":
		return false
	case textnorm.IsLikelyHeader(p), endsWithPunctuation(p):
		return false
	case !startsLowercase(n), textnorm.IsLikelyHeader(n):
		return false
	}
	return !isListItem(p) && !isListItem(n)
}

func endsWithPunctuation(s string) bool {
	return s != "" && strings.ContainsAny(s[len(s)-1:], ".?!:;,")
}

// startsLowercase looks at the first letter, skipping digits and punctuation.
func startsLowercase(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return unicode.IsLower(r)
		}
	}
	return false
}

func isListItem(s string) bool {
	t := strings.TrimSpace(s)
	for _, p := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return reNumberedItem.MatchString(t)
}

// cleanHeader drops colons and edge dashes from header lines, keeping the
// line as is when the cleaned form would no longer read as a header.
func cleanHeader(line string) string {
	if !textnorm.IsLikelyHeader(line) {
		return line
	}
	cleaned := textnorm.CollapseSpaces(strings.ReplaceAll(line, ":", ""))
	cleaned = strings.TrimFunc(cleaned, isHeaderEdge)
	if !textnorm.IsLikelyHeader(cleaned) {
		return line
	}
	return cleaned
}

func isHeaderEdge(r rune) bool {
	return r == '-' || unicode.IsSpace(r)
}

// TextExtractor converts PDF bytes to text.
type TextExtractor interface {
	TextFromPDF(ctx context.Context, data []byte) (string, error)
}

func pdfToText(pdf TextExtractor) func(context.Context, PDFRequest) (ExtractedText, error) {
	return func(ctx context.Context, in PDFRequest) (ExtractedText, error) {
		if len(in.Data) == 0 {
			return ExtractedText{}, fmt.Errorf("pdf bytes are empty")
		}
		txt, err := pdf.TextFromPDF(ctx, in.Data)
		if err != nil {
			return ExtractedText{}, fmt.Errorf("pdf to text %q: %w", in.FileName, err)
		}
		return ExtractedText{Text: txt}, nil
	}
}
