package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/errgroup"
)

var (
	reBoxNoise  = regexp.MustCompile(`[│┃┆┇┊┋|]{2,}`)
	rePageImage = regexp.MustCompile(`-(\d+)\.png$`)
)

// textLayer reads the embedded text of every page, up to MaxPages.
func (e *Extractor) textLayer(ctx context.Context, path string) ([]string, error) {
	args := []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	out, err := e.run(ctx, e.cfg.Pdftotext, append(args, path, "-")...)
	if err != nil {
		return nil, err
	}
	return splitPages(string(out)), nil
}

// splitPages cuts pdftotext output on form feeds. Blank pages are kept so
// page counts stay honest.
func splitPages(s string) []string {
	s = strings.TrimSuffix(s, "\f")
	if s == "" {
		return nil
	}
	pages := strings.Split(s, "\f")
	for i, p := range pages {
		pages[i] = strings.Trim(p, "\n")
	}
	return pages
}

// scannedPages renders each page with pdftoppm and OCRs the images in parallel.
// A page that fails OCR becomes a warning; the call fails only when no page
// produced text.
func (e *Extractor) scannedPages(ctx context.Context, path string) ([]string, []string, error) {
	dir, err := os.MkdirTemp("", "jc-resume-pages-*")
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("failed to remove page images", "path", dir, "error", err)
		}
	}()

	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	if _, err := e.run(ctx, e.cfg.Pdftoppm, append(args, path, prefix)...); err != nil {
		return nil, nil, err
	}

	images, err := pageImages(prefix)
	if err != nil {
		return nil, nil, err
	}
	if e.cfg.MaxPages > 0 && len(images) > e.cfg.MaxPages {
		images = images[:e.cfg.MaxPages]
	}

	pages := make([]string, len(images))
	var (
		mu       sync.Mutex
		warnings []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, img := range images {
		g.Go(func() error {
			txt, err := e.recognize(gctx, img)
			if err != nil {
				mu.Lock()
				warnings = append(warnings, fmt.Sprintf("page %d: %v", i+1, err))
				mu.Unlock()
				return nil
			}
			pages[i] = txt
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, warnings, err
	}
	if countLetters(pages) == 0 {
		return nil, warnings, fmt.Errorf("ocr found no text on %d page(s)", len(images))
	}
	sort.Strings(warnings)
	return pages, warnings, nil
}

// pageImages lists pdftoppm output in page order. pdftoppm zero-pads the
// page number to the width of the last page, so names do not sort reliably.
func pageImages(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm rendered no pages")
	}
	sort.Slice(matches, func(i, j int) bool { return pageNumber(matches[i]) < pageNumber(matches[j]) })
	return matches, nil
}

func pageNumber(path string) int {
	m := rePageImage.FindStringSubmatch(path)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// recognize runs tesseract on one page image. tesseract ends stdout with a
// form feed; table borders come back as runs of pipes.
func (e *Extractor) recognize(ctx context.Context, img string) (string, error) {
	out, err := e.run(ctx, e.cfg.Tesseract, img, "stdout", "-l", e.cfg.TesseractLang)
	if err != nil {
		return "", err
	}
	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return strings.TrimRight(txt, "\f\n "), nil
}

func countLetters(pages []string) int {
	n := 0
	for _, p := range pages {
		for _, r := range p {
			if unicode.IsLetter(r) {
				n++
			}
		}
	}
	return n
}
