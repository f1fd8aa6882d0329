// Package ocr turns PDF bytes into plain text using poppler's pdftotext, with
// an optional pdftoppm + tesseract pass for scanned documents.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ErrEmptyDocument is returned for zero-length input.
var ErrEmptyDocument = errors.New("ocr: pdf bytes are empty")

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit
	Concurrency   int    // pages OCRed at once, default 2

	// OCRFallback rasterizes and OCRs the document when the text layer has
	// fewer than MinLetters letters (default 1, so only empty layers).
	OCRFallback bool
	MinLetters  int
	Timeout     time.Duration
}

// Extraction methods reported in Result.Method.
const (
	MethodTextLayer = "pdf-text"
	MethodOCR       = "pdf-ocr"
)

type Result struct {
	Text     string
	Pages    int
	Method   string
	Duration time.Duration
	Warnings []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRunner replaces the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.MinLetters <= 0 {
		cfg.MinLetters = 1
	}
	e := &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract writes data to a temporary file and converts it to text.
func (e *Extractor) Extract(ctx context.Context, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, ErrEmptyDocument
	}
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	f, err := os.CreateTemp("", "jc-resume-*.pdf")
	if err != nil {
		return Result{}, fmt.Errorf("create temp pdf: %w", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return Result{}, fmt.Errorf("write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("close temp pdf: %w", err)
	}

	pages, err := e.textLayer(ctx, path)
	if err != nil {
		return Result{}, err
	}
	res := Result{Pages: len(pages), Method: MethodTextLayer}

	if letters := countLetters(pages); letters < e.cfg.MinLetters && e.cfg.OCRFallback {
		e.logger.Info("resume pdf has no usable text layer, running ocr", "pages", len(pages), "letters", letters)
		pages, res.Warnings, err = e.scannedPages(ctx, path)
		if err != nil {
			return Result{Warnings: res.Warnings}, err
		}
		res.Pages, res.Method = len(pages), MethodOCR
	}
	res.Text = joinPages(pages)
	res.Duration = time.Since(start)
	e.logger.Debug("resume pdf converted", "method", res.Method, "pages", res.Pages, "warnings", len(res.Warnings), "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

// joinPages separates pages with a blank line so the résumé sectionizer sees
// a paragraph break instead of a form feed.
func joinPages(pages []string) string {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// TextFromPDF returns only the extracted text.
func (e *Extractor) TextFromPDF(ctx context.Context, data []byte) (string, error) {
	res, err := e.Extract(ctx, data)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
