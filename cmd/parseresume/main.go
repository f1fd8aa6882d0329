package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/jobcopilot/constants"
	"github.com/joseph-ayodele/jobcopilot/internal/common"
	"github.com/joseph-ayodele/jobcopilot/internal/entity"
	"github.com/joseph-ayodele/jobcopilot/internal/ocr"
	resumeparser "github.com/joseph-ayodele/jobcopilot/internal/parser/resume"
	"github.com/joseph-ayodele/jobcopilot/internal/pipeline"
	"github.com/joseph-ayodele/jobcopilot/internal/services/resume"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: common.ParseLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "parseresume <resume.pdf|resume.txt>")
		os.Exit(2)
	}
	path := os.Args[1]

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	textPipe, err := resumeparser.NewTextPipeline(resumeparser.Options{}, pipeline.WithLogger(logger))
	if err != nil {
		logger.Error("build text pipeline", "error", err)
		os.Exit(1)
	}
	defer textPipe.Close()

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext:   os.Getenv("PDFTOTEXT_BIN"),
		OCRFallback: os.Getenv("OCR_FALLBACK") == "true",
		Timeout:     time.Minute,
	}, logger)
	pdfPipe, err := resumeparser.NewPDFPipeline(extractor, resumeparser.Options{}, pipeline.WithLogger(logger))
	if err != nil {
		logger.Error("build pdf pipeline", "error", err)
		os.Exit(1)
	}
	defer pdfPipe.Close()

	svc := resume.NewService(textPipe, pdfPipe, logger)

	start := time.Now()
	var parsed *entity.ParsedResume
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if constants.IsPDF(path, contentType) {
		parsed, err = svc.ParseFile(ctx, data, filepath.Base(path), constants.PDFContentType)
	} else {
		parsed, err = svc.ParseText(ctx, string(data))
	}
	if err != nil {
		logger.Error("resume parse failed", "path", path, "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}
	logger.Info("resume parse OK",
		"path", path,
		"skills", len(parsed.Skills),
		"experiences", len(parsed.Experiences),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(parsed); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
}
