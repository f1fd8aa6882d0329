package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/jobcopilot/internal/entity"
)

// JobLister is the read side of the job store.
type JobLister interface {
	ListByProfile(ctx context.Context, userID, profileID string) ([]*entity.Job, error)
}

// Service produces XLSX bytes for a profile's analysed jobs.
type Service struct {
	jobs   JobLister
	logger *slog.Logger
}

func NewService(jobs JobLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

const sheet = "Jobs"

var headers = []string{
	"Submitted",
	"Name",
	"Source",
	"Status",
	"Attempts",
	"Seniority",
	"Domain",
	"Required Skills",
	"Preferred Skills",
	"Tech Stack",
	"Error",
	"Job ID",
}

// ExportJobsXLSX returns a workbook with one row per job, newest first.
func (s *Service) ExportJobsXLSX(ctx context.Context, userID, profileID string) ([]byte, error) {
	start := time.Now()

	jobs, err := s.jobs.ListByProfile(ctx, userID, profileID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	for i, j := range jobs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, j.Input.SubmittedAt.UTC().Format(time.RFC3339))
		name, source := "", ""
		if j.Display != nil {
			name, source = j.Display.Name, j.Display.SourceLabel
		}
		if source == "" && j.Input.URL != nil {
			source = *j.Input.URL
		}
		write(2, name)
		write(3, source)
		write(4, string(j.Analysis.Status))
		write(5, j.Analysis.Attempt)
		if ext := j.Extracted; ext != nil {
			write(6, ext.Seniority)
			write(7, ext.Domain)
			write(8, strings.Join(ext.RequiredSkills, ", "))
			write(9, strings.Join(ext.PreferredSkills, ", "))
			write(10, strings.Join(ext.TechStack, ", "))
		}
		if e := j.Analysis.Error; e != nil {
			write(11, truncate(e.Code+": "+e.Message, 140))
		}
		write(12, j.ID.String())
	}

	_ = f.SetColWidth(sheet, "A", "A", 22) // submitted
	_ = f.SetColWidth(sheet, "B", "C", 28) // name, source
	_ = f.SetColWidth(sheet, "D", "G", 12) // status .. domain
	_ = f.SetColWidth(sheet, "H", "J", 36) // skills
	_ = f.SetColWidth(sheet, "K", "K", 48) // error
	_ = f.SetColWidth(sheet, "L", "L", 38) // id

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"profile_id", profileID,
		"rows", len(jobs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
