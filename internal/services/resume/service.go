// Package resume turns résumé text or PDF uploads into entity.ParsedResume.
package resume

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/jobcopilot/constants"
	"github.com/joseph-ayodele/jobcopilot/internal/common"
	"github.com/joseph-ayodele/jobcopilot/internal/entity"
	resumeparser "github.com/joseph-ayodele/jobcopilot/internal/parser/resume"
	"github.com/joseph-ayodele/jobcopilot/internal/pipeline"
)

// Service runs the résumé pipelines.
type Service struct {
	text   *pipeline.Pipeline
	pdf    *pipeline.Pipeline
	now    func() time.Time
	logger *slog.Logger
}

// NewService wires the text pipeline and, optionally, the PDF pipeline.
func NewService(text, pdf *pipeline.Pipeline, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{text: text, pdf: pdf, now: time.Now, logger: logger}
}

// ParseText parses pasted résumé text.
func (s *Service) ParseText(ctx context.Context, text string) (*entity.ParsedResume, error) {
	v := common.NewValidator()
	v.Field("text", text, common.Required)
	if err := v.Error(); err != nil {
		return nil, err
	}

	res, err := resumeparser.Parse(ctx, s.text, resumeparser.TextRequest{Text: text})
	if err != nil {
		s.logger.Error("resume parse failed", "source", constants.SourcePasted, "error", err)
		return nil, common.NewAppError("RESUME_PARSE_FAILED", "could not parse resume", err)
	}
	s.logger.Info("resume parsed", "source", constants.SourcePasted, "skills", len(res.Skills), "experiences", len(res.Experiences))
	return toParsedResume(res, entity.ResumeSource{
		Type:       constants.SourcePasted,
		UploadedAt: s.now().UTC(),
	}), nil
}

// ParseFile parses an uploaded PDF.
func (s *Service) ParseFile(ctx context.Context, data []byte, fileName, contentType string) (*entity.ParsedResume, error) {
	v := common.NewValidator()
	v.Field("fileName", fileName, common.MaxLen(255))
	v.Field("file", data, common.Required)
	v.Field("contentType", contentType, common.Check(constants.IsPDF(fileName, contentType), "only PDF uploads are supported"))
	if err := v.Error(); err != nil {
		return nil, err
	}
	if s.pdf == nil {
		return nil, common.NewAppError("PDF_UNSUPPORTED", "PDF parsing is not configured", common.ErrInternal)
	}

	res, err := resumeparser.Parse(ctx, s.pdf, resumeparser.PDFRequest{Data: data, FileName: fileName, ContentType: contentType})
	if err != nil {
		s.logger.Error("resume parse failed", "source", constants.SourceUploaded, "file", fileName, "error", err)
		return nil, common.NewAppError("RESUME_PARSE_FAILED", "could not parse resume", err)
	}
	s.logger.Info("resume parsed", "source", constants.SourceUploaded, "file", fileName, "skills", len(res.Skills))
	return toParsedResume(res, entity.ResumeSource{
		Type:        constants.SourceUploaded,
		FileName:    strings.TrimSpace(fileName),
		ContentType: contentType,
		UploadedAt:  s.now().UTC(),
	}), nil
}

func toParsedResume(res *resumeparser.Result, src entity.ResumeSource) *entity.ParsedResume {
	out := &entity.ParsedResume{
		RawText:           res.RawText,
		Source:            src,
		YearsOfExperience: res.YearsOfExperience,
	}
	for _, sk := range res.Skills {
		out.Skills = append(out.Skills, string(sk))
	}
	for _, e := range res.Experiences {
		out.Experiences = append(out.Experiences, entity.ResumeExperience{
			Company:   e.Company,
			Role:      e.Role,
			StartYear: e.StartYear,
			EndYear:   e.EndYear,
			IsCurrent: e.IsCurrent,
			Details:   e.Details,
		})
	}
	for _, e := range res.Educations {
		out.Educations = append(out.Educations, entity.ResumeEducation{
			Institution: e.Institution,
			Degree:      e.Degree,
			Field:       e.Field,
			StartYear:   e.StartYear,
			EndYear:     e.EndYear,
		})
	}
	return out
}
