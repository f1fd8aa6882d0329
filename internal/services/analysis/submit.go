package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/jobcopilot/constants"
	"github.com/joseph-ayodele/jobcopilot/internal/common"
	"github.com/joseph-ayodele/jobcopilot/internal/entity"
	"github.com/joseph-ayodele/jobcopilot/internal/metrics"
	"github.com/joseph-ayodele/jobcopilot/internal/ownership"
)

// SubmitRequest is a job description submitted for analysis.
type SubmitRequest struct {
	ProfileID   string `json:"profileId"`
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	URL         string `json:"url,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	SourceLabel string `json:"sourceLabel,omitempty"`
	// Source tags where the submission came from (http, ingest) for metrics.
	Source string `json:"-"`
}

// SubmitResponse is returned as soon as the job is stored.
type SubmitResponse struct {
	JobID       uuid.UUID           `json:"jobId"`
	ProfileID   string              `json:"profileId"`
	Status      constants.JobStatus `json:"status"`
	SubmittedAt time.Time           `json:"submittedAt"`
}

// JobCreator persists new jobs.
type JobCreator interface {
	Create(ctx context.Context, job *entity.Job) error
}

// SubmissionService validates submissions, checks profile ownership and stores PENDING jobs.
type SubmissionService struct {
	jobs   JobCreator
	owners ownership.Checker
	now    func() time.Time
	logger *slog.Logger
}

func NewSubmissionService(jobs JobCreator, owners ownership.Checker, logger *slog.Logger) *SubmissionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionService{jobs: jobs, owners: owners, now: time.Now, logger: logger}
}

func (s *SubmissionService) Submit(ctx context.Context, userID string, req SubmitRequest) (*SubmitResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, common.NewAppError("MISSING_USER_ID", "Missing "+common.UserIDHeader+" header", common.ErrUnauthorized)
	}

	inputType, err := validateSubmission(req)
	if err != nil {
		s.logger.Warn("submission rejected", "user_id", userID, "error", err)
		return nil, err
	}

	profileID := strings.TrimSpace(req.ProfileID)
	owned, err := s.owners.IsOwnedByUser(ctx, profileID, userID)
	if err != nil {
		s.logger.Error("profile ownership check failed", "profile_id", profileID, "error", err)
		if !errors.Is(err, common.ErrUpstream) {
			err = fmt.Errorf("%w: %v", common.ErrUpstream, err)
		}
		return nil, common.NewAppError("PROFILE_SERVICE_UNAVAILABLE", "Profile service unavailable.", err)
	}
	if !owned {
		s.logger.Warn("profile ownership denied", "profile_id", profileID, "user_id", userID)
		return nil, common.NewAppError("PROFILE_FORBIDDEN",
			"Profile does not belong to the authenticated user: "+profileID, common.ErrForbidden)
	}

	job := &entity.Job{
		UserID:    userID,
		ProfileID: profileID,
		Input: entity.JobInput{
			InputType:   inputType,
			SubmittedAt: s.now().UTC(),
		},
		Analysis: entity.Analysis{Status: constants.JobStatusPending},
	}
	switch inputType {
	case constants.InputTypeURL:
		u := strings.TrimSpace(req.URL)
		job.Input.URL = &u
	case constants.InputTypePasted:
		text := req.Text
		job.Input.RawText = &text
	}
	if name, label := strings.TrimSpace(req.DisplayName), strings.TrimSpace(req.SourceLabel); name != "" || label != "" {
		job.Display = &entity.Display{Name: name, SourceLabel: label}
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, common.NewAppError("DATABASE_ERROR", "could not store job", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}

	source := req.Source
	if source == "" {
		source = "api"
	}
	metrics.JobsSubmittedTotal.WithLabelValues(string(inputType), source).Inc()
	s.logger.Info("job submitted", "job_id", job.ID, "profile_id", profileID, "input_type", inputType, "source", source)

	return &SubmitResponse{
		JobID:       job.ID,
		ProfileID:   profileID,
		Status:      job.Analysis.Status,
		SubmittedAt: job.Input.SubmittedAt,
	}, nil
}

func validateSubmission(req SubmitRequest) (constants.InputType, error) {
	v := common.NewValidator()
	v.Field("profileId", req.ProfileID, common.Required, common.MaxLen(128))
	v.Field("displayName", req.DisplayName, common.MaxLen(200))
	v.Field("sourceLabel", req.SourceLabel, common.MaxLen(200))

	inputType, ok := constants.ParseInputType(req.Type)
	v.Field("type", req.Type, common.Check(ok, "must be URL or PASTED"))
	switch inputType {
	case constants.InputTypeURL:
		v.Field("url", req.URL, common.Required, common.HTTPURL)
	case constants.InputTypePasted:
		v.Field("text", req.Text, common.Required)
	}
	if err := v.Error(); err != nil {
		return "", err
	}
	return inputType, nil
}
