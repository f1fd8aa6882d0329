package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/jobcopilot/constants"
	"github.com/joseph-ayodele/jobcopilot/internal/services/analysis"
)

// DefaultMaxFileBytes caps how much of a dropped file is read.
const DefaultMaxFileBytes = 1 << 20

// SubmitService is the part of the submission service the watcher needs.
type SubmitService interface {
	Submit(ctx context.Context, userID string, req analysis.SubmitRequest) (*analysis.SubmitResponse, error)
}

// Submitter turns dropped files into PASTED job submissions owned by a fixed user and profile.
type Submitter struct {
	svc       SubmitService
	userID    string
	profileID string
	maxBytes  int64
	logger    *slog.Logger
}

func NewSubmitter(svc SubmitService, userID, profileID string, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		svc:       svc,
		userID:    userID,
		profileID: profileID,
		maxBytes:  DefaultMaxFileBytes,
		logger:    logger,
	}
}

// SubmitFile reads path and submits its text. Empty files are skipped with a nil response.
func (s *Submitter) SubmitFile(ctx context.Context, path string) (*analysis.SubmitResponse, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory", abs)
	}
	if fi.Size() > s.maxBytes {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", fi.Size(), s.maxBytes)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		s.logger.Debug("ingest skipped empty file", "path", abs)
		return nil, nil
	}

	name := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	resp, err := s.svc.Submit(ctx, s.userID, analysis.SubmitRequest{
		ProfileID:   s.profileID,
		Type:        string(constants.InputTypePasted),
		Text:        text,
		DisplayName: name,
		SourceLabel: "file:" + filepath.Base(abs),
		Source:      "ingest",
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ingest submitted file", "path", abs, "job_id", resp.JobID)
	return resp, nil
}

// Run submits every path received until paths is closed or ctx is done.
// Per-file failures are logged and do not stop the loop.
func (s *Submitter) Run(ctx context.Context, paths <-chan string, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-paths:
			if !ok {
				return nil
			}
			if _, err := s.SubmitFile(ctx, p); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				s.logger.Warn("ingest submit failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("ingest watcher error", "error", err)
		}
	}
}
