package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/jobcopilot/constants"
	"github.com/joseph-ayodele/jobcopilot/internal/entity"
)

var (
	// ErrJobNotFound is returned by Get when no job has the id.
	ErrJobNotFound = errors.New("job not found")
	// ErrLeaseLost is returned by Complete and Fail when the caller no longer holds the lease.
	ErrLeaseLost = errors.New("job lease lost")
)

// JobRepository persists jobs and implements the claim/lease protocol.
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	// ListByProfile returns the caller's jobs for a profile, newest first.
	ListByProfile(ctx context.Context, userID, profileID string) ([]*entity.Job, error)
	// Claim atomically leases the oldest eligible job. It returns nil, nil when nothing is eligible.
	Claim(ctx context.Context, req ClaimRequest) (*entity.Job, error)
	Complete(ctx context.Context, req CompleteRequest) error
	Fail(ctx context.Context, req FailRequest) error
	// ReapExhausted fails expired leases that have no attempts left and returns how many it touched.
	ReapExhausted(ctx context.Context, now time.Time, leaseTTL time.Duration, maxAttempts int) (int64, error)
}

type ClaimRequest struct {
	WorkerID    string
	Now         time.Time
	LeaseTTL    time.Duration
	MaxAttempts int
}

// expiry is the lockedAt bound at or before which a lease counts as expired.
func (r ClaimRequest) expiry() time.Time {
	return r.Now.Add(-r.LeaseTTL)
}

type CompleteRequest struct {
	JobID          uuid.UUID
	WorkerID       string
	Now            time.Time
	NormalizedText string
	Extracted      *entity.Extracted
}

type FailRequest struct {
	JobID    uuid.UUID
	WorkerID string
	Now      time.Time
	Error    entity.JobError
}

// SanitizeMessage collapses whitespace, drops newlines and caps the length of a stored error message.
func SanitizeMessage(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if r := []rune(msg); len(r) > constants.MaxErrorMessageLength {
		msg = string(r[:constants.MaxErrorMessageLength])
	}
	return msg
}

func exhaustedError(attempt int) entity.JobError {
	return entity.JobError{
		Code:      constants.ErrCodeAttemptsExhausted,
		Message:   fmt.Sprintf("lease expired after %d attempts", attempt),
		Detail:    constants.ErrDetailAnalysisFailed,
		Retryable: false,
	}
}
