package async

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/jobcopilot/internal/metrics"
)

// ExhaustedReaper is the part of the job store the reaper needs.
type ExhaustedReaper interface {
	ReapExhausted(ctx context.Context, now time.Time, leaseTTL time.Duration, maxAttempts int) (int64, error)
}

// Reaper periodically fails jobs whose lease expired with no attempts left,
// which would otherwise stay PROCESSING forever.
type Reaper struct {
	store       ExhaustedReaper
	interval    time.Duration
	leaseTTL    time.Duration
	maxAttempts int
	now         func() time.Time
	logger      *slog.Logger
}

func NewReaper(store ExhaustedReaper, interval, leaseTTL time.Duration, maxAttempts int, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		store:       store,
		interval:    interval,
		leaseTTL:    leaseTTL,
		maxAttempts: maxAttempts,
		now:         time.Now,
		logger:      logger,
	}
}

func (r *Reaper) ReapOnce(ctx context.Context) (int64, error) {
	n, err := r.store.ReapExhausted(ctx, r.now().UTC(), r.leaseTTL, r.maxAttempts)
	if err != nil {
		r.logger.Error("reap failed", "error", err)
		return 0, err
	}
	metrics.JobsReapedTotal.Add(float64(n))
	return n, nil
}

func (r *Reaper) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = r.ReapOnce(ctx)
		}
	}
}
