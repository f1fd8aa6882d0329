package async

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/jobcopilot/internal/entity"
	"github.com/joseph-ayodele/jobcopilot/internal/metrics"
	"github.com/joseph-ayodele/jobcopilot/internal/repository"
)

// Claimer is the part of the job store the poller needs.
type Claimer interface {
	Claim(ctx context.Context, req repository.ClaimRequest) (*entity.Job, error)
}

// Executor runs claimed work. *Pool satisfies it.
type Executor interface {
	Remaining() int
	Submit(name string, task Task) error
}

// Handler processes one claimed job to completion or failure.
type Handler func(ctx context.Context, job *entity.Job)

type PollerConfig struct {
	// WorkerID names the process. Each claim holds the lease as
	// "<WorkerID>/<n>", so a task that outlived its lease cannot write over a
	// reclaim made by this same process.
	WorkerID    string
	Interval    time.Duration
	LeaseTTL    time.Duration
	MaxAttempts int
}

// Poller claims at most one job per tick and hands it to the executor.
type Poller struct {
	cfg    PollerConfig
	store  Claimer
	exec   Executor
	handle Handler
	now    func() time.Time
	logger *slog.Logger
	claims atomic.Uint64
}

type PollerOption func(*Poller)

// WithClock overrides time.Now for claim timestamps.
func WithClock(now func() time.Time) PollerOption {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPoller(cfg PollerConfig, store Claimer, exec Executor, handle Handler, logger *slog.Logger, opts ...PollerOption) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		cfg:    cfg,
		store:  store,
		exec:   exec,
		handle: handle,
		now:    time.Now,
		logger: logger.With("worker_id", cfg.WorkerID),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// PollOnce runs a single cycle. It skips claiming entirely when the executor has
// no free queue slot, and reports whether a job was claimed.
func (p *Poller) PollOnce(ctx context.Context) (bool, error) {
	if p.exec.Remaining() <= 0 {
		metrics.PollCyclesTotal.WithLabelValues("skipped").Inc()
		p.logger.Debug("worker queue full, skipping poll")
		return false, nil
	}

	job, err := p.store.Claim(ctx, repository.ClaimRequest{
		WorkerID:    p.leaseToken(),
		Now:         p.now().UTC(),
		LeaseTTL:    p.cfg.LeaseTTL,
		MaxAttempts: p.cfg.MaxAttempts,
	})
	if err != nil {
		metrics.PollCyclesTotal.WithLabelValues("error").Inc()
		p.logger.Error("claim failed", "error", err)
		return false, err
	}
	if job == nil {
		metrics.PollCyclesTotal.WithLabelValues("empty").Inc()
		return false, nil
	}
	metrics.PollCyclesTotal.WithLabelValues("claimed").Inc()

	err = p.exec.Submit("analyze:"+job.ID.String(), func(ctx context.Context) {
		p.handle(ctx, job)
	})
	if err != nil {
		// the lease expires and another poller picks the job up
		p.logger.Warn("claimed job not submitted", "job_id", job.ID, "error", err)
		return true, err
	}
	return true, nil
}

func (p *Poller) leaseToken() string {
	return p.cfg.WorkerID + "/" + strconv.FormatUint(p.claims.Add(1), 10)
}

// Run polls every Interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller started", "interval", p.cfg.Interval, "lease_ttl", p.cfg.LeaseTTL, "max_attempts", p.cfg.MaxAttempts)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-ticker.C:
			_, _ = p.PollOnce(ctx)
		}
	}
}
