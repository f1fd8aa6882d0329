package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/jobcopilot/constants"
	"github.com/joseph-ayodele/jobcopilot/internal/entity"
	"github.com/joseph-ayodele/jobcopilot/internal/metrics"
	"github.com/joseph-ayodele/jobcopilot/internal/parser/jobdesc"
	"github.com/joseph-ayodele/jobcopilot/internal/pipeline"
	"github.com/joseph-ayodele/jobcopilot/internal/repository"
)

// ResultWriter records the outcome of a leased job.
type ResultWriter interface {
	Complete(ctx context.Context, req repository.CompleteRequest) error
	Fail(ctx context.Context, req repository.FailRequest) error
}

// resultWriteTimeout bounds the terminal Complete/Fail write, which runs
// detached from the task context so an expired task deadline still records
// its outcome.
const resultWriteTimeout = 10 * time.Second

// Analyzer runs a claimed job through the job description pipeline and writes the outcome
// under the lease it was claimed with.
type Analyzer struct {
	store    ResultWriter
	pipeline *pipeline.Pipeline
	schema   *jsonschema.Schema
	now      func() time.Time
	logger   *slog.Logger
}

func NewAnalyzer(store ResultWriter, p *pipeline.Pipeline, logger *slog.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		return nil, fmt.Errorf("%w: analyzer needs a pipeline", pipeline.ErrInvalidPipeline)
	}
	schema, err := compileSchema(BuildExtractedJSONSchema())
	if err != nil {
		return nil, err
	}
	return &Analyzer{store: store, pipeline: p, schema: schema, now: time.Now, logger: logger}, nil
}

// Handle adapts Analyze to the poller's handler signature.
func (a *Analyzer) Handle(ctx context.Context, job *entity.Job) {
	_ = a.Analyze(ctx, job)
}

// Analyze never leaves partial results: either Complete stores the full extraction or
// Fail stores only the error. A lost lease is not an error.
func (a *Analyzer) Analyze(ctx context.Context, job *entity.Job) error {
	if job.Analysis.LockedBy == nil {
		return fmt.Errorf("job %s is not leased", job.ID)
	}
	worker := *job.Analysis.LockedBy
	log := a.logger.With("job_id", job.ID, "worker_id", worker, "attempt", job.Analysis.Attempt)
	log.Info("job analysis started")
	started := time.Now()

	res, jobErr := a.extract(ctx, job)
	if jobErr != nil {
		return a.fail(ctx, log, job, worker, *jobErr, started)
	}

	wctx, cancel := resultContext(ctx)
	defer cancel()
	err := a.store.Complete(wctx, repository.CompleteRequest{
		JobID:          job.ID,
		WorkerID:       worker,
		Now:            a.now().UTC(),
		NormalizedText: res.NormalizedText,
		Extracted:      res.Extracted(),
	})
	switch {
	case errors.Is(err, repository.ErrLeaseLost):
		a.leaseLost(log, started)
		return nil
	case err != nil:
		log.Error("job completion not recorded", "error", err)
		return err
	}
	metrics.JobsCompletedTotal.Inc()
	metrics.AnalysisDurationSeconds.WithLabelValues("completed").Observe(time.Since(started).Seconds())
	log.Info("job analysis completed", "seniority", res.Seniority, "domain", res.Domain, "duration", time.Since(started))
	return nil
}

func (a *Analyzer) extract(ctx context.Context, job *entity.Job) (*jobdesc.Result, *entity.JobError) {
	if job.Input.RawText == nil || strings.TrimSpace(*job.Input.RawText) == "" {
		return nil, analysisError(constants.ErrCodeParserFailed, "job has no raw text to analyze")
	}
	res, err := jobdesc.Parse(ctx, a.pipeline, *job.Input.RawText)
	if err != nil {
		code := constants.ErrCodeParserFailed
		if pipeline.IsFatal(err) {
			code = constants.ErrCodePipelineMisconfig
		}
		return nil, analysisError(code, err.Error())
	}
	if err := validateDocument(a.schema, res.Extracted()); err != nil {
		return nil, analysisError(constants.ErrCodeSchemaInvalid, err.Error())
	}
	return res, nil
}

func (a *Analyzer) fail(ctx context.Context, log *slog.Logger, job *entity.Job, worker string, jobErr entity.JobError, started time.Time) error {
	log.Warn("job analysis failed", "code", jobErr.Code, "error", jobErr.Message)
	wctx, cancel := resultContext(ctx)
	defer cancel()
	err := a.store.Fail(wctx, repository.FailRequest{
		JobID:    job.ID,
		WorkerID: worker,
		Now:      a.now().UTC(),
		Error:    jobErr,
	})
	switch {
	case errors.Is(err, repository.ErrLeaseLost):
		a.leaseLost(log, started)
		return nil
	case err != nil:
		log.Error("job failure not recorded", "error", err)
		return err
	}
	metrics.JobsFailedTotal.WithLabelValues(jobErr.Code).Inc()
	metrics.AnalysisDurationSeconds.WithLabelValues("failed").Observe(time.Since(started).Seconds())
	return nil
}

func resultContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), resultWriteTimeout)
}

func (a *Analyzer) leaseLost(log *slog.Logger, started time.Time) {
	metrics.LeaseLostTotal.Inc()
	metrics.AnalysisDurationSeconds.WithLabelValues("lease_lost").Observe(time.Since(started).Seconds())
	log.Info("lease lost before result was written, dropping result")
}

func analysisError(code, message string) *entity.JobError {
	return &entity.JobError{
		Code:      code,
		Message:   message,
		Detail:    constants.ErrDetailAnalysisFailed,
		Retryable: false,
	}
}
