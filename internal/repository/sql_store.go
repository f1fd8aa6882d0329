package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/jobcopilot/constants"
	"github.com/joseph-ayodele/jobcopilot/internal/entity"
)

const jobsTable = "jobs"

var jobColumns = []string{
	"id", "user_id", "profile_id", "display_name", "source_label",
	"input_type", "input_url", "raw_text", "normalized_text", "language", "submitted_at",
	"status", "attempt", "locked_by", "locked_at", "started_at", "completed_at", "failed_at",
	"error_code", "error_message", "error_detail", "error_retryable",
	"extracted", "created_at", "updated_at",
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlJobRepo struct {
	db      *sql.DB
	dialect string
	log     *slog.Logger
}

// NewSQLJobRepository builds the jobs store over an ent SQL driver (postgres or sqlite).
func NewSQLJobRepository(drv *entsql.Driver, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &sqlJobRepo{db: drv.DB(), dialect: drv.Dialect(), log: log}
}

func (r *sqlJobRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.dialect)
}

// timeArg encodes a timestamp for the active dialect. SQLite keeps UTC epoch millis
// so that lease comparisons stay numeric.
func (r *sqlJobRepo) timeArg(t time.Time) any {
	if r.dialect == dialect.SQLite {
		return t.UTC().UnixMilli()
	}
	return t.UTC()
}

func (r *sqlJobRepo) optTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return r.timeArg(*t)
}

func (r *sqlJobRepo) Create(ctx context.Context, job *entity.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Analysis.Status == "" {
		job.Analysis.Status = constants.JobStatusPending
	}
	job.Touch(time.Now().UTC())

	extracted, err := encodeExtracted(job.Extracted)
	if err != nil {
		return err
	}
	var displayName, sourceLabel any
	if job.Display != nil {
		displayName, sourceLabel = nonEmpty(job.Display.Name), nonEmpty(job.Display.SourceLabel)
	}
	a := job.Analysis
	var errCode, errMsg, errDetail, errRetryable any
	if a.Error != nil {
		errCode, errMsg = a.Error.Code, a.Error.Message
		errDetail, errRetryable = nonEmpty(a.Error.Detail), a.Error.Retryable
	}

	query, args := r.builder().Insert(jobsTable).
		Columns(jobColumns...).
		Values(
			job.ID.String(), job.UserID, job.ProfileID, displayName, sourceLabel,
			string(job.Input.InputType), deref(job.Input.URL), deref(job.Input.RawText),
			deref(job.Input.NormalizedText), deref(job.Input.Language),
			r.timeArg(job.Input.SubmittedAt),
			string(a.Status), a.Attempt, deref(a.LockedBy), r.optTimeArg(a.LockedAt), r.optTimeArg(a.StartedAt),
			r.optTimeArg(a.CompletedAt), r.optTimeArg(a.FailedAt),
			errCode, errMsg, errDetail, errRetryable,
			extracted, r.timeArg(job.CreatedAt), r.timeArg(job.UpdatedAt),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.log.Error("job create failed", "job_id", job.ID, "err", err)
		return fmt.Errorf("insert job: %w", err)
	}
	r.log.Info("job created", "job_id", job.ID, "profile_id", job.ProfileID, "input_type", job.Input.InputType)
	return nil
}

func (r *sqlJobRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.get(ctx, r.db, id.String())
}

func (r *sqlJobRepo) get(ctx context.Context, q querier, id string) (*entity.Job, error) {
	query, args := r.builder().Select(jobColumns...).
		From(r.builder().Table(jobsTable)).
		Where(entsql.EQ("id", id)).
		Query()
	job, err := scanJob(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

func (r *sqlJobRepo) ListByProfile(ctx context.Context, userID, profileID string) ([]*entity.Job, error) {
	query, args := r.builder().Select(jobColumns...).
		From(r.builder().Table(jobsTable)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("profile_id", profileID))).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// eligible builds a fresh claim predicate; predicates are not reusable across builders.
func (r *sqlJobRepo) eligible(req ClaimRequest) *entsql.Predicate {
	return entsql.Or(
		entsql.And(
			entsql.EQ("status", string(constants.JobStatusPending)),
			entsql.LT("attempt", req.MaxAttempts),
		),
		entsql.And(
			entsql.EQ("status", string(constants.JobStatusProcessing)),
			entsql.LTE("locked_at", r.timeArg(req.expiry())),
			entsql.LT("attempt", req.MaxAttempts),
		),
	)
}

// Claim picks the oldest eligible job and leases it in one transaction. The UPDATE
// re-checks eligibility, so a racing claimer that lost the row affects zero rows.
func (r *sqlJobRepo) Claim(ctx context.Context, req ClaimRequest) (*entity.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sel := r.builder().Select("id").
		From(r.builder().Table(jobsTable)).
		Where(r.eligible(req)).
		OrderBy("created_at", "id").
		Limit(1)
	if r.dialect == dialect.Postgres {
		sel.ForUpdate(entsql.WithLockAction(entsql.SkipLocked))
	}
	query, args := sel.Query()

	var id string
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select claimable job: %w", err)
	}

	now := r.timeArg(req.Now)
	query, args = r.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusProcessing)).
		Set("locked_by", req.WorkerID).
		Set("locked_at", now).
		Set("started_at", now).
		Set("updated_at", now).
		Add("attempt", 1).
		Where(entsql.And(entsql.EQ("id", id), r.eligible(req))).
		Query()
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lease job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		r.log.Debug("claim lost race", "job_id", id, "worker_id", req.WorkerID)
		return nil, nil
	}

	job, err := r.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	r.log.Info("job claimed", "job_id", id, "worker_id", req.WorkerID, "attempt", job.Analysis.Attempt)
	return job, nil
}

func owned(jobID uuid.UUID, workerID string) *entsql.Predicate {
	return entsql.And(
		entsql.EQ("id", jobID.String()),
		entsql.EQ("status", string(constants.JobStatusProcessing)),
		entsql.EQ("locked_by", workerID),
	)
}

func (r *sqlJobRepo) Complete(ctx context.Context, req CompleteRequest) error {
	extracted, err := encodeExtracted(req.Extracted)
	if err != nil {
		return err
	}
	now := r.timeArg(req.Now)
	query, args := r.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusCompleted)).
		Set("normalized_text", req.NormalizedText).
		Set("extracted", extracted).
		Set("completed_at", now).
		Set("updated_at", now).
		SetNull("failed_at").
		SetNull("error_code").
		SetNull("error_message").
		SetNull("error_detail").
		SetNull("error_retryable").
		SetNull("locked_by").
		SetNull("locked_at").
		Where(owned(req.JobID, req.WorkerID)).
		Query()
	if err := r.execOwned(ctx, query, args); err != nil {
		if !errors.Is(err, ErrLeaseLost) {
			r.log.Error("job complete failed", "job_id", req.JobID, "err", err)
		}
		return err
	}
	r.log.Info("job completed", "job_id", req.JobID, "worker_id", req.WorkerID)
	return nil
}

func (r *sqlJobRepo) Fail(ctx context.Context, req FailRequest) error {
	now := r.timeArg(req.Now)
	query, args := r.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusFailed)).
		Set("failed_at", now).
		Set("updated_at", now).
		Set("error_code", req.Error.Code).
		Set("error_message", SanitizeMessage(req.Error.Message)).
		Set("error_detail", req.Error.Detail).
		Set("error_retryable", req.Error.Retryable).
		SetNull("locked_by").
		SetNull("locked_at").
		Where(owned(req.JobID, req.WorkerID)).
		Query()
	if err := r.execOwned(ctx, query, args); err != nil {
		if !errors.Is(err, ErrLeaseLost) {
			r.log.Error("job fail failed", "job_id", req.JobID, "err", err)
		}
		return err
	}
	r.log.Warn("job failed", "job_id", req.JobID, "worker_id", req.WorkerID, "code", req.Error.Code)
	return nil
}

func (r *sqlJobRepo) execOwned(ctx context.Context, query string, args []any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (r *sqlJobRepo) exhausted(expiry time.Time, maxAttempts int) *entsql.Predicate {
	return entsql.And(
		entsql.EQ("status", string(constants.JobStatusProcessing)),
		entsql.LTE("locked_at", r.timeArg(expiry)),
		entsql.GTE("attempt", maxAttempts),
	)
}

func (r *sqlJobRepo) ReapExhausted(ctx context.Context, now time.Time, leaseTTL time.Duration, maxAttempts int) (int64, error) {
	expiry := now.Add(-leaseTTL)
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin reap: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args := r.builder().Select("id", "attempt").
		From(r.builder().Table(jobsTable)).
		Where(r.exhausted(expiry, maxAttempts)).
		Query()
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("select exhausted jobs: %w", err)
	}
	type candidate struct {
		id      string
		attempt int
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.attempt); err != nil {
			rows.Close()
			return 0, err
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var reaped int64
	ts := r.timeArg(now)
	for _, c := range candidates {
		jobErr := exhaustedError(c.attempt)
		query, args := r.builder().Update(jobsTable).
			Set("status", string(constants.JobStatusFailed)).
			Set("failed_at", ts).
			Set("updated_at", ts).
			Set("error_code", jobErr.Code).
			Set("error_message", jobErr.Message).
			Set("error_detail", jobErr.Detail).
			Set("error_retryable", jobErr.Retryable).
			SetNull("locked_by").
			SetNull("locked_at").
			Where(entsql.And(entsql.EQ("id", c.id), r.exhausted(expiry, maxAttempts))).
			Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("reap job %s: %w", c.id, err)
		}
		n, _ := res.RowsAffected()
		reaped += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reap: %w", err)
	}
	if reaped > 0 {
		r.log.Warn("exhausted jobs reaped", "count", reaped)
	}
	return reaped, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*entity.Job, error) {
	var (
		job                                                           entity.Job
		id                                                            uuid.UUID
		inputType, status                                             string
		displayName, sourceLabel, inputURL, rawText, normalized, lang sql.NullString
		lockedBy, errCode, errMsg, errDetail, extracted               sql.NullString
		errRetryable                                                  sql.NullBool
		submittedAt, lockedAt, startedAt, completedAt, failedAt       nullTime
		createdAt, updatedAt                                          nullTime
	)
	err := row.Scan(
		&id, &job.UserID, &job.ProfileID, &displayName, &sourceLabel,
		&inputType, &inputURL, &rawText, &normalized, &lang, &submittedAt,
		&status, &job.Analysis.Attempt, &lockedBy, &lockedAt, &startedAt, &completedAt, &failedAt,
		&errCode, &errMsg, &errDetail, &errRetryable,
		&extracted, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.ID = id
	if displayName.Valid || sourceLabel.Valid {
		job.Display = &entity.Display{Name: displayName.String, SourceLabel: sourceLabel.String}
	}
	job.Input = entity.JobInput{
		InputType:      constants.InputType(inputType),
		URL:            stringPtr(inputURL),
		RawText:        stringPtr(rawText),
		NormalizedText: stringPtr(normalized),
		Language:       stringPtr(lang),
		SubmittedAt:    submittedAt.Time,
	}
	job.Analysis.Status = constants.JobStatus(status)
	job.Analysis.LockedBy = stringPtr(lockedBy)
	job.Analysis.LockedAt = lockedAt.ptr()
	job.Analysis.StartedAt = startedAt.ptr()
	job.Analysis.CompletedAt = completedAt.ptr()
	job.Analysis.FailedAt = failedAt.ptr()
	if errCode.Valid {
		job.Analysis.Error = &entity.JobError{
			Code:      errCode.String,
			Message:   errMsg.String,
			Detail:    errDetail.String,
			Retryable: errRetryable.Bool,
		}
	}
	if extracted.Valid && extracted.String != "" {
		var ext entity.Extracted
		if err := json.Unmarshal([]byte(extracted.String), &ext); err != nil {
			return nil, fmt.Errorf("decode extracted: %w", err)
		}
		job.Extracted = &ext
	}
	job.CreatedAt = createdAt.Time
	job.UpdatedAt = updatedAt.Time
	return &job, nil
}

func encodeExtracted(ext *entity.Extracted) (any, error) {
	if ext == nil {
		return nil, nil
	}
	b, err := json.Marshal(ext)
	if err != nil {
		return nil, fmt.Errorf("encode extracted: %w", err)
	}
	return string(b), nil
}

// nullTime scans TIMESTAMPTZ values as well as SQLite epoch millis.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
	case time.Time:
		n.Time, n.Valid = x.UTC(), true
	case int64:
		n.Time, n.Valid = time.UnixMilli(x).UTC(), true
	case []byte:
		return n.parse(string(x))
	case string:
		return n.parse(x)
	default:
		return fmt.Errorf("unsupported time value %T", v)
	}
	return nil
}

func (n *nullTime) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	n.Time, n.Valid = t.UTC(), true
	return nil
}

func (n nullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// nonEmpty maps "" to NULL.
func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
