package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joseph-ayodele/jobcopilot/constants"
	"github.com/joseph-ayodele/jobcopilot/internal/entity"
)

const jobsCollection = "jobs"

type jobDocument struct {
	ID        string            `bson:"_id"`
	UserID    string            `bson:"userId"`
	ProfileID string            `bson:"profileId"`
	Display   *displayDocument  `bson:"display,omitempty"`
	Input     inputDocument     `bson:"input"`
	Analysis  analysisDocument  `bson:"analysis"`
	Extracted *entity.Extracted `bson:"extracted,omitempty"`
	CreatedAt time.Time         `bson:"createdAt"`
	UpdatedAt time.Time         `bson:"updatedAt"`
}

type displayDocument struct {
	Name        string `bson:"name,omitempty"`
	SourceLabel string `bson:"sourceLabel,omitempty"`
}

type inputDocument struct {
	InputType      string    `bson:"inputType"`
	URL            *string   `bson:"url,omitempty"`
	RawText        *string   `bson:"rawText,omitempty"`
	NormalizedText *string   `bson:"normalizedText,omitempty"`
	Language       *string   `bson:"language,omitempty"`
	SubmittedAt    time.Time `bson:"submittedAt"`
}

type analysisDocument struct {
	Status      string         `bson:"status"`
	Attempt     int            `bson:"attempt"`
	LockedBy    *string        `bson:"lockedBy,omitempty"`
	LockedAt    *time.Time     `bson:"lockedAt,omitempty"`
	StartedAt   *time.Time     `bson:"startedAt,omitempty"`
	CompletedAt *time.Time     `bson:"completedAt,omitempty"`
	FailedAt    *time.Time     `bson:"failedAt,omitempty"`
	Error       *errorDocument `bson:"error,omitempty"`
}

type errorDocument struct {
	Code      string `bson:"code"`
	Message   string `bson:"message"`
	Detail    string `bson:"detail,omitempty"`
	Retryable bool   `bson:"retryable"`
}

func toDocument(job *entity.Job) jobDocument {
	doc := jobDocument{
		ID:        job.ID.String(),
		UserID:    job.UserID,
		ProfileID: job.ProfileID,
		Input: inputDocument{
			InputType:      string(job.Input.InputType),
			URL:            job.Input.URL,
			RawText:        job.Input.RawText,
			NormalizedText: job.Input.NormalizedText,
			Language:       job.Input.Language,
			SubmittedAt:    job.Input.SubmittedAt,
		},
		Analysis: analysisDocument{
			Status:      string(job.Analysis.Status),
			Attempt:     job.Analysis.Attempt,
			LockedBy:    job.Analysis.LockedBy,
			LockedAt:    job.Analysis.LockedAt,
			StartedAt:   job.Analysis.StartedAt,
			CompletedAt: job.Analysis.CompletedAt,
			FailedAt:    job.Analysis.FailedAt,
		},
		Extracted: job.Extracted,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.Display != nil {
		doc.Display = &displayDocument{Name: job.Display.Name, SourceLabel: job.Display.SourceLabel}
	}
	if e := job.Analysis.Error; e != nil {
		doc.Analysis.Error = &errorDocument{Code: e.Code, Message: e.Message, Detail: e.Detail, Retryable: e.Retryable}
	}
	return doc
}

func (d jobDocument) toEntity() (*entity.Job, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("job document id %q: %w", d.ID, err)
	}
	job := &entity.Job{
		ID:        id,
		UserID:    d.UserID,
		ProfileID: d.ProfileID,
		Input: entity.JobInput{
			InputType:      constants.InputType(d.Input.InputType),
			URL:            d.Input.URL,
			RawText:        d.Input.RawText,
			NormalizedText: d.Input.NormalizedText,
			Language:       d.Input.Language,
			SubmittedAt:    d.Input.SubmittedAt.UTC(),
		},
		Analysis: entity.Analysis{
			Status:      constants.JobStatus(d.Analysis.Status),
			Attempt:     d.Analysis.Attempt,
			LockedBy:    d.Analysis.LockedBy,
			LockedAt:    utcPtr(d.Analysis.LockedAt),
			StartedAt:   utcPtr(d.Analysis.StartedAt),
			CompletedAt: utcPtr(d.Analysis.CompletedAt),
			FailedAt:    utcPtr(d.Analysis.FailedAt),
		},
		Extracted: d.Extracted,
		Timestamps: entity.Timestamps{
			CreatedAt: d.CreatedAt.UTC(),
			UpdatedAt: d.UpdatedAt.UTC(),
		},
	}
	if d.Display != nil {
		job.Display = &entity.Display{Name: d.Display.Name, SourceLabel: d.Display.SourceLabel}
	}
	if e := d.Analysis.Error; e != nil {
		job.Analysis.Error = &entity.JobError{Code: e.Code, Message: e.Message, Detail: e.Detail, Retryable: e.Retryable}
	}
	return job, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

type mongoJobRepo struct {
	coll *mongo.Collection
	log  *slog.Logger
}

// NewMongoJobRepository builds the jobs store over a Mongo database.
func NewMongoJobRepository(db *mongo.Database, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &mongoJobRepo{coll: db.Collection(jobsCollection), log: log}
}

// EnsureMongoIndexes creates the indexes backing claim, reap and listing queries.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database, log *slog.Logger) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "profileId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "analysis.status", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "analysis.status", Value: 1}, {Key: "analysis.lockedAt", Value: 1}}},
	}
	names, err := db.Collection(jobsCollection).Indexes().CreateMany(ctx, models)
	if err != nil {
		return fmt.Errorf("create job indexes: %w", err)
	}
	log.Info("mongo indexes ensured", "collection", jobsCollection, "indexes", names)
	return nil
}

func (r *mongoJobRepo) Create(ctx context.Context, job *entity.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Analysis.Status == "" {
		job.Analysis.Status = constants.JobStatusPending
	}
	job.Touch(time.Now().UTC())
	if _, err := r.coll.InsertOne(ctx, toDocument(job)); err != nil {
		r.log.Error("job create failed", "job_id", job.ID, "err", err)
		return fmt.Errorf("insert job: %w", err)
	}
	r.log.Info("job created", "job_id", job.ID, "profile_id", job.ProfileID, "input_type", job.Input.InputType)
	return nil
}

func (r *mongoJobRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var doc jobDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return doc.toEntity()
}

func (r *mongoJobRepo) ListByProfile(ctx context.Context, userID, profileID string) ([]*entity.Job, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"userId": userID, "profileId": profileID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	var docs []jobDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	jobs := make([]*entity.Job, 0, len(docs))
	for _, d := range docs {
		job, err := d.toEntity()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Claim is a single findAndModify: the filter is the eligibility predicate, so two
// workers can never lease the same document.
func (r *mongoJobRepo) Claim(ctx context.Context, req ClaimRequest) (*entity.Job, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{
			"analysis.status":  string(constants.JobStatusPending),
			"analysis.attempt": bson.M{"$lt": req.MaxAttempts},
		},
		bson.M{
			"analysis.status":   string(constants.JobStatusProcessing),
			"analysis.lockedAt": bson.M{"$lte": req.expiry()},
			"analysis.attempt":  bson.M{"$lt": req.MaxAttempts},
		},
	}}
	update := bson.M{
		"$set": bson.M{
			"analysis.status":    string(constants.JobStatusProcessing),
			"analysis.lockedBy":  req.WorkerID,
			"analysis.lockedAt":  req.Now,
			"analysis.startedAt": req.Now,
			"updatedAt":          req.Now,
		},
		"$inc": bson.M{"analysis.attempt": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetReturnDocument(options.After)

	var doc jobDocument
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	job, err := doc.toEntity()
	if err != nil {
		return nil, err
	}
	r.log.Info("job claimed", "job_id", job.ID, "worker_id", req.WorkerID, "attempt", job.Analysis.Attempt)
	return job, nil
}

func ownedFilter(jobID uuid.UUID, workerID string) bson.M {
	return bson.M{
		"_id":               jobID.String(),
		"analysis.status":   string(constants.JobStatusProcessing),
		"analysis.lockedBy": workerID,
	}
}

func (r *mongoJobRepo) Complete(ctx context.Context, req CompleteRequest) error {
	update := bson.M{
		"$set": bson.M{
			"analysis.status":      string(constants.JobStatusCompleted),
			"analysis.completedAt": req.Now,
			"input.normalizedText": req.NormalizedText,
			"extracted":            req.Extracted,
			"updatedAt":            req.Now,
		},
		"$unset": bson.M{
			"analysis.lockedBy": "",
			"analysis.lockedAt": "",
			"analysis.failedAt": "",
			"analysis.error":    "",
		},
	}
	if err := r.updateOwned(ctx, ownedFilter(req.JobID, req.WorkerID), update); err != nil {
		if !errors.Is(err, ErrLeaseLost) {
			r.log.Error("job complete failed", "job_id", req.JobID, "err", err)
		}
		return err
	}
	r.log.Info("job completed", "job_id", req.JobID, "worker_id", req.WorkerID)
	return nil
}

func (r *mongoJobRepo) Fail(ctx context.Context, req FailRequest) error {
	update := bson.M{
		"$set": bson.M{
			"analysis.status":   string(constants.JobStatusFailed),
			"analysis.failedAt": req.Now,
			"analysis.error": errorDocument{
				Code:      req.Error.Code,
				Message:   SanitizeMessage(req.Error.Message),
				Detail:    req.Error.Detail,
				Retryable: req.Error.Retryable,
			},
			"updatedAt": req.Now,
		},
		"$unset": bson.M{
			"analysis.lockedBy": "",
			"analysis.lockedAt": "",
		},
	}
	if err := r.updateOwned(ctx, ownedFilter(req.JobID, req.WorkerID), update); err != nil {
		if !errors.Is(err, ErrLeaseLost) {
			r.log.Error("job fail failed", "job_id", req.JobID, "err", err)
		}
		return err
	}
	r.log.Warn("job failed", "job_id", req.JobID, "worker_id", req.WorkerID, "code", req.Error.Code)
	return nil
}

func (r *mongoJobRepo) updateOwned(ctx context.Context, filter bson.M, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrLeaseLost
	}
	return nil
}

// ReapExhausted uses an aggregation-pipeline update so the message can carry each job's attempt count.
func (r *mongoJobRepo) ReapExhausted(ctx context.Context, now time.Time, leaseTTL time.Duration, maxAttempts int) (int64, error) {
	filter := bson.M{
		"analysis.status":   string(constants.JobStatusProcessing),
		"analysis.lockedAt": bson.M{"$lte": now.Add(-leaseTTL)},
		"analysis.attempt":  bson.M{"$gte": maxAttempts},
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"analysis.status":   string(constants.JobStatusFailed),
			"analysis.failedAt": now,
			"analysis.error": bson.M{
				"code": constants.ErrCodeAttemptsExhausted,
				"message": bson.M{"$concat": bson.A{
					"lease expired after ", bson.M{"$toString": "$analysis.attempt"}, " attempts",
				}},
				"detail":    constants.ErrDetailAnalysisFailed,
				"retryable": false,
			},
			"updatedAt": now,
		}}},
		{{Key: "$unset", Value: bson.A{"analysis.lockedBy", "analysis.lockedAt"}}},
	}
	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("reap exhausted jobs: %w", err)
	}
	if res.ModifiedCount > 0 {
		r.log.Warn("exhausted jobs reaped", "count", res.ModifiedCount)
	}
	return res.ModifiedCount, nil
}
