package repository

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joseph-ayodele/jobcopilot/constants"
	"github.com/joseph-ayodele/jobcopilot/internal/entity"
)

// exerciseLifecycle runs one job through claim, expiry, reclaim, stale completion,
// completion and reaping against an empty store.
func exerciseLifecycle(t *testing.T, repo JobRepository) {
	ctx := context.Background()
	job := pendingJob(t, repo, base)
	spare := pendingJob(t, repo, base.Add(time.Second))

	first := claim(t, repo, "w1", base, 2)
	require.NotNil(t, first)
	assert.Equal(t, job.ID, first.ID)

	second := claim(t, repo, "w2", base, 2)
	require.NotNil(t, second)
	assert.Equal(t, spare.ID, second.ID)
	assert.Nil(t, claim(t, repo, "w3", base.Add(time.Second), 2))

	again := claim(t, repo, "w3", base.Add(leaseTTL), 2)
	require.NotNil(t, again)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, 2, again.Analysis.Attempt)

	stale := CompleteRequest{JobID: job.ID, WorkerID: "w1", Now: base.Add(leaseTTL), NormalizedText: "x"}
	assert.ErrorIs(t, repo.Complete(ctx, stale), ErrLeaseLost)

	ext := &entity.Extracted{Seniority: "SENIOR", Domain: "BACKEND", TechStack: []string{"JAVA"}}
	require.NoError(t, repo.Complete(ctx, CompleteRequest{
		JobID: job.ID, WorkerID: "w3", Now: base.Add(leaseTTL), NormalizedText: "normalized", Extracted: ext,
	}))
	done, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, done.Analysis.Status)
	assert.Equal(t, ext, done.Extracted)
	assert.Nil(t, done.Analysis.LockedBy)

	// spare was leased by w2 at base; with attempts left it is reclaimable, not reapable
	n, err := repo.ReapExhausted(ctx, base.Add(leaseTTL), leaseTTL, 2)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = repo.ReapExhausted(ctx, base.Add(leaseTTL), leaseTTL, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	reaped, err := repo.Get(ctx, spare.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, reaped.Analysis.Status)
	require.NotNil(t, reaped.Analysis.Error)
	assert.Equal(t, "lease expired after 1 attempts", reaped.Analysis.Error.Message)

	jobs, err := repo.ListByProfile(ctx, "user-1", "profile-1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, spare.ID, jobs[0].ID)
}

func TestSQLiteStore_Lifecycle(t *testing.T) {
	exerciseLifecycle(t, newSQLiteRepo(t))
}

func TestPostgresStore_Lifecycle(t *testing.T) {
	dsn := os.Getenv("JOBCOPILOT_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("JOBCOPILOT_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	schema := "jc_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := Open(ctx, Config{Driver: "postgres", DSN: dsn, DialTimeout: 5 * time.Second}, testLogger)
	require.NoError(t, err)
	_, err = admin.Driver.DB().ExecContext(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Driver.DB().ExecContext(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		Close(admin, testLogger)
	})

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	store, err := OpenStore(ctx, Config{Driver: "postgres", DSN: dsn + sep + "search_path=" + schema, DialTimeout: 5 * time.Second}, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(context.Background()) })
	require.NoError(t, store.Ping(ctx, time.Second))

	exerciseLifecycle(t, store.Jobs)
}

func TestMongoStore_Lifecycle(t *testing.T) {
	uri := os.Getenv("JOBCOPILOT_MONGO_URI")
	if uri == "" {
		t.Skip("JOBCOPILOT_MONGO_URI not set")
	}
	ctx := context.Background()
	dbName := fmt.Sprintf("jobcopilot_test_%d", time.Now().UnixNano())

	store, err := OpenStore(ctx, Config{Driver: "mongo", DSN: uri, MongoDatabase: dbName, DialTimeout: 5 * time.Second}, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() {
		client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
		if err == nil {
			_ = client.Database(dbName).Drop(context.Background())
			_ = client.Disconnect(context.Background())
		}
		store.Close(context.Background())
	})
	require.NoError(t, store.Ping(ctx, time.Second))

	exerciseLifecycle(t, store.Jobs)
}
