package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkrogh/elregning/constants"
	"github.com/mkrogh/elregning/internal/common"
)

func newTestStore(t *testing.T) (*Store, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, 24*time.Hour, zap.NewNop()), rdb
}

func newTestJob(id string) *Job {
	return &Job{
		ID:          id,
		AccessToken: "token-" + id,
		Status:      constants.JobStatusAwaitingUpload,
		FileName:    "bill.pdf",
		FileSize:    500000,
		ContentType: "application/pdf",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestCreateThenGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTestJob("j1")))

	got, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusAwaitingUpload, got.Status)
	assert.Equal(t, "bill.pdf", got.FileName)
	assert.Nil(t, got.Result)
	assert.Empty(t, got.ErrorMessage)
	assert.Zero(t, got.RetryCount)
}

func TestGetMissing(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTransitionMovesStatusIndex(t *testing.T) {
	store, rdb := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newTestJob("j1")))

	blobPath := "pending/j1/bill.pdf"
	now := time.Now().UTC()
	got, err := store.Transition(ctx, "j1", constants.JobStatusPendingAnalysis, Update{
		BlobPath:          &blobPath,
		UploadCompletedAt: &now,
	})
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPendingAnalysis, got.Status)
	assert.Equal(t, blobPath, got.BlobPath)

	// the id lives in exactly one status set
	assert.False(t, rdb.SIsMember(ctx, "jobs:status:awaiting_upload", "j1").Val())
	assert.True(t, rdb.SIsMember(ctx, "jobs:status:pending_analysis", "j1").Val())
}

func TestTransitionInvalidEdge(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newTestJob("j1")))

	_, err := store.Transition(ctx, "j1", constants.JobStatusProcessing, Update{})
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestTransitionTerminalNoop(t *testing.T) {
	store, rdb := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newTestJob("j1")))

	_, err := store.Transition(ctx, "j1", constants.JobStatusPendingAnalysis, Update{})
	require.NoError(t, err)
	_, err = store.Transition(ctx, "j1", constants.JobStatusProcessing, Update{})
	require.NoError(t, err)
	msg := "boom"
	failed, err := store.Transition(ctx, "j1", constants.JobStatusFailed, Update{ErrorMessage: &msg})
	require.NoError(t, err)
	assert.Equal(t, "boom", failed.ErrorMessage)

	// a terminal record is never mutated again
	other := "overwritten"
	got, err := store.Transition(ctx, "j1", constants.JobStatusCompleted, Update{ErrorMessage: &other})
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.ErrorMessage)
	assert.True(t, rdb.SIsMember(ctx, "jobs:status:failed", "j1").Val())
	assert.False(t, rdb.SIsMember(ctx, "jobs:status:completed", "j1").Val())

	// not even by a duplicate writer re-asserting the same terminal status
	late := "late duplicate writer"
	got, err = store.Transition(ctx, "j1", constants.JobStatusFailed, Update{ErrorMessage: &late})
	require.NoError(t, err)
	assert.Equal(t, "boom", got.ErrorMessage)

	stored, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, stored.Status)
	assert.Equal(t, "boom", stored.ErrorMessage)
}

func TestTransitionMissingJob(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Transition(context.Background(), "nope", constants.JobStatusPendingAnalysis, Update{})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFindByStatusDropsStaleIndexEntries(t *testing.T) {
	store, rdb := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newTestJob("live")))

	// index entry whose record TTL-expired
	require.NoError(t, rdb.SAdd(ctx, "jobs:status:awaiting_upload", "ghost").Err())

	jobs, err := store.FindByStatus(ctx, constants.JobStatusAwaitingUpload, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "live", jobs[0].ID)
}

func TestFindByStatusLimit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Create(ctx, newTestJob(id)))
	}

	jobs, err := store.FindByStatus(ctx, constants.JobStatusAwaitingUpload, 2)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestDeleteExpired(t *testing.T) {
	store, rdb := newTestStore(t)
	ctx := context.Background()

	old := newTestJob("old")
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, store.Create(ctx, old))
	require.NoError(t, store.Create(ctx, newTestJob("fresh")))

	n, err := store.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Get(ctx, "old")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.False(t, rdb.SIsMember(ctx, "jobs:status:awaiting_upload", "old").Val())
	assert.Zero(t, rdb.ZScore(ctx, "jobs:expiry", "old").Val())

	_, err = store.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestDeleteExpiredScrubsOrphanedIndexEntries(t *testing.T) {
	store, rdb := newTestStore(t)
	ctx := context.Background()

	// record already gone but both indexes still reference it
	require.NoError(t, rdb.SAdd(ctx, "jobs:status:processing", "ghost").Err())
	require.NoError(t, rdb.ZAdd(ctx, "jobs:expiry", redis.Z{
		Score:  float64(time.Now().Add(-time.Hour).Unix()),
		Member: "ghost",
	}).Err())

	n, err := store.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, rdb.SIsMember(ctx, "jobs:status:processing", "ghost").Val())
}

func TestCountByStatus(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newTestJob("j1")))
	require.NoError(t, store.Create(ctx, newTestJob("j2")))

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[constants.JobStatusAwaitingUpload])
	assert.Equal(t, int64(0), counts[constants.JobStatusCompleted])
}
