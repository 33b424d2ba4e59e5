package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mkrogh/elregning/constants"
	"github.com/mkrogh/elregning/internal/common"
)

const expiryKey = "jobs:expiry"

func jobKey(id string) string { return "job:" + id }

func statusKey(s constants.JobStatus) string {
	return "jobs:status:" + strings.ToLower(string(s))
}

// Store persists Job records in Redis together with two secondary
// structures: one set per status ("find all jobs in state X") and a
// time-ordered expiry index ("find all jobs past their TTL"). Every
// multi-key mutation goes through a TxPipeline so record and indexes
// move as one atomic unit.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func New(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Store {
	return &Store{rdb: rdb, ttl: ttl, log: log}
}

// Create inserts the record with its TTL, adds the id to its status set and
// to the expiry index, all in one batch.
func (s *Store) Create(ctx context.Context, job *Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return common.WrapError(err, "encode job")
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, jobKey(job.ID), b, s.ttl)
	pipe.SAdd(ctx, statusKey(job.Status), job.ID)
	pipe.ZAdd(ctx, expiryKey, redis.Z{
		Score:  float64(job.CreatedAt.Add(s.ttl).Unix()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Error("jobstore.create_failed", zap.String("job_id", job.ID), zap.Error(err))
		return common.WrapError(err, "create job")
	}
	s.log.Info("jobstore.created", zap.String("job_id", job.ID), zap.String("file_name", job.FileName))
	return nil
}

// Get fetches a job record by id.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	b, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "get job")
	}
	var job Job
	if err := json.Unmarshal(b, &job); err != nil {
		return nil, common.WrapError(err, "decode job")
	}
	return &job, nil
}

// Transition merges update into the record and moves it to newStatus,
// updating the status indexes in the same atomic batch. Terminal jobs are
// never mutated: any transition attempt on one, including a write of the
// same terminal status, is a no-op that returns the stored record as-is.
// Index mutation is skipped when the status is unchanged.
func (s *Store) Transition(ctx context.Context, id string, newStatus constants.JobStatus, update Update) (*Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	old := job.Status
	if old.Terminal() {
		s.log.Info("jobstore.transition_noop_terminal",
			zap.String("job_id", id),
			zap.String("status", string(old)),
			zap.String("requested", string(newStatus)))
		return job, nil
	}
	if !constants.ValidTransition(old, newStatus) {
		return nil, fmt.Errorf("%s -> %s: %w", old, newStatus, common.ErrInvalidTransition)
	}

	update.apply(job)
	job.Status = newStatus
	b, err := json.Marshal(job)
	if err != nil {
		return nil, common.WrapError(err, "encode job")
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, jobKey(id), b, s.ttl)
	if old != newStatus {
		pipe.SRem(ctx, statusKey(old), id)
		pipe.SAdd(ctx, statusKey(newStatus), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Error("jobstore.transition_failed",
			zap.String("job_id", id),
			zap.String("from", string(old)),
			zap.String("to", string(newStatus)),
			zap.Error(err))
		return nil, common.WrapError(err, "transition job")
	}
	s.log.Info("jobstore.transitioned",
		zap.String("job_id", id),
		zap.String("from", string(old)),
		zap.String("to", string(newStatus)))
	return job, nil
}

// FindByStatus reads the status index and bulk-fetches the records. Ids
// whose record expired between index read and fetch are silently dropped.
func (s *Store) FindByStatus(ctx context.Context, status constants.JobStatus, limit int) ([]*Job, error) {
	ids, err := s.rdb.SMembers(ctx, statusKey(status)).Result()
	if err != nil {
		return nil, common.WrapError(err, "read status index")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, common.WrapError(err, "fetch jobs")
	}

	jobs := make([]*Job, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// expired between index read and fetch
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			s.log.Warn("jobstore.decode_skipped", zap.String("job_id", ids[i]), zap.Error(err))
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// DeleteExpired removes every job whose expiry index entry is at or before
// now: record, status set membership and expiry entry in one batch per id.
// Individual failures are logged and skipped.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, expiryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return 0, common.WrapError(err, "read expiry index")
	}

	deleted := 0
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			s.log.Warn("jobstore.cleanup_skipped", zap.String("job_id", id), zap.Error(err))
			continue
		}

		pipe := s.rdb.TxPipeline()
		pipe.Del(ctx, jobKey(id))
		if job != nil {
			pipe.SRem(ctx, statusKey(job.Status), id)
		} else {
			// record already gone (TTL); scrub every status set
			for _, st := range constants.AllStatuses {
				pipe.SRem(ctx, statusKey(st), id)
			}
		}
		pipe.ZRem(ctx, expiryKey, id)
		if _, err := pipe.Exec(ctx); err != nil {
			s.log.Warn("jobstore.cleanup_skipped", zap.String("job_id", id), zap.Error(err))
			continue
		}
		deleted++
	}
	if deleted > 0 {
		s.log.Info("jobstore.expired_deleted", zap.Int("count", deleted))
	}
	return deleted, nil
}

// CountByStatus returns the cardinality of each status index set.
func (s *Store) CountByStatus(ctx context.Context) (map[constants.JobStatus]int64, error) {
	counts := make(map[constants.JobStatus]int64, len(constants.AllStatuses))
	for _, st := range constants.AllStatuses {
		n, err := s.rdb.SCard(ctx, statusKey(st)).Result()
		if err != nil {
			return nil, common.WrapError(err, "count status index")
		}
		counts[st] = n
	}
	return counts, nil
}
