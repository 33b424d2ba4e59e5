// Package reaper is the periodic safety net: it reclaims zombie jobs,
// drives pending jobs whose continuation signal was lost, and clears expired
// records and orphaned blobs. Each duty is best-effort and independently
// fault-tolerant; one failing never blocks the others.
package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mkrogh/elregning/constants"
	"github.com/mkrogh/elregning/internal/blob"
	"github.com/mkrogh/elregning/internal/chainer"
	"github.com/mkrogh/elregning/internal/common"
	"github.com/mkrogh/elregning/internal/jobstore"
)

// Report summarizes one sweep run.
type Report struct {
	ZombiesReclaimed   int   `json:"zombiesReclaimed"`
	Processed          int   `json:"processed"`
	ExpiredJobsDeleted int   `json:"expiredJobsDeleted"`
	OldBlobsDeleted    int   `json:"oldBlobsDeleted"`
	ElapsedMs          int64 `json:"executionTime"`
}

type Reaper struct {
	store *jobstore.Store
	blobs blob.Store
	chain *chainer.Chainer
	cfg   common.Config
	log   *zap.Logger
}

func New(store *jobstore.Store, blobs blob.Store, chain *chainer.Chainer, cfg common.Config, log *zap.Logger) *Reaper {
	return &Reaper{store: store, blobs: blobs, chain: chain, cfg: cfg, log: log}
}

// Run executes one sweep pass.
func (r *Reaper) Run(ctx context.Context) Report {
	start := time.Now()
	var rep Report

	rep.ZombiesReclaimed = r.reclaimZombies(ctx)
	rep.Processed = r.sweepPending(ctx)
	rep.ExpiredJobsDeleted, rep.OldBlobsDeleted = r.sweepExpired(ctx)

	rep.ElapsedMs = time.Since(start).Milliseconds()
	r.log.Info("reaper.run_completed",
		zap.Int("zombies", rep.ZombiesReclaimed),
		zap.Int("processed", rep.Processed),
		zap.Int("expired_jobs", rep.ExpiredJobsDeleted),
		zap.Int("old_blobs", rep.OldBlobsDeleted),
		zap.Int64("elapsed_ms", rep.ElapsedMs))
	return rep
}

// reclaimZombies force-fails PROCESSING jobs stuck past the zombie
// threshold and best-effort deletes their blobs.
func (r *Reaper) reclaimZombies(ctx context.Context) int {
	jobs, err := r.store.FindByStatus(ctx, constants.JobStatusProcessing, 0)
	if err != nil {
		r.log.Error("reaper.zombie_scan_failed", zap.Error(err))
		return 0
	}

	reclaimed := 0
	cutoff := time.Now().Add(-r.cfg.ZombieAfter)
	msg := chainer.TimeoutMessage
	for _, job := range jobs {
		if job.ProcessingStartedAt == nil || !job.ProcessingStartedAt.Before(cutoff) {
			continue
		}
		now := time.Now().UTC()
		if _, err := r.store.Transition(ctx, job.ID, constants.JobStatusFailed, jobstore.Update{
			ErrorMessage: &msg,
			CompletedAt:  &now,
		}); err != nil {
			r.log.Warn("reaper.zombie_fail_failed", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		r.log.Warn("reaper.zombie_reclaimed", zap.String("job_id", job.ID))
		if job.BlobPath != "" {
			if err := r.blobs.Delete(ctx, job.BlobPath); err != nil {
				r.log.Warn("reaper.blob_delete_failed",
					zap.String("job_id", job.ID), zap.Error(err))
			}
		}
		reclaimed++
	}
	return reclaimed
}

// sweepPending drives a bounded batch of PENDING_ANALYSIS jobs through one
// chainer attempt each, synchronously. This catches jobs whose
// fire-and-forget continuation was lost.
func (r *Reaper) sweepPending(ctx context.Context) int {
	jobs, err := r.store.FindByStatus(ctx, constants.JobStatusPendingAnalysis, r.cfg.PendingSweepLimit)
	if err != nil {
		r.log.Error("reaper.pending_scan_failed", zap.Error(err))
		return 0
	}

	processed := 0
	for _, job := range jobs {
		if _, err := r.chain.Run(ctx, job.ID); err != nil {
			r.log.Warn("reaper.pending_attempt_failed", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		processed++
	}
	return processed
}

// sweepExpired deletes jobs past their TTL and blobs older than the age
// threshold regardless of job linkage (orphans from crashed flows).
func (r *Reaper) sweepExpired(ctx context.Context) (int, int) {
	expired, err := r.store.DeleteExpired(ctx, time.Now())
	if err != nil {
		r.log.Error("reaper.expiry_sweep_failed", zap.Error(err))
	}

	keys, err := r.blobs.ListOlderThan(ctx, r.cfg.BlobPrefix, r.cfg.BlobMaxAge)
	if err != nil {
		r.log.Error("reaper.blob_scan_failed", zap.Error(err))
		return expired, 0
	}
	if len(keys) == 0 {
		return expired, 0
	}
	if err := r.blobs.DeleteMany(ctx, keys); err != nil {
		r.log.Warn("reaper.blob_sweep_failed", zap.Int("keys", len(keys)), zap.Error(err))
		return expired, 0
	}
	return expired, len(keys)
}
