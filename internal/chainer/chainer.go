// Package chainer performs one bounded unit of analysis work per invocation
// and decides the job's fate: completion, retry, continuation or permanent
// failure. Each invocation runs under a wall-clock budget shorter than the
// analyzer's worst-case latency; when more work remains the next unit is
// self-triggered asynchronously instead of blocking the caller.
package chainer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mkrogh/elregning/constants"
	"github.com/mkrogh/elregning/internal/analysis"
	"github.com/mkrogh/elregning/internal/blob"
	"github.com/mkrogh/elregning/internal/common"
	"github.com/mkrogh/elregning/internal/jobstore"
	"github.com/mkrogh/elregning/internal/trigger"
)

// Outcome reports what one attempt cycle did. It describes the cycle, not
// the job's own final state.
type Outcome string

const (
	OutcomeNoop           Outcome = "noop"            // job already terminal
	OutcomeCompleted      Outcome = "completed"       // analysis succeeded
	OutcomeRetryScheduled Outcome = "retry_scheduled" // recoverable failure, continuation fired
	OutcomeFailed         Outcome = "failed"          // retry budget exhausted
	OutcomeContinued      Outcome = "continued"       // time budget exceeded before dispatch
	OutcomeZombieFailed   Outcome = "zombie_failed"   // stuck job reclaimed
)

// TimeoutMessage is stored on jobs reclaimed as zombies, both by the chainer's
// self-heal check and by the reaper.
const TimeoutMessage = "Processing timeout - job exceeded maximum execution time"

type Chainer struct {
	store    *jobstore.Store
	blobs    blob.Store
	analyzer analysis.Analyzer
	trig     trigger.Trigger
	cfg      common.Config
	log      *zap.Logger
}

func New(store *jobstore.Store, blobs blob.Store, analyzer analysis.Analyzer, trig trigger.Trigger, cfg common.Config, log *zap.Logger) *Chainer {
	return &Chainer{store: store, blobs: blobs, analyzer: analyzer, trig: trig, cfg: cfg, log: log}
}

// Run executes one attempt cycle for jobID. Re-invocation on a terminal job
// is a safe no-op; re-invocation on a fresh PROCESSING job is a tolerated
// duplicate attempt (last writer wins on the terminal transition).
func (c *Chainer) Run(ctx context.Context, jobID string) (Outcome, error) {
	job, err := c.store.Get(ctx, jobID)
	if err != nil {
		return "", err
	}

	if job.Status.Terminal() {
		c.log.Info("chainer.noop_terminal",
			zap.String("job_id", jobID),
			zap.String("status", string(job.Status)))
		return OutcomeNoop, nil
	}

	if job.Status == constants.JobStatusAwaitingUpload {
		return "", fmt.Errorf("job %s has no uploaded file yet: %w", jobID, common.ErrInvalidState)
	}

	// Self-healing check, independent of the reaper: a job stuck in
	// PROCESSING past the zombie threshold is dead, not in flight.
	if job.Status == constants.JobStatusProcessing && job.ProcessingStartedAt != nil &&
		time.Since(*job.ProcessingStartedAt) > c.cfg.ZombieAfter {
		c.log.Warn("chainer.zombie_detected",
			zap.String("job_id", jobID),
			zap.Time("processing_started_at", *job.ProcessingStartedAt))
		if err := c.markFailed(ctx, job, TimeoutMessage); err != nil {
			return "", err
		}
		return OutcomeZombieFailed, nil
	}

	if job.Status != constants.JobStatusProcessing {
		update := jobstore.Update{}
		if job.ProcessingStartedAt == nil {
			now := time.Now().UTC()
			update.ProcessingStartedAt = &now
		}
		job, err = c.store.Transition(ctx, jobID, constants.JobStatusProcessing, update)
		if err != nil {
			return "", err
		}
	}

	return c.attempt(ctx, job)
}

// attempt performs one analysis attempt under the wall-clock budget.
func (c *Chainer) attempt(ctx context.Context, job *jobstore.Job) (Outcome, error) {
	start := time.Now()
	deadline := start.Add(c.cfg.AttemptBudget)
	attemptCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	data, err := c.blobs.Get(attemptCtx, job.BlobPath)
	if err != nil {
		return c.recoverableFailure(ctx, job, common.WrapError(err, "download blob"))
	}

	// Not an error: the budget ran out before we even dispatched the call.
	// Leave the job in PROCESSING, don't touch the retry count, and let the
	// next chained invocation pick it up.
	if time.Until(deadline) < time.Second {
		c.log.Info("chainer.budget_exceeded_before_dispatch", zap.String("job_id", job.ID))
		c.trig.Fire(ctx, job.ID)
		return OutcomeContinued, nil
	}

	contentType := job.ContentType
	if contentType == "" {
		contentType = constants.ContentTypeForFileName(job.FileName)
	}

	text, err := c.analyzer.Analyze(attemptCtx, data, contentType)
	if err != nil {
		return c.recoverableFailure(ctx, job, common.WrapError(err, "analyzer"))
	}

	bill, touched, err := analysis.ParseBillAnalysis(text)
	if err != nil {
		// Malformed output and schema failures sit in the same recoverable
		// bucket as a network failure.
		return c.recoverableFailure(ctx, job, err)
	}

	result := &analysis.Result{
		Success:          true,
		Data:             bill,
		Tier:             analysis.ClassifyTier(bill),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		RawResponse:      text,
	}
	if len(touched) > 0 {
		result.Warning = "sanitized fields: " + strings.Join(touched, ", ")
	}

	now := time.Now().UTC()
	if _, err := c.store.Transition(ctx, job.ID, constants.JobStatusCompleted, jobstore.Update{
		Result:      result,
		CompletedAt: &now,
	}); err != nil {
		return "", err
	}
	c.deleteBlob(ctx, job)
	c.log.Info("chainer.completed",
		zap.String("job_id", job.ID),
		zap.String("tier", string(result.Tier)),
		zap.Int64("elapsed_ms", result.ProcessingTimeMs))
	return OutcomeCompleted, nil
}

// recoverableFailure charges the failure against the retry budget: either
// schedule another attempt via continuation, or give up for good.
func (c *Chainer) recoverableFailure(ctx context.Context, job *jobstore.Job, cause error) (Outcome, error) {
	newCount := job.RetryCount + 1

	if newCount >= c.cfg.RetryMax {
		msg := fmt.Sprintf("Analysis failed after %d attempts: %v", newCount, cause)
		failed := *job
		failed.RetryCount = newCount
		if err := c.markFailed(ctx, &failed, msg); err != nil {
			return "", err
		}
		c.log.Warn("chainer.retries_exhausted",
			zap.String("job_id", job.ID),
			zap.Int("retry_count", newCount),
			zap.Error(cause))
		return OutcomeFailed, nil
	}

	if _, err := c.store.Transition(ctx, job.ID, constants.JobStatusPendingAnalysis, jobstore.Update{
		RetryCount: &newCount,
	}); err != nil {
		return "", err
	}
	c.log.Info("chainer.retry_scheduled",
		zap.String("job_id", job.ID),
		zap.Int("retry_count", newCount),
		zap.Error(cause))
	c.trig.Fire(ctx, job.ID)
	return OutcomeRetryScheduled, nil
}

func (c *Chainer) markFailed(ctx context.Context, job *jobstore.Job, msg string) error {
	now := time.Now().UTC()
	if _, err := c.store.Transition(ctx, job.ID, constants.JobStatusFailed, jobstore.Update{
		ErrorMessage: &msg,
		RetryCount:   &job.RetryCount,
		CompletedAt:  &now,
	}); err != nil {
		return err
	}
	c.deleteBlob(ctx, job)
	return nil
}

// deleteBlob is best-effort: a failed delete leaves an orphan for the
// age-based sweep, it never fails the transition that triggered it.
func (c *Chainer) deleteBlob(ctx context.Context, job *jobstore.Job) {
	if job.BlobPath == "" {
		return
	}
	if err := c.blobs.Delete(ctx, job.BlobPath); err != nil {
		c.log.Warn("chainer.blob_delete_failed",
			zap.String("job_id", job.ID),
			zap.String("blob_path", job.BlobPath),
			zap.Error(err))
	}
}
