// Package gateway owns the client-facing half of the job lifecycle: job
// creation, upload authorization, the storage completion hook and the
// token-guarded status read.
package gateway

import (
	"context"
	"crypto/subtle"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkrogh/elregning/constants"
	"github.com/mkrogh/elregning/internal/analysis"
	"github.com/mkrogh/elregning/internal/blob"
	"github.com/mkrogh/elregning/internal/common"
	"github.com/mkrogh/elregning/internal/jobstore"
	"github.com/mkrogh/elregning/internal/trigger"
)

type Gateway struct {
	store *jobstore.Store
	blobs blob.Store
	trig  trigger.Trigger
	cfg   common.Config
	log   *zap.Logger
}

func New(store *jobstore.Store, blobs blob.Store, trig trigger.Trigger, cfg common.Config, log *zap.Logger) *Gateway {
	return &Gateway{store: store, blobs: blobs, trig: trig, cfg: cfg, log: log}
}

type CreateJobRequest struct {
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	ContentType string `json:"contentType"`
}

// UploadGrant is a capability handed to the client: the storage layer
// enforces the constraints during the transfer itself; the gateway does not
// re-check them after the fact.
type UploadGrant struct {
	URL                 string    `json:"url"`
	AllowedContentTypes []string  `json:"allowedContentTypes"`
	MaxSizeBytes        int64     `json:"maxSizeBytes"`
	ExpiresAt           time.Time `json:"expiresAt"`
}

type CreateJobResponse struct {
	JobID       string      `json:"jobId"`
	AccessToken string      `json:"jobAccessToken"`
	UploadGrant UploadGrant `json:"uploadGrant"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

type StatusResponse struct {
	JobID            string              `json:"jobId"`
	Status           constants.JobStatus `json:"status"`
	CreatedAt        time.Time           `json:"createdAt"`
	ProcessingTimeMs *int64              `json:"processingTime,omitempty"`
	Result           *analysis.Result    `json:"result,omitempty"`
	Error            string              `json:"error,omitempty"`
}

// CreateJob validates the announced file against upload policy, persists a
// fresh job in AWAITING_UPLOAD and returns the id, the capability token for
// status polling, and the upload grant.
func (g *Gateway) CreateJob(ctx context.Context, req CreateJobRequest) (*CreateJobResponse, error) {
	if err := validateUploadPolicy(req); err != nil {
		return nil, err
	}

	job := &jobstore.Job{
		ID:          uuid.NewString(),
		AccessToken: uuid.NewString(),
		Status:      constants.JobStatusAwaitingUpload,
		FileName:    sanitizeFileName(req.FileName),
		FileSize:    req.FileSize,
		ContentType: req.ContentType,
		CreatedAt:   time.Now().UTC(),
	}
	if err := g.store.Create(ctx, job); err != nil {
		return nil, err
	}

	grant, err := g.grantFor(ctx, job)
	if err != nil {
		return nil, err
	}
	g.log.Info("gateway.job_created",
		zap.String("job_id", job.ID),
		zap.String("file_name", job.FileName),
		zap.Int64("file_size", job.FileSize))
	return &CreateJobResponse{
		JobID:       job.ID,
		AccessToken: job.AccessToken,
		UploadGrant: *grant,
		ExpiresAt:   grant.ExpiresAt,
	}, nil
}

// AuthorizeUpload re-issues an upload grant for a job still awaiting its
// file. Fails with ErrNotFound or ErrInvalidState; never mutates the job.
func (g *Gateway) AuthorizeUpload(ctx context.Context, jobID string) (*UploadGrant, error) {
	job, err := g.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != constants.JobStatusAwaitingUpload {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, job.Status, common.ErrInvalidState)
	}
	return g.grantFor(ctx, job)
}

// OnUploadCompleted is the storage layer's completion hook: it advances the
// job to PENDING_ANALYSIS, records where the file landed, and fires the first
// processing trigger. The trigger outcome does not affect this call's result.
func (g *Gateway) OnUploadCompleted(ctx context.Context, jobID, blobRef string) error {
	job, err := g.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != constants.JobStatusAwaitingUpload {
		return fmt.Errorf("job %s is %s: %w", jobID, job.Status, common.ErrInvalidState)
	}

	now := time.Now().UTC()
	if _, err := g.store.Transition(ctx, jobID, constants.JobStatusPendingAnalysis, jobstore.Update{
		BlobPath:          &blobRef,
		UploadCompletedAt: &now,
	}); err != nil {
		return err
	}

	g.log.Info("gateway.upload_completed", zap.String("job_id", jobID), zap.String("blob_path", blobRef))
	g.trig.Fire(ctx, jobID)
	return nil
}

// ReadStatus serves the client polling path. Authorization is capability
// based: the caller must present the access token issued at creation.
func (g *Gateway) ReadStatus(ctx context.Context, jobID, accessToken string) (*StatusResponse, error) {
	job, err := g.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(job.AccessToken), []byte(accessToken)) != 1 {
		return nil, common.ErrUnauthorized
	}

	resp := &StatusResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}
	if job.Status == constants.JobStatusCompleted {
		resp.Result = job.Result
		if job.ProcessingStartedAt != nil && job.CompletedAt != nil {
			ms := job.CompletedAt.Sub(*job.ProcessingStartedAt).Milliseconds()
			resp.ProcessingTimeMs = &ms
		}
	}
	if job.Status == constants.JobStatusFailed {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

func (g *Gateway) grantFor(ctx context.Context, job *jobstore.Job) (*UploadGrant, error) {
	key := blob.UploadKey(g.cfg.BlobPrefix, job.ID, job.FileName)
	url, err := g.blobs.PresignPut(ctx, key, job.ContentType, g.cfg.UploadGrantTTL)
	if err != nil {
		return nil, common.WrapError(err, "presign upload")
	}
	return &UploadGrant{
		URL:                 url,
		AllowedContentTypes: allowedContentTypes(),
		MaxSizeBytes:        constants.MaxFileSizeBytes,
		ExpiresAt:           time.Now().UTC().Add(g.cfg.UploadGrantTTL),
	}, nil
}

func validateUploadPolicy(req CreateJobRequest) error {
	if strings.TrimSpace(req.FileName) == "" || req.FileSize == 0 || req.ContentType == "" {
		return fmt.Errorf("fileName, fileSize and contentType are required: %w", common.ErrInvalidInput)
	}
	if _, ok := constants.AllowedContentTypes[req.ContentType]; !ok {
		return fmt.Errorf("unsupported content type %q: %w", req.ContentType, common.ErrInvalidInput)
	}
	if req.FileSize < 0 || req.FileSize > constants.MaxFileSizeBytes {
		return fmt.Errorf("file size %d outside policy: %w", req.FileSize, common.ErrInvalidInput)
	}
	return nil
}

func allowedContentTypes() []string {
	out := make([]string, 0, len(constants.AllowedContentTypes))
	for ct := range constants.AllowedContentTypes {
		out = append(out, ct)
	}
	sort.Strings(out)
	return out
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "bill.pdf"
	}
	return name
}
