package jobstore

import (
	"time"

	"github.com/mkrogh/elregning/constants"
	"github.com/mkrogh/elregning/internal/analysis"
)

// Job is the durable record for one uploaded bill. A single mutable record
// per job; all mutation goes through Store.Transition.
type Job struct {
	ID          string              `json:"id"`
	AccessToken string              `json:"accessToken"`
	Status      constants.JobStatus `json:"status"`
	BlobPath    string              `json:"blobPath,omitempty"`
	FileName    string              `json:"fileName"`
	FileSize    int64               `json:"fileSize"`
	ContentType string              `json:"contentType"`

	CreatedAt           time.Time  `json:"createdAt"`
	UploadCompletedAt   *time.Time `json:"uploadCompletedAt,omitempty"`
	ProcessingStartedAt *time.Time `json:"processingStartedAt,omitempty"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`

	RetryCount   int              `json:"retryCount"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	Result       *analysis.Result `json:"result,omitempty"`
}

// Update is a partial job mutation merged into the record during a
// transition. Nil fields are left untouched.
type Update struct {
	BlobPath            *string
	UploadCompletedAt   *time.Time
	ProcessingStartedAt *time.Time
	CompletedAt         *time.Time
	RetryCount          *int
	ErrorMessage        *string
	Result              *analysis.Result
}

func (u Update) apply(j *Job) {
	if u.BlobPath != nil {
		j.BlobPath = *u.BlobPath
	}
	if u.UploadCompletedAt != nil {
		j.UploadCompletedAt = u.UploadCompletedAt
	}
	if u.ProcessingStartedAt != nil {
		j.ProcessingStartedAt = u.ProcessingStartedAt
	}
	if u.CompletedAt != nil {
		j.CompletedAt = u.CompletedAt
	}
	if u.RetryCount != nil {
		j.RetryCount = *u.RetryCount
	}
	if u.ErrorMessage != nil {
		j.ErrorMessage = *u.ErrorMessage
	}
	if u.Result != nil {
		j.Result = u.Result
	}
}
