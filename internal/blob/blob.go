// Package blob defines the object-store collaborator the job pipeline
// depends on, plus its S3 implementation. Deletion is best-effort at every
// call site: a failed delete leaves an orphan for the age-based sweep, it
// never blocks a job transition.
package blob

import (
	"context"
	"fmt"
	"time"
)

// Store is the object-store contract consumed by the gateway, chainer and
// reaper.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys []string) error
	// ListOlderThan returns keys under prefix whose objects are older than age.
	ListOlderThan(ctx context.Context, prefix string, age time.Duration) ([]string, error)
	// PresignPut hands out a time-limited direct-upload URL for key. The
	// storage layer enforces the content type during the transfer itself.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}

// UploadKey builds the temporary object key for a job's raw file.
func UploadKey(prefix, jobID, fileName string) string {
	return fmt.Sprintf("%s%s/%s", prefix, jobID, fileName)
}
