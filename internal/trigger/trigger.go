// Package trigger is the continuation abstraction behind the
// chain-of-functions pattern: after the gateway accepts an upload, or after
// an attempt decides more work remains, the next processing unit is kicked
// off with a fire-and-forget self-addressed HTTP call. Dispatch failures are
// logged and swallowed — the reaper's pending-work sweep is the backstop for
// lost continuations.
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SecretHeader authenticates internal self-trigger calls.
const SecretHeader = "X-Internal-Secret"

// Trigger enqueues or directly invokes the next processing attempt for a
// job. Fire never blocks on the attempt itself and never reports its outcome.
type Trigger interface {
	Fire(ctx context.Context, jobID string)
}

// HTTPTrigger posts {jobId} back to this deployment's /internal/process
// endpoint in a goroutine.
type HTTPTrigger struct {
	base   string
	secret string
	client *http.Client
	log    *zap.Logger
}

func NewHTTPTrigger(baseURL, secret string, log *zap.Logger) *HTTPTrigger {
	return &HTTPTrigger{
		base:   strings.TrimRight(baseURL, "/"),
		secret: secret,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

// Fire dispatches the continuation without waiting for a response. The
// caller's context is deliberately not used: the continuation must outlive
// the request that fired it.
func (t *HTTPTrigger) Fire(_ context.Context, jobID string) {
	go func() {
		body, _ := json.Marshal(map[string]string{"jobId": jobID})
		req, err := http.NewRequest(http.MethodPost, t.base+"/internal/process", bytes.NewReader(body))
		if err != nil {
			t.log.Error("trigger.build_request_failed", zap.String("job_id", jobID), zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(SecretHeader, t.secret)

		resp, err := t.client.Do(req)
		if err != nil {
			t.log.Error("trigger.dispatch_failed", zap.String("job_id", jobID), zap.Error(err))
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		t.log.Info("trigger.fired", zap.String("job_id", jobID), zap.Int("status", resp.StatusCode))
	}()
}
