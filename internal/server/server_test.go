package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkrogh/elregning/internal/blob"
	"github.com/mkrogh/elregning/internal/chainer"
	"github.com/mkrogh/elregning/internal/common"
	"github.com/mkrogh/elregning/internal/gateway"
	"github.com/mkrogh/elregning/internal/jobstore"
	"github.com/mkrogh/elregning/internal/reaper"
	"github.com/mkrogh/elregning/internal/trigger"
)

const testSecret = "test-internal-secret"

type staticAnalyzer struct {
	text string
}

func (a *staticAnalyzer) Analyze(_ context.Context, _ []byte, _ string) (string, error) {
	return a.text, nil
}

type nopTrigger struct{}

func (nopTrigger) Fire(_ context.Context, _ string) {}

type serverEnv struct {
	ts    *httptest.Server
	blobs *blob.Memory
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := common.Config{
		InternalSecret:    testSecret,
		BlobPrefix:        "pending/",
		RetryMax:          3,
		AttemptBudget:     8 * time.Second,
		ZombieAfter:       10 * time.Minute,
		JobTTL:            24 * time.Hour,
		BlobMaxAge:        24 * time.Hour,
		UploadGrantTTL:    5 * time.Minute,
		PendingSweepLimit: 5,
	}
	log := zap.NewNop()
	store := jobstore.New(rdb, cfg.JobTTL, log)
	blobs := blob.NewMemory()
	analyzer := &staticAnalyzer{text: `{"totalConsumption_kWh": 500, "totalAmountForConsumption_DKK": 1100}`}

	gw := gateway.New(store, blobs, nopTrigger{}, cfg, log)
	chain := chainer.New(store, blobs, analyzer, nopTrigger{}, cfg, log)
	reap := reaper.New(store, blobs, chain, cfg, log)
	srv := New(gw, chain, reap, store, cfg.InternalSecret, log)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &serverEnv{ts: ts, blobs: blobs}
}

func (e *serverEnv) do(t *testing.T, method, path string, body any, header http.Header) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	require.NoError(t, err)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func internalHeader() http.Header {
	h := http.Header{}
	h.Set(trigger.SecretHeader, testSecret)
	return h
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	env := newServerEnv(t)

	resp, created := env.do(t, http.MethodPost, "/api/jobs", map[string]any{
		"fileName":    "bill.pdf",
		"fileSize":    500000,
		"contentType": "application/pdf",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	jobID := created["jobId"].(string)
	token := created["jobAccessToken"].(string)
	require.NotEmpty(t, jobID)
	require.NotEmpty(t, token)
	grant := created["uploadGrant"].(map[string]any)
	assert.NotEmpty(t, grant["url"])

	// the client uploads straight to storage, then reports back
	blobPath := "pending/" + jobID + "/bill.pdf"
	require.NoError(t, env.blobs.Put(context.Background(), blobPath, []byte("%PDF-1.4"), "application/pdf"))
	resp, _ = env.do(t, http.MethodPost, "/api/jobs/"+jobID+"/upload-complete",
		map[string]string{"blobPath": blobPath}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, processed := env.do(t, http.MethodPost, "/internal/process",
		map[string]string{"jobId": jobID}, internalHeader())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", processed["outcome"])

	auth := http.Header{}
	auth.Set("Authorization", "Bearer "+token)
	resp, status := env.do(t, http.MethodGet, "/api/jobs/"+jobID, nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "COMPLETED", status["status"])
	require.NotNil(t, status["result"])
	result := status["result"].(map[string]any)
	assert.Equal(t, "basic", result["tier"])
}

func TestCreateJobRejectsBadUploads(t *testing.T) {
	env := newServerEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/jobs", map[string]any{
		"fileName":    "virus.exe",
		"fileSize":    100,
		"contentType": "application/octet-stream",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "unsupported content type")

	resp, _ = env.do(t, http.MethodPost, "/api/jobs", map[string]any{
		"fileName":    "bill.pdf",
		"fileSize":    11 << 20,
		"contentType": "application/pdf",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusAuth(t *testing.T) {
	env := newServerEnv(t)

	_, created := env.do(t, http.MethodPost, "/api/jobs", map[string]any{
		"fileName":    "bill.pdf",
		"fileSize":    100,
		"contentType": "application/pdf",
	}, nil)
	jobID := created["jobId"].(string)

	resp, _ := env.do(t, http.MethodGet, "/api/jobs/"+jobID, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	wrong := http.Header{}
	wrong.Set("Authorization", "Bearer not-the-token")
	resp, _ = env.do(t, http.MethodGet, "/api/jobs/"+jobID, nil, wrong)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInternalEndpointsRequireSecret(t *testing.T) {
	env := newServerEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/internal/process", map[string]string{"jobId": "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	wrong := http.Header{}
	wrong.Set(trigger.SecretHeader, "guess")
	resp, _ = env.do(t, http.MethodPost, "/internal/sweep", nil, wrong)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProcessUnknownJob(t *testing.T) {
	env := newServerEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/internal/process",
		map[string]string{"jobId": "ghost"}, internalHeader())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSweepAndStats(t *testing.T) {
	env := newServerEnv(t)

	resp, report := env.do(t, http.MethodPost, "/internal/sweep", nil, internalHeader())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, report, "zombiesReclaimed")
	assert.Contains(t, report, "executionTime")

	_, _ = env.do(t, http.MethodPost, "/api/jobs", map[string]any{
		"fileName":    "bill.pdf",
		"fileSize":    100,
		"contentType": "application/pdf",
	}, nil)
	resp, stats := env.do(t, http.MethodGet, "/internal/stats", nil, internalHeader())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), stats["AWAITING_UPLOAD"])
}
