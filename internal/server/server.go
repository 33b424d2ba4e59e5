// Package server exposes the job coordinator over HTTP: the client-facing
// job endpoints plus the secret-guarded internal endpoints used by the
// self-trigger chain and the scheduled sweep.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mkrogh/elregning/internal/chainer"
	"github.com/mkrogh/elregning/internal/gateway"
	"github.com/mkrogh/elregning/internal/jobstore"
	"github.com/mkrogh/elregning/internal/reaper"
	"github.com/mkrogh/elregning/internal/trigger"
)

type Server struct {
	gw     *gateway.Gateway
	chain  *chainer.Chainer
	reap   *reaper.Reaper
	store  *jobstore.Store
	secret string
	log    *zap.Logger
}

func New(gw *gateway.Gateway, chain *chainer.Chainer, reap *reaper.Reaper, store *jobstore.Store, secret string, log *zap.Logger) *Server {
	return &Server{gw: gw, chain: chain, reap: reap, store: store, secret: secret, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", s.handleCreateJob)
		r.Get("/{id}", s.handleReadStatus)
		r.Post("/{id}/upload", s.handleAuthorizeUpload)
		r.Post("/{id}/upload-complete", s.handleUploadCompleted)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(s.requireInternalSecret)
		r.Post("/process", s.handleProcess)
		r.Post("/sweep", s.handleSweep)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req gateway.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	resp, err := s.gw.CreateJob(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAuthorizeUpload(w http.ResponseWriter, r *http.Request) {
	grant, err := s.gw.AuthorizeUpload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (s *Server) handleUploadCompleted(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BlobPath string `json:"blobPath"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.BlobPath == "" {
		writeError(w, http.StatusBadRequest, "missing blobPath")
		return
	}
	if err := s.gw.OnUploadCompleted(r.Context(), chi.URLParam(r, "id"), body.BlobPath); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleReadStatus(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}
	resp, err := s.gw.ReadStatus(r.Context(), chi.URLParam(r, "id"), token)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.JobID == "" {
		writeError(w, http.StatusBadRequest, "missing jobId")
		return
	}
	outcome, err := s.chain.Run(r.Context(), body.JobID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "outcome": outcome})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reap.Run(r.Context()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// requireInternalSecret guards the self-trigger and sweep endpoints with the
// shared secret carried by internal calls.
func (s *Server) requireInternalSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(trigger.SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			s.log.Warn("server.internal_unauthorized", zap.String("path", r.URL.Path))
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http.request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
