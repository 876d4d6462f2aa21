// Package server exposes the HTTP API for service mode: job submission,
// progress, verdict diagnostics, result download and cancellation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/scanprep/internal/config"
	"github.com/local/scanprep/internal/job"
	"github.com/local/scanprep/internal/metrics"
	"github.com/local/scanprep/internal/queue"
	"github.com/local/scanprep/internal/statuscheck"
	"github.com/local/scanprep/internal/storage"
	"github.com/local/scanprep/internal/store"
)

// Server wires the HTTP surface to the queue and stores.
type Server struct {
	Cfg      config.Config
	Queue    *queue.RedisQueue
	Status   *store.RedisStatus
	Verdicts *store.VerdictStore
	Storage  *storage.S3Client // nil when no bucket is configured
	Health   *statuscheck.Checker

	httpSrv *http.Server
}

// Start begins serving and blocks until ListenAndServe returns.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("POST /process_upload", s.handleProcessUpload)
	mux.HandleFunc("GET /progress/{id}", s.handleProgress)
	mux.HandleFunc("GET /verdicts/{id}", s.handleVerdicts)
	mux.HandleFunc("GET /download/{id}/{n}", s.handleDownload)
	mux.HandleFunc("POST /webhook/cancel_job", s.handleCancel)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	s.httpSrv = &http.Server{
		Addr:              ":" + s.Cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("port", s.Cfg.Server.Port).Msg("http server listening")
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// runOptions are the per-job overrides accepted on submission. Nil fields
// keep the service defaults.
type runOptions struct {
	BlankRemoval   *bool    `json:"blank_removal,omitempty"`
	PageSeparation *bool    `json:"page_separation,omitempty"`
	BlankThreshold *float64 `json:"blank_threshold,omitempty"`
	RenderDPI      *int     `json:"render_dpi,omitempty"`
	MarkerPayload  *string  `json:"marker_payload,omitempty"`
	Workers        *int     `json:"workers,omitempty"`
}

func (o runOptions) apply(base config.RunConfig) config.RunConfig {
	if o.BlankRemoval != nil {
		base.BlankRemoval = *o.BlankRemoval
	}
	if o.PageSeparation != nil {
		base.PageSeparation = *o.PageSeparation
	}
	if o.BlankThreshold != nil {
		base.BlankThreshold = *o.BlankThreshold
	}
	if o.RenderDPI != nil {
		base.RenderDPI = *o.RenderDPI
	}
	if o.MarkerPayload != nil {
		base.MarkerPayload = *o.MarkerPayload
	}
	if o.Workers != nil {
		base.Workers = *o.Workers
	}
	return base
}

type processRequest struct {
	Source   string     `json:"source"`
	FileName string     `json:"file_name,omitempty"`
	Options  runOptions `json:"options"`
}

// handleProcess accepts a job referencing an http(s) or s3 source.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}

	j := job.Job{
		ID:         uuid.NewString(),
		Source:     req.Source,
		FileName:   req.FileName,
		Run:        req.Options.apply(s.Cfg.Run),
		EnqueuedAt: time.Now(),
	}
	if j.SourceKind() == job.SourceLocal {
		writeError(w, http.StatusBadRequest, "source must be an http(s) or s3 url")
		return
	}
	if j.FileName == "" {
		j.FileName = filepath.Base(j.Source)
	}
	if err := j.Run.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.enqueue(r.Context(), j); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": j.ID, "status": "queued"})
}

// handleProcessUpload accepts a multipart file upload.
func (s *Server) handleProcessUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.Cfg.Server.MaxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "parse upload: "+err.Error())
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	var opts runOptions
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			writeError(w, http.StatusBadRequest, "invalid options: "+err.Error())
			return
		}
	}

	jobID := uuid.NewString()
	if err := os.MkdirAll(s.Cfg.Server.UploadDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	localPath := filepath.Join(s.Cfg.Server.UploadDir, jobID+filepath.Ext(hdr.Filename))
	dst, err := os.Create(localPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(localPath)
		writeError(w, http.StatusInternalServerError, "store upload: "+err.Error())
		return
	}
	dst.Close()

	j := job.Job{
		ID:         jobID,
		Source:     localPath,
		FileName:   filepath.Base(hdr.Filename),
		Run:        opts.apply(s.Cfg.Run),
		EnqueuedAt: time.Now(),
	}
	if err := j.Run.Validate(); err != nil {
		os.Remove(localPath)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.enqueue(r.Context(), j); err != nil {
		os.Remove(localPath)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": j.ID, "status": "queued"})
}

func (s *Server) enqueue(ctx context.Context, j job.Job) error {
	payload, err := j.Encode()
	if err != nil {
		return err
	}
	if err := s.Status.Set(ctx, j.ID, store.Status{Status: "queued", Message: "waiting for worker"}); err != nil {
		return fmt.Errorf("record status: %w", err)
	}
	if err := s.Queue.Enqueue(ctx, payload); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	log.Info().Str("job_id", j.ID).Str("source", j.SourceKind()).Msg("job enqueued")
	return nil
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, ok, err := s.Status.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleVerdicts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Completed jobs record their page count; in-flight jobs scan a
	// generous bound.
	bound := 10000
	if st, ok, err := s.Status.Get(r.Context(), id); err == nil && ok {
		if n := pagesTotalFromMeta(st.Metadata); n > 0 {
			bound = n
		}
	}

	verdicts, err := s.Verdicts.List(r.Context(), id, bound)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"job_id": id, "verdicts": verdicts})
}

// pagesTotalFromMeta reads the page count the worker records at completion.
// JSON round-tripping through the status store turns numbers into float64.
func pagesTotalFromMeta(meta map[string]interface{}) int {
	switch n := meta["pages_total"].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// s3URLFromMeta returns the nth archived output URL from job metadata.
func s3URLFromMeta(meta map[string]interface{}, n int) (string, bool) {
	raw, ok := meta["s3_urls"].([]interface{})
	if !ok || n < 0 || n >= len(raw) {
		return "", false
	}
	s, ok := raw[n].(string)
	return s, ok
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid document index")
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	dir := filepath.Join(s.Cfg.Server.ResultDir, id)
	prefix := strconv.Itoa(n) + "-"
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), prefix) && len(e.Name()) > len(prefix) {
				w.Header().Set("Content-Type", "application/pdf")
				w.Header().Set("Content-Disposition", `attachment; filename="`+e.Name()+`"`)
				http.ServeFile(w, r, filepath.Join(dir, e.Name()))
				return
			}
		}
	}

	// No local copy (s3-origin job, or local retention expired); fall back
	// to the archived output.
	if s.Storage != nil {
		if st, ok, err := s.Status.Get(r.Context(), id); err == nil && ok {
			if url, found := s3URLFromMeta(st.Metadata, n); found {
				s.serveArchived(w, r, url)
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "document not found")
}

// serveArchived streams an output document back from S3, decrypting it when
// outputs are archived encrypted.
func (s *Server) serveArchived(w http.ResponseWriter, r *http.Request, s3url string) {
	bucket, key, err := storage.ParseURL(s3url)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bucket != s.Storage.Bucket() {
		writeError(w, http.StatusNotFound, "archived output is outside the configured bucket")
		return
	}

	password := ""
	if s.Cfg.Storage.EncryptOutputs {
		password = s.Cfg.Storage.EncryptPassword
	}
	data, err := s.Storage.Fetch(r.Context(), key, password)
	if err != nil {
		log.Error().Str("key", key).Err(err).Msg("archived output fetch failed")
		writeError(w, http.StatusBadGateway, "archived output unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required")
		return
	}
	if err := s.Queue.CancelJob(r.Context(), req.JobID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().Str("job_id", req.JobID).Msg("job cancellation requested")
	writeJSON(w, http.StatusOK, map[string]string{"job_id": req.JobID, "status": "cancel_requested"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rep := s.Health.Run(r.Context())
	code := http.StatusOK
	if !rep.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, rep)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
