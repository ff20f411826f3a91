// Package api exposes the HTTP interface for the ingestion service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/config"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/crawler"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/extractor"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/metrics"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/pipeline"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/quota"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/registry"
)

// maxUploadBytes caps the size of an uploaded notification document.
const maxUploadBytes = 32 << 20

// Runner processes one document through the ingestion pipeline.
type Runner interface {
	Run(ctx context.Context, document []byte, provider string) pipeline.Result
}

// Scanner triggers listing-page scans and downloads candidate documents.
// Scans never fail as a whole; per source problems are logged and produce
// empty results.
type Scanner interface {
	ScanAll(ctx context.Context) []crawler.CandidateReference
	ScanSource(ctx context.Context, src registry.SourceConfig) []crawler.CandidateReference
	FetchDocument(ctx context.Context, docURL string) ([]byte, error)
}

// Store persists discovered candidates and extracted job records. It may be
// nil when the service runs without a database.
type Store interface {
	UpsertCandidates(ctx context.Context, cs []crawler.CandidateReference) (int, error)
	UpsertJob(ctx context.Context, slug string, posting extractor.JobPosting) error
	AdvanceCandidate(ctx context.Context, url string, status crawler.TriageStatus) error
}

// QuotaReporter exposes per-provider budget state.
type QuotaReporter interface {
	Check(provider string) quota.Health
	Usage(provider string) (minute, day int)
	Providers() []string
}

// Server wires HTTP handlers to the pipeline, scanner, and stores.
type Server struct {
	router   chi.Router
	pipeline Runner
	scanner  Scanner
	store    Store
	quotas   QuotaReporter
	registry *registry.Registry
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	runner Runner,
	scanner Scanner,
	store Store,
	quotas QuotaReporter,
	reg *registry.Registry,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		pipeline: runner,
		scanner:  scanner,
		store:    store,
		quotas:   quotas,
		registry: reg,
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(5 * time.Minute))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents/extract", s.extractDocument)
		r.Post("/sources/scan", s.scanSources)
		r.Get("/sources", s.listSources)
		r.Get("/quota", s.quotaStatus)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// extractDocument runs one notification through the pipeline. The document
// arrives either as the raw request body or, with ?url=, is downloaded from
// a candidate link first. A successful extraction is persisted as a job
// record when a store is configured, and the originating candidate advances
// to PROCESSED. The response carries the full result envelope either way;
// the HTTP status only summarizes it.
func (s *Server) extractDocument(w http.ResponseWriter, r *http.Request) {
	var document []byte
	docURL := r.URL.Query().Get("url")
	if docURL != "" {
		data, err := s.scanner.FetchDocument(r.Context(), docURL)
		if err != nil {
			writeError(w, http.StatusBadGateway, "fetch document: "+err.Error())
			return
		}
		document = data
	} else {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
			return
		}
		document = data
	}
	if len(document) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("document exceeds %d bytes", maxUploadBytes))
		return
	}
	if len(document) == 0 {
		writeError(w, http.StatusBadRequest, "empty document")
		return
	}

	provider := r.URL.Query().Get("provider")
	if provider == "" {
		provider = s.cfg.Extraction.DefaultProvider
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ExtractionTimeout())
	defer cancel()

	result := s.pipeline.Run(ctx, document, provider)
	if result.Success && s.store != nil {
		s.persistJob(r.Context(), &result, docURL)
	}
	writeJSON(w, resultStatus(result), result)
}

// persistJob writes the extracted posting as a job record and advances the
// originating candidate when the document came from a scanned link. Storage
// problems do not fail the extraction; they surface as envelope warnings so
// the caller knows the record was not saved.
func (s *Server) persistJob(ctx context.Context, res *pipeline.Result, candidateURL string) {
	slug := extractor.Slugify(res.Data.Title)
	if slug == "" {
		res.Warnings = append(res.Warnings, "job record not persisted: title yields an empty slug")
		return
	}
	if err := s.store.UpsertJob(ctx, slug, *res.Data); err != nil {
		s.logger.Error("persist job failed", zap.String("slug", slug), zap.Error(err))
		res.Warnings = append(res.Warnings, "job record not persisted: "+err.Error())
		return
	}
	if candidateURL == "" {
		return
	}
	if err := s.store.AdvanceCandidate(ctx, candidateURL, crawler.StatusProcessed); err != nil {
		// Direct uploads and unscanned links have no candidate row; nothing
		// to advance.
		s.logger.Warn("advance candidate failed",
			zap.String("url", candidateURL),
			zap.Error(err),
		)
	}
}

type scanRequest struct {
	SourceID string `json:"source_id"`
}

type scanResponse struct {
	Candidates []crawler.CandidateReference `json:"candidates"`
	Discovered int                          `json:"discovered"`
	Stored     int                          `json:"stored"`
}

// scanSources triggers a scan of one source, or of every registered source
// when the body names none. Discovered candidates are persisted when a store
// is configured.
func (s *Server) scanSources(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	var candidates []crawler.CandidateReference
	if req.SourceID != "" {
		src, ok := s.registry.Get(req.SourceID)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown source %q", req.SourceID))
			return
		}
		candidates = s.scanner.ScanSource(r.Context(), src)
	} else {
		candidates = s.scanner.ScanAll(r.Context())
	}

	stored := 0
	if s.store != nil && len(candidates) > 0 {
		n, err := s.store.UpsertCandidates(r.Context(), candidates)
		if err != nil {
			s.logger.Error("persist candidates failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "persist candidates: "+err.Error())
			return
		}
		stored = n
	}
	if candidates == nil {
		candidates = []crawler.CandidateReference{}
	}
	writeJSON(w, http.StatusOK, scanResponse{
		Candidates: candidates,
		Discovered: len(candidates),
		Stored:     stored,
	})
}

func (s *Server) listSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.registry.All()})
}

type providerQuota struct {
	Provider string       `json:"provider"`
	Health   quota.Health `json:"health"`
	Minute   int          `json:"minute"`
	Day      int          `json:"day"`
}

func (s *Server) quotaStatus(w http.ResponseWriter, _ *http.Request) {
	out := make([]providerQuota, 0)
	for _, name := range s.quotas.Providers() {
		minute, day := s.quotas.Usage(name)
		out = append(out, providerQuota{
			Provider: name,
			Health:   s.quotas.Check(name),
			Minute:   minute,
			Day:      day,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

// resultStatus maps a pipeline result to an HTTP status. Quota refusals map
// to 429 so callers can back off; malformed providers map to 400; all other
// failures are 422 because the document itself could not be processed.
func resultStatus(res pipeline.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Code {
	case pipeline.CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case pipeline.CodeConfigFailure:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			duration := time.Since(start)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", duration.Milliseconds()),
			)
			metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.status, duration)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
