// Package httpapi exposes the knowledge-base service over a chi
// router: source lifecycle management and grounded search.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groundkit/groundkit/internal/domain"
	healthuc "github.com/groundkit/groundkit/internal/usecase/health"
)

// maxUploadBytes caps multipart uploads; larger documents should be
// registered as URL sources.
const maxUploadBytes = 64 << 20

type ingestService interface {
	Submit(ctx context.Context, origin domain.Origin, title, contentRef string, refreshEvery time.Duration) (domain.Source, error)
	Refresh(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type sourceReader interface {
	Get(ctx context.Context, id string) (domain.Source, error)
	List(ctx context.Context) ([]domain.Source, error)
}

type answerer interface {
	Answer(ctx context.Context, query string, tier domain.Tier) (*domain.Answer, error)
}

type queue interface {
	Enqueue(id string) bool
}

type healthService interface {
	Check(ctx context.Context) healthuc.Report
}

type queryLogReader interface {
	Recent(ctx context.Context, limit int) ([]domain.QueryRecord, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	ingest        ingestService
	sources       sourceReader
	answers       answerer
	queue         queue
	health        healthService
	queries       queryLogReader
	uploadDir     string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ingest ingestService,
	sources sourceReader,
	answers answerer,
	q queue,
	health healthService,
	queries queryLogReader,
	uploadDir string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ingest:    ingest,
		sources:   sources,
		answers:   answers,
		queue:     q,
		health:    health,
		queries:   queries,
		uploadDir: uploadDir,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, "validation_failed"),
		sentinelHandler(domain.ErrSourceNotFound, http.StatusNotFound, "source_not_found"),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusBadRequest, "unsupported_format"),
		sentinelHandler(domain.ErrIllegalTransition, http.StatusConflict, "illegal_state"),
		sentinelHandler(domain.ErrServiceUnavailable, http.StatusBadGateway, "upstream_unavailable"),
		sentinelHandler(domain.ErrGenerationFailed, http.StatusBadGateway, "generation_failed"),
	}
	return s
}

// Routes registers all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/sources", s.createSource)
		r.Get("/sources", s.listSources)
		r.Get("/sources/{id}", s.getSource)
		r.Post("/sources/{id}/refresh", s.refreshSource)
		r.Delete("/sources/{id}", s.deleteSource)
		r.Post("/search", s.search)
		r.Get("/queries", s.recentQueries)
	})
	r.Get("/healthz", s.healthz)
}

// createSource handles POST /v1/sources. URL sources arrive as JSON;
// uploads arrive as multipart/form-data with a "file" field.
func (s *Server) createSource(w http.ResponseWriter, r *http.Request) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		src domain.Source
		err error
	)
	if strings.HasPrefix(ct, "multipart/") {
		src, err = s.createUpload(r)
	} else {
		src, err = s.createURL(r)
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if !s.queue.Enqueue(src.ID) {
		// Source stays PENDING; the refresh sweep or a retry picks it up.
		s.logger.Warn("ingest queue rejected source", zap.String("source_id", src.ID))
	}
	writeJSON(w, http.StatusAccepted, sourceToResponse(src))
}

func (s *Server) createURL(r *http.Request) (domain.Source, error) {
	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return domain.Source{}, fmt.Errorf("invalid request body: %w", domain.ErrValidation)
	}
	origin, err := domain.ParseOrigin(req.Origin)
	if err != nil {
		return domain.Source{}, err
	}
	if origin != domain.OriginURL {
		return domain.Source{}, fmt.Errorf("origin %q requires a multipart upload: %w", req.Origin, domain.ErrValidation)
	}
	if req.URL == "" {
		return domain.Source{}, fmt.Errorf("url is required: %w", domain.ErrValidation)
	}
	refresh := time.Duration(req.RefreshEveryMin) * time.Minute
	return s.ingest.Submit(r.Context(), origin, req.Title, req.URL, refresh)
}

func (s *Server) createUpload(r *http.Request) (domain.Source, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return domain.Source{}, fmt.Errorf("invalid multipart body: %w", domain.ErrValidation)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return domain.Source{}, fmt.Errorf("file field is required: %w", domain.ErrValidation)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(s.uploadDir, uuid.NewString()+ext)
	if err := saveUpload(file, path); err != nil {
		return domain.Source{}, fmt.Errorf("store upload: %w", err)
	}

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}
	src, err := s.ingest.Submit(r.Context(), domain.OriginUpload, title, path, 0)
	if err != nil {
		os.Remove(path)
		return domain.Source{}, err
	}
	return src, nil
}

func saveUpload(file io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		os.Remove(path)
		return err
	}
	return out.Close()
}

// getSource handles GET /v1/sources/{id}.
func (s *Server) getSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.sources.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sourceToResponse(src))
}

// listSources handles GET /v1/sources.
func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.sources.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	items := make([]sourceResponse, len(sources))
	for i, src := range sources {
		items[i] = sourceToResponse(src)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// refreshSource handles POST /v1/sources/{id}/refresh.
func (s *Server) refreshSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.ingest.Refresh(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.queue.Enqueue(id)
	w.WriteHeader(http.StatusAccepted)
}

// deleteSource handles DELETE /v1/sources/{id}.
func (s *Server) deleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.ingest.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// search handles POST /v1/search.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	tier, err := domain.ParseTier(req.Tier)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ans, err := s.answers.Answer(r.Context(), req.Query, tier)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answerToResponse(ans))
}

// recentQueries handles GET /v1/queries, newest first.
func (s *Server) recentQueries(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be in [1, 1000]")
			return
		}
		limit = n
	}

	records, err := s.queries.Recent(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	items := make([]queryRecordResponse, len(records))
	for i, rec := range records {
		items[i] = queryRecordToResponse(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// healthz handles GET /healthz.
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err, err.Error()) {
			return
		}
	}
	s.logger.Error("unhandled error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
