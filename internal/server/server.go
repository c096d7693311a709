// Package server exposes the merge planner over HTTP.
package server

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
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	logpkg "github.com/local/pdfmerge/internal/logger"
	"github.com/local/pdfmerge/internal/merger"
	"github.com/local/pdfmerge/internal/metrics"
	"github.com/local/pdfmerge/internal/source"
	"github.com/local/pdfmerge/internal/statuscheck"
	"github.com/local/pdfmerge/internal/store"
	"github.com/local/pdfmerge/internal/toolkit"
)

// ResultStore keeps string-mode results for later download.
type ResultStore interface {
	Save(ctx context.Context, id string, pdf []byte, meta store.Meta) error
	Get(ctx context.Context, id string) (store.Result, error)
	Delete(ctx context.Context, id string) error
}

type Dependencies struct {
	Toolkit  toolkit.Toolkit
	Resolver *source.Resolver
	Detector merger.Detector

	// Results may be nil; string mode then answers 503.
	Results ResultStore
	// DefaultBucket turns scheme-less url fields into s3://DefaultBucket/key.
	DefaultBucket string
	// Status backs /status; nil reports ready.
	Status *statuscheck.Checker

	TempDir        string
	Cleanup        bool
	MaxUploadBytes int64
	// MaxPages bounds each page selector; 0 uses the parser default.
	MaxPages int
}

type Server struct {
	deps Dependencies
}

func New(deps Dependencies) *Server {
	if deps.Resolver == nil {
		deps.Resolver = &source.Resolver{}
	}
	if deps.TempDir == "" {
		deps.TempDir = os.TempDir()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 64 << 20
	}
	return &Server{deps: deps}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/merge", s.handleMerge)
	mux.HandleFunc("/plan", s.handlePlan)
	mux.HandleFunc("/result/", s.handleResult)
	mux.Handle("/metrics", metrics.Handler())
}

type mergeResp struct {
	Status  string `json:"status"`
	MergeID string `json:"merge_id"`
	Pages   int    `json:"pages"`
}

type planResp struct {
	Pages int           `json:"pages"`
	Steps []merger.Step `json:"steps"`
}

// request is a planner built from one multipart form, with the display
// names of uploaded parts.
type request struct {
	planner *merger.Planner
	names   map[string]string
	total   int
}

func (q *request) name(locator string) string {
	if n, ok := q.names[locator]; ok {
		return n
	}
	return locator
}

func (q *request) sources() []string {
	var out []string
	for _, e := range q.planner.Entries() {
		out = append(out, q.name(e.Path))
	}
	return out
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q, err := s.buildRequest(w, r)
	if q != nil {
		defer s.discard(q)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	mode := merger.ParseMode(r.FormValue("mode"))
	if mode == merger.ModeFile {
		writeError(w, http.StatusBadRequest, errors.New("file mode is not available over http"))
		return
	}
	if mode == merger.ModeString && s.deps.Results == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("result store not configured"))
		return
	}

	filename := filepath.Base(r.FormValue("filename"))
	if filename == "." || filename == "/" {
		filename = ""
	}

	if mode != merger.ModeString {
		if _, err := q.planner.Merge(r.Context(), merger.Output{Mode: mode, Target: filename, Writer: w}); err != nil {
			writeError(w, statusFor(err), err)
		}
		return
	}

	srcs := q.sources()
	data, err := q.planner.Merge(r.Context(), merger.Output{Mode: merger.ModeString})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	id := uuid.NewString()
	if err := s.deps.Results.Save(r.Context(), id, data, store.Meta{Pages: q.total, Sources: srcs}); err != nil {
		log.Error().Err(err).Str(logpkg.FieldMergeID, id).Msg("failed to store merge result")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	log.Info().Str(logpkg.FieldMergeID, id).Int("pages", q.total).Int("bytes", len(data)).Msg("merge result stored")
	writeJSON(w, http.StatusCreated, mergeResp{Status: "ok", MergeID: id, Pages: q.total})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q, err := s.buildRequest(w, r)
	if q != nil {
		defer s.discard(q)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	plan, err := q.planner.Plan(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	for i := range plan {
		plan[i].Source = q.name(plan[i].Source)
	}
	writeJSON(w, http.StatusOK, planResp{Pages: len(plan), Steps: plan})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Status == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
		return
	}
	sum := s.deps.Status.Summary(r.Context())
	code := http.StatusOK
	if !sum.Ready() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"ready": sum.Ready(), "checks": sum})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/result/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if s.deps.Results == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("result store not configured"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		res, err := s.deps.Results.Get(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "merge_" + id + ".pdf"}))
		_, _ = w.Write(res.PDF)
	case http.MethodDelete:
		if err := s.deps.Results.Delete(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// buildRequest parses the multipart form and adds every part to a new planner.
// Uploaded files come first, in form order, followed by url fields.
func (s *Server) buildRequest(w http.ResponseWriter, r *http.Request) (*request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, err
		}
		return nil, &badRequestError{msg: "invalid multipart form", err: err}
	}

	q := &request{names: map[string]string{}}
	q.planner = merger.New(s.deps.Toolkit,
		merger.WithCleanup(s.deps.Cleanup),
		merger.WithTempDir(s.deps.TempDir),
		merger.WithResolver(s.deps.Resolver),
		merger.WithDetector(s.deps.Detector),
		merger.WithMaxPages(s.deps.MaxPages),
		merger.WithProgress(func(done, total int) { q.total = total }),
	)

	form := r.MultipartForm
	selectors := form.Value["pages"]
	for i, fh := range form.File["file"] {
		f, err := fh.Open()
		if err != nil {
			return q, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return q, err
		}
		if _, err := q.planner.AddRawBytes(r.Context(), data, at(selectors, i)); err != nil {
			return q, err
		}
		entries := q.planner.Entries()
		q.names[entries[len(entries)-1].Path] = fh.Filename
	}

	urlSelectors := form.Value["url_pages"]
	for i, u := range form.Value["url"] {
		if source.KindOf(u) == source.KindFile {
			if s.deps.DefaultBucket == "" || strings.HasPrefix(u, "file://") {
				return q, &badRequestError{msg: fmt.Sprintf("url %q must be http(s):// or s3://", u)}
			}
			u = fmt.Sprintf("s3://%s/%s", s.deps.DefaultBucket, strings.TrimLeft(u, "/"))
		}
		if _, err := q.planner.AddSource(r.Context(), u, at(urlSelectors, i)); err != nil {
			return q, err
		}
	}
	if q.planner.Len() > 0 {
		log.Debug().Int("sources", q.planner.Len()).Msg("merge request parsed")
	}
	return q, nil
}

// discard removes temp files the planner still owns once a request ends.
func (s *Server) discard(q *request) {
	if !s.deps.Cleanup {
		return
	}
	for _, p := range q.planner.TempFiles() {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("file", p).Msg("failed to remove request temp file")
		}
	}
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *badRequestError) Unwrap() error { return e.err }

func statusFor(err error) int {
	var (
		parseErr  *merger.ParseError
		orderErr  *merger.RangeOrderError
		unsupErr  *merger.UnsupportedSourceError
		badReq    *badRequestError
		notFound  *merger.SourceNotFoundError
		openErr   *merger.OpenError
		importErr *merger.PageImportError
		tooLarge  *http.MaxBytesError
	)
	switch {
	case errors.Is(err, merger.ErrNoSources),
		errors.As(err, &parseErr),
		errors.As(err, &orderErr),
		errors.As(err, &unsupErr),
		errors.As(err, &badReq):
		return http.StatusBadRequest
	case errors.Is(err, source.ErrRemoteDenied):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &openErr), errors.As(err, &importErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &tooLarge), errors.Is(err, source.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", code).Msg("request failed")
	} else {
		log.Warn().Err(err).Int("status", code).Msg("request rejected")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
