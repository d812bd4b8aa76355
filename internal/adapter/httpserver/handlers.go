package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/cv-screener/internal/config"
	"github.com/fairyhunter13/cv-screener/internal/domain"
	"github.com/fairyhunter13/cv-screener/internal/usecase"
	"github.com/fairyhunter13/cv-screener/pkg/textx"
	"github.com/gabriel-vasile/mimetype"
)

// maxBatchFiles bounds how many CV files a single batch may carry.
const maxBatchFiles = 200

// Server aggregates handler dependencies.
type Server struct {
	Cfg       config.Config
	Screen    usecase.ScreenService
	Batches   domain.BatchRepository
	Results   domain.ResultRepository
	Progress  domain.ProgressStore
	Extractor domain.TextExtractor

	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	TikaCheck  func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, screen usecase.ScreenService, batches domain.BatchRepository, results domain.ResultRepository, progress domain.ProgressStore, extractor domain.TextExtractor, dbCheck, redisCheck, tikaCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Screen: screen, Batches: batches, Results: results, Progress: progress, Extractor: extractor, DBCheck: dbCheck, RedisCheck: redisCheck, TikaCheck: tikaCheck}
}

// allowedExt enforces an allowlist for uploads: .txt, .pdf, .docx
func allowedExt(name string) bool {
	n := strings.ToLower(name)
	return strings.HasSuffix(n, ".txt") || strings.HasSuffix(n, ".pdf") || strings.HasSuffix(n, ".docx")
}

func allowedMIMEFor(m string, filename string) bool {
	m = strings.ToLower(m)
	// For .txt files accept any text/* since some detectors misclassify rich text
	if strings.HasSuffix(strings.ToLower(filename), ".txt") && strings.HasPrefix(m, "text/") {
		return true
	}
	if strings.HasPrefix(m, "text/plain") { // allow parameters such as charset
		return true
	}
	return m == "application/pdf" || m == "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// skippedFile reports one uploaded file excluded from screening and why.
type skippedFile struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// extractUploadedText extracts plain text from an uploaded CV.
// PDF and DOCX go through the external extractor (Apache Tika) via a
// temp file; plain text is sanitized directly.
func extractUploadedText(ctx context.Context, extractor domain.TextExtractor, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".pdf" || ext == ".docx" {
		if extractor == nil {
			return "", fmt.Errorf("%w: %s requires extractor", domain.ErrInvalidArgument, strings.TrimPrefix(ext, "."))
		}
		tmp, err := os.CreateTemp("", "upload-*")
		if err != nil {
			return "", err
		}
		defer func() { _ = os.Remove(tmp.Name()); _ = tmp.Close() }()
		if _, err := tmp.Write(data); err != nil {
			return "", err
		}
		return extractor.ExtractPath(ctx, filename, tmp.Name())
	}
	text := textx.CollapseWhitespace(textx.SanitizeText(string(data)))
	if len(text) < domain.MinCVTextLen {
		return "", fmt.Errorf("op=upload.extract: %d chars: %w", len(text), domain.ErrTooShort)
	}
	return text, nil
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// CreateBatchHandler accepts a multipart request with a job_description
// field and one or more cv file parts, extracts candidate texts, and
// enqueues a screening batch. Unusable files are skipped, not fatal;
// the response lists them with reasons.
func (s *Server) CreateBatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a := r.Header.Get("Accept"); a != "" && a != "*/*" && !strings.Contains(a, "application/json") {
			writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "not acceptable", Details: map[string]any{"accept": a}}})
			return
		}
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}
		maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "too large") {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "payload too large", Details: map[string]any{"max_mb": s.Cfg.MaxUploadMB}}})
				return
			}
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		var req struct {
			JobDescription string `validate:"required,max=8000"`
		}
		req.JobDescription = strings.TrimSpace(r.FormValue("job_description"))
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: job_description is required (max 8000 chars)", domain.ErrInvalidArgument), nil)
			return
		}

		files := r.MultipartForm.File["cv"]
		if len(files) == 0 {
			writeError(w, r, fmt.Errorf("%w: at least one cv file required", domain.ErrInvalidArgument), map[string]string{"field": "cv"})
			return
		}
		if len(files) > maxBatchFiles {
			writeError(w, r, fmt.Errorf("%w: too many files (max %d)", domain.ErrInvalidArgument, maxBatchFiles), nil)
			return
		}

		accepted, skipped := s.vetUploads(files)
		candidates, extractSkipped := s.extractAll(r.Context(), accepted)
		skipped = append(skipped, extractSkipped...)

		if len(candidates) == 0 {
			writeError(w, r, fmt.Errorf("%w: no usable cv files", domain.ErrInvalidArgument), skipped)
			return
		}

		concurrency := s.Cfg.ScreenConcurrency
		if v := r.FormValue("concurrency"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				concurrency = n
			}
		}
		enableSummaries := s.Cfg.EnableSummaries
		if v := r.FormValue("enable_summaries"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				enableSummaries = b
			}
		}

		id, err := s.Screen.Enqueue(r.Context(), req.JobDescription, candidates, concurrency, enableSummaries)
		if err != nil {
			writeError(w, r, fmt.Errorf("enqueue: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":         id,
			"status":     string(domain.BatchQueued),
			"candidates": len(candidates),
			"skipped":    skipped,
		})
	}
}

// vetUploads applies the duplicate, extension and content-type checks,
// returning the files worth extracting plus the skip ledger.
func (s *Server) vetUploads(files []*multipart.FileHeader) (map[string][]byte, []skippedFile) {
	accepted := make(map[string][]byte, len(files))
	skipped := make([]skippedFile, 0)
	seen := make(map[string]bool, len(files))
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		key := strings.ToLower(name)
		if seen[key] {
			skipped = append(skipped, skippedFile{File: name, Reason: "duplicate filename"})
			continue
		}
		seen[key] = true
		if !allowedExt(name) {
			skipped = append(skipped, skippedFile{File: name, Reason: "unsupported extension"})
			continue
		}
		data, err := readMultipartFile(fh)
		if err != nil {
			skipped = append(skipped, skippedFile{File: name, Reason: "unreadable upload"})
			continue
		}
		if m := mimetype.Detect(data); !allowedMIMEFor(m.String(), name) {
			skipped = append(skipped, skippedFile{File: name, Reason: "unsupported content type " + m.String()})
			continue
		}
		accepted[name] = data
	}
	return accepted, skipped
}

// extractAll fans text extraction out over a bounded worker pool sized
// by ExtractConcurrency. Files whose extracted text is too short are
// skipped with a reason instead of failing the batch.
func (s *Server) extractAll(ctx context.Context, accepted map[string][]byte) (map[string]string, []skippedFile) {
	type extracted struct {
		name, text string
		err        error
	}
	workers := s.Cfg.ExtractConcurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(accepted) {
		workers = len(accepted)
	}

	jobs := make(chan string)
	out := make(chan extracted)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				text, err := extractUploadedText(ctx, s.Extractor, name, accepted[name])
				out <- extracted{name: name, text: text, err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for name := range accepted {
			jobs <- name
		}
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	candidates := make(map[string]string, len(accepted))
	skipped := make([]skippedFile, 0)
	for e := range out {
		switch {
		case e.err == nil:
			candidates[e.name] = e.text
		case errors.Is(e.err, domain.ErrTooShort):
			slog.Warn("candidate skipped, text too short", slog.String("file", e.name))
			skipped = append(skipped, skippedFile{File: e.name, Reason: "extracted text too short"})
		default:
			skipped = append(skipped, skippedFile{File: e.name, Reason: "text extraction failed"})
		}
	}
	return candidates, skipped
}

// BatchStatusHandler returns a batch's lifecycle state, including live
// progress and a remaining-time estimate while it is processing.
func (s *Server) BatchStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		batch, err := s.Batches.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}

		resp := map[string]any{
			"id":         batch.ID,
			"status":     string(batch.Status),
			"total":      batch.Total,
			"completed":  batch.Completed,
			"failed":     batch.Failed,
			"created_at": batch.CreatedAt.UTC().Format(time.RFC3339),
		}
		if batch.Error != "" {
			resp["error"] = batch.Error
		}
		if batch.Status == domain.BatchProcessing && s.Progress != nil {
			if snap, err := s.Progress.Get(r.Context(), id); err == nil {
				progress := map[string]any{
					"completed":       snap.Completed,
					"total":           snap.Total,
					"elapsed_seconds": snap.ElapsedSeconds,
				}
				if snap.Completed > 0 && snap.Completed < snap.Total {
					perItem := snap.ElapsedSeconds / float64(snap.Completed)
					progress["eta_seconds"] = perItem * float64(snap.Total-snap.Completed)
				}
				resp["progress"] = progress
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// BatchResultsHandler returns the batch's candidate results ranked by
// fit score; ?top=N limits the list.
func (s *Server) BatchResultsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		batch, err := s.Batches.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		results, err := s.Results.ListByBatch(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}

		top := 0
		if v := r.URL.Query().Get("top"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, r, fmt.Errorf("%w: top must be a non-negative integer", domain.ErrInvalidArgument), nil)
				return
			}
			top = n
		}
		ranked := usecase.TopN(results, top)
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      batch.ID,
			"status":  string(batch.Status),
			"count":   len(ranked),
			"results": ranked,
		})
	}
}

// BatchStatsHandler returns the recommendation bucket counts for a batch.
func (s *Server) BatchStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		batch, err := s.Batches.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		results, err := s.Results.ListByBatch(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     batch.ID,
			"status": string(batch.Status),
			"stats":  usecase.Stats(results),
		})
	}
}

// ReadyzHandler probes DB, Redis and Tika.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 3)
		probe := func(name string, fn func(context.Context) error) {
			if fn == nil {
				return
			}
			if err := fn(ctx); err != nil {
				checks = append(checks, check{Name: name, OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: name, OK: true})
			}
		}
		probe("db", s.DBCheck)
		probe("redis", s.RedisCheck)
		probe("tika", s.TikaCheck)

		st := http.StatusOK
		for _, c := range checks {
			if !c.OK {
				st = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
