package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/brunobiangulo/litassist"
	"github.com/brunobiangulo/litassist/export"
)

// responseTimestamp is the layout of the analyze response timestamp.
const responseTimestamp = "20060102_150405"

const (
	msgNoFile        = "No file provided"
	msgNoFileName    = "No file selected"
	msgInvalidType   = "Invalid file type. Only PDF files are allowed."
	msgNoContent     = "No content provided"
	msgInvalidFormat = "Invalid format"
	msgRateLimited   = "Too many requests, please try again later"
	msgInternal      = "Internal server error"
)

type handler struct {
	assistant litassist.Assistant
	cfg       litassist.Config
	limiter   *rate.Limiter // nil disables rate limiting
}

func newHandler(a litassist.Assistant, cfg litassist.Config) *handler {
	h := &handler{assistant: a, cfg: cfg}
	if cfg.RateLimitPerMinute > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60), cfg.RateLimitPerMinute)
	}
	return h
}

// GET /api/health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"openai_configured": h.assistant.Configured(),
		"provider":          h.assistant.Provider(),
		"model":             h.assistant.Model(),
	})
}

// POST /api/analyze
// Accepts a multipart upload with a single PDF in the "file" field.
func (h *handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, msgRateLimited)
		return
	}

	limit := h.cfg.MaxUploadBytes
	if r.ContentLength > limit {
		h.tooLarge(w, r.ContentLength)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.tooLarge(w, -1)
			return
		}
		writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		// A part named "file" without a filename is parsed as a plain value.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			writeError(w, http.StatusBadRequest, msgNoFileName)
			return
		}
		writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, msgNoFileName)
		return
	}

	name := filepath.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	if strings.ToLower(filepath.Ext(name)) != ".pdf" {
		writeError(w, http.StatusBadRequest, msgInvalidType)
		return
	}

	path, err := h.saveUpload(file)
	if err != nil {
		slog.Error("saving upload", "filename", name, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	defer os.Remove(path)

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		slog.Error("sniffing upload", "filename", name, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if !mtype.Is("application/pdf") {
		slog.Warn("upload is not a PDF", "filename", name, "detected", mtype.String())
		writeError(w, http.StatusBadRequest, msgInvalidType)
		return
	}

	res, err := h.assistant.Analyze(r.Context(), path, litassist.WithFilename(name))
	if err != nil {
		status, msg := analyzeError(err)
		slog.Error("analysis failed", "filename", name, "status", status, "error", err)
		writeError(w, status, msg)
		return
	}

	body := map[string]any{
		"success":   true,
		"markdown":  res.Markdown,
		"provider":  res.Provider,
		"model":     res.Model,
		"timestamp": res.Timestamp.Format(responseTimestamp),
		"parsed":    res.Parsed,
		"reused":    res.Reused,
	}
	if res.ID != 0 {
		body["id"] = res.ID
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) tooLarge(w http.ResponseWriter, size int64) {
	limit := h.cfg.MaxUploadBytes
	if size > 0 {
		slog.Warn("upload rejected", "size", humanize.IBytes(uint64(size)), "limit", humanize.IBytes(uint64(limit)))
	} else {
		slog.Warn("upload rejected", "limit", humanize.IBytes(uint64(limit)))
	}
	writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File size exceeds %dMB limit", limit>>20))
}

// saveUpload writes the upload under a unique name in the upload dir.
func (h *handler) saveUpload(src io.Reader) (string, error) {
	dir := h.cfg.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, uuid.NewString()+".pdf")
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// analyzeError maps an analysis failure to a status and a message that is
// safe to show to the user.
func analyzeError(err error) (int, string) {
	switch {
	case errors.Is(err, litassist.ErrNoText):
		return http.StatusBadRequest, "No text could be extracted from the PDF"
	case errors.Is(err, litassist.ErrExtractionFailed):
		return http.StatusBadRequest, "Failed to read the PDF"
	case errors.Is(err, litassist.ErrUnsupportedFormat):
		return http.StatusBadRequest, msgInvalidType
	case errors.Is(err, litassist.ErrLLMUnavailable):
		return http.StatusInternalServerError, "Language model provider is not configured"
	case errors.Is(err, litassist.ErrLLMRequestFailed):
		return http.StatusInternalServerError, "Language model request failed"
	}
	return http.StatusInternalServerError, msgInternal
}

// POST /api/download/{format}
// Body: {"content": "...markdown...", "filename": "analysis"}
func (h *handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  string `json:"content"`
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, h.cfg.MaxUploadBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, msgNoContent)
		return
	}

	out, err := h.assistant.Export(r.Context(), req.Content, chi.URLParam(r, "format"))
	if errors.Is(err, litassist.ErrUnknownFormat) {
		writeError(w, http.StatusBadRequest, msgInvalidFormat)
		return
	}
	if err != nil {
		slog.Error("export failed", "format", chi.URLParam(r, "format"), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate document")
		return
	}

	filename := export.Filename(req.Filename, out.Extension)
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(out.Data)
}

// GET /api/analyses?limit=N
func (h *handler) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	list, err := h.assistant.History(r.Context(), limit)
	if err != nil {
		h.historyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"analyses": list,
		"count":    len(list),
	})
}

// GET /api/analyses/{id}
func (h *handler) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := analysisID(w, r)
	if !ok {
		return
	}
	a, err := h.assistant.Get(r.Context(), id)
	if err != nil {
		h.historyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DELETE /api/analyses/{id}
func (h *handler) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := analysisID(w, r)
	if !ok {
		return
	}
	if err := h.assistant.Delete(r.Context(), id); err != nil {
		h.historyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func analysisID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid analysis id")
		return 0, false
	}
	return id, true
}

func (h *handler) historyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, litassist.ErrAnalysisNotFound):
		writeError(w, http.StatusNotFound, "Analysis not found")
	case errors.Is(err, litassist.ErrHistoryDisabled):
		writeError(w, http.StatusNotFound, "Analysis history is disabled")
	default:
		slog.Error("history request failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
