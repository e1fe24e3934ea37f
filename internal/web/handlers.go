package web

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/JonMunkholm/moodlelogsmart/internal/detect"
	"github.com/JonMunkholm/moodlelogsmart/internal/web/templates"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

// formulaPrefixes start header cells that spreadsheets would evaluate.
const formulaPrefixes = "=+-@\t\r"

// UploadResponse is returned when an upload is accepted.
type UploadResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	ActiveJobs int       `json:"active_jobs"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := templates.UploadPage(s.cfg.Upload.MaxFileSize>>20, s.cfg.Security.RequireAPIKey)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(r.Context(), w); err != nil {
		requestLogger(r).Error("render upload page", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		ActiveJobs: s.manager.Active(),
	})
}

// handleUpload validates a multipart CSV upload and starts a job for it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respondError(w, r, fmt.Errorf("file too large: limit is %d MB", maxSize>>20), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		respondError(w, r, errNotCSV, http.StatusBadRequest)
		return
	}

	if err := validateHeader(file, s.cfg.Upload.MaxColumns); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	owner := core.OwnerFromContext(r.Context())
	job, err := s.manager.Submit(r.Context(), owner, filepath.Base(header.Filename), file)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	requestLogger(r).Info("upload accepted",
		"job_id", job.ID,
		"file", job.FileName,
		"bytes", header.Size,
	)
	writeJSON(w, http.StatusOK, UploadResponse{
		JobID:   job.ID.String(),
		Status:  string(job.Status),
		Message: "File uploaded, processing started",
	})
}

// validateHeader rejects files whose header row is too wide or contains
// cells a spreadsheet would evaluate as formulas.
func validateHeader(r io.Reader, maxColumns int) error {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read header: %w", err)
	}
	line = core.TrimBOM(strings.TrimRight(line, "\r\n"))
	if strings.TrimSpace(line) == "" {
		return core.Errorf(core.KindInvalidInput, "file is empty")
	}

	delim, err := detect.DetectDelimiter(line)
	if err != nil {
		delim = ','
	}
	cells, err := detect.NewCSVReader(strings.NewReader(line), delim).Read()
	if err != nil {
		return core.WrapError(core.KindStructureInvalid, "header", err)
	}

	if len(cells) > maxColumns {
		return fmt.Errorf("too many columns (%d), max %d", len(cells), maxColumns)
	}
	for _, c := range cells {
		if c != "" && strings.ContainsRune(formulaPrefixes, rune(c[0])) {
			return fmt.Errorf("unsafe formula characters in header cell %q", c)
		}
	}
	return nil
}

// parseJobID reads and validates the {jobID} path parameter.
func parseJobID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		return uuid.Nil, errInvalidJobID
	}
	return id, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	job, err := s.manager.Status(id, core.OwnerFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	path, err := s.manager.Archive(id, core.OwnerFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}
