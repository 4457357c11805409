package api

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/roboco-io/chaptermd/internal/diag"
	"github.com/roboco-io/chaptermd/internal/ir"
	"github.com/roboco-io/chaptermd/internal/parser"
	"github.com/roboco-io/chaptermd/internal/pipeline"
	"github.com/roboco-io/chaptermd/internal/service"
)

const defaultMaxUpload = 64 << 20

// upload is a document received in a multipart request and stored in a
// temporary directory.
type upload struct {
	dir  string
	path string
	svc  *service.Service
}

func (u *upload) cleanup() {
	os.RemoveAll(u.dir)
}

// receive stores the "file" part of the request and builds a service for
// the per-request options. It writes the error response itself and
// returns nil on failure.
func (s *Server) receive(w http.ResponseWriter, r *http.Request) *upload {
	maxBytes := int64(s.svc.Config().Server.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = defaultMaxUpload
	}
	// extra 1MB for form overhead
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return nil
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return nil
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if parser.DetectFormat(filename) == parser.FormatUnknown {
		jsonError(w, fmt.Sprintf("unsupported file type: %s (supported: %s)", filepath.Ext(filename), supportedFormats()), http.StatusBadRequest)
		return nil
	}

	svc, err := s.requestService(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	dir, err := os.MkdirTemp("", "chaptermd-*")
	if err != nil {
		jsonError(w, "failed to create work directory", http.StatusInternalServerError)
		return nil
	}
	u := &upload{dir: dir, path: filepath.Join(dir, filename), svc: svc}

	out, err := os.Create(u.path)
	if err != nil {
		u.cleanup()
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return nil
	}
	n, err := io.Copy(out, io.LimitReader(file, maxBytes+1))
	out.Close()
	if err != nil {
		u.cleanup()
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return nil
	}
	if n > maxBytes {
		u.cleanup()
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", maxBytes), http.StatusRequestEntityTooLarge)
		return nil
	}
	return u
}

// requestService applies the optional form overrides to a copy of the
// server configuration.
func (s *Server) requestService(r *http.Request) (*service.Service, error) {
	cfg := *s.svc.Config()
	if v := r.FormValue("split_level"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid split_level: %s", v)
		}
		cfg.Output.SplitLevel = n
	}
	if v := r.FormValue("dry_run"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid dry_run: %s", v)
		}
		cfg.Render.DryRun = b
	}
	if v := r.FormValue("llm"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid llm: %s", v)
		}
		cfg.Render.UseLLM = b
	}
	if v := r.FormValue("locale"); v != "" {
		cfg.Output.Locale = v
	}
	return service.New(&cfg, s.log)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	u := s.receive(w, r)
	if u == nil {
		return
	}
	defer u.cleanup()

	root := filepath.Join(u.dir, "out")
	report, err := u.svc.Convert(r.Context(), u.path, root)
	if err != nil {
		s.runError(w, err)
		return
	}

	if r.FormValue("archive") == "zip" {
		name := strings.TrimSuffix(filepath.Base(u.path), filepath.Ext(u.path)) + ".zip"
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		if err := writeZip(w, root); err != nil {
			s.log.Error("archive failed", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, report.Manifest)
}

type inspectResponse struct {
	Document    ir.Metadata               `json:"document"`
	Chapters    []pipeline.PlannedChapter `json:"chapters"`
	Diagnostics []diag.Entry              `json:"diagnostics"`
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	u := s.receive(w, r)
	if u == nil {
		return
	}
	defer u.cleanup()

	doc, planned, diags, err := u.svc.Plan(r.Context(), u.path)
	if err != nil {
		s.runError(w, err)
		return
	}
	if diags == nil {
		diags = []diag.Entry{}
	}
	writeJSON(w, http.StatusOK, inspectResponse{Document: doc.Metadata, Chapters: planned, Diagnostics: diags})
}

// runError maps a failed run to a status: rejected input is 422, anything
// else 500.
func (s *Server) runError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if goerrors.IsCategory(pipeline.Categorize(err), goerrors.CategoryValidation) {
		status = http.StatusUnprocessableEntity
	}
	body := map[string]string{"error": err.Error()}
	var se *pipeline.StageError
	if errors.As(err, &se) {
		body["stage"] = se.Stage
		body["code"] = se.Code
	}
	if status == http.StatusInternalServerError {
		s.log.Error("conversion failed", "error", err)
	}
	writeJSON(w, status, body)
}

// writeZip streams the files below root as a zip archive.
func writeZip(w io.Writer, root string) error {
	zw := zip.NewWriter(w)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		f, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(f, src)
		return err
	})
	if err != nil {
		return err
	}
	return zw.Close()
}

func supportedFormats() string {
	formats := parser.Registered()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.String()
	}
	return strings.Join(names, ", ")
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
