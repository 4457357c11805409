package api

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboco-io/chaptermd/internal/config"
	"github.com/roboco-io/chaptermd/internal/output"
	"github.com/roboco-io/chaptermd/internal/pipeline"
	"github.com/roboco-io/chaptermd/internal/service"
	"github.com/roboco-io/chaptermd/internal/testutil"
)

func newTestServer(t *testing.T, modify func(*config.Config)) *Server {
	t.Helper()
	for _, key := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY", "OLLAMA_HOST"} {
		t.Setenv(key, "")
	}
	cfg := config.DefaultConfig()
	if modify != nil {
		modify(cfg)
	}
	svc, err := service.New(cfg, nil)
	require.NoError(t, err)
	return NewServer(svc, nil)
}

// multipartRequest builds a POST with the file at path and extra fields.
func multipartRequest(t *testing.T, target, path string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if path != "" {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		fw, err := mw.CreateFormFile("file", filepath.Base(path))
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProviders(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/providers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Providers []providerStatus `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Providers, 4)

	byName := map[string]providerStatus{}
	for _, p := range resp.Providers {
		byName[p.Name] = p
	}
	assert.False(t, byName["anthropic"].Ready)
	assert.True(t, byName["anthropic"].Default)
	assert.True(t, byName["ollama"].Ready)
}

func TestConvert(t *testing.T) {
	srv := newTestServer(t, nil)
	path := testutil.GuideDOCX(t, t.TempDir())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/convert", path, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var m output.Manifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 3, m.ChapterCount)
	assert.Equal(t, "guide.docx", m.Document.Source)
	assert.Equal(t, 1, m.Parameters.SplitLevel)
}

func TestConvert_SplitLevel(t *testing.T) {
	srv := newTestServer(t, nil)
	path := testutil.GuideDOCX(t, t.TempDir())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/convert", path, map[string]string{"split_level": "2"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var m output.Manifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 2, m.Parameters.SplitLevel)
	assert.Equal(t, 4, m.ChapterCount)
}

func TestConvert_Zip(t *testing.T) {
	srv := newTestServer(t, nil)
	path := testutil.GuideDOCX(t, t.TempDir())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/convert", path, map[string]string{"archive": "zip"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "guide.zip")

	data, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.True(t, names[output.IndexFile])
	assert.True(t, names[output.ManifestFile])
}

func TestConvert_MissingFile(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/convert", "", map[string]string{"split_level": "2"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file is required")
}

func TestConvert_UnsupportedExtension(t *testing.T) {
	srv := newTestServer(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/convert", path, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file type: .txt (supported: docx, pdf)")
}

func TestConvert_InvalidSplitLevel(t *testing.T) {
	srv := newTestServer(t, nil)
	path := testutil.GuideDOCX(t, t.TempDir())

	for _, v := range []string{"two", "9"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, multipartRequest(t, "/api/convert", path, map[string]string{"split_level": v}))
		assert.Equal(t, http.StatusBadRequest, rec.Code, v)
	}
}

func TestConvert_CorruptDocument(t *testing.T) {
	srv := newTestServer(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04 not really a zip"), 0o644))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/convert", path, nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, pipeline.StageInput, body["stage"])
	assert.Equal(t, pipeline.CodeParseFailed, body["code"])
}

func TestConvert_TooLarge(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) { c.Server.MaxUploadMB = 1 })
	dir := t.TempDir()
	path := filepath.Join(dir, "big.pdf")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 2<<20), 0o644))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/convert", path, nil))

	assert.Contains(t, []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}, rec.Code)
}

func TestInspect(t *testing.T) {
	srv := newTestServer(t, nil)
	path := testutil.GuideDOCX(t, t.TempDir())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/inspect", path, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp inspectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Chapters, 3)
	assert.Equal(t, "Introduction", resp.Chapters[0].Title)
	assert.Equal(t, "setup", resp.Chapters[1].Slug)
	assert.NotNil(t, resp.Diagnostics)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"book.docx":         "book.docx",
		"../../etc/passwd":  "passwd",
		`dir\file.pdf`:      "dir_file.pdf",
		"":                  "unnamed",
		"report..final.pdf": "report_final.pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
