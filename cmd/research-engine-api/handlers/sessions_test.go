package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rias-ai/research-engine/internal/observability"
	"github.com/rias-ai/research-engine/internal/pipeline"
	"github.com/rias-ai/research-engine/internal/workspace"
)

// fakeRunner records run invocations and signals completion.
type fakeRunner struct {
	inputs chan []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{inputs: make(chan []string, 1)}
}

func (f *fakeRunner) Run(ctx context.Context, session *workspace.Session, inputPaths []string) *pipeline.SessionReport {
	f.inputs <- inputPaths
	return &pipeline.SessionReport{SessionID: session.ID}
}

func fixture(t *testing.T) (*workspace.Manager, *fakeRunner, http.Handler) {
	t.Helper()

	ws := workspace.NewManager(t.TempDir(), nil, observability.Nop())
	runner := newFakeRunner()
	h := NewSessionHandler(observability.Nop(), ws, runner, t.TempDir(), 10<<20)

	r := chi.NewRouter()
	r.Post("/upload-and-process", h.UploadAndProcess)
	r.Get("/status/{sessionID}", h.Status)
	r.Get("/results-tree/{sessionID}", h.ResultsTree)
	r.Get("/download-result/{sessionID}", h.DownloadResult)
	r.Get("/download-all/{sessionID}", h.DownloadAll)
	return ws, runner, r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestStatus_CompleteFollowsMergedArtifact(t *testing.T) {
	ws, _, router := fixture(t)
	session, err := ws.CreateSession()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/"+session.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "processing", decodeBody(t, rec)["status"])

	require.NoError(t, os.WriteFile(session.MergedArtifactPath(), []byte("wb"), 0o644))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/"+session.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "complete", decodeBody(t, rec)["status"])
}

func TestStatus_UnknownSessionIs404(t *testing.T) {
	_, _, router := fixture(t)

	for _, id := range []string{"deadbeef", "..%2F..%2Fetc", "no-dashes-allowed"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, "id %s", id)
	}
}

func TestDownloadResult_404UntilMerged(t *testing.T) {
	ws, _, router := fixture(t)
	session, err := ws.CreateSession()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download-result/"+session.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, os.WriteFile(session.MergedArtifactPath(), []byte("workbook-bytes"), 0o644))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download-result/"+session.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), workspace.MergedArtifactName)
	assert.Equal(t, "workbook-bytes", rec.Body.String())
}

func TestDownloadAll_StreamsZip(t *testing.T) {
	ws, _, router := fixture(t)
	session, err := ws.CreateSession()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(session.MergedArtifactPath(), []byte("wb"), 0o644))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download-all/"+session.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())
}

func TestUploadAndProcess_AcceptsAndStartsRun(t *testing.T) {
	_, runner, router := fixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "paper.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-and-process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decodeBody(t, rec)
	id, _ := body["session_id"].(string)
	assert.True(t, workspace.ValidSessionID(id))

	select {
	case inputs := <-runner.inputs:
		require.Len(t, inputs, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("background run never started")
	}
}

func TestUploadAndProcess_RejectsNonPDF(t *testing.T) {
	_, _, router := fixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-and-process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadAndProcess_RejectsEmptyForm(t *testing.T) {
	_, _, router := fixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-and-process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
