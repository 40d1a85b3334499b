// Package handlers provides HTTP handlers for the research engine API.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rias-ai/research-engine/internal/observability"
	"github.com/rias-ai/research-engine/internal/pipeline"
	"github.com/rias-ai/research-engine/internal/workspace"
)

// PipelineRunner launches a full session run. Satisfied by
// *pipeline.Orchestrator.
type PipelineRunner interface {
	Run(ctx context.Context, session *workspace.Session, inputPaths []string) *pipeline.SessionReport
}

// SessionHandler handles upload, status and download requests.
type SessionHandler struct {
	logger         *observability.Logger
	ws             *workspace.Manager
	runner         PipelineRunner
	uploadDir      string
	maxUploadBytes int64
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(logger *observability.Logger, ws *workspace.Manager, runner PipelineRunner, uploadDir string, maxUploadBytes int64) *SessionHandler {
	return &SessionHandler{
		logger:         logger,
		ws:             ws,
		runner:         runner,
		uploadDir:      uploadDir,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadAndProcess handles POST /upload-and-process. It stores the uploaded
// PDFs, starts the pipeline in the background and returns the session id
// immediately; clients poll /status for completion.
func (h *SessionHandler) UploadAndProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		h.writeError(w, http.StatusBadRequest, "no files uploaded", "")
		return
	}

	session, err := h.ws.CreateSession()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to create session", err.Error())
		return
	}
	logger := h.logger.WithSession(session.ID)

	stagingDir := filepath.Join(h.uploadDir, session.ID)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to create upload dir", err.Error())
		return
	}

	var inputPaths []string
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			h.writeError(w, http.StatusBadRequest, "only PDF uploads are accepted", name)
			return
		}

		dst := filepath.Join(stagingDir, name)
		if err := saveUpload(fh, dst); err != nil {
			h.writeError(w, http.StatusInternalServerError, "failed to store upload", err.Error())
			return
		}
		inputPaths = append(inputPaths, dst)
	}

	logger.Info().Int("files", len(inputPaths)).Msg("Upload accepted, starting pipeline")

	// The request context dies with the response; the run gets its own.
	go func() {
		report := h.runner.Run(context.Background(), session, inputPaths)
		logger.Info().Dur("duration", report.Duration).Msg("Background run finished")
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"session_id": session.ID,
		"files":      len(inputPaths),
	})
}

// Status handles GET /status/{sessionID}. Completion is defined by the
// merged artifact existing on disk, so it survives server restarts.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	session, ok := h.openSession(w, r)
	if !ok {
		return
	}

	status := "processing"
	if session.Complete() {
		status = "complete"
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"session_id": session.ID,
		"status":     status,
	})
}

// ResultsTree handles GET /results-tree/{sessionID}.
func (h *SessionHandler) ResultsTree(w http.ResponseWriter, r *http.Request) {
	session, ok := h.openSession(w, r)
	if !ok {
		return
	}

	tree, err := workspace.SessionTree(h.ws.Root(), session)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to build results tree", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"tree":       tree,
	})
}

// DownloadResult handles GET /download-result/{sessionID}: the merged
// comparison workbook.
func (h *SessionHandler) DownloadResult(w http.ResponseWriter, r *http.Request) {
	session, ok := h.openSession(w, r)
	if !ok {
		return
	}

	path := session.MergedArtifactPath()
	if _, err := os.Stat(path); err != nil {
		h.writeError(w, http.StatusNotFound, "merged result not available yet", "")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", workspace.MergedArtifactName))
	http.ServeFile(w, r, path)
}

// DownloadAll handles GET /download-all/{sessionID}: a zip of every output.
func (h *SessionHandler) DownloadAll(w http.ResponseWriter, r *http.Request) {
	session, ok := h.openSession(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", session.ID+"_results.zip"))
	if err := workspace.WriteZip(w, session); err != nil {
		// Headers are already gone; only log.
		h.logger.WithSession(session.ID).Error().Err(err).Msg("Streaming zip failed")
	}
}

func (h *SessionHandler) openSession(w http.ResponseWriter, r *http.Request) (*workspace.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	session, err := h.ws.OpenSession(id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "session not found", id)
		return nil, false
	}
	return session, true
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return err
	}
	return out.Sync()
}

func (h *SessionHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Encoding response failed")
	}
}

func (h *SessionHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	h.writeJSON(w, status, map[string]string{
		"error":  message,
		"detail": detail,
	})
}
