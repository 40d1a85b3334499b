// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/rias-ai/research-engine/cmd/research-engine-api/handlers"
	"github.com/rias-ai/research-engine/cmd/research-engine-api/middleware"
	"github.com/rias-ai/research-engine/internal/config"
	"github.com/rias-ai/research-engine/internal/llm"
	"github.com/rias-ai/research-engine/internal/merge"
	"github.com/rias-ai/research-engine/internal/observability"
	"github.com/rias-ai/research-engine/internal/pipeline"
	"github.com/rias-ai/research-engine/internal/stages"
	"github.com/rias-ai/research-engine/internal/workspace"
)

// NewRouter creates the API router with the full pipeline wired behind it.
func NewRouter(logger *observability.Logger, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"research-engine"}`))
	})

	// Pipeline dependencies
	completer := llm.NewClient(llm.Options{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
	})

	registry := stages.DefaultRegistry(cfg, completer)
	ws := workspace.NewManager(cfg.Workspace.ResultsDir, registry.StageDirs(), logger)
	scheduler := pipeline.NewScheduler(registry, pipeline.NewRunner(cfg.Pipeline.StageTimeout), stages.Phases(), logger)
	merger := merge.NewMerger(cfg.Workspace.TemplatePath, logger)
	orchestrator := pipeline.NewOrchestrator(ws, scheduler, merger, logger)

	sessions := handlers.NewSessionHandler(logger, ws, orchestrator, cfg.Workspace.UploadDir, cfg.Server.MaxUploadBytes)

	r.Post("/upload-and-process", sessions.UploadAndProcess)
	r.Get("/status/{sessionID}", sessions.Status)
	r.Get("/results-tree/{sessionID}", sessions.ResultsTree)
	r.Get("/download-result/{sessionID}", sessions.DownloadResult)
	r.Get("/download-all/{sessionID}", sessions.DownloadAll)

	// Raw artifact access for the results viewer.
	fileServer := http.StripPrefix("/static-results/", http.FileServer(http.Dir(cfg.Workspace.ResultsDir)))
	r.Get("/static-results/*", fileServer.ServeHTTP)

	return r
}
