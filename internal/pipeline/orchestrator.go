package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rias-ai/research-engine/internal/observability"
	"github.com/rias-ai/research-engine/internal/workspace"
)

// Merger is the cross-document merge stage. It recomputes its inputs by
// scanning the session tree, so it also works standalone outside a full run.
type Merger interface {
	Merge(ctx context.Context, sessionRoot string) Result
}

// Orchestrator is the top-level controller for one session run: it prepares
// each document's workspace, drives its schedule, and triggers the merge
// exactly once after every document has finished.
type Orchestrator struct {
	ws        *workspace.Manager
	scheduler *Scheduler
	merger    Merger
	logger    *observability.Logger

	// Progress, when set, is called after each document reaches a terminal
	// state. Used by the CLI for its progress bar.
	Progress func(completed, total int)
}

// SessionReport is the final aggregate of a run.
type SessionReport struct {
	SessionID   string                    `json:"session_id"`
	Documents   map[string]DocumentResult `json:"documents"`
	Merge       Result                    `json:"merge"`
	StartedAt   time.Time                 `json:"started_at"`
	CompletedAt time.Time                 `json:"completed_at"`
	Duration    time.Duration             `json:"duration"`
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(ws *workspace.Manager, scheduler *Scheduler, merger Merger, logger *observability.Logger) *Orchestrator {
	return &Orchestrator{
		ws:        ws,
		scheduler: scheduler,
		merger:    merger,
		logger:    logger,
	}
}

// Run processes every input document in order and then merges. A document
// whose workspace cannot be prepared, or whose every stage fails, still
// yields a result entry and never prevents other documents or the merge.
func (o *Orchestrator) Run(ctx context.Context, session *workspace.Session, inputPaths []string) *SessionReport {
	logger := o.logger.WithSession(session.ID)
	started := time.Now()

	logger.Info().Int("documents", len(inputPaths)).Msg("Pipeline run starting")

	documents := make(map[string]DocumentResult, len(inputPaths))
	for _, path := range inputPaths {
		stem := workspace.Stem(path)
		if _, dup := documents[stem]; dup {
			// Same base name means the same workspace directories; running it
			// would clobber the first document's outputs.
			logger.Warn().Str("document", stem).Str("path", path).Msg("Duplicate document name, skipping")
			documents[dedupeKey(documents, stem)] = DocumentResult{
				Document: stem,
				Stages:   map[string]Result{},
				Error:    fmt.Sprintf("duplicate document name %q: an earlier input already uses it", stem),
			}
		} else if doc, err := o.ws.PrepareDocument(session, path); err != nil {
			logger.Error().Err(err).Str("document", stem).Msg("Workspace preparation failed")
			documents[stem] = DocumentResult{
				Document: stem,
				Stages:   map[string]Result{},
				Error:    err.Error(),
			}
		} else {
			documents[doc.Stem] = o.scheduler.Run(ctx, doc)
		}

		if o.Progress != nil {
			o.Progress(len(documents), len(inputPaths))
		}
	}

	// Every document has reached a terminal state; merge runs exactly once.
	mergeResult := o.merger.Merge(ctx, session.Root)
	if mergeResult.Succeeded() {
		logger.Info().Str("summary", mergeResult.Summary).Msg("Merge complete")
	} else {
		logger.Warn().Str("error", mergeResult.Error).Msg("Merge failed")
	}

	completed := time.Now()
	report := &SessionReport{
		SessionID:   session.ID,
		Documents:   documents,
		Merge:       mergeResult,
		StartedAt:   started,
		CompletedAt: completed,
		Duration:    completed.Sub(started),
	}

	logger.Info().
		Int("documents", len(documents)).
		Dur("duration", report.Duration).
		Msg("Pipeline run finished")

	return report
}

// dedupeKey returns a report key not yet in use for a colliding stem.
func dedupeKey(documents map[string]DocumentResult, stem string) string {
	for i := 2; ; i++ {
		key := fmt.Sprintf("%s_%d", stem, i)
		if _, taken := documents[key]; !taken {
			return key
		}
	}
}
