package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rias-ai/research-engine/internal/observability"
	"github.com/rias-ai/research-engine/internal/workspace"
)

// Scheduler drives the stage phases for one document. Phases execute in
// declaration order; a later phase never starts before every stage of the
// prior phase has a terminal result.
type Scheduler struct {
	registry *Registry
	runner   *Runner
	phases   []Phase
	logger   *observability.Logger
}

// DocumentResult is a document's consolidated outcome: one Result per stage
// code that was scheduled.
type DocumentResult struct {
	Document string            `json:"document"`
	Stages   map[string]Result `json:"stages"`
	// Error is set when the document's workspace could not be prepared and
	// no stage ran at all.
	Error string `json:"error,omitempty"`
}

// NewScheduler creates a scheduler over the given registry and phase plan.
func NewScheduler(registry *Registry, runner *Runner, phases []Phase, logger *observability.Logger) *Scheduler {
	return &Scheduler{
		registry: registry,
		runner:   runner,
		phases:   phases,
		logger:   logger,
	}
}

// Run executes every phase for the document and returns its consolidated
// result. Individual stage failures are recorded and never abort siblings
// or later phases.
func (s *Scheduler) Run(ctx context.Context, doc *workspace.Document) DocumentResult {
	logger := s.logger.WithDocument(doc.Stem)
	started := time.Now()

	accumulated := make(map[string]Result)

	for i, phase := range s.phases {
		logger.Info().
			Int("phase", i+1).
			Strs("stages", phase.Stages).
			Bool("parallel", phase.Mode == ModeParallel).
			Msg("Phase starting")

		var phaseResults map[string]Result
		switch phase.Mode {
		case ModeParallel:
			phaseResults = s.runParallel(ctx, doc, phase, logger, accumulated)
		default:
			phaseResults = s.runSequential(ctx, doc, phase, logger, accumulated)
		}

		// Phase barrier: results only become visible to later phases here.
		for code, res := range phaseResults {
			accumulated[code] = res
		}

		logger.Info().Int("phase", i+1).Msg("Phase complete")
	}

	logger.Info().
		Dur("duration", time.Since(started)).
		Int("stages", len(accumulated)).
		Msg("Document schedule complete")

	return DocumentResult{Document: doc.Stem, Stages: accumulated}
}

// runParallel submits every stage of the phase concurrently. Each task gets
// the same snapshot of prior results taken at phase start, so concurrent
// siblings never observe each other.
func (s *Scheduler) runParallel(ctx context.Context, doc *workspace.Document, phase Phase, logger *observability.Logger, accumulated map[string]Result) map[string]Result {
	snapshot := cloneResults(accumulated)

	results := make([]Result, len(phase.Stages))
	var wg sync.WaitGroup
	for i, code := range phase.Stages {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			results[i] = s.runStage(ctx, doc, code, logger, snapshot)
		}(i, code)
	}
	wg.Wait()

	out := make(map[string]Result, len(phase.Stages))
	for i, code := range phase.Stages {
		out[code] = results[i]
	}
	return out
}

// runSequential runs the phase's stages one at a time. Each stage sees the
// prior phases' results plus its in-phase predecessors'.
func (s *Scheduler) runSequential(ctx context.Context, doc *workspace.Document, phase Phase, logger *observability.Logger, accumulated map[string]Result) map[string]Result {
	visible := cloneResults(accumulated)

	out := make(map[string]Result, len(phase.Stages))
	for _, code := range phase.Stages {
		res := s.runStage(ctx, doc, code, logger, visible)
		out[code] = res
		visible[code] = res
	}
	return out
}

// runStage resolves and executes a single stage. An unresolvable code
// degrades to an error result so unrelated stages keep going.
func (s *Scheduler) runStage(ctx context.Context, doc *workspace.Document, code string, logger *observability.Logger, prior map[string]Result) Result {
	stage, err := s.registry.Resolve(code)
	if err != nil {
		logger.Warn().Str("stage", code).Err(err).Msg("Stage implementation missing")
		return Result{Status: StatusError, Summary: "module missing", Error: err.Error()}
	}

	stageLogger := logger.WithStage(stage.Code, stage.Name)
	started := time.Now()

	res := s.runner.Run(ctx, stage, Invocation{
		RawPath:   doc.RawPath,
		OutputDir: doc.OutputDir(code),
		Prior:     prior,
		Logger:    stageLogger,
	})

	evt := stageLogger.Info()
	if !res.Succeeded() {
		evt = stageLogger.Warn().Str("error", res.Error)
	}
	evt.Str("status", string(res.Status)).
		Str("summary", res.Summary).
		Strs("files", res.Files).
		Dur("duration", time.Since(started)).
		Msg("Stage finished")

	return res
}

func cloneResults(in map[string]Result) map[string]Result {
	out := make(map[string]Result, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
