// Package pipeline contains the orchestration core: the stage registry, the
// per-stage runner, the per-document scheduler and the session orchestrator.
//
// Stages are fixed at build time and dispatched through the registry; there
// is no runtime plugin loading. A stage's internal failure always becomes
// data (an error Result), never a crash of the run.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rias-ai/research-engine/internal/domain"
	"github.com/rias-ai/research-engine/internal/observability"
	"github.com/rias-ai/research-engine/internal/workspace"
)

// Status of a stage result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the uniform record every stage run produces.
type Result struct {
	Status  Status   `json:"status"`
	Summary string   `json:"summary,omitempty"`
	Files   []string `json:"files,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Succeeded reports whether the result carries a success status.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// SuccessResult builds a success result.
func SuccessResult(summary string, files ...string) Result {
	return Result{Status: StatusSuccess, Summary: summary, Files: files}
}

// ErrorResult converts an error into an error result.
func ErrorResult(err error) Result {
	return Result{Status: StatusError, Error: err.Error()}
}

// Invocation carries a stage's inputs for one document.
type Invocation struct {
	// RawPath is the document's raw input copy.
	RawPath string
	// OutputDir is the stage's own output directory.
	OutputDir string
	// Prior holds results of stages from completed phases, keyed by stage
	// code. Stages in the same parallel phase never see each other here.
	Prior map[string]Result
	// Logger is scoped to this stage and document.
	Logger *observability.Logger
}

// Handle is one stage's unit of work. Implementations live under
// internal/stages and treat Invocation as their whole world.
type Handle interface {
	Invoke(ctx context.Context, inv Invocation) (Result, error)
}

// HandleFunc adapts a function to the Handle interface.
type HandleFunc func(ctx context.Context, inv Invocation) (Result, error)

func (f HandleFunc) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	return f(ctx, inv)
}

// Stage binds a code and display name to an implementation.
type Stage struct {
	Code   string
	Name   string
	Handle Handle
}

// Mode controls how a phase executes its stages.
type Mode int

const (
	// ModeParallel runs the phase's stages concurrently, each seeing the
	// same snapshot of prior results.
	ModeParallel Mode = iota
	// ModeSequential runs stages one at a time in declaration order; each
	// sees its in-phase predecessors' results.
	ModeSequential
)

// Phase is an ordered group of stage codes sharing an execution mode.
type Phase struct {
	Mode   Mode
	Stages []string
}

// Registry is the static mapping from stage code to implementation.
type Registry struct {
	stages map[string]Stage
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// Register adds a stage. Registration order is preserved for directory
// creation and reporting.
func (r *Registry) Register(s Stage) {
	if _, ok := r.stages[s.Code]; !ok {
		r.order = append(r.order, s.Code)
	}
	r.stages[s.Code] = s
}

// Resolve looks up a stage by code. An unknown code is not fatal to a run;
// the scheduler converts it into an error result.
func (r *Registry) Resolve(code string) (Stage, error) {
	s, ok := r.stages[code]
	if !ok {
		return Stage{}, domain.StageMissingError(fmt.Sprintf("no stage registered for code %s", code), nil)
	}
	return s, nil
}

// Stages returns all registered stages in registration order.
func (r *Registry) Stages() []Stage {
	out := make([]Stage, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.stages[code])
	}
	return out
}

// StageDirs returns the per-stage output directory declarations for the
// workspace manager.
func (r *Registry) StageDirs() []workspace.StageDir {
	dirs := make([]workspace.StageDir, 0, len(r.order))
	for _, code := range r.order {
		s := r.stages[code]
		dirs = append(dirs, workspace.StageDir{Code: s.Code, Name: s.Name})
	}
	return dirs
}
