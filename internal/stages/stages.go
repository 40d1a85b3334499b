// Package stages wires the concrete stage implementations into the pipeline
// registry and declares the phase plan. The set of stages is fixed at build
// time; adding one means adding a package and a Register call here.
package stages

import (
	"github.com/rias-ai/research-engine/internal/config"
	"github.com/rias-ai/research-engine/internal/llm"
	"github.com/rias-ai/research-engine/internal/pipeline"
	"github.com/rias-ai/research-engine/internal/stages/compare"
	"github.com/rias-ai/research-engine/internal/stages/edu"
	"github.com/rias-ai/research-engine/internal/stages/extracttext"
	"github.com/rias-ai/research-engine/internal/stages/extractimages"
	"github.com/rias-ai/research-engine/internal/stages/suggest"
	"github.com/rias-ai/research-engine/internal/stages/summarize"
)

// Stage codes. The numbering comes from the historical script names and is
// baked into the on-disk output directory layout, so it stays stable even
// though it is not contiguous.
const (
	CodeExtractText   = "01"
	CodeComparePapers = "03"
	CodeGenerateEdu   = "04"
	CodeExtractImages = "06"
	CodeSuggestNext   = "07"
	CodeSummarize     = "08"
)

// DefaultRegistry builds the production registry: every stage bound to its
// real implementation.
func DefaultRegistry(cfg *config.Config, completer llm.Completer) *pipeline.Registry {
	limit := cfg.LLM.TruncateLimit

	reg := pipeline.NewRegistry()
	reg.Register(pipeline.Stage{Code: CodeExtractText, Name: "Extract Text", Handle: extracttext.New()})
	reg.Register(pipeline.Stage{Code: CodeComparePapers, Name: "Compare Papers", Handle: compare.New(completer, cfg.Workspace.TemplatePath, limit)})
	reg.Register(pipeline.Stage{Code: CodeGenerateEdu, Name: "Generate Edu", Handle: edu.New(completer, limit)})
	reg.Register(pipeline.Stage{Code: CodeExtractImages, Name: "Extract Images", Handle: extractimages.New(cfg.Pipeline.ImageQuality)})
	reg.Register(pipeline.Stage{Code: CodeSuggestNext, Name: "Suggest Next", Handle: suggest.New(completer, limit)})
	reg.Register(pipeline.Stage{Code: CodeSummarize, Name: "Summarize", Handle: summarize.New(completer, limit)})
	return reg
}

// Phases returns the execution plan. Extraction runs in parallel; the
// generation phases run sequentially because they share a rate-limited API.
func Phases() []pipeline.Phase {
	return []pipeline.Phase{
		{Mode: pipeline.ModeParallel, Stages: []string{CodeExtractText, CodeExtractImages}},
		{Mode: pipeline.ModeSequential, Stages: []string{CodeComparePapers, CodeGenerateEdu}},
		{Mode: pipeline.ModeSequential, Stages: []string{CodeSummarize, CodeSuggestNext}},
	}
}
