// Package compare implements the paper comparison stage. It asks the model
// for structured overview and results records and writes them into a
// per-document comparison workbook that the merge stage later concatenates.
package compare

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rias-ai/research-engine/internal/artifact"
	"github.com/rias-ai/research-engine/internal/llm"
	"github.com/rias-ai/research-engine/internal/pipeline"
	"github.com/rias-ai/research-engine/internal/stages/stageio"
)

const systemPrompt = `You are a research analyst extracting structured data from academic papers.
Respond with a single JSON object of the form:
{
  "overview": [{"Paper ID": "", "Title": "", "Authors": "", "Year": "", "Venue": "", "Research Area": "", "Methodology": "", "Key Contribution": ""}],
  "results": [{"Paper ID": "", "Metric": "", "Dataset": "", "Result": "", "Baseline": "", "Improvement": "", "Notes": ""}]
}
"overview" has exactly one record describing the paper. "results" has one
record per reported experimental result; leave it empty if the paper reports
none. Use the same "Paper ID" in every record. Values are plain strings.`

// Handle is the stage implementation.
type Handle struct {
	completer     llm.Completer
	templatePath  string
	truncateLimit int
}

// New creates the comparison handle.
func New(completer llm.Completer, templatePath string, truncateLimit int) *Handle {
	return &Handle{
		completer:     completer,
		templatePath:  templatePath,
		truncateLimit: truncateLimit,
	}
}

// payload mirrors the JSON object requested from the model.
type payload struct {
	Overview []artifact.Row `json:"overview"`
	Results  []artifact.Row `json:"results"`
}

// Invoke reads the extracted text, asks the model for comparison records and
// writes <stem>_comparison.xlsx. A missing upstream text file is an input
// error; the workbook is only written on full success.
func (h *Handle) Invoke(ctx context.Context, inv pipeline.Invocation) (pipeline.Result, error) {
	text, err := stageio.UpstreamText(inv)
	if err != nil {
		return pipeline.Result{}, err
	}

	user := fmt.Sprintf("Extract comparison records from this paper:\n\n%s",
		llm.TruncateForPrompt(text, h.truncateLimit))

	raw, err := h.completer.Complete(ctx, systemPrompt, user)
	if err != nil {
		return pipeline.Result{}, err
	}

	var p payload
	if err := llm.DecodeObject(raw, &p); err != nil {
		return pipeline.Result{}, err
	}

	name := stageio.Stem(inv) + "_comparison.xlsx"
	outPath := filepath.Join(inv.OutputDir, name)
	cmp := &artifact.Comparison{Overview: p.Overview, Results: p.Results}
	if err := artifact.WriteComparison(h.templatePath, outPath, cmp); err != nil {
		return pipeline.Result{}, err
	}

	inv.Logger.Debug().
		Int("overview_rows", len(p.Overview)).
		Int("result_rows", len(p.Results)).
		Msg("Comparison workbook written")

	return pipeline.SuccessResult(
		fmt.Sprintf("wrote %d overview and %d result rows", len(p.Overview), len(p.Results)), name), nil
}
