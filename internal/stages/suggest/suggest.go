// Package suggest implements the reading suggestions stage. The model
// proposes follow-up papers related to the document; the stage writes them
// as a small workbook.
package suggest

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/rias-ai/research-engine/internal/domain"
	"github.com/rias-ai/research-engine/internal/llm"
	"github.com/rias-ai/research-engine/internal/pipeline"
	"github.com/rias-ai/research-engine/internal/stages/stageio"
)

// SheetName of the suggestions workbook.
const SheetName = "Suggested Papers"

// ArtifactName of the suggestions workbook.
const ArtifactName = "suggested_papers.xlsx"

var headers = []string{
	"Source File", "File Name", "Author", "Summary Information", "Keywords", "Reference Link",
}

const systemPrompt = `You are a research librarian recommending follow-up reading.
Respond with a single JSON object of the form:
{
  "suggestions": [{"file_name": "", "author": "", "summary": "", "keywords": "", "reference_link": ""}]
}
Suggest 5-10 real papers closely related to the given one. "keywords" is a
comma-separated list; "reference_link" is a DOI or arXiv URL when known,
otherwise empty. Values are plain strings.`

// Handle is the stage implementation.
type Handle struct {
	completer     llm.Completer
	truncateLimit int
}

// New creates the suggestions handle.
func New(completer llm.Completer, truncateLimit int) *Handle {
	return &Handle{completer: completer, truncateLimit: truncateLimit}
}

type payload struct {
	Suggestions []suggestion `json:"suggestions"`
}

type suggestion struct {
	FileName      string `json:"file_name"`
	Author        string `json:"author"`
	Summary       string `json:"summary"`
	Keywords      string `json:"keywords"`
	ReferenceLink string `json:"reference_link"`
}

// Invoke writes suggested_papers.xlsx for the document.
func (h *Handle) Invoke(ctx context.Context, inv pipeline.Invocation) (pipeline.Result, error) {
	text, err := stageio.UpstreamText(inv)
	if err != nil {
		return pipeline.Result{}, err
	}

	user := fmt.Sprintf("Suggest follow-up reading for this paper:\n\n%s",
		llm.TruncateForPrompt(text, h.truncateLimit))

	raw, err := h.completer.Complete(ctx, systemPrompt, user)
	if err != nil {
		return pipeline.Result{}, err
	}

	var p payload
	if err := llm.DecodeObject(raw, &p); err != nil {
		return pipeline.Result{}, err
	}
	if len(p.Suggestions) == 0 {
		return pipeline.Result{}, domain.StageExecError("model produced no suggestions", nil)
	}

	outPath := filepath.Join(inv.OutputDir, ArtifactName)
	if err := writeWorkbook(outPath, stageio.Stem(inv), p.Suggestions); err != nil {
		return pipeline.Result{}, err
	}

	inv.Logger.Debug().Int("suggestions", len(p.Suggestions)).Msg("Suggestions workbook written")
	return pipeline.SuccessResult(fmt.Sprintf("suggested %d papers", len(p.Suggestions)), ArtifactName), nil
}

func writeWorkbook(path, source string, suggestions []suggestion) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(SheetName); err != nil {
		return domain.StageExecError("create suggestions sheet", err)
	}

	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &row); err != nil {
		return domain.StageExecError("write suggestions headers", err)
	}

	for i, s := range suggestions {
		cells := []interface{}{source, s.FileName, s.Author, s.Summary, s.Keywords, s.ReferenceLink}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return domain.StageExecError("compute cell coordinates", err)
		}
		if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
			return domain.StageExecError("write suggestion row", err)
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return domain.StageExecError("remove default sheet", err)
	}
	if err := f.SaveAs(path); err != nil {
		return domain.StageExecError(fmt.Sprintf("save workbook %s", path), err)
	}
	return nil
}
