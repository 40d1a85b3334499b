// Package extracttext implements the text extraction stage. It pulls the
// plain text of every page out of the PDF and writes it as a single .txt
// file for the downstream generation stages.
package extracttext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/rias-ai/research-engine/internal/domain"
	"github.com/rias-ai/research-engine/internal/pipeline"
	"github.com/rias-ai/research-engine/internal/stages/stageio"
)

// Handle is the stage implementation.
type Handle struct{}

// New creates the text extraction handle.
func New() *Handle {
	return &Handle{}
}

// Invoke extracts the document's text page by page into <stem>.txt.
func (h *Handle) Invoke(ctx context.Context, inv pipeline.Invocation) (pipeline.Result, error) {
	doc, err := fitz.New(inv.RawPath)
	if err != nil {
		return pipeline.Result{}, domain.StageExecError(fmt.Sprintf("open pdf %s", inv.RawPath), err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return pipeline.Result{}, domain.StageExecError("pdf has no pages", nil)
	}

	var b strings.Builder
	for page := 0; page < pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return pipeline.Result{}, err
		}

		text, err := doc.Text(page)
		if err != nil {
			return pipeline.Result{}, domain.StageExecError(fmt.Sprintf("extract text from page %d", page+1), err)
		}
		fmt.Fprintf(&b, "--- Page %d ---\n", page+1)
		b.WriteString(strings.TrimSpace(text))
		b.WriteString("\n\n")
	}

	name := stageio.Stem(inv) + ".txt"
	outPath := filepath.Join(inv.OutputDir, name)
	if err := os.WriteFile(outPath, []byte(b.String()), 0o644); err != nil {
		return pipeline.Result{}, domain.StageExecError("write extracted text", err)
	}

	inv.Logger.Debug().Int("pages", pageCount).Int("chars", b.Len()).Msg("Text extracted")
	return pipeline.SuccessResult(
		fmt.Sprintf("extracted %d characters from %d pages", b.Len(), pageCount), name), nil
}
