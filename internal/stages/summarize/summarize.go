// Package summarize implements the summary stage. The model condenses the
// paper into a short structured summary which is written as a Word document.
package summarize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fumiama/go-docx"

	"github.com/rias-ai/research-engine/internal/domain"
	"github.com/rias-ai/research-engine/internal/llm"
	"github.com/rias-ai/research-engine/internal/pipeline"
	"github.com/rias-ai/research-engine/internal/stages/stageio"
)

const systemPrompt = `You are a research assistant writing concise paper summaries.
Respond with a single JSON object of the form:
{
  "title": "",
  "authors": "",
  "abstract": "",
  "key_points": ["", ""],
  "conclusion": ""
}
"abstract" is a 3-5 sentence plain-language summary. "key_points" lists the
4-8 most important findings or contributions. Values are plain strings.`

// Handle is the stage implementation.
type Handle struct {
	completer     llm.Completer
	truncateLimit int
}

// New creates the summary handle.
func New(completer llm.Completer, truncateLimit int) *Handle {
	return &Handle{completer: completer, truncateLimit: truncateLimit}
}

type summary struct {
	Title      string   `json:"title"`
	Authors    string   `json:"authors"`
	Abstract   string   `json:"abstract"`
	KeyPoints  []string `json:"key_points"`
	Conclusion string   `json:"conclusion"`
}

// Invoke generates <stem>_summary.docx from the extracted text.
func (h *Handle) Invoke(ctx context.Context, inv pipeline.Invocation) (pipeline.Result, error) {
	text, err := stageio.UpstreamText(inv)
	if err != nil {
		return pipeline.Result{}, err
	}

	user := fmt.Sprintf("Summarize this paper:\n\n%s", llm.TruncateForPrompt(text, h.truncateLimit))

	raw, err := h.completer.Complete(ctx, systemPrompt, user)
	if err != nil {
		return pipeline.Result{}, err
	}

	var s summary
	if err := llm.DecodeObject(raw, &s); err != nil {
		return pipeline.Result{}, err
	}
	if s.Abstract == "" {
		return pipeline.Result{}, domain.StageExecError("model produced an empty summary", nil)
	}

	name := stageio.Stem(inv) + "_summary.docx"
	if err := writeDocx(filepath.Join(inv.OutputDir, name), &s); err != nil {
		return pipeline.Result{}, err
	}

	inv.Logger.Debug().Int("key_points", len(s.KeyPoints)).Msg("Summary document written")
	return pipeline.SuccessResult(fmt.Sprintf("summarized with %d key points", len(s.KeyPoints)), name), nil
}

func writeDocx(path string, s *summary) error {
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().AddText(s.Title).Size("32").Bold()
	if s.Authors != "" {
		doc.AddParagraph().AddText(s.Authors).Size("22").Italic()
	}
	doc.AddParagraph()

	doc.AddParagraph().AddText("Abstract").Size("26").Bold()
	doc.AddParagraph().AddText(s.Abstract)
	doc.AddParagraph()

	if len(s.KeyPoints) > 0 {
		doc.AddParagraph().AddText("Key Points").Size("26").Bold()
		for _, p := range s.KeyPoints {
			doc.AddParagraph().AddText("• " + p)
		}
		doc.AddParagraph()
	}

	if s.Conclusion != "" {
		doc.AddParagraph().AddText("Conclusion").Size("26").Bold()
		doc.AddParagraph().AddText(s.Conclusion)
	}

	f, err := os.Create(path)
	if err != nil {
		return domain.StageExecError("create summary document", err)
	}
	defer f.Close()

	if _, err := doc.WriteTo(f); err != nil {
		return domain.StageExecError("write summary document", err)
	}
	return nil
}
