// Package edu implements the educational content stage. The model turns the
// paper into a slide deck and a hands-on lab; the stage writes the deck as
// Marp-compatible markdown, keeps the raw model output as JSON and bundles
// the lab files into a zip.
package edu

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rias-ai/research-engine/internal/domain"
	"github.com/rias-ai/research-engine/internal/llm"
	"github.com/rias-ai/research-engine/internal/pipeline"
	"github.com/rias-ai/research-engine/internal/stages/stageio"
)

const systemPrompt = `You are a university lecturer preparing teaching material from a research paper.
Respond with a single JSON object of the form:
{
  "title": "",
  "slides": [{"title": "", "bullets": ["", ""], "notes": ""}],
  "lab": {"title": "", "files": [{"name": "", "content": ""}]}
}
Produce 8-12 slides covering motivation, method, results and limitations.
The lab is a short hands-on exercise reproducing one idea of the paper; its
files are plain text (markdown instructions, code, data snippets).`

// Handle is the stage implementation.
type Handle struct {
	completer     llm.Completer
	truncateLimit int
}

// New creates the educational content handle.
func New(completer llm.Completer, truncateLimit int) *Handle {
	return &Handle{completer: completer, truncateLimit: truncateLimit}
}

type deck struct {
	Title  string  `json:"title"`
	Slides []slide `json:"slides"`
	Lab    lab     `json:"lab"`
}

type slide struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
	Notes   string   `json:"notes"`
}

type lab struct {
	Title string    `json:"title"`
	Files []labFile `json:"files"`
}

type labFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Invoke generates the deck and lab bundle for the document.
func (h *Handle) Invoke(ctx context.Context, inv pipeline.Invocation) (pipeline.Result, error) {
	text, err := stageio.UpstreamText(inv)
	if err != nil {
		return pipeline.Result{}, err
	}

	user := fmt.Sprintf("Create teaching material for this paper:\n\n%s",
		llm.TruncateForPrompt(text, h.truncateLimit))

	raw, err := h.completer.Complete(ctx, systemPrompt, user)
	if err != nil {
		return pipeline.Result{}, err
	}

	var d deck
	if err := llm.DecodeObject(raw, &d); err != nil {
		return pipeline.Result{}, err
	}
	if len(d.Slides) == 0 {
		return pipeline.Result{}, domain.StageExecError("model produced no slides", nil)
	}

	stem := stageio.Stem(inv)
	files := make([]string, 0, 3)

	deckName := stem + "_slides.md"
	if err := os.WriteFile(filepath.Join(inv.OutputDir, deckName), []byte(renderMarp(&d)), 0o644); err != nil {
		return pipeline.Result{}, domain.StageExecError("write slide deck", err)
	}
	files = append(files, deckName)

	rawName := stem + "_edu.json"
	pretty, err := json.MarshalIndent(&d, "", "  ")
	if err != nil {
		return pipeline.Result{}, domain.StageExecError("marshal deck json", err)
	}
	if err := os.WriteFile(filepath.Join(inv.OutputDir, rawName), pretty, 0o644); err != nil {
		return pipeline.Result{}, domain.StageExecError("write deck json", err)
	}
	files = append(files, rawName)

	if len(d.Lab.Files) > 0 {
		zipName := stem + "_lab.zip"
		if err := writeLabZip(filepath.Join(inv.OutputDir, zipName), d.Lab); err != nil {
			return pipeline.Result{}, err
		}
		files = append(files, zipName)
	}

	inv.Logger.Debug().Int("slides", len(d.Slides)).Int("lab_files", len(d.Lab.Files)).Msg("Teaching material written")
	return pipeline.SuccessResult(
		fmt.Sprintf("generated %d slides and %d lab files", len(d.Slides), len(d.Lab.Files)), files...), nil
}

// renderMarp formats the deck as Marp markdown, one slide per "---" section.
func renderMarp(d *deck) string {
	var b strings.Builder
	b.WriteString("---\nmarp: true\npaginate: true\n---\n\n")
	b.WriteString("# " + d.Title + "\n")

	for _, s := range d.Slides {
		b.WriteString("\n---\n\n## " + s.Title + "\n\n")
		for _, bullet := range s.Bullets {
			b.WriteString("- " + bullet + "\n")
		}
		if s.Notes != "" {
			b.WriteString("\n<!-- " + s.Notes + " -->\n")
		}
	}
	return b.String()
}

func writeLabZip(path string, l lab) error {
	f, err := os.Create(path)
	if err != nil {
		return domain.StageExecError("create lab bundle", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, lf := range l.Files {
		// Model-chosen names stay inside the archive root.
		name := filepath.Base(strings.TrimSpace(lf.Name))
		if name == "" || name == "." || name == string(filepath.Separator) {
			continue
		}
		w, err := zw.Create(name)
		if err != nil {
			return domain.StageExecError("add lab file to bundle", err)
		}
		if _, err := w.Write([]byte(lf.Content)); err != nil {
			return domain.StageExecError("write lab file to bundle", err)
		}
	}
	if err := zw.Close(); err != nil {
		return domain.StageExecError("finalize lab bundle", err)
	}
	return nil
}
