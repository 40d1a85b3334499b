// Package stageio holds the small on-disk conventions the generation stages
// share: where a document's extracted text lives and how output paths are
// derived from an invocation.
package stageio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rias-ai/research-engine/internal/domain"
	"github.com/rias-ai/research-engine/internal/pipeline"
	"github.com/rias-ai/research-engine/internal/workspace"
)

// TextStageCode is the stage whose output every generation stage reads.
const TextStageCode = "01"

var textStageDirName = workspace.OutputDirName(TextStageCode, "Extract Text")

// Stem returns the sanitized document stem for an invocation.
func Stem(inv pipeline.Invocation) string {
	return workspace.Stem(inv.RawPath)
}

// TextPath returns where the document's extracted text is expected. All stage
// output directories are siblings under the document's processed dir, so the
// text stage's directory is derived from the caller's own.
func TextPath(inv pipeline.Invocation) string {
	processedDir := filepath.Dir(inv.OutputDir)
	return filepath.Join(processedDir, textStageDirName, Stem(inv)+".txt")
}

// UpstreamText loads the document's extracted text. Absence is an input
// error: the stage cannot run without the text stage's output on disk,
// regardless of what the in-memory prior results claim.
func UpstreamText(inv pipeline.Invocation) (string, error) {
	path := TextPath(inv)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", domain.StageInputError(fmt.Sprintf("extracted text not found at %s", path), err)
	}
	if len(data) == 0 {
		return "", domain.StageInputError(fmt.Sprintf("extracted text at %s is empty", path), nil)
	}
	return string(data), nil
}
