// Package merge builds the session-level merged comparison workbook out of
// every per-document comparison artifact found on disk.
package merge

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/rias-ai/research-engine/internal/artifact"
	"github.com/rias-ai/research-engine/internal/observability"
	"github.com/rias-ai/research-engine/internal/pipeline"
	"github.com/rias-ai/research-engine/internal/workspace"
)

// ArtifactPattern matches per-document comparison workbooks relative to the
// session root. The merge rescans the disk instead of trusting in-memory
// stage results, so it also works standalone on an old session.
const ArtifactPattern = "*/processed/03_compare_papers_output/*_comparison.xlsx"

// Merger concatenates per-document comparison workbooks onto the template.
type Merger struct {
	templatePath string
	logger       *observability.Logger
}

// NewMerger creates a merger writing against the given template workbook.
func NewMerger(templatePath string, logger *observability.Logger) *Merger {
	return &Merger{templatePath: templatePath, logger: logger}
}

// Merge scans the session tree for comparison artifacts, concatenates their
// record sets in lexical path order and writes the merged workbook at the
// session root. With zero artifacts it still writes a headers-only workbook,
// because the artifact's existence is the run-completion signal. Unreadable
// artifacts are skipped, not fatal.
func (m *Merger) Merge(ctx context.Context, sessionRoot string) pipeline.Result {
	logger := m.logger.With().Str("session_root", sessionRoot).Logger()

	paths, err := filepath.Glob(filepath.Join(sessionRoot, ArtifactPattern))
	if err != nil {
		return pipeline.ErrorResult(err)
	}
	sort.Strings(paths)

	merged := &artifact.Comparison{}
	skipped := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return pipeline.ErrorResult(err)
		}

		cmp, err := artifact.ReadComparison(path)
		if err != nil {
			logger.Warn().Str("artifact", path).Err(err).Msg("Skipping unreadable comparison artifact")
			skipped++
			continue
		}
		merged.Overview = append(merged.Overview, cmp.Overview...)
		merged.Results = append(merged.Results, cmp.Results...)
	}

	outPath := filepath.Join(sessionRoot, workspace.MergedArtifactName)
	if err := artifact.WriteComparison(m.templatePath, outPath, merged); err != nil {
		logger.Error().Err(err).Msg("Writing merged workbook failed")
		return pipeline.ErrorResult(err)
	}

	summary := fmt.Sprintf("merged %d of %d comparison artifacts (%d overview rows, %d result rows)",
		len(paths)-skipped, len(paths), len(merged.Overview), len(merged.Results))
	logger.Info().
		Int("artifacts", len(paths)).
		Int("skipped", skipped).
		Int("overview_rows", len(merged.Overview)).
		Int("result_rows", len(merged.Results)).
		Msg("Merged workbook written")

	return pipeline.SuccessResult(summary, workspace.MergedArtifactName)
}
