package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rias-ai/research-engine/internal/merge"
	"github.com/rias-ai/research-engine/internal/workspace"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <session-id>",
	Short: "Rebuild the merged comparison workbook for an existing session",
	Long: `Rescans the session's per-document comparison artifacts on disk and
rewrites the merged workbook at the session root. Useful after manually
fixing or removing a document's output.`,
	Args: cobra.ExactArgs(1),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if err := ensureTemplate(cfg.Workspace.TemplatePath); err != nil {
		return fmt.Errorf("create comparison template: %w", err)
	}

	ws := workspace.NewManager(cfg.Workspace.ResultsDir, nil, logger)
	session, err := ws.OpenSession(args[0])
	if err != nil {
		return err
	}

	merger := merge.NewMerger(cfg.Workspace.TemplatePath, logger)
	res := merger.Merge(context.Background(), session.Root)
	if !res.Succeeded() {
		return fmt.Errorf("merge failed: %s", res.Error)
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s %s\n", green("✓"), res.Summary)
	fmt.Printf("Written to %s\n", session.MergedArtifactPath())
	return nil
}
