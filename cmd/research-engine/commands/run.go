package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/rias-ai/research-engine/internal/llm"
	"github.com/rias-ai/research-engine/internal/merge"
	"github.com/rias-ai/research-engine/internal/pipeline"
	"github.com/rias-ai/research-engine/internal/stages"
	"github.com/rias-ai/research-engine/internal/workspace"
)

var runLimit int

var runCmd = &cobra.Command{
	Use:   "run <pdf-or-folder>",
	Short: "Process one PDF or every PDF in a folder through the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "process at most N PDFs (0 = all)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	inputs, err := collectPDFs(args[0], runLimit)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no PDF files found under %s", args[0])
	}

	if err := ensureTemplate(cfg.Workspace.TemplatePath); err != nil {
		return fmt.Errorf("create comparison template: %w", err)
	}

	completer := llm.NewClient(llm.Options{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
	})

	registry := stages.DefaultRegistry(cfg, completer)
	ws := workspace.NewManager(cfg.Workspace.ResultsDir, registry.StageDirs(), logger)
	scheduler := pipeline.NewScheduler(registry, pipeline.NewRunner(cfg.Pipeline.StageTimeout), stages.Phases(), logger)
	merger := merge.NewMerger(cfg.Workspace.TemplatePath, logger)
	orchestrator := pipeline.NewOrchestrator(ws, scheduler, merger, logger)

	session, err := ws.CreateSession()
	if err != nil {
		return err
	}

	fmt.Printf("Processing %d paper(s), session %s\n\n", len(inputs), session.ID)

	bar := progressbar.NewOptions(len(inputs),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription("Processing papers"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)
	orchestrator.Progress = func(completed, total int) {
		_ = bar.Set(completed)
	}

	report := orchestrator.Run(context.Background(), session, inputs)
	printReport(report, session)
	return nil
}

// collectPDFs expands a file or folder argument into a sorted list of PDFs.
func collectPDFs(path string, limit int) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var pdfs []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				continue
			}
			pdfs = append(pdfs, filepath.Join(path, e.Name()))
		}
		sort.Strings(pdfs)
	} else {
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil, fmt.Errorf("%s is not a PDF", path)
		}
		pdfs = []string{path}
	}

	if limit > 0 && len(pdfs) > limit {
		pdfs = pdfs[:limit]
	}
	return pdfs, nil
}

// printReport renders the per-document and merge outcome table.
func printReport(report *pipeline.SessionReport, session *workspace.Session) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Printf("\n%s\n", bold("Run summary"))

	stems := make([]string, 0, len(report.Documents))
	for stem := range report.Documents {
		stems = append(stems, stem)
	}
	sort.Strings(stems)

	for _, stem := range stems {
		doc := report.Documents[stem]
		if doc.Error != "" {
			fmt.Printf("  %s %s: %s\n", red("✗"), stem, doc.Error)
			continue
		}

		failed := 0
		for _, res := range doc.Stages {
			if !res.Succeeded() {
				failed++
			}
		}
		if failed == 0 {
			fmt.Printf("  %s %s: all %d stages succeeded\n", green("✓"), stem, len(doc.Stages))
		} else {
			fmt.Printf("  %s %s: %d of %d stages failed\n", red("✗"), stem, failed, len(doc.Stages))
			codes := make([]string, 0, len(doc.Stages))
			for code := range doc.Stages {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			for _, code := range codes {
				if res := doc.Stages[code]; !res.Succeeded() {
					fmt.Printf("      stage %s: %s\n", code, res.Error)
				}
			}
		}
	}

	if report.Merge.Succeeded() {
		fmt.Printf("  %s merge: %s\n", green("✓"), report.Merge.Summary)
	} else {
		fmt.Printf("  %s merge: %s\n", red("✗"), report.Merge.Error)
	}

	fmt.Printf("\nCompleted in %s. Results: %s\n", report.Duration.Round(10*time.Millisecond), session.Root)
}
