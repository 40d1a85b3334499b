// Package commands implements the research-engine CLI.
package commands

import (
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rias-ai/research-engine/internal/config"
	"github.com/rias-ai/research-engine/internal/observability"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "research-engine",
	Short: "Research Engine - multi-stage analysis pipeline for academic PDFs",
	Long: `The Research Engine processes academic papers through a staged pipeline:
text and image extraction, model-driven comparison, teaching material,
summaries and reading suggestions, finishing with a merged comparison
workbook across all papers of a run.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		if noColor {
			color.NoColor = true
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads the configuration honoring the global flags.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger builds the CLI logger. Verbose drops the level to debug.
func newLogger(cfg *config.Config) *observability.Logger {
	level := cfg.Observability.LogLevel
	if verbose {
		level = "debug"
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      "console",
		ServiceName: cfg.Observability.ServiceName,
	})
}
