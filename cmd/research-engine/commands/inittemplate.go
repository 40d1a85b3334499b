package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rias-ai/research-engine/internal/artifact"
)

var initTemplateForce bool

var initTemplateCmd = &cobra.Command{
	Use:   "init-template [path]",
	Short: "Write the default comparison template workbook",
	Long: `Writes a headers-only comparison template. The template's header rows
define the columns of every comparison artifact and of the merged workbook.
Without a path the configured workspace.template_path is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInitTemplate,
}

func init() {
	initTemplateCmd.Flags().BoolVar(&initTemplateForce, "force", false, "overwrite an existing template")
	rootCmd.AddCommand(initTemplateCmd)
}

func runInitTemplate(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Workspace.TemplatePath
	}

	if _, err := os.Stat(path); err == nil && !initTemplateForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := artifact.WriteDefaultTemplate(path); err != nil {
		return err
	}

	fmt.Printf("Template written to %s\n", path)
	return nil
}

// ensureTemplate writes the default template when none exists yet.
func ensureTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return artifact.WriteDefaultTemplate(path)
}
