package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/logger"
	"github.com/ppiankov/wikiner/internal/pipeline"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the id to categories mapping as JSON",
	Long: `Export writes {"Q42": ["PER"], ...} for every classified item. Use - for stdout.

Example:
  wikiner export mapping.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := runContext(0)
	defer cancel()

	stores, err := pipeline.OpenStores(ctx, cfg, logger.Named("store"))
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	var w io.Writer = cmd.OutOrStdout()
	if args[0] != "-" {
		f, createErr := os.Create(args[0])
		if createErr != nil {
			return errors.Wrap(createErr, "create export file")
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = errors.Wrap(closeErr, "close export file")
			}
		}()
		w = f
	}

	n, err := pipeline.Export(ctx, stores.Output, w)
	if err != nil {
		return err
	}
	if args[0] != "-" {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d items to %s\n", n, args[0])
	}
	return nil
}
