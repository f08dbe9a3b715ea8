package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/wikiner/internal/logger"
	"github.com/ppiankov/wikiner/internal/pipeline"
	"github.com/ppiankov/wikiner/internal/util"
)

var loadBatchSize int

// loadCmd represents the load command
var loadCmd = &cobra.Command{
	Use:   "load <dump>",
	Short: "Load a Wikidata JSON dump into the corpus store",
	Long: `Load reads a Wikidata JSON dump (one entity per line, optionally .bz2, .gz
or .zst compressed) from a file or an http(s) URL into the corpus store and
creates the corpus indexes.

Example:
  wikiner load latest-all.json.bz2
  wikiner load https://dumps.wikimedia.org/wikidatawiki/entities/latest-all.json.gz`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().IntVar(&loadBatchSize, "batch-size", pipeline.DefaultLoadBatchSize, "items per corpus write")
	loadCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "abort the load after this long (0 = no limit)")
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := runContext(runTimeout)
	defer cancel()

	stores, err := pipeline.OpenStores(ctx, cfg, logger.Named("store"))
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	fetcher, err := pipeline.NewFetcher(util.ClientOptions{
		HTTPProxy:  cfg.Edges.HTTPProxy,
		HTTPSProxy: cfg.Edges.HTTPSProxy,
		UserAgent:  cfg.Edges.UserAgent,
	})
	if err != nil {
		return err
	}
	loader := pipeline.NewDumpLoader(stores.Loader, fetcher, loadBatchSize, logger.Named("load"))

	stats, err := loader.LoadFile(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Loaded %d items from %d lines (%d rejected)\n", stats.Items, stats.Lines, stats.Rejected)
	return nil
}
