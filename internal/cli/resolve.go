package cli

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/wikiner/internal/closure"
	"github.com/ppiankov/wikiner/internal/edges"
	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/logger"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/pipeline"
	"github.com/ppiankov/wikiner/internal/worker"
)

var (
	resolveForward bool
	resolveExclude []string
	resolveFile    string
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve [Q-id...]",
	Short: "Print the subclass closure of seed classes",
	Long: `Resolve walks the subclass-of relation from the seed classes and prints
every class reached, one per line.

Example:
  wikiner resolve Q515
  wikiner resolve Q2221906 --exclude Q2095
  wikiner resolve --from-file seeds.txt --forward`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().BoolVar(&resolveForward, "forward", false, "follow subclass-of towards superclasses")
	resolveCmd.Flags().StringSliceVar(&resolveExclude, "exclude", nil, "seed classes whose closure is removed from the result")
	resolveCmd.Flags().StringVar(&resolveFile, "from-file", "", "read seed classes from a file (one per line)")
	resolveCmd.Flags().StringVar(&edgeSource, "edges", "", "subclass edge source: sparql or corpus (default from config)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	seeds, err := parseClassIDs(args)
	if err != nil {
		return err
	}
	if resolveFile != "" {
		fromFile, err := worker.ReadClassIDsFromFile(resolveFile)
		if err != nil {
			return err
		}
		seeds = append(seeds, fromFile...)
	}
	if len(seeds) == 0 {
		return errors.New("no seed classes given")
	}
	exclude, err := parseClassIDs(resolveExclude)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if edgeSource != "" {
		cfg.Edges.Source = edgeSource
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, cancel := runContext(0)
	defer cancel()

	var corpus closure.EdgeSource
	if cfg.Edges.Source == "corpus" {
		stores, err := pipeline.OpenStores(ctx, cfg, logger.Named("store"))
		if err != nil {
			return err
		}
		defer func() { _ = stores.Close() }()
		corpus = stores.Corpus
	}

	source, err := edges.NewSource(ctx, cfg, corpus, logger.Named("edges"))
	if err != nil {
		return err
	}

	dir := closure.Backward
	if resolveForward {
		dir = closure.Forward
	}
	set, err := closure.NewResolver(source, logger.Named("closure")).ResolveExcluding(ctx, seeds, exclude, dir)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(cmd.OutOrStdout())
	for _, id := range set.Sorted() {
		fmt.Fprintln(w, id)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	logger.Infow("Closure resolved", "seeds", len(seeds), "excluded", len(exclude), "classes", set.Len())
	return nil
}

func parseClassIDs(raw []string) ([]model.ClassID, error) {
	var ids []model.ClassID
	for _, s := range raw {
		id, err := model.ParseClassID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
