package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/wikiner/internal/classify"
	"github.com/ppiankov/wikiner/internal/edges"
	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/logger"
	"github.com/ppiankov/wikiner/internal/metrics"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/pipeline"
	"github.com/ppiankov/wikiner/internal/telemetry"
)

var (
	onlyCategories  []string
	categoryWorkers int
	writeBatchSize  int
	prefetch        bool
	runTimeout      time.Duration
	reportPath      string
	edgeSource      string
)

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify the corpus into the enabled categories",
	Long: `Classify resolves the membership closure of every enabled category, scans
the corpus for matching items and rewrites that category's records in the
output store.

A category whose closure cannot be resolved is skipped. A failed bulk write
stops the run; categories that have not started are left untouched.

Example:
  wikiner classify
  wikiner classify --only person,location
  wikiner classify --edges corpus --concurrency 3 --report run.json`,
	Args: cobra.NoArgs,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringSliceVar(&onlyCategories, "only", nil, "categories to run (codes or flag names), overrides search_flags")
	classifyCmd.Flags().IntVar(&categoryWorkers, "concurrency", 0, "categories run in parallel (default from config)")
	classifyCmd.Flags().IntVar(&writeBatchSize, "batch-size", 0, "records per bulk write (default from config)")
	classifyCmd.Flags().BoolVar(&prefetch, "prefetch", false, "load existing ids per category instead of point lookups")
	classifyCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "abort the run after this long (0 = no limit)")
	classifyCmd.Flags().StringVar(&reportPath, "report", "", "write the run report as JSON to this path")
	classifyCmd.Flags().StringVar(&edgeSource, "edges", "", "subclass edge source: sparql or corpus (default from config)")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if categoryWorkers > 0 {
		cfg.Concurrency.Categories = categoryWorkers
	}
	if writeBatchSize > 0 {
		cfg.Writer.BatchSize = writeBatchSize
	}
	if prefetch {
		cfg.Writer.Prefetch = true
	}
	if edgeSource != "" {
		cfg.Edges.Source = edgeSource
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	categories, err := selectCategories(cfg, onlyCategories)
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		return errors.WithHint(errors.New("no category enabled"), "set search_flags in the config or pass --only")
	}

	ctx, cancel := runContext(runTimeout)
	defer cancel()

	shutdown, err := telemetry.Setup(cfg.Tracing.Enabled, os.Stderr, Version)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warnw("Tracer shutdown failed", "error", err)
		}
	}()

	table, err := classify.LoadTable(cfg.CategoriesFile)
	if err != nil {
		return err
	}

	stores, err := pipeline.OpenStores(ctx, cfg, logger.Named("store"))
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	source, err := edges.NewSource(ctx, cfg, stores.Corpus, logger.Named("edges"))
	if err != nil {
		return err
	}

	m := metrics.New()
	p := pipeline.NewPipeline(cfg, table, stores.Corpus, stores.Output, source,
		pipeline.WithMetrics(m),
		pipeline.WithLogger(logger.Named("pipeline")),
	)

	report, runErr := p.Run(ctx, categories)
	if report != nil {
		printSummary(cmd.OutOrStdout(), report)
		if reportPath != "" {
			if err := writeReport(reportPath, report); err != nil {
				logger.Errorw("Failed to write report", "path", reportPath, "error", err)
			}
		}
	}

	if err := m.Push(context.Background(), cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, p.RunID()); err != nil {
		logger.Warnw("Metrics push failed", "error", err)
	}
	return runErr
}

// selectCategories returns --only when given, else the enabled search flags
func selectCategories(cfg *model.Config, only []string) ([]model.Category, error) {
	if len(only) == 0 {
		return cfg.SearchFlags.EnabledCategories(), nil
	}
	want := make(map[model.Category]bool)
	for _, name := range only {
		c, err := model.ParseCategory(name)
		if err != nil {
			return nil, errors.Mark(err, errors.ErrInvalidConfig)
		}
		want[c] = true
	}
	var out []model.Category
	for _, c := range model.AllCategories {
		if want[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

// runContext is cancelled on interrupt and, when d > 0, after d
func runContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

func printSummary(w io.Writer, report *model.RunReport) {
	fmt.Fprintf(w, "\nRun %s\n\n", report.RunID)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSTATUS\tCLASSES\tDELETED\tSCANNED\tWRITTEN\tSKIPPED\tBATCHES\tDURATION")
	for _, c := range report.Categories {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			c.Category, c.Status, c.ClosureLen, c.Deleted, c.Scanned, c.Written, c.Skipped, c.Batches,
			c.Duration.Round(time.Millisecond))
	}
	_ = tw.Flush()

	for _, c := range report.Categories {
		if c.Error != "" {
			fmt.Fprintf(w, "\n%s: %s", c.Category, firstLine(c.Error))
		}
	}
	fmt.Fprintln(w)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func writeReport(path string, report *model.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal report")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "write report")
}
