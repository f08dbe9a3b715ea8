// Package pipeline drives classification runs over the enabled categories
// and hosts the corpus loader and the record exporter.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/classify"
	"github.com/ppiankov/wikiner/internal/closure"
	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/extract"
	"github.com/ppiankov/wikiner/internal/metrics"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/store"
	"github.com/ppiankov/wikiner/internal/worker"
	"github.com/ppiankov/wikiner/internal/writer"
)

var tracer = otel.Tracer("github.com/ppiankov/wikiner/internal/pipeline")

// Pipeline orchestrates a classification run
type Pipeline struct {
	config     *model.Config
	table      *classify.Table
	corpus     store.Corpus
	output     store.Output
	builder    *classify.Builder
	classifier *classify.Classifier
	metrics    *metrics.Metrics
	log        *zap.SugaredLogger
	runID      string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithMetrics records progress in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithRunID overrides the generated run id
func WithRunID(id string) Option {
	return func(p *Pipeline) {
		if id != "" {
			p.runID = id
		}
	}
}

// NewPipeline wires a pipeline over the stores and the edge source
func NewPipeline(cfg *model.Config, table *classify.Table, corpus store.Corpus, output store.Output, edges closure.EdgeSource, opts ...Option) *Pipeline {
	p := &Pipeline{
		config: cfg,
		table:  table,
		corpus: corpus,
		output: output,
		log:    zap.NewNop().Sugar(),
		runID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}

	registry := extract.NewRegistry(extract.Options{OfficialOpening: cfg.Event.OfficialOpening})
	p.builder = classify.NewBuilder(closure.NewResolver(edges, p.log.Named("closure")), p.log.Named("classify"))
	p.classifier = classify.NewClassifier(corpus, registry, p.runID, p.log.Named("classify"))
	return p
}

// RunID returns the id stamped on every record of this run
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run classifies categories in order. Unreachable stores abort before any
// category starts. A category whose closure cannot be resolved is skipped.
// Cancelling ctx fails the run.
// A write failure stops the run; categories not yet started are reported
// as not run and the failure is returned alongside the report.
func (p *Pipeline) Run(ctx context.Context, categories []model.Category) (*model.RunReport, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	span.SetAttributes(attribute.String("run_id", p.runID), attribute.Int("categories", len(categories)))
	defer span.End()

	report := &model.RunReport{RunID: p.runID, StartedAt: time.Now().UTC()}

	if err := p.checkConnectivity(ctx); err != nil {
		span.SetStatus(codes.Error, "store unreachable")
		return nil, err
	}
	for _, field := range []string{store.IndexFieldID, store.IndexFieldCategory} {
		if err := p.output.CreateIndex(ctx, field, true); err != nil {
			return nil, errors.Wrapf(err, "index output on %s", field)
		}
	}

	p.log.Infow("Classification run started", "run_id", p.runID, "categories", categories)

	results := worker.NewBatchProcessor(p, p.config.Concurrency.Categories).ProcessCategories(ctx, categories)

	var runErr error
	for _, r := range results {
		report.Categories = append(report.Categories, r.Report)
		p.metrics.ObserveCategory(r.Report)
		if r.Error != nil && runErr == nil {
			runErr = r.Error
		}
	}
	report.FinishedAt = time.Now().UTC()
	if runErr == nil && ctx.Err() != nil && report.Failed() {
		runErr = errors.Wrap(ctx.Err(), "run cancelled")
	}

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "run stopped")
		p.log.Errorw("Classification run stopped", "run_id", p.runID, "error", runErr)
		return report, runErr
	}
	p.log.Infow("Classification run finished", "run_id", p.runID, "duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// RunCategory resolves, scans and writes one category
func (p *Pipeline) RunCategory(ctx context.Context, c model.Category) (model.CategoryReport, error) {
	ctx, span := tracer.Start(ctx, "pipeline.RunCategory")
	span.SetAttributes(attribute.String("category", string(c)))
	defer span.End()

	log := p.log.With("category", c, "run_id", p.runID)
	start := time.Now()
	report := model.CategoryReport{Category: c}
	finish := func(status model.CategoryStatus, err error) (model.CategoryReport, error) {
		report.Status = status
		report.Duration = time.Since(start)
		if err != nil {
			report.Error = err.Error()
			span.RecordError(err)
		}
		return report, nil
	}

	spec, ok := p.table.Spec(c)
	if !ok {
		log.Warnw("No category table entry, skipping")
		return finish(model.StatusSkipped, errors.Newf("category %s is not in the category table", c))
	}

	m, err := p.builder.Build(ctx, spec)
	if err != nil {
		// cancellation ends the run, it is not a closure failure
		if ctx.Err() != nil {
			log.Warnw("Run cancelled while resolving closures", "error", err)
			report, _ = finish(model.StatusFailed, err)
			span.SetStatus(codes.Error, "cancelled")
			return report, errors.Wrapf(ctx.Err(), "%s cancelled", c)
		}
		log.Errorw("Closure resolution failed, skipping category", "error", err)
		return finish(model.StatusSkipped, err)
	}
	report.ClosureLen = m.IDs.Len()
	p.metrics.ObserveClosure(c, m.IDs.Len())

	w := writer.New(p.output,
		writer.WithBatchSize(p.config.Writer.BatchSize),
		writer.WithPrefetch(p.config.Writer.Prefetch),
		writer.WithObserver(p.progress(log)),
		writer.WithLogger(log),
	)

	fail := func(err error) (model.CategoryReport, error) {
		stats := w.Abort()
		p.apply(&report, stats)
		report, _ = finish(model.StatusFailed, err)
		span.SetStatus(codes.Error, "category failed")
		log.Errorw("Category failed", "error", err, "written", stats.Written)
		return report, err
	}

	if err := w.Begin(ctx, c); err != nil {
		return fail(err)
	}

	// breaking out of the range closes the corpus cursor
	for rec, err := range p.classifier.Classify(ctx, m) {
		if err != nil {
			return fail(err)
		}
		report.Scanned++
		if _, err := w.TryWrite(ctx, rec); err != nil {
			return fail(err)
		}
	}

	stats, err := w.End(ctx)
	if err != nil {
		return fail(err)
	}
	p.apply(&report, stats)
	return finish(model.StatusCompleted, nil)
}

func (p *Pipeline) apply(report *model.CategoryReport, stats writer.Stats) {
	report.Deleted = stats.Deleted
	report.Written = stats.Written
	report.Skipped = stats.Skipped
	report.Batches = stats.Batches
}

// progress logs committed batches and feeds the metrics
func (p *Pipeline) progress(log *zap.SugaredLogger) writer.Observer {
	count := p.metrics.Observer()
	return func(c writer.Commit) {
		count(c)
		log.Infow("Batch committed", "batch", c.BatchIndex, "inserted", c.Inserted, "total", c.Total)
	}
}

func (p *Pipeline) checkConnectivity(ctx context.Context) error {
	if err := p.corpus.Ping(ctx); err != nil {
		return errors.Mark(errors.Wrap(err, "corpus store"), errors.ErrConnectivity)
	}
	if err := p.output.Ping(ctx); err != nil {
		return errors.Mark(errors.Wrap(err, "output store"), errors.ErrConnectivity)
	}
	return nil
}
