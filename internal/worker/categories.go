package worker

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
)

// CategoryRunner runs one category end to end. A non-nil error means the
// whole run must stop; recoverable outcomes are carried in the report.
type CategoryRunner interface {
	RunCategory(ctx context.Context, c model.Category) (model.CategoryReport, error)
}

// CategoryJob represents one category run
type CategoryJob struct {
	Index    int
	Category model.Category
	Runner   CategoryRunner
	stopped  *atomic.Bool
}

// Execute runs the category unless an earlier job already stopped the run
func (j *CategoryJob) Execute(ctx context.Context) *CategoryResult {
	if j.stopped.Load() || ctx.Err() != nil {
		return &CategoryResult{
			Index:  j.Index,
			Report: model.CategoryReport{Category: j.Category, Status: model.StatusNotRun},
		}
	}

	start := time.Now()
	report, err := j.Runner.RunCategory(ctx, j.Category)
	if report.Category == "" {
		report.Category = j.Category
	}
	if report.Duration == 0 {
		report.Duration = time.Since(start)
	}
	if err != nil {
		j.stopped.Store(true)
		if report.Status == "" || report.Status == model.StatusCompleted {
			report.Status = model.StatusFailed
		}
		if report.Error == "" {
			report.Error = err.Error()
		}
	}
	return &CategoryResult{Index: j.Index, Report: report, Error: err}
}

// CategoryResult represents the result of a category job
type CategoryResult struct {
	Index  int
	Report model.CategoryReport
	Error  error
}

// BatchProcessor runs categories through a worker pool
type BatchProcessor struct {
	runner      CategoryRunner
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(runner CategoryRunner, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
	}
}

// ProcessCategories runs every category and returns results in input order.
// Once a category fails, categories that have not started are reported as
// not run. Categories already in flight finish.
func (b *BatchProcessor) ProcessCategories(ctx context.Context, categories []model.Category) []*CategoryResult {
	if len(categories) == 0 {
		return []*CategoryResult{}
	}

	var stopped atomic.Bool
	out := make([]*CategoryResult, len(categories))

	if b.concurrency == 1 {
		for i, c := range categories {
			job := &CategoryJob{Index: i, Category: c, Runner: b.runner, stopped: &stopped}
			out[i] = job.Execute(ctx)
		}
		return out
	}

	pool := NewPool[*CategoryResult](ctx, b.concurrency)
	pool.Start()

	for i, c := range categories {
		job := &CategoryJob{Index: i, Category: c, Runner: b.runner, stopped: &stopped}
		if !pool.Submit(job) {
			break
		}
	}

	for _, cr := range pool.Wait() {
		out[cr.Index] = cr
	}

	for i, c := range categories {
		if out[i] == nil {
			out[i] = &CategoryResult{
				Index:  i,
				Report: model.CategoryReport{Category: c, Status: model.StatusNotRun},
			}
		}
	}
	return out
}

// ReadClassIDsFromFile reads class IDs from a file (one per line).
// Blank lines and # comments are skipped, duplicates are dropped.
func ReadClassIDsFromFile(filePath string) ([]model.ClassID, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}
	defer func() { _ = file.Close() }()

	var ids []model.ClassID
	seen := make(map[model.ClassID]bool)

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		id, err := model.ParseClassID(line)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", filePath, lineNo)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan file")
	}

	return ids, nil
}
