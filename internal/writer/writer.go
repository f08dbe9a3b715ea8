// Package writer persists classified records one category at a time:
// delete the category's previous records, suppress duplicates by
// (id, category), commit in fixed-size batches.
package writer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/store"
)

// DefaultBatchSize is the number of records committed per bulk write
const DefaultBatchSize = 1000

// BatchError reports a bulk write that rejected documents. Batches before
// it stay committed.
type BatchError struct {
	Category   model.Category
	BatchIndex int // zero-based within the category run
	Inserted   int // documents of this batch that were committed
	Failures   []store.DocumentError
}

func (e *BatchError) Error() string {
	msg := fmt.Sprintf("%s batch %d: %d of %d documents rejected",
		e.Category, e.BatchIndex, len(e.Failures), len(e.Failures)+e.Inserted)
	if len(e.Failures) > 0 {
		msg += ": " + e.Failures[0].Error()
	}
	return msg
}

// Is matches errors.ErrPartialWrite
func (e *BatchError) Is(target error) bool { return target == errors.ErrPartialWrite }

// Commit describes one committed batch
type Commit struct {
	Category   model.Category
	BatchIndex int
	Inserted   int
	Total      int // records committed so far in this category run
}

// Observer is called after every committed batch
type Observer func(Commit)

// Stats summarises one category run
type Stats struct {
	Deleted int64
	Written int
	Skipped int
	Batches int
}

// Option configures a Writer
type Option func(*Writer)

// WithBatchSize sets the flush threshold
func WithBatchSize(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithPrefetch loads the IDs already stored for the category once per run
// instead of looking each candidate up
func WithPrefetch(enabled bool) Option {
	return func(w *Writer) { w.prefetch = enabled }
}

// WithObserver registers a batch commit callback
func WithObserver(o Observer) Option {
	return func(w *Writer) { w.observer = o }
}

// WithLogger sets the logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(w *Writer) {
		if log != nil {
			w.log = log
		}
	}
}

// Writer is the conflict-aware writer of one category run at a time. It is
// not safe for concurrent use; parallel categories use one Writer each.
type Writer struct {
	out       store.Output
	batchSize int
	prefetch  bool
	observer  Observer
	log       *zap.SugaredLogger

	category model.Category
	active   bool
	seen     map[string]struct{} // staged or committed in this run
	existing map[string]struct{} // prefetched
	batch    []*model.Record
	stats    Stats
}

// New creates a Writer over out
func New(out store.Output, opts ...Option) *Writer {
	w := &Writer{
		out:       out,
		batchSize: DefaultBatchSize,
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Begin deletes every stored record of category and starts its run
func (w *Writer) Begin(ctx context.Context, category model.Category) error {
	if w.active {
		return errors.Newf("writer: %s still in progress", w.category)
	}

	deleted, err := w.out.DeleteMany(ctx, category)
	if err != nil {
		return errors.Wrapf(err, "delete %s records", category)
	}

	w.category = category
	w.active = true
	w.seen = make(map[string]struct{})
	w.existing = nil
	w.batch = make([]*model.Record, 0, w.batchSize)
	w.stats = Stats{Deleted: deleted}

	if w.prefetch {
		existing, err := w.out.ExistingIDs(ctx, category)
		if err != nil {
			w.active = false
			return errors.Wrapf(err, "prefetch %s ids", category)
		}
		w.existing = existing
	}

	w.log.Infow("Category run started", "category", category, "deleted", deleted)
	return nil
}

// TryWrite stages rec unless a record with the same id already exists for
// the category. It returns false for a suppressed duplicate. Reaching the
// batch size commits the batch.
func (w *Writer) TryWrite(ctx context.Context, rec *model.Record) (bool, error) {
	if !w.active {
		return false, errors.New("writer: TryWrite outside a category run")
	}
	if rec.Category != w.category {
		return false, errors.Newf("writer: record %s tagged %s during %s run", rec.ID, rec.Category, w.category)
	}

	dup, err := w.exists(ctx, rec.ID)
	if err != nil {
		return false, err
	}
	if dup {
		w.stats.Skipped++
		w.log.Debugw("Duplicate suppressed", "category", w.category, "id", rec.ID)
		return false, nil
	}

	w.seen[rec.ID] = struct{}{}
	w.batch = append(w.batch, rec)
	if len(w.batch) >= w.batchSize {
		if err := w.flush(ctx); err != nil {
			return true, err
		}
	}
	return true, nil
}

// End commits the partial batch and closes the run
func (w *Writer) End(ctx context.Context) (Stats, error) {
	if !w.active {
		return w.stats, errors.New("writer: End outside a category run")
	}
	err := w.flush(ctx)
	w.active = false
	w.log.Infow("Category run finished",
		"category", w.category,
		"written", w.stats.Written,
		"skipped", w.stats.Skipped,
		"batches", w.stats.Batches,
	)
	return w.stats, err
}

// Abort drops the staged batch and closes the run
func (w *Writer) Abort() Stats {
	if w.active && len(w.batch) > 0 {
		w.log.Warnw("Dropping staged records", "category", w.category, "records", len(w.batch))
	}
	w.batch = nil
	w.active = false
	return w.stats
}

// Stats returns the counters of the current or last run
func (w *Writer) Stats() Stats {
	return w.stats
}

func (w *Writer) exists(ctx context.Context, id string) (bool, error) {
	if _, ok := w.seen[id]; ok {
		return true, nil
	}
	if w.existing != nil {
		_, ok := w.existing[id]
		return ok, nil
	}
	if w.prefetch {
		return false, nil
	}
	_, err := w.out.FindOne(ctx, id, w.category)
	switch {
	case err == nil:
		return true, nil
	case errors.IsNotFound(err):
		return false, nil
	default:
		return false, errors.Wrapf(err, "look up %s/%s", w.category, id)
	}
}

func (w *Writer) flush(ctx context.Context) error {
	if len(w.batch) == 0 {
		return nil
	}
	index := w.stats.Batches
	batch := w.batch
	w.batch = make([]*model.Record, 0, w.batchSize)

	res, err := w.out.BulkInsert(ctx, batch)
	if err != nil {
		w.log.Errorw("Bulk write failed", "category", w.category, "batch", index, "records", len(batch), "error", err)
		return errors.Wrapf(err, "%s batch %d", w.category, index)
	}

	w.stats.Written += res.Inserted
	w.stats.Batches++
	if res.Failed() {
		for _, f := range res.Errors {
			w.log.Errorw("Document rejected",
				"category", w.category,
				"batch", index,
				"index", f.Index,
				"id", f.ID,
				"code", f.Code,
				"error", f.Err,
			)
		}
		return &BatchError{Category: w.category, BatchIndex: index, Inserted: res.Inserted, Failures: res.Errors}
	}

	w.log.Debugw("Batch committed", "category", w.category, "batch", index, "inserted", res.Inserted, "total", w.stats.Written)
	if w.observer != nil {
		w.observer(Commit{Category: w.category, BatchIndex: index, Inserted: res.Inserted, Total: w.stats.Written})
	}
	return nil
}
